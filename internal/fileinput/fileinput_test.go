package fileinput

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadText_UTF8(t *testing.T) {
	u := FromBytes("game.html", "text/html", []byte("<html>é</html>"))
	text, err := u.ReadText(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "<html>é</html>", text)
}

func TestReadText_UTF16WithBOM(t *testing.T) {
	data := []byte{0xFF, 0xFE, 'h', 0, 'i', 0}
	text, err := FromBytes("game.htm", "", data).ReadText(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
}

func TestReadText_ReplacesInvalidBytes(t *testing.T) {
	text, err := FromBytes("x.html", "", []byte{'a', 0xFF, 'b'}).ReadText(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "a�b", text)
}

func TestReadText_Limit(t *testing.T) {
	u := FromBytes("big.html", "", bytes.Repeat([]byte("x"), 11))

	_, err := u.ReadText(context.Background(), 10)
	var rerr *ReadError
	require.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, "big.html", rerr.Filename)

	text, err := u.ReadText(context.Background(), 11)
	require.NoError(t, err)
	assert.Len(t, text, 11)
}

func TestRead_NoFileSelected(t *testing.T) {
	var u Upload
	assert.True(t, u.Empty())
	_, err := u.ReadText(context.Background(), 0)
	var rerr *ReadError
	assert.ErrorAs(t, err, &rerr)
}

func TestRead_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FromBytes("a.html", "", []byte("x")).ReadText(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadDataURL(t *testing.T) {
	u := FromBytes("cover.png", "image/png", []byte{1, 2, 3})
	url, err := u.ReadDataURL(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AQID", url)
}

func TestIsImageAndExtension(t *testing.T) {
	assert.True(t, FromBytes("a.png", "image/png", nil).IsImage())
	assert.True(t, FromBytes("a.JPG", "IMAGE/JPEG", nil).IsImage())
	assert.False(t, FromBytes("a.txt", "text/plain", nil).IsImage())
	assert.False(t, FromBytes("a", "", nil).IsImage())

	exts := []string{".html", ".htm"}
	assert.True(t, FromBytes("Game.HTML", "", nil).HasExtension(exts))
	assert.True(t, FromBytes("game.htm", "", nil).HasExtension(exts))
	assert.False(t, FromBytes("game.html.txt", "", nil).HasExtension(exts))
	assert.False(t, FromBytes("game.js", "", nil).HasExtension(exts))
}

func TestFromPath(t *testing.T) {
	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(htmlPath, []byte("<html></html>"), 0o644))

	u := FromPath(htmlPath)
	assert.Equal(t, "index.html", u.Filename)
	assert.Contains(t, u.ContentType, "text/html")
	text, err := u.ReadText(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", text)

	pngPath := filepath.Join(dir, "cover")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	require.NoError(t, os.WriteFile(pngPath, png, 0o644))
	assert.True(t, FromPath(pngPath).IsImage())

	_, err = FromPath(filepath.Join(dir, "missing.html")).ReadText(context.Background(), 0)
	var rerr *ReadError
	assert.ErrorAs(t, err, &rerr)
}

func TestFromMultipart(t *testing.T) {
	assert.True(t, FromMultipart(nil).Empty())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("content_file", "game.html")
	require.NoError(t, err)
	_, err = fw.Write([]byte("<html>mp</html>"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/add", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))

	u := FromMultipart(req.MultipartForm.File["content_file"][0])
	assert.Equal(t, "game.html", u.Filename)
	text, err := u.ReadText(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "<html>mp</html>", text)
}
