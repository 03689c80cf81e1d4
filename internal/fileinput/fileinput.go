// Package fileinput turns user-selected files into the text forms stored in
// catalog records: decoded text for content, data URLs for cover images.
package fileinput

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrTooLarge is wrapped by ReadError when a file exceeds the read limit.
var ErrTooLarge = errors.New("file too large")

// ReadError reports a failure to read or decode a selected file.
type ReadError struct {
	Filename string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Filename, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Upload is a file the user selected.
type Upload struct {
	Filename    string
	ContentType string
	open        func() (io.ReadCloser, error)
}

// Empty reports whether no file was selected.
func (u Upload) Empty() bool { return u.open == nil }

// FromBytes wraps in-memory data.
func FromBytes(filename, contentType string, data []byte) Upload {
	return Upload{
		Filename:    filename,
		ContentType: contentType,
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FromPath wraps a file on disk. The content type comes from the extension,
// falling back to sniffing the first bytes.
func FromPath(path string) Upload {
	return Upload{
		Filename:    filepath.Base(path),
		ContentType: detectType(path),
		open:        func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// FromMultipart wraps a file posted in a multipart form.
func FromMultipart(fh *multipart.FileHeader) Upload {
	if fh == nil {
		return Upload{}
	}
	return Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		open:        func() (io.ReadCloser, error) { return fh.Open() },
	}
}

func detectType(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	return http.DetectContentType(head[:n])
}

// IsImage reports whether the declared type is an image type.
func (u Upload) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(u.ContentType)), "image/")
}

// HasExtension reports whether the filename ends in one of exts,
// compared case-insensitively.
func (u Upload) HasExtension(exts []string) bool {
	name := strings.ToLower(u.Filename)
	for _, ext := range exts {
		if ext != "" && strings.HasSuffix(name, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func (u Upload) readAll(ctx context.Context, limit int64) ([]byte, error) {
	if u.open == nil {
		return nil, &ReadError{Filename: u.Filename, Err: errors.New("no file selected")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &ReadError{Filename: u.Filename, Err: err}
	}
	rc, err := u.open()
	if err != nil {
		return nil, &ReadError{Filename: u.Filename, Err: err}
	}
	defer rc.Close()

	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ReadError{Filename: u.Filename, Err: err}
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, &ReadError{Filename: u.Filename, Err: fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, limit)}
	}
	return data, nil
}

// ReadText returns the file decoded as text. A byte order mark selects
// UTF-16; otherwise the data is read as UTF-8 with invalid sequences
// replaced. A limit of zero means unlimited.
func (u Upload) ReadText(ctx context.Context, limit int64) (string, error) {
	data, err := u.readAll(ctx, limit)
	if err != nil {
		return "", err
	}
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	text, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return "", &ReadError{Filename: u.Filename, Err: fmt.Errorf("decode text: %w", err)}
	}
	return string(text), nil
}

// ReadDataURL returns the file as a base64 data URL that can be embedded
// wherever an image location is expected.
func (u Upload) ReadDataURL(ctx context.Context, limit int64) (string, error) {
	data, err := u.readAll(ctx, limit)
	if err != nil {
		return "", err
	}
	contentType := u.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
