package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/solus/internal/catalog"
	"github.com/elonfeng/solus/internal/store"
	"github.com/elonfeng/solus/internal/view"
)

func testConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`
database:
  path: %s
log:
  level: error
catalog:
  bundled:
    - name: Slope
      url: games/Slope.html
`, filepath.Join(dir, "solus.db"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, cfg string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func listJSON(t *testing.T, cfg string) []catalog.Item {
	t.Helper()
	out, err := run(t, cfg, "list", "--json")
	require.NoError(t, err)
	var items []catalog.Item
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	return items
}

func TestAddThenList(t *testing.T) {
	cfg := testConfig(t)

	out, err := run(t, cfg, "add", "--name", "Test Game", "--content", "<html></html>")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	items := listJSON(t, cfg)
	require.Len(t, items, 2)
	assert.Equal(t, "Slope", items[0].Name)
	assert.Equal(t, "Test Game", items[1].Name)
	assert.Equal(t, int64(1), items[1].RecordID)
	assert.Equal(t, "/play/1", items[1].LaunchURL)

	out, err = run(t, cfg, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Test Game")
	assert.Contains(t, out, "bundled")
	assert.Contains(t, out, "13 B")
	assert.Contains(t, out, "2 games")
}

func TestAdd_Validation(t *testing.T) {
	cfg := testConfig(t)

	_, err := run(t, cfg, "add", "--name", "  ", "--content", "<html></html>")
	require.Error(t, err)
	assert.Equal(t, "Please enter a game name.", err.Error())

	_, err = run(t, cfg, "add", "--name", "x")
	require.Error(t, err)
	assert.Equal(t, "HTML content is required.", err.Error())

	assert.Len(t, listJSON(t, cfg), 1)
}

func TestAdd_ContentFile(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	game := filepath.Join(dir, "game.htm")
	require.NoError(t, os.WriteFile(game, []byte("<html>file</html>"), 0o644))
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("<html></html>"), 0o644))

	_, err := run(t, cfg, "add", "--name", "From File", "--content-file", game)
	require.NoError(t, err)

	_, err = run(t, cfg, "add", "--name", "Wrong", "--content-file", notes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Uploaded file must be")

	_, err = run(t, cfg, "add", "--name", "Both", "--content", "x", "--content-file", game)
	require.Error(t, err)

	assert.Len(t, listJSON(t, cfg), 2)
}

func TestAdd_PersistenceDisabled(t *testing.T) {
	cfg := testConfig(t)
	t.Setenv("SOLUS_PERSISTENCE", "false")

	_, err := run(t, cfg, "add", "--name", "x", "--content", "<p></p>")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotReady)

	items := listJSON(t, cfg)
	require.Len(t, items, 1)
	assert.Equal(t, "Slope", items[0].Name)
}

func TestDelete(t *testing.T) {
	cfg := testConfig(t)
	_, err := run(t, cfg, "add", "--name", "Doomed", "--content", "<html></html>")
	require.NoError(t, err)

	_, err = run(t, cfg, "delete", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
	assert.Len(t, listJSON(t, cfg), 2)

	out, err := run(t, cfg, "delete", "1", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "deleted game 1\n", out)
	assert.Len(t, listJSON(t, cfg), 1)

	_, err = run(t, cfg, "delete", "1", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no added game with id 1")

	_, err = run(t, cfg, "delete", "abc")
	require.Error(t, err)
}

func TestPromptConfirmer(t *testing.T) {
	var out bytes.Buffer
	yes := promptConfirmer{in: strings.NewReader("Yes\n"), out: &out}
	assert.True(t, yes.Confirm(t.Context(), "Delete?"))
	assert.Equal(t, "Delete? [y/N] ", out.String())

	assert.False(t, promptConfirmer{in: strings.NewReader("\n"), out: &out}.Confirm(t.Context(), "Delete?"))
	assert.False(t, promptConfirmer{in: strings.NewReader(""), out: &out}.Confirm(t.Context(), "Delete?"))
	assert.True(t, promptConfirmer{in: strings.NewReader("y"), out: &out}.Confirm(t.Context(), "Delete?"))
}

func TestLibraryTable(t *testing.T) {
	var out bytes.Buffer
	now := time.UnixMilli(1_700_000_000_000)
	tbl := &libraryTable{
		w:       &out,
		records: []store.Record{{ID: 7, Name: "Mine", Content: strings.Repeat("x", 2048), CreatedAt: now.Add(-2 * time.Hour).UnixMilli()}},
		now:     func() time.Time { return now },
	}

	tbl.Render(view.View{Page: view.PageSettings})
	assert.Empty(t, out.String())

	tbl.Render(view.View{Page: view.PageLibrary, Items: []catalog.Item{
		{Name: "Slope", LaunchURL: "games/Slope.html"},
		{Name: "Mine", LaunchURL: "/play/7", RecordID: 7},
	}})
	s := out.String()
	assert.Contains(t, s, "NAME")
	assert.Contains(t, s, "2.0 kB")
	assert.Contains(t, s, "2 hours ago")
	assert.Contains(t, s, "/play/7")

	out.Reset()
	tbl.Render(view.View{Page: view.PageLibrary, EmptyLibrary: true})
	assert.Contains(t, out.String(), "library is empty")
}

type countingStore struct {
	calls   int
	records []store.Record
	err     error
}

func (c *countingStore) Create(context.Context, store.RecordInput) (int64, error) { return 0, nil }
func (c *countingStore) Delete(context.Context, int64) error { return nil }

func (c *countingStore) ListAll(context.Context) ([]store.Record, error) {
	c.calls++
	return c.records, c.err
}

func TestListedStore_TableUsesSingleReload(t *testing.T) {
	cs := &countingStore{records: []store.Record{{ID: 3, Name: "Mine", Content: "<html></html>", CreatedAt: time.Now().UnixMilli()}}}
	listed := &listedStore{RecordStore: cs}
	var out bytes.Buffer
	ctrl := view.New(view.Options{
		Store:   listed,
		Bundled: []catalog.StaticEntry{{Name: "Slope", URL: "games/Slope.html"}},
		Renderer: view.RendererFunc(func(v view.View) {
			(&libraryTable{w: &out, records: listed.records}).Render(v)
		}),
	})

	ctrl.Activate(t.Context(), view.PageLibrary)
	assert.Equal(t, 1, cs.calls)
	assert.Contains(t, out.String(), "13 B")
	assert.Contains(t, out.String(), "2 games")
}

func TestListedStore_ListFailureStillRendersBundled(t *testing.T) {
	cs := &countingStore{err: errors.New("disk I/O error")}
	listed := &listedStore{RecordStore: cs}
	var out bytes.Buffer
	ctrl := view.New(view.Options{
		Store:   listed,
		Bundled: []catalog.StaticEntry{{Name: "Slope", URL: "games/Slope.html"}},
		Renderer: view.RendererFunc(func(v view.View) {
			(&libraryTable{w: &out, records: listed.records}).Render(v)
		}),
	})

	v := ctrl.Activate(t.Context(), view.PageLibrary)
	require.Len(t, v.Items, 1)
	assert.Contains(t, out.String(), "Slope")
	assert.Contains(t, out.String(), "1 games")
}

func TestRenderTable(t *testing.T) {
	assert.Empty(t, renderTable(nil, [][]string{{"x"}}))

	out := renderTable(libraryColumns, [][]string{{"1", "Short"}})
	assert.Contains(t, out, "LAUNCH")
	assert.Contains(t, out, "Short")
	assert.Contains(t, out, "╭")
}
