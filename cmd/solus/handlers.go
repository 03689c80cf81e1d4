package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/elonfeng/solus/internal/catalog"
	"github.com/elonfeng/solus/internal/config"
	"github.com/elonfeng/solus/internal/fileinput"
	"github.com/elonfeng/solus/internal/logging"
	"github.com/elonfeng/solus/internal/store"
	"github.com/elonfeng/solus/internal/view"
	"github.com/elonfeng/solus/pkg/server"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// env is what every command needs: config, logger and an opened store.
type env struct {
	cfg     *config.Config
	log     *slog.Logger
	store   *store.SQLiteStore
	bundled []catalog.StaticEntry
}

func setup() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return &env{
		cfg: cfg,
		log: logger,
		store: store.New(store.Options{
			Path:     cfg.Database.Path,
			Disabled: cfg.Database.Disabled,
			Logger:   logger,
		}),
		bundled: catalog.FromConfig(cfg.Catalog),
	}, nil
}

// open connects the store. A failure is logged, not returned: the library
// still works with bundled entries only.
func (e *env) open(ctx context.Context) {
	if err := e.store.Open(ctx); err != nil {
		e.log.Warn("game storage unavailable", "kind", string(store.KindOf(err)), "error", err)
	}
}

func (e *env) controller(s view.RecordStore, r view.Renderer) *view.Controller {
	return view.New(view.Options{
		Store:             s,
		Bundled:           e.bundled,
		Renderer:          r,
		Logger:            e.log,
		SwitchDelay:       e.cfg.Catalog.ParseSwitchDelay(),
		ContentExtensions: e.cfg.Upload.ContentExtensions,
		MaxCoverBytes:     e.cfg.Upload.MaxCoverBytes,
		MaxContentBytes:   e.cfg.Upload.MaxContentBytes,
	})
}

// listedStore keeps the records the last library reload read, so the
// table can show their sizes and ages without a second scan.
type listedStore struct {
	view.RecordStore
	records []store.Record
}

func (l *listedStore) ListAll(ctx context.Context) ([]store.Record, error) {
	records, err := l.RecordStore.ListAll(ctx)
	l.records = records
	return records, err
}

func runServe(ctx context.Context, port int) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.store.Close()

	if port != 0 {
		e.cfg.Server.Port = port
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Pages render while the store opens; until then the library shows
	// bundled entries only.
	go func() {
		if err := <-e.store.OpenAsync(ctx); err != nil {
			e.log.Warn("game storage unavailable", "kind", string(store.KindOf(err)), "error", err)
			return
		}
		e.log.Info("game storage ready", "path", e.cfg.Database.Path)
	}()

	var srv *server.Server
	ctrl := e.controller(e.store, view.RendererFunc(func(v view.View) { srv.Render(v) }))
	srv, err = server.New(ctrl, e.store, server.Options{
		Addr:           e.cfg.Server.Addr(),
		AssetsDir:      e.cfg.Server.AssetsDir,
		Bundled:        e.bundled,
		MaxUploadBytes: e.cfg.Upload.MaxCoverBytes + e.cfg.Upload.MaxContentBytes + 1<<20,
		SwitchDelay:    e.cfg.Catalog.ParseSwitchDelay(),
		Logger:         e.log,
	})
	if err != nil {
		return err
	}

	err = srv.ListenAndServe(ctx)
	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "\nshutting down...")
	}
	return err
}

func runList(ctx context.Context, w io.Writer, jsonOutput bool) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.store.Close()
	e.open(ctx)

	listed := &listedStore{RecordStore: e.store}
	var renderErr error
	ctrl := e.controller(listed, view.RendererFunc(func(v view.View) {
		if jsonOutput {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			renderErr = enc.Encode(v.Items)
			return
		}
		(&libraryTable{w: w, records: listed.records}).Render(v)
	}))
	ctrl.Activate(ctx, view.PageLibrary)
	return renderErr
}

type addOptions struct {
	name        string
	coverURL    string
	coverFile   string
	content     string
	contentFile string
}

func (o addOptions) form() view.Form {
	form := view.Form{
		Name:        o.name,
		CoverMode:   view.CoverFromURL,
		CoverURL:    o.coverURL,
		ContentMode: view.ContentPasted,
		ContentText: o.content,
	}
	if o.coverFile != "" {
		form.CoverMode = view.CoverFromFile
		form.CoverFile = fileinput.FromPath(o.coverFile)
	}
	if o.contentFile != "" {
		form.ContentMode = view.ContentFromFile
		form.ContentFile = fileinput.FromPath(o.contentFile)
	}
	return form
}

func runAdd(ctx context.Context, stdout, stderr io.Writer, opts addOptions) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.store.Close()
	e.open(ctx)

	var last string
	ctrl := view.New(view.Options{
		Store:   e.store,
		Bundled: e.bundled,
		Renderer: view.RendererFunc(func(v view.View) {
			if v.Page != view.PageAddEntry || v.Status.Message == "" || v.Status.Message == last {
				return
			}
			last = v.Status.Message
			if v.Status.Kind != view.StatusError {
				fmt.Fprintln(stderr, v.Status.Message)
			}
		}),
		Logger:            e.log,
		ContentExtensions: e.cfg.Upload.ContentExtensions,
		MaxCoverBytes:     e.cfg.Upload.MaxCoverBytes,
		MaxContentBytes:   e.cfg.Upload.MaxContentBytes,
		// The process exits after printing the id; there is no library
		// page to return to.
		AfterFunc: func(time.Duration, func()) {},
	})
	ctrl.Activate(ctx, view.PageAddEntry)

	id, err := ctrl.Submit(ctx, opts.form())
	if err != nil {
		var verr *view.ValidationError
		if errors.As(err, &verr) {
			return err
		}
		return fmt.Errorf("add game: %w", err)
	}
	fmt.Fprintf(stdout, "%d\n", id)
	return nil
}

func runDelete(ctx context.Context, in io.Reader, out io.Writer, id int64, yes bool) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.store.Close()
	e.open(ctx)

	if _, err := e.store.Get(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no added game with id %d", id)
		}
		return fmt.Errorf("delete game %d: %w", id, err)
	}

	var confirm view.Confirmer
	switch {
	case yes:
		confirm = view.ConfirmFunc(func(context.Context, string) bool { return true })
	case isTerminal(in):
		confirm = promptConfirmer{in: in, out: out}
	default:
		return errors.New("refusing to delete without --yes when stdin is not a terminal")
	}

	ctrl := e.controller(e.store, nil)
	ctrl.Activate(ctx, view.PageLibrary)
	deleted, err := ctrl.Delete(ctx, id, confirm)
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Fprintln(out, "cancelled")
		return nil
	}
	fmt.Fprintf(out, "deleted game %d\n", id)
	return nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// promptConfirmer asks on the terminal and accepts y or yes.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (p promptConfirmer) Confirm(_ context.Context, prompt string) bool {
	fmt.Fprintf(p.out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
