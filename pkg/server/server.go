package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/elonfeng/solus/internal/catalog"
	"github.com/elonfeng/solus/internal/fileinput"
	"github.com/elonfeng/solus/internal/store"
	"github.com/elonfeng/solus/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

// Options configures the HTTP server.
type Options struct {
	Addr string
	// AssetsDir serves bundled games and cover images. Optional.
	AssetsDir string
	Bundled   []catalog.StaticEntry
	// MaxUploadBytes caps the add-entry form body.
	MaxUploadBytes int64
	// SwitchDelay is how long the success page waits before returning to
	// the library.
	SwitchDelay time.Duration
	Logger      *slog.Logger
}

// Server renders the launcher pages over HTTP.
type Server struct {
	ctrl  *view.Controller
	store store.Store
	opts  Options
	log   *slog.Logger
	tmpl  *template.Template
}

// New creates a new HTTP server.
func New(ctrl *view.Controller, s store.Store, opts Options) (*Server, error) {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:8080"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 64 << 20
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tmpl, err := template.New("solus").Funcs(template.FuncMap{
		"navHref":     navHref,
		"coverURL":    coverURL,
		"statusColor": func(k view.StatusKind) template.CSS { return template.CSS(k.Color()) },
		"refreshTag": func(seconds int) template.HTML {
			return template.HTML(fmt.Sprintf(`<meta http-equiv="refresh" content="%d;url=/">`, seconds))
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	return &Server{
		ctrl:  ctrl,
		store: s,
		opts:  opts,
		log:   logger.With("component", "server"),
		tmpl:  tmpl,
	}, nil
}

// Render implements view.Renderer. Pages are written per request, so this
// only traces transitions.
func (s *Server) Render(v view.View) {
	s.log.Debug("view rendered", "page", v.Page.String(), "items", len(v.Items), "status", v.Status.Message)
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/entries", s.handleEntries)

	mux.HandleFunc("GET /{$}", s.handlePage(view.PageLibrary))
	mux.HandleFunc("GET /settings", s.handlePage(view.PageSettings))
	mux.HandleFunc("GET /about", s.handlePage(view.PageAbout))
	mux.HandleFunc("GET /add", s.handlePage(view.PageAddEntry))
	mux.HandleFunc("POST /add", s.handleAdd)
	mux.HandleFunc("POST /settings/theme", s.handleTheme)
	mux.HandleFunc("GET /entries/{id}/delete", s.handleConfirmDelete)
	mux.HandleFunc("POST /entries/{id}/delete", s.handleDelete)
	mux.HandleFunc("GET /play/{id}", s.handlePlay)

	if s.opts.AssetsDir != "" {
		mux.Handle("GET /", http.FileServerFS(os.DirFS(s.opts.AssetsDir)))
	}
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("solus server listening", "addr", "http://"+s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

type pageData struct {
	View    view.View
	Refresh int
	Alert   string
	Confirm *confirmData
}

type confirmData struct {
	ID     int64
	Prompt string
}

func (s *Server) writePage(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		s.log.Error("render page", "page", data.View.Page.String(), "error", err)
	}
}

func (s *Server) handlePage(p view.Page) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := s.ctrl.Activate(r.Context(), p)
		s.writePage(w, http.StatusOK, pageData{View: v})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"store":  s.store.State().String(),
	})
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListAll(r.Context())
	if err != nil {
		s.log.Warn("could not load stored games", "error", err)
		records = nil
	}
	items := catalog.Merge(s.opts.Bundled, records)
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  items,
		"count": len(items),
	})
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	s.ctrl.SetDarkTheme(r.PostForm.Get("dark") != "")
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.writePage(w, http.StatusBadRequest, pageData{
			View:  s.ctrl.View(),
			Alert: fmt.Sprintf("Could not read the form: %v", err),
		})
		return
	}
	if r.MultipartForm == nil {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
	}

	if s.ctrl.Page() != view.PageAddEntry {
		s.ctrl.Activate(r.Context(), view.PageAddEntry)
	}
	form := formFromRequest(r)
	_, err := s.ctrl.Submit(r.Context(), form)
	v := s.ctrl.View()
	if err != nil {
		s.writePage(w, submitStatus(err), pageData{View: v})
		return
	}
	s.writePage(w, http.StatusOK, pageData{
		View:    v,
		Refresh: int(math.Ceil(s.opts.SwitchDelay.Seconds())),
	})
}

func formFromRequest(r *http.Request) view.Form {
	form := view.Form{
		Name:        r.FormValue("name"),
		CoverMode:   view.CoverFromURL,
		CoverURL:    r.FormValue("cover-url"),
		ContentMode: view.ContentPasted,
		ContentText: r.FormValue("html-code"),
	}
	if r.FormValue("cover-source") == string(view.CoverFromFile) {
		form.CoverMode = view.CoverFromFile
		form.CoverFile = uploadFrom(r, "cover-file")
	}
	if r.FormValue("html-source") == string(view.ContentFromFile) {
		form.ContentMode = view.ContentFromFile
		form.ContentFile = uploadFrom(r, "html-file")
	}
	return form
}

func uploadFrom(r *http.Request, field string) fileinput.Upload {
	if r.MultipartForm == nil {
		return fileinput.Upload{}
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 || files[0].Filename == "" {
		return fileinput.Upload{}
	}
	return fileinput.FromMultipart(files[0])
}

func submitStatus(err error) int {
	var verr *view.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrUnsupportedEnvironment), errors.Is(err, store.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, fileinput.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

func (s *Server) handleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	v := s.ctrl.View()
	name := fmt.Sprintf("#%d", id)
	for _, it := range v.Items {
		if it.RecordID == id {
			name = it.Name
		}
	}
	s.writePage(w, http.StatusOK, pageData{
		View: v,
		Confirm: &confirmData{
			ID:     id,
			Prompt: fmt.Sprintf("Are you sure you want to delete the custom game: %s?", name),
		},
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	confirmed := view.ConfirmFunc(func(context.Context, string) bool {
		return r.FormValue("confirm") == "yes"
	})
	if _, err := s.ctrl.Delete(r.Context(), id, confirmed); err != nil {
		s.writePage(w, http.StatusInternalServerError, pageData{
			View:  s.ctrl.View(),
			Alert: "Failed to delete game.",
		})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	rec, err := s.store.Get(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.NotFound(w, r)
		return
	case errors.Is(err, store.ErrNotReady):
		http.Error(w, "game storage is unavailable", http.StatusServiceUnavailable)
		return
	case err != nil:
		s.log.Error("load game", "id", id, "error", err)
		http.Error(w, "could not load game", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", "sandbox allow-scripts allow-pointer-lock allow-popups")
	_, _ = w.Write([]byte(rec.Content))
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func navHref(p view.Page) string {
	switch p {
	case view.PageLibrary:
		return "/"
	case view.PageAddEntry:
		return "/add"
	}
	return "/" + p.String()
}

// coverURL lets data:image URLs and plain http(s) or relative locations
// through to an img src. Anything else is dropped.
func coverURL(cover string) template.URL {
	if strings.HasPrefix(cover, "data:image/") {
		return template.URL(cover)
	}
	u, err := url.Parse(cover)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https":
		return template.URL(cover)
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
