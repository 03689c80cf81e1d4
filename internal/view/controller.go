// Package view owns which page of the launcher is visible and the flows
// that change it: library reloads, the add-entry submission and deletes.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/elonfeng/solus/internal/catalog"
	"github.com/elonfeng/solus/internal/store"
)

// RecordStore is the part of the record store the controller uses.
type RecordStore interface {
	Create(ctx context.Context, in store.RecordInput) (int64, error)
	ListAll(ctx context.Context) ([]store.Record, error)
	Delete(ctx context.Context, id int64) error
}

// Renderer draws a view. It is called after every change, outside the
// controller's lock.
type Renderer interface {
	Render(v View)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(View)

func (f RendererFunc) Render(v View) { f(v) }

// Confirmer asks the user a yes/no question before a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// StatusKind colours the add-entry status line.
type StatusKind int

const (
	StatusNone StatusKind = iota
	StatusInfo
	StatusSuccess
	StatusError
)

// Color is the CSS colour for the status line.
func (k StatusKind) Color() string {
	switch k {
	case StatusInfo:
		return "#007bff"
	case StatusSuccess:
		return "#28a745"
	case StatusError:
		return "#dc3545"
	}
	return "inherit"
}

// Status is the message shown under the add-entry form.
type Status struct {
	Kind    StatusKind
	Message string
}

// NavEntry is one navigation link.
type NavEntry struct {
	Page   Page
	Label  string
	Active bool
}

// View is a snapshot of everything a renderer needs.
type View struct {
	Page   Page
	Header string
	// Items is the catalog from the most recent library reload.
	Items        []catalog.Item
	EmptyLibrary bool
	Status       Status
	DarkTheme    bool
	Draft        Form
}

// Nav returns the navigation links with the visible page marked active.
func (v View) Nav() []NavEntry {
	pages := Pages()
	nav := make([]NavEntry, len(pages))
	for i, p := range pages {
		nav[i] = NavEntry{Page: p, Label: p.Label(), Active: p == v.Page}
	}
	return nav
}

// Options configures a Controller.
type Options struct {
	Store    RecordStore
	Bundled  []catalog.StaticEntry
	Renderer Renderer
	Logger   *slog.Logger

	// SwitchDelay is the pause between a successful add and the return to
	// the library.
	SwitchDelay       time.Duration
	ContentExtensions []string
	MaxCoverBytes     int64
	MaxContentBytes   int64

	Now       func() time.Time
	AfterFunc func(d time.Duration, f func())
}

// Controller is the page state machine. It starts on the library page.
type Controller struct {
	store    RecordStore
	bundled  []catalog.StaticEntry
	renderer Renderer
	log      *slog.Logger

	switchDelay     time.Duration
	contentExts     []string
	maxCoverBytes   int64
	maxContentBytes int64
	now             func() time.Time
	afterFunc       func(d time.Duration, f func())

	mu     sync.Mutex
	page   Page
	items  []catalog.Item
	empty  bool
	status Status
	dark   bool
	draft  Form
}

// New creates a controller on the library page. Nothing is loaded until
// the first Activate.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	exts := opts.ContentExtensions
	if len(exts) == 0 {
		exts = []string{".html", ".htm"}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	after := opts.AfterFunc
	if after == nil {
		after = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	return &Controller{
		store:           opts.Store,
		bundled:         opts.Bundled,
		renderer:        opts.Renderer,
		log:             logger.With("component", "view"),
		switchDelay:     opts.SwitchDelay,
		contentExts:     exts,
		maxCoverBytes:   opts.MaxCoverBytes,
		maxContentBytes: opts.MaxContentBytes,
		now:             now,
		afterFunc:       after,
		page:            PageLibrary,
		items:           []catalog.Item{},
		draft:           EmptyForm(),
		dark:            true,
	}
}

// Page returns the visible page.
func (c *Controller) Page() Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// View returns a snapshot of the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() View {
	items := make([]catalog.Item, len(c.items))
	copy(items, c.items)
	return View{
		Page:         c.page,
		Header:       c.page.Caption(),
		Items:        items,
		EmptyLibrary: c.empty,
		Status:       c.status,
		DarkTheme:    c.dark,
		Draft:        c.draft,
	}
}

func (c *Controller) render() View {
	v := c.View()
	c.draw(v)
	return v
}

func (c *Controller) draw(v View) {
	if c.renderer != nil {
		c.renderer.Render(v)
	}
}

// Activate makes target the only visible page and renders. Activating the
// library re-reads every stored record first. An unknown page changes
// nothing.
func (c *Controller) Activate(ctx context.Context, target Page) View {
	if !target.valid() {
		c.log.Warn("unknown page", "page", target.String())
		return c.View()
	}

	var (
		items []catalog.Item
		empty bool
	)
	if target == PageLibrary {
		items, empty = c.load(ctx)
	}

	c.mu.Lock()
	prev := c.page
	c.page = target
	if target == PageAddEntry && prev != PageAddEntry {
		c.status = Status{}
	}
	if target == PageLibrary {
		c.items = items
		c.empty = empty
	}
	v := c.snapshotLocked()
	c.mu.Unlock()

	c.log.Debug("page activated", "from", prev.String(), "to", target.String())
	c.draw(v)
	return v
}

// load fetches stored records and builds the catalog. A failing store
// leaves the bundled entries only.
func (c *Controller) load(ctx context.Context) ([]catalog.Item, bool) {
	var records []store.Record
	if c.store != nil {
		var err error
		records, err = c.store.ListAll(ctx)
		if err != nil {
			c.log.Warn("could not load stored games", "error", err)
			records = nil
		}
	}
	return catalog.Merge(c.bundled, records), len(c.bundled) == 0 && len(records) == 0
}

// SetDarkTheme flips the cosmetic theme flag.
func (c *Controller) SetDarkTheme(dark bool) View {
	c.mu.Lock()
	c.dark = dark
	c.mu.Unlock()
	return c.render()
}

func (c *Controller) setStatus(kind StatusKind, msg string) {
	c.mu.Lock()
	c.status = Status{Kind: kind, Message: msg}
	c.mu.Unlock()
}

// Submit runs the add-entry protocol: validate, resolve cover and content,
// store the record, then return to the library after the switch delay.
// Every step waits for the one before it. On failure the controller stays
// where it is and keeps form as the draft.
func (c *Controller) Submit(ctx context.Context, form Form) (int64, error) {
	c.setStatus(StatusInfo, "Saving game...")

	id, err := c.submit(ctx, form)
	if err != nil {
		msg := err.Error()
		var verr *ValidationError
		if !errors.As(err, &verr) {
			msg = "Failed to add game. Error: " + msg
			c.log.Error("game saving failed", "name", form.Name, "error", err)
		}
		c.mu.Lock()
		c.status = Status{Kind: StatusError, Message: msg}
		c.draft = form
		c.mu.Unlock()
		c.render()
		return 0, err
	}

	name := strings.TrimSpace(form.Name)
	c.mu.Lock()
	c.status = Status{
		Kind:    StatusSuccess,
		Message: fmt.Sprintf("Game %q successfully added! Switching to Library...", name),
	}
	c.draft = EmptyForm()
	c.mu.Unlock()
	c.log.Info("game added", "id", id, "name", name)
	c.render()

	bg := context.WithoutCancel(ctx)
	c.afterFunc(c.switchDelay, func() { c.Activate(bg, PageLibrary) })
	return id, nil
}

func (c *Controller) submit(ctx context.Context, form Form) (int64, error) {
	name := strings.TrimSpace(form.Name)
	if name == "" {
		return 0, invalid("name", "Please enter a game name.")
	}

	var cover string
	switch form.CoverMode {
	case CoverFromFile:
		if !form.CoverFile.Empty() {
			if !form.CoverFile.IsImage() {
				return 0, invalid("cover", "Uploaded file is not a valid image.")
			}
			var err error
			cover, err = form.CoverFile.ReadDataURL(ctx, c.maxCoverBytes)
			if err != nil {
				return 0, err
			}
		}
	default:
		cover = strings.TrimSpace(form.CoverURL)
	}

	var content string
	switch form.ContentMode {
	case ContentFromFile:
		if !form.ContentFile.Empty() {
			if !form.ContentFile.HasExtension(c.contentExts) {
				return 0, invalid("content", "Uploaded file must be %s.", describeExtensions(c.contentExts))
			}
			var err error
			content, err = form.ContentFile.ReadText(ctx, c.maxContentBytes)
			if err != nil {
				return 0, err
			}
		}
	default:
		content = strings.TrimSpace(form.ContentText)
	}

	if content == "" {
		return 0, invalid("content", "HTML content is required.")
	}
	if c.store == nil {
		return 0, store.ErrUnsupportedEnvironment
	}

	return c.store.Create(ctx, store.RecordInput{
		Name:      name,
		Cover:     cover,
		Content:   content,
		CreatedAt: c.now().UnixMilli(),
	})
}

// Delete removes a stored entry once the user confirms, then reloads the
// library. It reports whether the entry was deleted. A failed delete
// leaves the current render untouched.
func (c *Controller) Delete(ctx context.Context, id int64, confirm Confirmer) (bool, error) {
	name := c.itemName(id)
	prompt := fmt.Sprintf("Are you sure you want to delete the custom game: %s?", name)
	if confirm == nil || !confirm.Confirm(ctx, prompt) {
		return false, nil
	}
	if c.store == nil {
		return false, fmt.Errorf("delete game %d: %w", id, store.ErrUnsupportedEnvironment)
	}
	if err := c.store.Delete(ctx, id); err != nil {
		c.log.Error("delete game", "id", id, "error", err)
		return false, fmt.Errorf("delete game %d: %w", id, err)
	}
	c.log.Info("game deleted", "id", id, "name", name)
	c.Activate(ctx, PageLibrary)
	return true, nil
}

func (c *Controller) itemName(id int64) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range c.items {
		if it.RecordID == id {
			return it.Name
		}
	}
	return fmt.Sprintf("#%d", id)
}
