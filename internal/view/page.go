package view

import "fmt"

// Page is the page currently shown. Exactly one page is visible at a time.
type Page int

const (
	PageLibrary Page = iota
	PageSettings
	PageAbout
	PageAddEntry
)

// Pages lists every page in navigation order.
func Pages() []Page {
	return []Page{PageLibrary, PageSettings, PageAbout, PageAddEntry}
}

func (p Page) String() string {
	switch p {
	case PageLibrary:
		return "library"
	case PageSettings:
		return "settings"
	case PageAbout:
		return "about"
	case PageAddEntry:
		return "add-game"
	}
	return fmt.Sprintf("page(%d)", int(p))
}

func (p Page) valid() bool {
	return p >= PageLibrary && p <= PageAddEntry
}

// Caption is the header text shown while the page is active.
func (p Page) Caption() string {
	switch p {
	case PageLibrary:
		return "Game Library"
	case PageSettings:
		return "Application Settings"
	case PageAbout:
		return "About Solus MS"
	case PageAddEntry:
		return "Add New Game"
	}
	return ""
}

// Label is the navigation link text.
func (p Page) Label() string {
	switch p {
	case PageLibrary:
		return "Library"
	case PageSettings:
		return "Settings"
	case PageAbout:
		return "About"
	case PageAddEntry:
		return "Add Game"
	}
	return ""
}

// ParsePage maps a page name back to a Page.
func ParsePage(name string) (Page, bool) {
	for _, p := range Pages() {
		if p.String() == name {
			return p, true
		}
	}
	return 0, false
}
