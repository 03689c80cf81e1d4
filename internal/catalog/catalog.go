// Package catalog holds the bundled entries and merges them with stored
// records into the flat list the library page renders.
package catalog

import (
	"fmt"

	"github.com/elonfeng/solus/internal/config"
	"github.com/elonfeng/solus/internal/store"
)

// StaticEntry is an entry shipped with the launcher. It is never stored,
// edited or deleted.
type StaticEntry struct {
	Name  string `json:"name"`
	Cover string `json:"cover,omitempty"`
	URL   string `json:"url"`
}

// Item is one card on the library page.
type Item struct {
	Name  string `json:"name"`
	Cover string `json:"cover,omitempty"`
	// LaunchURL opens the entry: the bundled location, or the play
	// endpoint for stored records.
	LaunchURL string `json:"launch_url"`
	// RecordID is non-zero for stored records; only those can be deleted.
	RecordID int64 `json:"record_id,omitempty"`
}

// Deletable reports whether the card offers a delete action.
func (i Item) Deletable() bool { return i.RecordID != 0 }

// HasCover reports whether the card shows an image rather than its name.
func (i Item) HasCover() bool { return i.Cover != "" }

// PlayURL is the launch location for a stored record.
func PlayURL(id int64) string { return fmt.Sprintf("/play/%d", id) }

// Merge returns bundled entries first, then stored records, with no sorting.
func Merge(bundled []StaticEntry, records []store.Record) []Item {
	items := make([]Item, 0, len(bundled)+len(records))
	for _, e := range bundled {
		items = append(items, Item{Name: e.Name, Cover: e.Cover, LaunchURL: e.URL})
	}
	for _, r := range records {
		items = append(items, Item{
			Name:      r.Name,
			Cover:     r.Cover,
			LaunchURL: PlayURL(r.ID),
			RecordID:  r.ID,
		})
	}
	return items
}

// FromConfig returns the configured bundled list, or the built-in one when
// the config does not set any.
func FromConfig(cfg config.CatalogConfig) []StaticEntry {
	if cfg.Bundled == nil {
		return DefaultBundled()
	}
	entries := make([]StaticEntry, len(cfg.Bundled))
	for i, e := range cfg.Bundled {
		entries[i] = StaticEntry{Name: e.Name, Cover: e.Cover, URL: e.URL}
	}
	return entries
}

// DefaultBundled returns the entries shipped with the launcher.
func DefaultBundled() []StaticEntry {
	return []StaticEntry{
		{Name: "Hollow Knight", Cover: "Imgs/hk.jpg", URL: "games/StrHK.html"},
		{Name: "Slope", Cover: "Imgs/slope.jpg", URL: "games/Slope.html"},
		{Name: "Minecraft 1.12.2", Cover: "Imgs/minecraft.jpg", URL: "games/mc1122.html"},
		{Name: "Sans Bad Time Simulator", Cover: "Imgs/undertale.png", URL: "games/sansfight.html"},
		{Name: "Undertale Yellow", Cover: "Imgs/uy.png", URL: "games/undertaley.html"},
		{Name: "Geometry Dash Lite", Cover: "Imgs/gd.png", URL: "games/gd.html"},
		{Name: "Sheepy : A Short Adventure", Cover: "Imgs/sheepy.png", URL: "games/sheepy.html"},
		{Name: "OSU!", Cover: "Imgs/osu.png", URL: "games/osu.html"},
		{Name: "Level Devil", Cover: "Imgs/leveldevil.png", URL: "games/leveldevil.html"},
		{Name: "Run 3", Cover: "Imgs/run-3.png", URL: "games/run3.html"},
		{Name: "Balatro", Cover: "Imgs/balatro.jpg", URL: "games/balatro.html"},
		{Name: "Fire And Ice", Cover: "https://example.com", URL: "games/FireAndIce.html"},
		{Name: "Drivemad", Cover: "Imgs/Drivemad.png", URL: "games/DriveMad.html"},
		{Name: "Plants VS Zombies", Cover: "Imgs/PVZ.jpeg", URL: "games/PvZ.html"},
		{Name: "Shapez", Cover: "Imgs/Shapez.png", URL: "games/Shapez.html"},
		{Name: "Minesweeper+", Cover: "Imgs/MSPlus.png", URL: "games/MinesweeperPlus/index.html"},
	}
}
