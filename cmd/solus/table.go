package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/elonfeng/solus/internal/store"
	"github.com/elonfeng/solus/internal/view"
)

// column is one table column: its header and how cells line up.
type column struct {
	title string
	align text.Align
}

var libraryColumns = []column{
	{"ID", text.AlignRight},
	{"NAME", text.AlignLeft},
	{"SOURCE", text.AlignLeft},
	{"SIZE", text.AlignRight},
	{"ADDED", text.AlignLeft},
	{"LAUNCH", text.AlignLeft},
}

// renderTable draws rows under cols in the rounded style. Short rows are
// padded with empty cells.
func renderTable(cols []column, rows [][]string) string {
	if len(cols) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(cols))
	configs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		header[i] = c.title
		configs[i] = table.ColumnConfig{Number: i + 1, Align: c.align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(cols))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}

// libraryTable renders the library page as a terminal table. Records
// supply the size and age columns for added games.
type libraryTable struct {
	w       io.Writer
	records []store.Record
	now     func() time.Time
}

func (t *libraryTable) Render(v view.View) {
	if v.Page != view.PageLibrary {
		return
	}
	if v.EmptyLibrary {
		fmt.Fprintln(t.w, "library is empty (add one: solus add --name NAME --content-file game.html)")
		return
	}

	byID := make(map[int64]store.Record, len(t.records))
	for _, r := range t.records {
		byID[r.ID] = r
	}
	now := time.Now
	if t.now != nil {
		now = t.now
	}

	rows := make([][]string, 0, len(v.Items))
	for _, it := range v.Items {
		if !it.Deletable() {
			rows = append(rows, []string{"-", it.Name, "bundled", "", "", it.LaunchURL})
			continue
		}
		rec := byID[it.RecordID]
		rows = append(rows, []string{
			strconv.FormatInt(it.RecordID, 10),
			it.Name,
			"added",
			humanize.Bytes(uint64(len(rec.Content))),
			humanize.RelTime(time.UnixMilli(rec.CreatedAt), now(), "ago", "from now"),
			it.LaunchURL,
		})
	}

	fmt.Fprintln(t.w, renderTable(libraryColumns, rows))
	fmt.Fprintf(t.w, "%s games\n", humanize.Comma(int64(len(v.Items))))
}
