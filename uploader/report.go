package uploader

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

const nothingToShow = "nothing to show"

// RenderUploads writes the landing page table of every archived record.
func RenderUploads(w io.Writer, a Archive) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Key", "File", "Landing page", "PID", "Versions"})

	uploaded := 0
	for i, key := range a.Keys() {
		rec := a[key]
		landing, pid := nothingToShow, nothingToShow
		if rec.FileMetadataURL != "" {
			landing = rec.FileMetadataURL
		}
		if rec.PID != "" {
			pid = rec.PID
		}
		if rec.Retry != nil && rec.PID == "" {
			pid = fmt.Sprintf("failed x%d (%d)", rec.Retry.Attempts, rec.Retry.StatusCode)
		}
		if rec.Uploaded() {
			uploaded++
		}
		t.AppendRow(table.Row{i + 1, key, rec.FileName, landing, pid, len(rec.Versions)})
	}
	t.AppendFooter(table.Row{"", "Total", len(a), fmt.Sprintf("%d uploaded", uploaded), "", ""})
	t.Render()
}
