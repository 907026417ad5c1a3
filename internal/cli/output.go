package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/avvvet/deckbuilder-services/internal/decksvc/models"
)

// OutputFormatter renders command results as text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

func (f *OutputFormatter) json(v interface{}) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (f *OutputFormatter) Message(msg string) error {
	if f.Format == "json" {
		return f.json(map[string]string{"status": "ok", "message": msg})
	}
	_, err := fmt.Fprintln(f.Writer, msg)
	return err
}

func (f *OutputFormatter) SyncReport(r *models.SyncReport) error {
	if f.Format == "json" {
		return f.json(r)
	}
	w := tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "run\t%s\n", r.RunID)
	fmt.Fprintf(w, "filter\t%s\n", r.Filter)
	fmt.Fprintf(w, "mode\t%s (max %d pages)\n", r.Mode, r.MaxPages)
	fmt.Fprintf(w, "pages\t%d fetched, %d failed%s\n", r.PagesFetched, r.PagesFailed, failedPages(r.FailedPages))
	fmt.Fprintf(w, "cards\t%d synced, %d failed\n", r.Synced, r.Failed)
	fmt.Fprintf(w, "took\t%s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	return w.Flush()
}

func (f *OutputFormatter) EmbedReport(r *models.EmbedReport) error {
	if f.Format == "json" {
		return f.json(r)
	}
	_, err := fmt.Fprintf(f.Writer, "embedded %d cards, %d failed\n", r.Embedded, r.Failed)
	return err
}

func (f *OutputFormatter) History(reports []*models.SyncReport) error {
	if f.Format == "json" {
		return f.json(reports)
	}
	if len(reports) == 0 {
		_, err := fmt.Fprintln(f.Writer, "no sync runs recorded")
		return err
	}
	w := tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tTRIGGER\tFILTER\tPAGES\tSYNCED\tFAILED")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d\t%d\n",
			r.StartedAt.UTC().Format(time.RFC3339), r.Trigger, r.Filter,
			r.PagesFetched, r.PagesFetched+r.PagesFailed, r.Synced, r.Failed)
	}
	return w.Flush()
}

func failedPages(pages []int) string {
	if len(pages) == 0 {
		return ""
	}
	s := make([]string, len(pages))
	for i, p := range pages {
		s[i] = fmt.Sprint(p)
	}
	return " (" + strings.Join(s, ", ") + ")"
}
