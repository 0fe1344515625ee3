// Package reporting renders newsletter format migration reports for the
// command line. The text layout follows the other operator reports: a boxed
// header, one section per concern and a closing rule.
package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/patrickwarner/mediahub/internal/formats"
	"github.com/patrickwarner/mediahub/internal/migration"
)

const (
	heavyRule = "═══════════════════════════════════════════════════════════════════════════════════"
	lightRule = "───────────────────────────────────────────────────────────────────────────────────"
	timeFmt   = "2006-01-02 15:04:05"
)

// WriteJSON writes the full report as indented JSON.
func WriteJSON(w io.Writer, r *migration.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText writes the human readable report. Dry runs list what would be
// written; apply runs add the write results.
func WriteText(w io.Writer, r *migration.Report) error {
	p := &printer{w: w}

	mode := "DRY RUN (no changes written, pass --apply to write)"
	if r.Apply {
		mode = "APPLY"
	}
	p.line(heavyRule)
	p.line("                          NEWSLETTER FORMAT MIGRATION REPORT")
	p.line(heavyRule)
	p.printf("Run ID:   %s\n", r.RunID)
	p.printf("Mode:     %s\n", mode)
	p.printf("Started:  %s\n", r.StartedAt.Format(timeFmt))
	p.printf("Finished: %s\n\n", r.FinishedAt.Format(timeFmt))

	p.section("📊 SUMMARY")
	p.printf("Publications scanned:  %d\n", r.Publications)
	p.printf("Newsletter ads:        %d\n", r.Ads)
	for _, o := range migration.Outcomes() {
		p.printf("  %-20s %d\n", string(o)+":", r.ByOutcome[o])
	}
	p.line("")

	if len(r.ByCategory) > 0 {
		p.section("📂 BY CATEGORY")
		for _, c := range r.Categories() {
			p.printf("  %-20s %d\n", string(c)+":", r.ByCategory[c])
		}
		p.line("")
	}

	if pending := changes(r); len(pending) > 0 {
		title := "📝 CHANGES TO APPLY"
		if r.Apply {
			title = "📝 CHANGES"
		}
		p.section(title)
		for _, it := range pending {
			p.printf("  %s / %s / %s\n", it.PublicationName, it.NewsletterName, it.AdName)
			p.printf("      %q → %s (%s, %s)\n", it.RawValue(), it.NewDimensions, it.Outcome, it.Category)
		}
		p.line("")
	}

	if len(r.NeedsReview) > 0 {
		p.section(fmt.Sprintf("⚠️  NEEDS REVIEW (%d)", len(r.NeedsReview)))
		for _, it := range r.NeedsReview {
			p.printf("  %s [%s] / %s / %s\n", it.PublicationName, it.PublicationID.Hex(), it.NewsletterName, it.AdName)
			p.printf("      dimensions: %q  reason: %s\n", it.RawValue(), it.Reason)
		}
		p.line("")
	}

	if len(r.Skipped) > 0 {
		p.section(fmt.Sprintf("⛔ UNREADABLE PUBLICATIONS (%d)", len(r.Skipped)))
		for _, sp := range r.Skipped {
			p.printf("  %s [%s]: %s\n", sp.PublicationName, sp.PublicationID.Hex(), sp.Err)
		}
		p.line("")
	}

	if r.Apply {
		p.section("✅ RESULTS")
		p.printf("Publications updated:  %d\n", r.PublicationsUpdated)
		p.printf("Ads updated:           %d\n", r.AdsUpdated)
		p.printf("Errors:                %d\n", len(r.Errors))
		for _, e := range r.Errors {
			p.printf("  ✗ %s [%s]: %s\n", e.PublicationName, e.PublicationID.Hex(), e.Err)
		}
		p.line("")
	} else {
		p.printf("Would update %d ads across %d publications.\n", r.Pending(), publicationsWithChanges(r))
	}
	p.line(heavyRule)
	return p.err
}

func changes(r *migration.Report) []migration.Item {
	var out []migration.Item
	for _, it := range r.Items {
		if it.Outcome.Applicable() {
			out = append(out, it)
		}
	}
	return out
}

func publicationsWithChanges(r *migration.Report) int {
	seen := make(map[string]struct{})
	for _, it := range changes(r) {
		seen[it.PublicationID.Hex()] = struct{}{}
	}
	return len(seen)
}

// CategoryLine renders category counts on one line, e.g. for log messages.
func CategoryLine(counts map[formats.Category]int) string {
	parts := make([]string, 0, len(counts))
	for _, c := range formats.AllCategories() {
		if n := counts[c]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", c, n))
		}
	}
	return strings.Join(parts, " ")
}

// printer keeps the first write error so callers check once.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) line(s string) {
	p.printf("%s\n", s)
}

func (p *printer) section(title string) {
	p.line(title)
	p.line(lightRule)
}
