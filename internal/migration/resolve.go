// Package migration moves newsletter advertising opportunities from the
// legacy free-text dimensions field to the structured format field.
package migration

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/patrickwarner/mediahub/internal/formats"
	"github.com/patrickwarner/mediahub/internal/models"
)

// Outcome is the processing result of a single newsletter ad.
type Outcome string

const (
	OutcomeAlreadyMigrated Outcome = "already-migrated"
	OutcomeMapped          Outcome = "mapped"
	OutcomeInferred        Outcome = "inferred"
	OutcomeNeedsReview     Outcome = "needs-review"
)

// NeedsReview is the placeholder value reported for ads that cannot be
// migrated automatically. It is never written.
const NeedsReview = "NEEDS_REVIEW"

// Applicable reports whether ads with this outcome are written in apply mode.
func (o Outcome) Applicable() bool {
	return o == OutcomeMapped || o == OutcomeInferred
}

// Result is the resolved value of one legacy dimensions string.
type Result struct {
	Outcome    Outcome
	Dimensions formats.Dimensions
	Reason     string
}

// legacyDimensions maps historical free-text values to the current
// vocabulary. Keys are matched verbatim first, then lower-cased and trimmed.
var legacyDimensions = map[string]string{
	"Full email":                               formats.LabelFullNewsletter,
	"Full newsletter":                          formats.LabelFullNewsletter,
	"Entire newsletter":                        formats.LabelFullNewsletter,
	"Dedicated email":                          formats.LabelFullNewsletter,
	"Dedicated send":                           formats.LabelFullNewsletter,
	"Newsletter takeover":                      formats.LabelFullNewsletter,
	"Full width":                               formats.LabelResponsive,
	"Responsive":                               formats.LabelResponsive,
	"responsive (600px width or phone screen)": formats.LabelResponsive,
	"600px wide":                               formats.LabelResponsive,
	"Mobile responsive":                        formats.LabelResponsive,
	"Text only":                                formats.LabelTextOnly,
	"Text-only":                                formats.LabelTextOnly,
	"Text ad":                                  formats.LabelTextOnly,
	"Text link":                                formats.LabelTextOnly,
	"Classified":                               formats.LabelTextOnly,
	"Sponsored content":                        formats.LabelSponsoredContent,
	"Sponsored post":                           formats.LabelSponsoredContent,
	"Sponsored article":                        formats.LabelSponsoredContent,
	"Logo and text":                            formats.LabelLogoText,
	"Logo + text":                              formats.LabelLogoText,
	"Logo & text":                              formats.LabelLogoText,
	"Logo with tagline":                        formats.LabelLogoText,
	"Content integration":                      formats.LabelContentIntegration,
	"Native integration":                       formats.LabelContentIntegration,
	"Medium rectangle":                         "300x250",
	"Leaderboard":                              "728x90",
	"Email banner":                             "600x150",
	"Custom":                                   formats.LabelCustom,
}

var (
	splitRe      = regexp.MustCompile(`(?i)\s*(?:,|/|\bor\b)\s*`)
	takeoverRe   = regexp.MustCompile(`(?i)full|takeover|dedicated|edition|integration`)
	responsiveRe = regexp.MustCompile(`(?i)responsive|flexible|fluid`)
	textRe       = regexp.MustCompile(`(?i)text|content|sponsored|native|\d+\s*char(?:acter)?s?\b`)
)

// Resolver turns legacy dimension strings into current format values.
type Resolver struct {
	exact  map[string]string
	folded map[string]string
}

// NewResolver returns a Resolver using the built-in legacy table merged with
// extra mappings. Extra entries win over built-in ones.
func NewResolver(extra map[string]string) *Resolver {
	r := &Resolver{
		exact:  make(map[string]string, len(legacyDimensions)+len(extra)),
		folded: make(map[string]string, len(legacyDimensions)+len(extra)),
	}
	for k, v := range legacyDimensions {
		r.add(k, v)
	}
	for k, v := range extra {
		r.add(k, v)
	}
	return r
}

func (r *Resolver) add(k, v string) {
	r.exact[k] = v
	r.folded[fold(k)] = v
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// mappingFile is the YAML layout of an extra mappings file.
type mappingFile struct {
	Mappings map[string]string `yaml:"mappings"`
}

// LoadMappings reads extra legacy mappings from a YAML file of the form
//
//	mappings:
//	  "Half page": "300x600"
//
// Every target must be a pixel size or a known semantic label.
func LoadMappings(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mappings: %w", err)
	}
	var f mappingFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse mappings %s: %w", path, err)
	}
	for k, v := range f.Mappings {
		if !formats.IsValid(v) {
			return nil, fmt.Errorf("mapping %q: invalid target %q", k, v)
		}
	}
	return f.Mappings, nil
}

// ResolveAd resolves one newsletter ad. Ads that already carry a format are
// reported as already migrated and left alone. When the stored ad had
// unreadable fields, a review reason names them.
func (r *Resolver) ResolveAd(ad models.NewsletterAd) Result {
	if ad.HasFormat() {
		return Result{Outcome: OutcomeAlreadyMigrated, Dimensions: ad.Format.Dimensions}
	}
	res := r.Resolve(ad.Dimensions, ad.Position)
	if res.Outcome == OutcomeNeedsReview && ad.Issue != "" {
		res.Reason = ad.Issue
	}
	return res
}

// Resolve maps a legacy value to its current form. A nil or blank value is
// only resolvable for dedicated placements, which are full-newsletter sends.
func (r *Resolver) Resolve(raw *string, position string) Result {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		if position == models.PositionDedicated {
			return Result{
				Outcome:    OutcomeInferred,
				Dimensions: formats.Single(formats.LabelFullNewsletter),
				Reason:     "missing dimensions on dedicated placement",
			}
		}
		return needsReview("missing dimensions")
	}

	value := *raw
	if v, ok := r.lookup(value); ok {
		return Result{Outcome: OutcomeMapped, Dimensions: formats.Single(v), Reason: "legacy table"}
	}
	if d, reason, ok := r.infer(strings.TrimSpace(value)); ok {
		return Result{Outcome: OutcomeInferred, Dimensions: d, Reason: reason}
	}
	return needsReview("no mapping or heuristic matched")
}

func needsReview(reason string) Result {
	return Result{Outcome: OutcomeNeedsReview, Dimensions: formats.Single(NeedsReview), Reason: reason}
}

func (r *Resolver) lookup(v string) (string, bool) {
	if m, ok := r.exact[v]; ok {
		return m, true
	}
	m, ok := r.folded[fold(v)]
	return m, ok
}

// infer applies the heuristics in order: pixel passthrough, list split,
// keyword match.
func (r *Resolver) infer(v string) (formats.Dimensions, string, bool) {
	if size, ok := formats.NormalizePixelSize(v); ok {
		return formats.Single(size), "pixel size", true
	}

	// A single piece left after dropping separators ("600x150,") is
	// resolved like a one-element list.
	if pieces := splitPieces(v); len(pieces) > 1 || (len(pieces) == 1 && pieces[0] != v) {
		var out formats.Dimensions
		resolved := true
		for _, p := range pieces {
			s, ok := r.resolvePiece(p)
			if !ok {
				resolved = false
				break
			}
			out = out.With(s)
		}
		if resolved {
			return out, "split list", true
		}
	}

	if s, ok := keyword(v); ok {
		return formats.Single(s), "keyword", true
	}
	return formats.Dimensions{}, "", false
}

// resolvePiece resolves one element of a split list without splitting again.
func (r *Resolver) resolvePiece(p string) (string, bool) {
	if m, ok := r.lookup(p); ok {
		return m, true
	}
	if size, ok := formats.NormalizePixelSize(p); ok {
		return size, true
	}
	return keyword(p)
}

func splitPieces(v string) []string {
	var out []string
	for _, p := range splitRe.Split(v, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func keyword(v string) (string, bool) {
	switch {
	case takeoverRe.MatchString(v):
		return formats.LabelFullNewsletter, true
	case responsiveRe.MatchString(v):
		return formats.LabelResponsive, true
	case textRe.MatchString(v):
		return formats.LabelTextOnly, true
	}
	return "", false
}
