package formats

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FullNewsletterDisplay is shown for takeover placements in place of their
// stored value.
const FullNewsletterDisplay = "Full Newsletter"

var labels = map[string]string{
	// IAB
	"300x250": "300×250 - Medium Rectangle",
	"728x90":  "728×90 - Leaderboard",
	"160x600": "160×600 - Wide Skyscraper",
	"300x600": "300×600 - Half Page",
	"320x50":  "320×50 - Mobile Banner",
	"970x250": "970×250 - Billboard",
	"336x280": "336×280 - Large Rectangle",
	"970x90":  "970×90 - Large Leaderboard",
	// email
	"600x150": "600×150 - Email Banner",
	"600x100": "600×100 - Email Banner (Short)",
	"600x200": "600×200 - Email Banner (Tall)",
	"600x300": "600×300 - Email Feature",
	// semantic
	LabelFullNewsletter:     "Full Newsletter Takeover",
	LabelResponsive:         "Responsive",
	LabelTextOnly:           "Text Only",
	LabelSponsoredContent:   "Sponsored Content",
	LabelLogoText:           "Logo + Text",
	LabelContentIntegration: "Content Integration",
	LabelCustom:             "Custom Size",
}

// Label returns the human-readable name of a dimension code. Unknown codes
// are returned unchanged.
func Label(code string) string {
	if l, ok := labels[code]; ok {
		return l
	}
	return code
}

// DisplayDimensions renders d for listings. Takeover placements always read
// "Full Newsletter"; everything else is the stored values joined by ", ".
func DisplayDimensions(d Dimensions) string {
	if Classify(d) == CategoryTakeover {
		return FullNewsletterDisplay
	}
	return strings.Join(All(d), ", ")
}

// Option is one selectable entry of the format selector.
type Option struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// OptionGroup is a category heading with its selectable entries.
type OptionGroup struct {
	Category Category `json:"category"`
	Options  []Option `json:"options"`
}

// Options returns the selector catalog grouped by category. Custom display
// only offers the "custom" entry, which opens free WxH entry.
func Options() []OptionGroup {
	build := func(codes []string) []Option {
		out := make([]Option, 0, len(codes))
		for _, c := range codes {
			out = append(out, Option{Code: c, Label: Label(c)})
		}
		return out
	}
	return []OptionGroup{
		{Category: CategoryIABStandard, Options: build(iabStandardSizes)},
		{Category: CategoryEmailStandard, Options: build(emailStandardSizes)},
		{Category: CategoryCustomDisplay, Options: build([]string{LabelCustom})},
		{Category: CategoryNative, Options: build(nativeLabels)},
		{Category: CategoryResponsive, Options: build([]string{LabelResponsive})},
		{Category: CategoryTakeover, Options: build(takeoverLabels)},
	}
}

// ErrInvalidSize is returned for custom sizes that are not positive WxH pairs.
var ErrInvalidSize = errors.New("invalid pixel size")

var looseSizeRe = regexp.MustCompile(`(?i)^\s*(\d+)\s*(?:x|×)\s*(\d+)\s*(?:px)?\s*$`)

// NormalizePixelSize rewrites loose size spellings ("300 X 250", "300×250px")
// into canonical "300x250". ok is false when v is not a size.
func NormalizePixelSize(v string) (string, bool) {
	m := looseSizeRe.FindStringSubmatch(v)
	if m == nil {
		return "", false
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	if w <= 0 || h <= 0 {
		return "", false
	}
	return fmt.Sprintf("%dx%d", w, h), true
}

// ParseCustom builds a canonical size from a custom width/height entry.
func ParseCustom(width, height int) (string, error) {
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	return fmt.Sprintf("%dx%d", width, height), nil
}

// ErrInvalidValue is returned for values outside the format vocabulary.
var ErrInvalidValue = errors.New("invalid format value")

// IsValid reports whether v may be stored as a dimension value: a canonical
// pixel size or one of the semantic labels.
func IsValid(v string) bool {
	if IsPixelSize(v) {
		return true
	}
	switch v {
	case LabelFullNewsletter, LabelResponsive, LabelTextOnly, LabelSponsoredContent,
		LabelLogoText, LabelContentIntegration, LabelCustom:
		return true
	}
	return false
}

// Validate normalizes f and checks every value against the vocabulary.
// A nil result with a nil error means no format was selected.
func Validate(f *Format) (*Format, error) {
	n := Normalize(f)
	if n == nil {
		return nil, nil
	}
	for _, v := range All(n.Dimensions) {
		if !IsValid(v) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidValue, v)
		}
	}
	return n, nil
}

// ErrNoFormat is returned when a format carries no dimensions.
var ErrNoFormat = errors.New("no format specified")

// Normalize cleans a selector payload: values are trimmed, pixel sizes are
// canonicalised and duplicates dropped. A nil or empty format yields nil.
func Normalize(f *Format) *Format {
	if f == nil {
		return nil
	}
	var out Dimensions
	for _, v := range All(f.Dimensions) {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if size, ok := NormalizePixelSize(v); ok {
			v = size
		}
		out = out.With(v)
	}
	if out.IsZero() {
		return nil
	}
	if f.Dimensions.IsMultiple() && !out.IsMultiple() {
		out = Multiple(All(out)...)
	}
	return &Format{Dimensions: out}
}
