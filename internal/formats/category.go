package formats

import (
	"regexp"
	"strings"
)

// Category groups placements by the kind of creative they accept. It is
// always derived from Dimensions and never stored.
type Category string

const (
	CategoryIABStandard   Category = "iab-standard"
	CategoryEmailStandard Category = "email-standard"
	CategoryCustomDisplay Category = "custom-display"
	CategoryNative        Category = "native"
	CategoryResponsive    Category = "responsive"
	CategoryTakeover      Category = "takeover"
)

// AllCategories returns every category in display order.
func AllCategories() []Category {
	return []Category{
		CategoryIABStandard,
		CategoryEmailStandard,
		CategoryCustomDisplay,
		CategoryNative,
		CategoryResponsive,
		CategoryTakeover,
	}
}

// Semantic labels used in place of pixel sizes.
const (
	LabelFullNewsletter     = "full-newsletter"
	LabelResponsive         = "responsive"
	LabelTextOnly           = "text-only"
	LabelSponsoredContent   = "sponsored-content"
	LabelLogoText           = "logo-text"
	LabelContentIntegration = "content-integration"
	LabelCustom             = "custom"
)

var (
	emailStandardSizes = []string{"600x150", "600x100", "600x200", "600x300"}
	iabStandardSizes   = []string{"300x250", "728x90", "160x600", "300x600", "320x50", "970x250", "336x280", "970x90"}
	nativeLabels       = []string{LabelTextOnly, LabelSponsoredContent, LabelLogoText, LabelContentIntegration}
	takeoverLabels     = []string{LabelFullNewsletter}

	emailStandardSet = toSet(emailStandardSizes)
	iabStandardSet   = toSet(iabStandardSizes)
	nativeSet        = toSet(nativeLabels)
	takeoverSet      = toSet(takeoverLabels)

	pixelSizeRe = regexp.MustCompile(`(?i)^\d+x\d+$`)
)

func toSet(vs []string) map[string]struct{} {
	m := make(map[string]struct{}, len(vs))
	for _, v := range vs {
		m[v] = struct{}{}
	}
	return m
}

// IsPixelSize reports whether v has the WxH pixel form, e.g. "300x250".
func IsPixelSize(v string) bool {
	return pixelSizeRe.MatchString(v)
}

// Classify returns the category of d. Lists are classified by their first
// element only; an empty value is custom-display.
func Classify(d Dimensions) Category {
	v, ok := Primary(d)
	if !ok {
		return CategoryCustomDisplay
	}
	return ClassifyValue(v)
}

// ClassifyValue returns the category of a single dimension value. Exact
// standard sizes and labels are checked before the generic pixel fallback, so
// a new standard size must be added to its set to be recognised.
func ClassifyValue(v string) Category {
	if _, ok := emailStandardSet[v]; ok {
		return CategoryEmailStandard
	}
	if _, ok := iabStandardSet[v]; ok {
		return CategoryIABStandard
	}
	if _, ok := nativeSet[v]; ok {
		return CategoryNative
	}
	if _, ok := takeoverSet[v]; ok {
		return CategoryTakeover
	}
	if v == LabelResponsive || strings.Contains(v, ",") {
		return CategoryResponsive
	}
	if IsPixelSize(v) {
		return CategoryCustomDisplay
	}
	return CategoryCustomDisplay
}
