package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/mediahub/internal/formats"
	"github.com/patrickwarner/mediahub/internal/models"
)

func strPtr(s string) *string { return &s }

func TestResolveFullEmailDedicated(t *testing.T) {
	r := NewResolver(nil)
	res := r.Resolve(strPtr("Full email"), models.PositionDedicated)
	assert.Equal(t, OutcomeMapped, res.Outcome)
	assert.True(t, res.Dimensions.Equal(formats.Single("full-newsletter")))
	assert.Equal(t, formats.CategoryTakeover, formats.Classify(res.Dimensions))
}

func TestResolveCommaList(t *testing.T) {
	res := NewResolver(nil).Resolve(strPtr("300x250, 600x150"), "")
	assert.Equal(t, OutcomeInferred, res.Outcome)
	assert.True(t, res.Dimensions.Equal(formats.Multiple("300x250", "600x150")), res.Dimensions.String())
}

func TestResolveMissing(t *testing.T) {
	r := NewResolver(nil)

	res := r.Resolve(nil, "inline")
	assert.Equal(t, OutcomeNeedsReview, res.Outcome)
	assert.True(t, res.Dimensions.Equal(formats.Single(NeedsReview)))

	res = r.Resolve(strPtr("   "), "inline")
	assert.Equal(t, OutcomeNeedsReview, res.Outcome)

	res = r.Resolve(nil, models.PositionDedicated)
	assert.Equal(t, OutcomeInferred, res.Outcome)
	assert.True(t, res.Dimensions.Equal(formats.Single(formats.LabelFullNewsletter)))
}

func TestResolveUnmatched(t *testing.T) {
	res := NewResolver(nil).Resolve(strPtr("multiple"), "")
	assert.Equal(t, OutcomeNeedsReview, res.Outcome)
	assert.True(t, res.Dimensions.Equal(formats.Single(NeedsReview)))
}

func TestResolveTable(t *testing.T) {
	r := NewResolver(nil)
	cases := []struct {
		raw     string
		outcome Outcome
		want    formats.Dimensions
	}{
		{"Text only", OutcomeMapped, formats.Single("text-only")},
		{"  text ONLY ", OutcomeMapped, formats.Single("text-only")},
		{"responsive (600px width or phone screen)", OutcomeMapped, formats.Single("responsive")},
		{"Logo + text", OutcomeMapped, formats.Single("logo-text")},
		{"300x250", OutcomeInferred, formats.Single("300x250")},
		{"600 X 150 px", OutcomeInferred, formats.Single("600x150")},
		{"300x250 / 728x90", OutcomeInferred, formats.Multiple("300x250", "728x90")},
		{"300x250 or 600x150", OutcomeInferred, formats.Multiple("300x250", "600x150")},
		{"Sponsored post, Text ad", OutcomeInferred, formats.Multiple("sponsored-content", "text-only")},
		{"Special edition takeover", OutcomeInferred, formats.Single("full-newsletter")},
		{"Fluid width", OutcomeInferred, formats.Single("responsive")},
		{"Up to 150 characters", OutcomeInferred, formats.Single("text-only")},
		{"Native unit", OutcomeInferred, formats.Single("text-only")},
		{"Banner image", OutcomeNeedsReview, formats.Single(NeedsReview)},
	}
	for _, c := range cases {
		res := r.Resolve(strPtr(c.raw), "")
		assert.Equal(t, c.outcome, res.Outcome, c.raw)
		assert.True(t, res.Dimensions.Equal(c.want), "%s: got %s", c.raw, res.Dimensions)
	}
}

func TestResolveSplitFallsBackToKeywords(t *testing.T) {
	// "image" cannot be resolved, so the list is rejected and the whole
	// value is matched by keyword instead.
	res := NewResolver(nil).Resolve(strPtr("Text or image"), "")
	assert.Equal(t, OutcomeInferred, res.Outcome)
	assert.True(t, res.Dimensions.Equal(formats.Single("text-only")))
}

func TestResolveAdAlreadyMigrated(t *testing.T) {
	ad := models.NewsletterAd{
		Dimensions: strPtr("Full email"),
		Format:     &formats.Format{Dimensions: formats.Single("600x150")},
	}
	res := NewResolver(nil).ResolveAd(ad)
	assert.Equal(t, OutcomeAlreadyMigrated, res.Outcome)
	assert.False(t, res.Outcome.Applicable())
}

func TestExtraMappingsOverrideBuiltIn(t *testing.T) {
	r := NewResolver(map[string]string{"Leaderboard": "970x90", "Half page": "300x600"})
	assert.True(t, r.Resolve(strPtr("leaderboard"), "").Dimensions.Equal(formats.Single("970x90")))
	assert.Equal(t, OutcomeMapped, r.Resolve(strPtr("Half page"), "").Outcome)
}

func TestLoadMappings(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("mappings:\n  \"Half page\": \"300x600\"\n  \"Story\": \"sponsored-content\"\n"), 0o600))

	m, err := LoadMappings(good)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Half page": "300x600", "Story": "sponsored-content"}, m)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("mappings:\n  \"Odd\": \"big banner\"\n"), 0o600))
	_, err = LoadMappings(bad)
	assert.Error(t, err)

	_, err = LoadMappings(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestResolveTrailingSeparator(t *testing.T) {
	r := NewResolver(nil)
	for _, raw := range []string{"600x150,", "600x150 /", ", 600x150"} {
		res := r.Resolve(strPtr(raw), "")
		assert.Equal(t, OutcomeInferred, res.Outcome, raw)
		assert.True(t, res.Dimensions.Equal(formats.Single("600x150")), "%q -> %s", raw, res.Dimensions)
	}

	res := r.Resolve(strPtr("Leaderboard,"), "")
	assert.Equal(t, OutcomeInferred, res.Outcome)
	assert.True(t, res.Dimensions.Equal(formats.Single("728x90")))
}

func TestResolveAdBlankFormatIsNotMigrated(t *testing.T) {
	ad := models.NewsletterAd{
		Name:       "Banner",
		Dimensions: strPtr("300x250"),
		Format:     &formats.Format{Dimensions: formats.Single("  ")},
	}
	res := NewResolver(nil).ResolveAd(ad)
	assert.Equal(t, OutcomeInferred, res.Outcome)
	assert.True(t, res.Dimensions.Equal(formats.Single("300x250")))
}

func TestResolveAdNamesUnreadableFields(t *testing.T) {
	ad := models.NewsletterAd{Name: "Banner", Issue: "unreadable dimensions: unsupported type 32-bit integer"}
	res := NewResolver(nil).ResolveAd(ad)
	assert.Equal(t, OutcomeNeedsReview, res.Outcome)
	assert.Equal(t, ad.Issue, res.Reason)
}
