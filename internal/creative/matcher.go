// Package creative matches uploaded creative files against the newsletter
// placements of a publication.
package creative

import (
	"archive/zip"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/patrickwarner/mediahub/internal/formats"
	"github.com/patrickwarner/mediahub/internal/models"
)

// Scores awarded by Score.
const (
	ScoreExactSize     = 100
	ScoreTakeoverWidth = 60
	BonusNameMention   = 10
	// TakeoverWidth is the body width of a newsletter send.
	TakeoverWidth = 600
)

// MaxEntries bounds the number of files read from one archive.
const MaxEntries = 500

var (
	// ErrTooManyEntries is returned for archives with more than MaxEntries files.
	ErrTooManyEntries = errors.New("archive has too many files")

	sizeTokenRe = regexp.MustCompile(`(?i)(\d{2,4})\s*[x×]\s*(\d{2,4})`)
	imageExts   = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}
)

// Placement is a newsletter ad that creatives can be matched to.
type Placement struct {
	NewsletterIndex int                `json:"newsletter_index"`
	Newsletter      string             `json:"newsletter"`
	AdIndex         int                `json:"ad_index"`
	Name            string             `json:"name"`
	Dimensions      formats.Dimensions `json:"dimensions"`
	Category        formats.Category   `json:"category"`
}

// PlacementsFor lists every newsletter ad of pub that has dimensions.
// Migrated formats are preferred over legacy values.
func PlacementsFor(pub *models.Publication) []Placement {
	var out []Placement
	for n, nl := range pub.Channels.Newsletters {
		for a, ad := range nl.AdvertisingOpportunities {
			dims, ok := ad.EffectiveDimensions()
			if !ok {
				continue
			}
			out = append(out, Placement{
				NewsletterIndex: n,
				Newsletter:      nl.Name,
				AdIndex:         a,
				Name:            ad.Name,
				Dimensions:      dims,
				Category:        formats.Classify(dims),
			})
		}
	}
	return out
}

// Asset is an image found in an upload.
type Asset struct {
	File   string `json:"file"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	// SizeSource is "image" when read from the file header and "filename"
	// when taken from a WxH token in the name.
	SizeSource string `json:"size_source"`
}

// Size returns the canonical WxH string.
func (a Asset) Size() string {
	return fmt.Sprintf("%dx%d", a.Width, a.Height)
}

// Match pairs an asset with its best placement.
type Match struct {
	Asset     Asset     `json:"asset"`
	Placement Placement `json:"placement"`
	Score     int       `json:"score"`
}

// Skipped is an archive entry that could not be used.
type Skipped struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// Result is the outcome of matching one archive.
type Result struct {
	Matches   []Match   `json:"matches"`
	Unmatched []Asset   `json:"unmatched"`
	Skipped   []Skipped `json:"skipped"`
}

// Score rates how well an asset fits a placement. Zero means it does not fit.
func Score(a Asset, p Placement) int {
	score := 0
	switch {
	case formats.Supports(p.Dimensions, a.Size()):
		score = ScoreExactSize
	case p.Category == formats.CategoryTakeover && a.Width == TakeoverWidth:
		score = ScoreTakeoverWidth
	}
	if score > 0 && mentions(a.File, p.Name) {
		score += BonusNameMention
	}
	return score
}

func mentions(file, adName string) bool {
	name := strings.ToLower(strings.TrimSpace(adName))
	if name == "" {
		return false
	}
	base := strings.ToLower(path.Base(file))
	if strings.Contains(base, name) {
		return true
	}
	// "Top Banner" also matches "top-banner.png" and "top_banner.png"
	for _, sep := range []string{"-", "_", ""} {
		if strings.Contains(base, strings.ReplaceAll(name, " ", sep)) {
			return true
		}
	}
	return false
}

// Best returns the highest scoring placement for a. Ties go to the
// placement listed first. ok is false when nothing scores above zero.
func Best(a Asset, placements []Placement) (Match, bool) {
	var best Match
	for _, p := range placements {
		if s := Score(a, p); s > best.Score {
			best = Match{Asset: a, Placement: p, Score: s}
		}
	}
	return best, best.Score > 0
}

// MatchArchive reads a ZIP archive and matches each image to a placement.
func MatchArchive(r io.ReaderAt, size int64, placements []Placement) (*Result, error) {
	assets, skipped, err := ReadArchive(r, size)
	if err != nil {
		return nil, err
	}
	res := &Result{Skipped: skipped}
	for _, a := range assets {
		if m, ok := Best(a, placements); ok {
			res.Matches = append(res.Matches, m)
			continue
		}
		res.Unmatched = append(res.Unmatched, a)
	}
	sort.SliceStable(res.Matches, func(i, j int) bool {
		pi, pj := res.Matches[i].Placement, res.Matches[j].Placement
		if pi.NewsletterIndex != pj.NewsletterIndex {
			return pi.NewsletterIndex < pj.NewsletterIndex
		}
		return pi.AdIndex < pj.AdIndex
	})
	return res, nil
}

// ReadArchive returns the sized images of a ZIP archive. Entries that are
// not images, or whose size cannot be determined, are returned as skipped.
func ReadArchive(r io.ReaderAt, size int64) ([]Asset, []Skipped, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}
	var files []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || hidden(f.Name) {
			continue
		}
		files = append(files, f)
	}
	if len(files) > MaxEntries {
		return nil, nil, fmt.Errorf("%w: %d > %d", ErrTooManyEntries, len(files), MaxEntries)
	}

	var assets []Asset
	var skipped []Skipped
	for _, f := range files {
		if !imageExts[strings.ToLower(path.Ext(f.Name))] {
			skipped = append(skipped, Skipped{File: f.Name, Reason: "not an image"})
			continue
		}
		a, ok := readAsset(f)
		if !ok {
			skipped = append(skipped, Skipped{File: f.Name, Reason: "image size unknown"})
			continue
		}
		assets = append(assets, a)
	}
	return assets, skipped, nil
}

func hidden(name string) bool {
	if strings.HasPrefix(name, "__MACOSX/") {
		return true
	}
	return strings.HasPrefix(path.Base(name), ".")
}

func readAsset(f *zip.File) (Asset, bool) {
	a := Asset{File: f.Name}
	if rc, err := f.Open(); err == nil {
		cfg, _, err := image.DecodeConfig(rc)
		_ = rc.Close()
		if err == nil && cfg.Width > 0 && cfg.Height > 0 {
			a.Width, a.Height, a.SizeSource = cfg.Width, cfg.Height, "image"
			return a, true
		}
	}
	if w, h, ok := sizeFromName(f.Name); ok {
		a.Width, a.Height, a.SizeSource = w, h, "filename"
		return a, true
	}
	return a, false
}

func sizeFromName(name string) (int, int, bool) {
	m := sizeTokenRe.FindStringSubmatch(path.Base(name))
	if m == nil {
		return 0, 0, false
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	return w, h, w > 0 && h > 0
}
