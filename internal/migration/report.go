package migration

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/patrickwarner/mediahub/internal/formats"
)

// Item is the processing record of one newsletter ad.
type Item struct {
	PublicationID   primitive.ObjectID `json:"publication_id"`
	PublicationName string             `json:"publication_name"`
	NewsletterName  string             `json:"newsletter_name"`
	NewsletterIndex int                `json:"newsletter_index"`
	AdName          string             `json:"ad_name"`
	AdIndex         int                `json:"ad_index"`
	Position        string             `json:"position,omitempty"`
	Raw             *string            `json:"raw_dimensions,omitempty"`
	Outcome         Outcome            `json:"outcome"`
	NewDimensions   formats.Dimensions `json:"new_dimensions"`
	Category        formats.Category   `json:"category,omitempty"`
	Reason          string             `json:"reason,omitempty"`
}

// RawValue returns the legacy value or "(none)" when it was absent.
func (i Item) RawValue() string {
	if i.Raw == nil {
		return "(none)"
	}
	return *i.Raw
}

// WriteError is a failed publication update.
type WriteError struct {
	PublicationID   primitive.ObjectID `json:"publication_id"`
	PublicationName string             `json:"publication_name"`
	Err             string             `json:"error"`
}

// SkippedPublication is a stored publication that could not be read.
type SkippedPublication struct {
	PublicationID   primitive.ObjectID `json:"publication_id"`
	PublicationName string             `json:"publication_name"`
	Err             string             `json:"error"`
}

// Report summarises a migration run.
type Report struct {
	RunID      string    `json:"run_id"`
	Apply      bool      `json:"apply"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Publications int                      `json:"publications"`
	Ads          int                      `json:"ads"`
	ByOutcome    map[Outcome]int          `json:"by_outcome"`
	ByCategory   map[formats.Category]int `json:"by_category"`

	// Items holds every ad that was not already migrated.
	Items       []Item `json:"items"`
	NeedsReview []Item `json:"needs_review"`

	// Skipped lists publications whose documents could not be decoded.
	Skipped []SkippedPublication `json:"skipped,omitempty"`

	PublicationsUpdated int          `json:"publications_updated"`
	AdsUpdated          int          `json:"ads_updated"`
	Errors              []WriteError `json:"errors,omitempty"`
}

func newReport(runID string, apply bool) *Report {
	return &Report{
		RunID:      runID,
		Apply:      apply,
		StartedAt:  time.Now(),
		ByOutcome:  make(map[Outcome]int),
		ByCategory: make(map[formats.Category]int),
	}
}

func (r *Report) add(it Item) {
	r.Ads++
	r.ByOutcome[it.Outcome]++
	if it.Outcome == OutcomeAlreadyMigrated {
		return
	}
	r.Items = append(r.Items, it)
	if it.Outcome == OutcomeNeedsReview {
		r.NeedsReview = append(r.NeedsReview, it)
		return
	}
	r.ByCategory[it.Category]++
}

// Pending returns the number of ads that would be (or were attempted to be)
// written.
func (r *Report) Pending() int {
	return r.ByOutcome[OutcomeMapped] + r.ByOutcome[OutcomeInferred]
}

// Outcomes returns the outcomes in a stable reporting order.
func Outcomes() []Outcome {
	return []Outcome{OutcomeAlreadyMigrated, OutcomeMapped, OutcomeInferred, OutcomeNeedsReview}
}

// Categories returns the categories present in the report, sorted.
func (r *Report) Categories() []formats.Category {
	out := make([]formats.Category, 0, len(r.ByCategory))
	for c := range r.ByCategory {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Summary is the compact form of a Report published to other services.
type Summary struct {
	RunID               string                   `json:"run_id"`
	Apply               bool                     `json:"apply"`
	StartedAt           time.Time                `json:"started_at"`
	FinishedAt          time.Time                `json:"finished_at"`
	Publications        int                      `json:"publications"`
	Ads                 int                      `json:"ads"`
	ByOutcome           map[Outcome]int          `json:"by_outcome"`
	ByCategory          map[formats.Category]int `json:"by_category"`
	PublicationsUpdated int                      `json:"publications_updated"`
	AdsUpdated          int                      `json:"ads_updated"`
	Errors              int                      `json:"errors"`
	Skipped             int                      `json:"skipped"`
}

// Summary drops the per-ad items from the report.
func (r *Report) Summary() Summary {
	return Summary{
		RunID:               r.RunID,
		Apply:               r.Apply,
		StartedAt:           r.StartedAt,
		FinishedAt:          r.FinishedAt,
		Publications:        r.Publications,
		Ads:                 r.Ads,
		ByOutcome:           r.ByOutcome,
		ByCategory:          r.ByCategory,
		PublicationsUpdated: r.PublicationsUpdated,
		AdsUpdated:          r.AdsUpdated,
		Errors:              len(r.Errors),
		Skipped:             len(r.Skipped),
	}
}
