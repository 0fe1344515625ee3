package reporting

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/patrickwarner/mediahub/internal/formats"
	"github.com/patrickwarner/mediahub/internal/migration"
)

func strPtr(s string) *string { return &s }

func testReport(apply bool) *migration.Report {
	chicago := primitive.NewObjectID()
	start := time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)
	r := &migration.Report{
		RunID:        "run-42",
		Apply:        apply,
		StartedAt:    start,
		FinishedAt:   start.Add(3 * time.Second),
		Publications: 2,
		Ads:          3,
		ByOutcome: map[migration.Outcome]int{
			migration.OutcomeMapped:      1,
			migration.OutcomeInferred:    1,
			migration.OutcomeNeedsReview: 1,
		},
		ByCategory: map[formats.Category]int{
			formats.CategoryTakeover:    1,
			formats.CategoryIABStandard: 1,
		},
	}
	r.Items = []migration.Item{
		{PublicationID: chicago, PublicationName: "Chicago Reader", NewsletterName: "Daily", AdName: "Takeover",
			Raw: strPtr("Full email"), Outcome: migration.OutcomeMapped,
			NewDimensions: formats.Single("full-newsletter"), Category: formats.CategoryTakeover},
		{PublicationID: chicago, PublicationName: "Chicago Reader", NewsletterName: "Daily", AdName: "Banner",
			Raw: strPtr("300x250, 600x150"), Outcome: migration.OutcomeInferred,
			NewDimensions: formats.Multiple("300x250", "600x150"), Category: formats.CategoryIABStandard},
		{PublicationID: primitive.NewObjectID(), PublicationName: "Austin Weekly", NewsletterName: "Weekend", AdName: "Footer",
			Outcome: migration.OutcomeNeedsReview, NewDimensions: formats.Single(migration.NeedsReview),
			Reason: "legacy dimensions missing"},
	}
	r.NeedsReview = r.Items[2:]
	return r
}

func TestWriteTextDryRun(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, testReport(false)))
	out := buf.String()

	assert.Contains(t, out, "NEWSLETTER FORMAT MIGRATION REPORT")
	assert.Contains(t, out, "DRY RUN")
	assert.Contains(t, out, "CHANGES TO APPLY")
	assert.Contains(t, out, `"Full email" → full-newsletter (mapped, takeover)`)
	assert.Contains(t, out, "NEEDS REVIEW (1)")
	assert.Contains(t, out, `dimensions: "(none)"  reason: legacy dimensions missing`)
	assert.Contains(t, out, "takeover:")
	assert.Contains(t, out, "Would update 2 ads across 1 publications.")
	assert.NotContains(t, out, "RESULTS")
}

func TestWriteTextApply(t *testing.T) {
	r := testReport(true)
	r.PublicationsUpdated = 0
	r.Errors = []migration.WriteError{{PublicationID: r.Items[0].PublicationID, PublicationName: "Chicago Reader", Err: "write conflict"}}

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "Mode:     APPLY")
	assert.Contains(t, out, "RESULTS")
	assert.Contains(t, out, "Errors:                1")
	assert.Contains(t, out, "Chicago Reader ["+r.Items[0].PublicationID.Hex()+"]: write conflict")
	assert.NotContains(t, out, "Would update")
}

func TestWriteTextListsUnreadablePublications(t *testing.T) {
	r := testReport(false)
	id := r.Items[0].PublicationID
	r.Skipped = []migration.SkippedPublication{{PublicationID: id, PublicationName: "Broken Gazette", Err: "cannot decode string into an integer type"}}

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "UNREADABLE PUBLICATIONS (1)")
	assert.Contains(t, out, "Broken Gazette ["+id.Hex()+"]: cannot decode string into an integer type")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestWriteTextReportsWriteError(t *testing.T) {
	err := WriteText(failingWriter{}, testReport(false))
	assert.EqualError(t, err, "closed pipe")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, testReport(false)))

	var decoded struct {
		RunID       string         `json:"run_id"`
		ByOutcome   map[string]int `json:"by_outcome"`
		NeedsReview []struct {
			NewDimensions string `json:"new_dimensions"`
		} `json:"needs_review"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-42", decoded.RunID)
	assert.Equal(t, 1, decoded.ByOutcome["needs-review"])
	require.Len(t, decoded.NeedsReview, 1)
	assert.Equal(t, migration.NeedsReview, decoded.NeedsReview[0].NewDimensions)
}

func TestCategoryLine(t *testing.T) {
	line := CategoryLine(map[formats.Category]int{
		formats.CategoryTakeover:    2,
		formats.CategoryIABStandard: 1,
		formats.CategoryNative:      0,
	})
	assert.Equal(t, "iab-standard=1 takeover=2", line)
}
