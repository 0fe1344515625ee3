package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/patrickwarner/mediahub/internal/config"
	"github.com/patrickwarner/mediahub/internal/models"
)

type fakeStore struct {
	pubs    []models.Publication
	listErr error
	writes  map[primitive.ObjectID][]models.FormatChange
}

func (s *fakeStore) ListPublications(ctx context.Context) ([]models.Publication, error) {
	return s.pubs, s.listErr
}

func (s *fakeStore) SetAdFormats(ctx context.Context, id primitive.ObjectID, changes []models.FormatChange) error {
	if s.writes == nil {
		s.writes = make(map[primitive.ObjectID][]models.FormatChange)
	}
	s.writes[id] = changes
	return nil
}

func useStore(t *testing.T, store *fakeStore) {
	t.Setenv("TRACING_ENABLED", "false")
	orig := connect
	connect = func(ctx context.Context, cfg config.Config, opts *options, logger *zap.Logger) (*backends, error) {
		return &backends{Store: store, Close: func() {}}, nil
	}
	t.Cleanup(func() { connect = orig })
}

func seed() []models.Publication {
	full, banner, odd := "Full email", "Leaderboard", "Half page"
	return []models.Publication{{
		ID:        primitive.NewObjectID(),
		BasicInfo: models.BasicInfo{PublicationName: "Chicago Reader"},
		Channels: models.DistributionChannels{Newsletters: []models.Newsletter{{
			Name: "Daily",
			AdvertisingOpportunities: []models.NewsletterAd{
				{Name: "Takeover", Dimensions: &full, Position: models.PositionDedicated},
				{Name: "Top", Dimensions: &banner},
				{Name: "Side", Dimensions: &odd},
			},
		}}},
	}}
}

func execute(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDryRunByDefault(t *testing.T) {
	store := &fakeStore{pubs: seed()}
	useStore(t, store)

	out, err := execute(t)
	require.NoError(t, err)
	assert.Empty(t, store.writes)
	assert.Contains(t, out, "DRY RUN")
	assert.Contains(t, out, "NEEDS REVIEW (1)")
	assert.Contains(t, out, "Would update 2 ads across 1 publications.")
}

func TestApplyWrites(t *testing.T) {
	store := &fakeStore{pubs: seed()}
	useStore(t, store)

	out, err := execute(t, "--apply")
	require.NoError(t, err)
	require.Len(t, store.writes, 1)
	assert.Len(t, store.writes[store.pubs[0].ID], 2)
	assert.Contains(t, out, "Ads updated:           2")
}

func TestMappingsFileResolvesMoreAds(t *testing.T) {
	store := &fakeStore{pubs: seed()}
	useStore(t, store)
	path := filepath.Join(t.TempDir(), "extra.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mappings:\n  Half page: 300x600\n"), 0o600))

	out, err := execute(t, "--mappings", path, "--output", "json")
	require.NoError(t, err)

	var rep struct {
		ByOutcome map[string]int `json:"by_outcome"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 3, rep.ByOutcome["mapped"])
	assert.Zero(t, rep.ByOutcome["needs-review"])
}

func TestReadFailureIsFatal(t *testing.T) {
	useStore(t, &fakeStore{listErr: errors.New("server selection timeout")})

	_, err := execute(t, "--apply")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server selection timeout")
}

func TestRejectsUnknownOutput(t *testing.T) {
	useStore(t, &fakeStore{})
	_, err := execute(t, "--output", "xml")
	assert.Error(t, err)
}

func TestRejectsPositionalArgs(t *testing.T) {
	useStore(t, &fakeStore{})
	_, err := execute(t, "apply")
	assert.Error(t, err)
}

func TestApplyWithWritePacing(t *testing.T) {
	store := &fakeStore{pubs: seed()}
	useStore(t, store)

	_, err := execute(t, "--apply", "--writes-per-second", "5")
	require.NoError(t, err)
	require.Len(t, store.writes, 1)
}

func TestWritesPerSecondFlagOverridesEnvironment(t *testing.T) {
	cfg := config.Config{MigrationWritesPerSecond: 20}

	opts := &options{}
	applyConfigDefaults(opts, cfg)
	assert.Equal(t, 20, opts.rate, "environment applies when the flag is absent")

	opts = &options{rate: 0, rateSet: true}
	applyConfigDefaults(opts, cfg)
	assert.Equal(t, 0, opts.rate, "an explicit zero disables pacing")

	opts = &options{rate: 3, rateSet: true}
	applyConfigDefaults(opts, cfg)
	assert.Equal(t, 3, opts.rate)
}

func TestExplicitZeroRateIsRecorded(t *testing.T) {
	store := &fakeStore{pubs: seed()}
	useStore(t, store)
	t.Setenv("MIGRATION_WRITES_PER_SECOND", "1")

	var seen *options
	orig := connect
	connect = func(ctx context.Context, cfg config.Config, opts *options, logger *zap.Logger) (*backends, error) {
		seen = opts
		return orig(ctx, cfg, opts, logger)
	}
	t.Cleanup(func() { connect = orig })

	_, err := execute(t, "--apply", "--writes-per-second", "0")
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.True(t, seen.rateSet)
	assert.Equal(t, 0, seen.rate)
	require.Len(t, store.writes, 1)
}
