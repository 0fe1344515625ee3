package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/mediahub/internal/formats"
	"github.com/patrickwarner/mediahub/internal/models"
	"github.com/patrickwarner/mediahub/internal/observability"
)

var tracer = observability.Tracer("migration")

// PublicationStore is the document store the migration reads from and
// writes to.
type PublicationStore interface {
	ListPublications(ctx context.Context) ([]models.Publication, error)
	SetAdFormats(ctx context.Context, id primitive.ObjectID, changes []models.FormatChange) error
}

// ReviewSink persists finished runs, including the ads that need review.
type ReviewSink interface {
	RecordRun(ctx context.Context, r *Report) error
}

// RunNotifier announces finished runs to other services.
type RunNotifier interface {
	PublishRun(ctx context.Context, r *Report) error
}

// Throttle paces publication writes.
type Throttle interface {
	Wait(ctx context.Context) error
}

// Migrator runs the newsletter format migration over every publication.
type Migrator struct {
	Store    PublicationStore
	Resolver *Resolver
	Logger   *zap.Logger
	Metrics  observability.MetricsRegistry

	// Optional sinks. Failures are logged and never fail the run.
	Reviews  ReviewSink
	Notifier RunNotifier

	// Throttle, when set, is waited on before each publication write.
	Throttle Throttle
}

// NewMigrator returns a Migrator with the built-in legacy table.
func NewMigrator(store PublicationStore, logger *zap.Logger, metrics observability.MetricsRegistry) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Migrator{
		Store:    store,
		Resolver: NewResolver(nil),
		Logger:   logger,
		Metrics:  metrics,
	}
}

// Run processes every newsletter ad. In dry-run mode (apply false) nothing is
// written. In apply mode each publication with at least one applicable ad is
// updated once; a failed update is recorded in the report and the run
// continues. Only a failure to read publications aborts the run.
func (m *Migrator) Run(ctx context.Context, apply bool) (*Report, error) {
	mode := "dry-run"
	if apply {
		mode = "apply"
	}
	ctx, span := tracer.Start(ctx, "migration.Run", trace.WithAttributes(attribute.String("mode", mode)))
	defer span.End()

	report := newReport(uuid.NewString(), apply)
	log := m.Logger.With(zap.String("run_id", report.RunID), zap.String("mode", mode))
	log.Info("starting newsletter format migration")

	pubs, err := m.Store.ListPublications(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list publications")
		return nil, fmt.Errorf("load publications: %w", err)
	}
	report.Publications = len(pubs)

	for i := range pubs {
		pub := &pubs[i]
		if pub.LoadErr != "" {
			m.skip(log, pub, report)
			continue
		}
		changes := m.processPublication(log, pub, report)
		if !apply || len(changes) == 0 {
			continue
		}
		m.write(ctx, log, pub, changes, report)
	}

	report.FinishedAt = time.Now()
	m.Metrics.RecordMigrationDuration(mode, report.FinishedAt.Sub(report.StartedAt))
	span.SetAttributes(
		attribute.Int("publications", report.Publications),
		attribute.Int("ads", report.Ads),
		attribute.Int("needs_review", len(report.NeedsReview)),
		attribute.Int("publications_updated", report.PublicationsUpdated),
	)

	m.publish(ctx, log, report)

	log.Info("newsletter format migration finished",
		zap.Int("publications", report.Publications),
		zap.Int("ads", report.Ads),
		zap.Int("needs_review", len(report.NeedsReview)),
		zap.Int("publications_updated", report.PublicationsUpdated),
		zap.Int("ads_updated", report.AdsUpdated),
		zap.Int("errors", len(report.Errors)),
		zap.Int("skipped", len(report.Skipped)))
	return report, nil
}

func (m *Migrator) skip(log *zap.Logger, pub *models.Publication, report *Report) {
	m.Metrics.IncrementMigrationRecords("unreadable")
	log.Warn("publication could not be read, skipping",
		zap.String("publication_id", pub.ID.Hex()),
		zap.String("publication", pub.Name()),
		zap.String("error", pub.LoadErr))
	report.Skipped = append(report.Skipped, SkippedPublication{
		PublicationID:   pub.ID,
		PublicationName: pub.Name(),
		Err:             pub.LoadErr,
	})
}

// processPublication resolves every ad of pub and returns the changes to
// write.
func (m *Migrator) processPublication(log *zap.Logger, pub *models.Publication, report *Report) []models.FormatChange {
	var changes []models.FormatChange
	for n, nl := range pub.Channels.Newsletters {
		for a, ad := range nl.AdvertisingOpportunities {
			res := m.Resolver.ResolveAd(ad)
			item := Item{
				PublicationID:   pub.ID,
				PublicationName: pub.Name(),
				NewsletterName:  nl.Name,
				NewsletterIndex: n,
				AdName:          ad.Name,
				AdIndex:         a,
				Position:        ad.Position,
				Raw:             ad.Dimensions,
				Outcome:         res.Outcome,
				NewDimensions:   res.Dimensions,
				Reason:          res.Reason,
			}
			if res.Outcome.Applicable() {
				item.Category = formats.Classify(res.Dimensions)
			}
			report.add(item)
			m.Metrics.IncrementMigrationRecords(string(res.Outcome))

			switch {
			case res.Outcome == OutcomeNeedsReview:
				log.Warn("newsletter ad needs manual review",
					zap.String("publication_id", pub.ID.Hex()),
					zap.String("publication", pub.Name()),
					zap.String("newsletter", nl.Name),
					zap.String("ad", ad.Name),
					zap.String("raw_dimensions", item.RawValue()),
					zap.String("reason", res.Reason))
			case res.Outcome.Applicable():
				changes = append(changes, models.FormatChange{
					Newsletter: n,
					Ad:         a,
					AdName:     ad.Name,
					Format:     &formats.Format{Dimensions: res.Dimensions},
				})
			}
		}
	}
	return changes
}

func (m *Migrator) write(ctx context.Context, log *zap.Logger, pub *models.Publication, changes []models.FormatChange, report *Report) {
	ctx, span := tracer.Start(ctx, "migration.UpdatePublication",
		trace.WithAttributes(
			attribute.String("publication_id", pub.ID.Hex()),
			attribute.Int("changes", len(changes)),
		))
	defer span.End()

	err := m.wait(ctx)
	if err == nil {
		err = m.Store.SetAdFormats(ctx, pub.ID, changes)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update publication")
		m.Metrics.IncrementMigrationWrites("error")
		log.Error("failed to update publication",
			zap.String("publication_id", pub.ID.Hex()),
			zap.String("publication", pub.Name()),
			zap.Int("ads", len(changes)),
			zap.Error(err))
		report.Errors = append(report.Errors, WriteError{
			PublicationID:   pub.ID,
			PublicationName: pub.Name(),
			Err:             err.Error(),
		})
		return
	}
	m.Metrics.IncrementMigrationWrites("ok")
	report.PublicationsUpdated++
	report.AdsUpdated += len(changes)
	log.Debug("updated publication",
		zap.String("publication_id", pub.ID.Hex()),
		zap.Int("ads", len(changes)))
}

func (m *Migrator) wait(ctx context.Context) error {
	if m.Throttle == nil {
		return nil
	}
	if err := m.Throttle.Wait(ctx); err != nil {
		return fmt.Errorf("throttle: %w", err)
	}
	return nil
}

func (m *Migrator) publish(ctx context.Context, log *zap.Logger, report *Report) {
	if m.Reviews != nil {
		if err := m.Reviews.RecordRun(ctx, report); err != nil {
			m.Metrics.IncrementSinkErrors("review_queue")
			log.Error("failed to record migration run", zap.Error(err))
		}
	}
	if m.Notifier != nil {
		if err := m.Notifier.PublishRun(ctx, report); err != nil {
			m.Metrics.IncrementSinkErrors("notifier")
			log.Error("failed to publish migration run", zap.Error(err))
		}
	}
}
