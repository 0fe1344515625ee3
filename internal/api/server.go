package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/patrickwarner/mediahub/internal/config"
	"github.com/patrickwarner/mediahub/internal/db"
	"github.com/patrickwarner/mediahub/internal/middleware"
	"github.com/patrickwarner/mediahub/internal/migration"
	"github.com/patrickwarner/mediahub/internal/models"
	"github.com/patrickwarner/mediahub/internal/observability"
	"github.com/patrickwarner/mediahub/internal/ratelimit"
)

// PublicationStore reads publications and writes newsletter ad formats.
type PublicationStore interface {
	GetPublication(ctx context.Context, id string) (*models.Publication, error)
	SetAdFormats(ctx context.Context, id primitive.ObjectID, changes []models.FormatChange) error
}

// ReviewQueue holds ads the migration could not resolve.
type ReviewQueue interface {
	ListReviews(ctx context.Context, status string, limit int) ([]models.ReviewItem, error)
	GetReview(ctx context.Context, id int64) (*models.ReviewItem, error)
	ResolveReview(ctx context.Context, id int64, resolution []string) error
	ReopenReview(ctx context.Context, id int64) error
}

// Notifier announces format edits and exposes the last migration run.
type Notifier interface {
	PublishFormatUpdate(ctx context.Context, u db.FormatUpdate) error
	LastRun(ctx context.Context) (*migration.Summary, error)
}

// Limiter admits or rejects a request without blocking.
type Limiter interface {
	Allow() bool
}

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger         *zap.Logger
	Publications   PublicationStore
	Reviews        ReviewQueue
	Notifier       Notifier
	Metrics        observability.MetricsRegistry
	Config         config.Config
	MaxUploadBytes int64
	// MatchLimiter bounds creative match requests. Nil means unlimited.
	MatchLimiter Limiter
}

// NewServer constructs a Server. Reviews and notifier may be nil; the
// endpoints that need them then answer 503.
func NewServer(logger *zap.Logger, pubs PublicationStore, reviews ReviewQueue, notifier Notifier, metrics observability.MetricsRegistry, cfg config.Config) *Server {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	s := &Server{
		Logger:         logger,
		Publications:   pubs,
		Reviews:        reviews,
		Notifier:       notifier,
		Metrics:        metrics,
		Config:         cfg,
		MaxUploadBytes: maxUpload,
	}
	if n := cfg.CreativeMatchesPerSecond; n > 0 {
		s.MatchLimiter = ratelimit.NewTokenBucket(n, n)
	}
	return s
}

// Router registers every endpoint on a new mux router.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.WithTraceLogger(s.Logger))
	r.HandleFunc("/health", s.HealthHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/formats/options", s.FormatOptionsHandler).Methods("GET")
	api.HandleFunc("/formats/classify", s.ClassifyHandler).Methods("POST")
	api.HandleFunc("/formats/normalize", s.NormalizeHandler).Methods("POST")

	api.HandleFunc("/publications/{id}/formats", s.PublicationFormatsHandler).Methods("GET")
	api.HandleFunc("/publications/{id}/newsletters/{nl:[0-9]+}/ads/{ad:[0-9]+}/format", s.UpdateAdFormatHandler).Methods("PUT")

	api.HandleFunc("/creatives/match", s.MatchCreativesHandler).Methods("POST")

	api.HandleFunc("/reviews", s.ListReviewsHandler).Methods("GET")
	api.HandleFunc("/reviews/{id:[0-9]+}/resolve", s.ResolveReviewHandler).Methods("POST")
	api.HandleFunc("/migration/last-run", s.LastRunHandler).Methods("GET")
	return r
}

// helper function to write JSON response
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request count and latency for one endpoint.
func (s *Server) instrument(endpoint string, w http.ResponseWriter, r *http.Request, h func(http.ResponseWriter)) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h(rec)
	s.Metrics.IncrementRequests(endpoint, r.Method, strconv.Itoa(rec.status))
	s.Metrics.RecordRequestLatency(endpoint, r.Method, time.Since(start))
}

// notifyUpdate publishes a format edit. Failures are logged only.
func (s *Server) notifyUpdate(ctx context.Context, log *zap.Logger, u db.FormatUpdate) {
	if s.Notifier == nil {
		log.Debug("notifier not configured, skipping format update notification")
		return
	}
	if err := s.Notifier.PublishFormatUpdate(ctx, u); err != nil {
		log.Error("failed to publish format update", zap.Error(err))
	}
}
