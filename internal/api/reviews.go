package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/patrickwarner/mediahub/internal/formats"
	"github.com/patrickwarner/mediahub/internal/middleware"
	"github.com/patrickwarner/mediahub/internal/models"
)

const (
	defaultReviewLimit = 50
	maxReviewLimit     = 500
)

// ListReviewsHandler lists review queue items. The status query parameter
// defaults to pending.
func (s *Server) ListReviewsHandler(w http.ResponseWriter, r *http.Request) {
	s.instrument("list_reviews", w, r, func(w http.ResponseWriter) {
		if s.Reviews == nil {
			writeError(w, http.StatusServiceUnavailable, "review queue not configured")
			return
		}
		log := middleware.LoggerFromRequest(r, s.Logger)

		q := r.URL.Query()
		status := q.Get("status")
		if status == "" {
			status = models.ReviewPending
		}
		if status != models.ReviewPending && status != models.ReviewResolved {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		limit := defaultReviewLimit
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = min(n, maxReviewLimit)
		}

		items, err := s.Reviews.ListReviews(r.Context(), status, limit)
		if err != nil {
			log.Error("list reviews", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if items == nil {
			items = []models.ReviewItem{}
		}
		writeJSON(w, http.StatusOK, items)
	})
}

// resolveRequest carries the dimensions chosen for a reviewed ad.
type resolveRequest struct {
	Dimensions formats.Dimensions `json:"dimensions"`
}

// ResolveReviewHandler writes the chosen format to the ad behind a review
// item and marks the item resolved. The item is claimed before the write and
// reopened when the write fails.
func (s *Server) ResolveReviewHandler(w http.ResponseWriter, r *http.Request) {
	s.instrument("resolve_review", w, r, func(w http.ResponseWriter) {
		if s.Reviews == nil {
			writeError(w, http.StatusServiceUnavailable, "review queue not configured")
			return
		}
		log := middleware.LoggerFromRequest(r, s.Logger)
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid review id")
			return
		}

		var req resolveRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		f, err := formats.Validate(&formats.Format{Dimensions: req.Dimensions})
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if f == nil {
			writeError(w, http.StatusUnprocessableEntity, formats.ErrNoFormat.Error())
			return
		}

		item, err := s.Reviews.GetReview(r.Context(), id)
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, "review not found")
			return
		}
		if err != nil {
			log.Error("get review", zap.Int64("review_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if item.Status != models.ReviewPending {
			writeError(w, http.StatusConflict, "review already resolved")
			return
		}

		pub, err := s.Publications.GetPublication(r.Context(), item.PublicationID)
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, "publication not found")
			return
		}
		if err != nil {
			log.Error("get publication", zap.String("publication_id", item.PublicationID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !reviewTargetMatches(pub, item) {
			log.Warn("review target changed since it was queued",
				zap.Int64("review_id", id),
				zap.String("publication_id", item.PublicationID),
				zap.Int("newsletter", item.NewsletterIndex),
				zap.Int("ad", item.AdIndex),
				zap.String("ad_name", item.AdName))
			writeError(w, http.StatusConflict, "newsletter ad changed since the review was queued")
			return
		}

		// Claim the item first so concurrent resolves cannot both write.
		resolution := formats.All(f.Dimensions)
		if err := s.Reviews.ResolveReview(r.Context(), id, resolution); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				writeError(w, http.StatusConflict, "review already resolved")
				return
			}
			log.Error("resolve review", zap.Int64("review_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		change := models.FormatChange{Newsletter: item.NewsletterIndex, Ad: item.AdIndex, AdName: item.AdName, Format: f}
		if err := s.Publications.SetAdFormats(r.Context(), pub.ID, []models.FormatChange{change}); err != nil {
			log.Error("apply review resolution", zap.Int64("review_id", id), zap.Error(err))
			if rerr := s.Reviews.ReopenReview(r.Context(), id); rerr != nil {
				log.Error("reopen review after failed update", zap.Int64("review_id", id), zap.Error(rerr))
			}
			if errors.Is(err, models.ErrNotFound) {
				writeError(w, http.StatusConflict, "newsletter ad changed since the review was queued")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to update format")
			return
		}
		s.Metrics.IncrementClassifications(string(formats.Classify(f.Dimensions)))
		s.notifyUpdate(r.Context(), log, formatUpdate(item.PublicationID, item.NewsletterIndex, item.AdIndex, f))

		log.Info("resolved review",
			zap.Int64("review_id", id),
			zap.String("publication_id", item.PublicationID),
			zap.Strings("dimensions", resolution))
		item.Status = models.ReviewResolved
		item.Resolution = resolution
		writeJSON(w, http.StatusOK, item)
	})
}

// reviewTargetMatches reports whether the ad a review item points at is still
// the ad that was queued.
func reviewTargetMatches(pub *models.Publication, item *models.ReviewItem) bool {
	ad, err := pub.Ad(item.NewsletterIndex, item.AdIndex)
	if err != nil {
		return false
	}
	return ad.Name == item.AdName && pub.Channels.Newsletters[item.NewsletterIndex].Name == item.NewsletterName
}

// LastRunHandler returns the summary of the most recent migration run.
func (s *Server) LastRunHandler(w http.ResponseWriter, r *http.Request) {
	s.instrument("migration_last_run", w, r, func(w http.ResponseWriter) {
		if s.Notifier == nil {
			writeError(w, http.StatusServiceUnavailable, "redis not configured")
			return
		}
		sum, err := s.Notifier.LastRun(r.Context())
		if err != nil {
			middleware.LoggerFromRequest(r, s.Logger).Error("load last migration run", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if sum == nil {
			writeError(w, http.StatusNotFound, "no migration run recorded")
			return
		}
		writeJSON(w, http.StatusOK, sum)
	})
}
