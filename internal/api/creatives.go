package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/patrickwarner/mediahub/internal/creative"
	"github.com/patrickwarner/mediahub/internal/middleware"
	"github.com/patrickwarner/mediahub/internal/models"
)

// MatchCreativesHandler matches the images of an uploaded ZIP archive to the
// newsletter placements of a publication. The archive is sent as the "file"
// field of a multipart form and the publication as the "publication" query
// parameter.
func (s *Server) MatchCreativesHandler(w http.ResponseWriter, r *http.Request) {
	s.instrument("creative_match", w, r, func(w http.ResponseWriter) {
		log := middleware.LoggerFromRequest(r, s.Logger)
		if s.MatchLimiter != nil && !s.MatchLimiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "too many creative uploads, retry shortly")
			return
		}
		pubID := r.URL.Query().Get("publication")
		if pubID == "" {
			writeError(w, http.StatusBadRequest, "publication is required")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
		if err := r.ParseMultipartForm(s.MaxUploadBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()

		pub, err := s.Publications.GetPublication(r.Context(), pubID)
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, "publication not found")
			return
		}
		if err != nil {
			log.Error("get publication", zap.String("publication_id", pubID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		res, err := creative.MatchArchive(file, header.Size, creative.PlacementsFor(pub))
		if err != nil {
			log.Warn("creative archive rejected",
				zap.String("publication_id", pubID),
				zap.String("file", header.Filename),
				zap.Error(err))
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		for range res.Matches {
			s.Metrics.IncrementCreativeMatches("matched")
		}
		for range res.Unmatched {
			s.Metrics.IncrementCreativeMatches("unmatched")
		}
		log.Info("matched creatives",
			zap.String("publication_id", pubID),
			zap.Int("matched", len(res.Matches)),
			zap.Int("unmatched", len(res.Unmatched)),
			zap.Int("skipped", len(res.Skipped)))
		writeJSON(w, http.StatusOK, res)
	})
}
