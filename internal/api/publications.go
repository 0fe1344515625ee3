package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/patrickwarner/mediahub/internal/db"
	"github.com/patrickwarner/mediahub/internal/formats"
	"github.com/patrickwarner/mediahub/internal/middleware"
	"github.com/patrickwarner/mediahub/internal/models"
)

// AdFormat is one newsletter ad as shown in format listings.
type AdFormat struct {
	NewsletterIndex  int                `json:"newsletter_index"`
	Newsletter       string             `json:"newsletter"`
	AdIndex          int                `json:"ad_index"`
	Name             string             `json:"name"`
	Position         string             `json:"position,omitempty"`
	LegacyDimensions *string            `json:"legacy_dimensions,omitempty"`
	Migrated         bool               `json:"migrated"`
	Dimensions       formats.Dimensions `json:"dimensions"`
	Category         formats.Category   `json:"category,omitempty"`
	Display          string             `json:"display"`
}

// PublicationFormats lists the newsletter ad formats of a publication.
type PublicationFormats struct {
	PublicationID string     `json:"publication_id"`
	Name          string     `json:"name"`
	Ads           []AdFormat `json:"ads"`
}

func listAdFormats(pub *models.Publication) []AdFormat {
	out := []AdFormat{}
	for n, nl := range pub.Channels.Newsletters {
		for a, ad := range nl.AdvertisingOpportunities {
			out = append(out, adFormat(nl.Name, n, a, ad))
		}
	}
	return out
}

func adFormat(newsletter string, n, a int, ad models.NewsletterAd) AdFormat {
	af := AdFormat{
		NewsletterIndex:  n,
		Newsletter:       newsletter,
		AdIndex:          a,
		Name:             ad.Name,
		Position:         ad.Position,
		LegacyDimensions: ad.Dimensions,
		Migrated:         ad.HasFormat(),
	}
	if dims, ok := ad.EffectiveDimensions(); ok {
		af.Dimensions = dims
		af.Category = formats.Classify(dims)
		af.Display = formats.DisplayDimensions(dims)
	}
	return af
}

// PublicationFormatsHandler returns every newsletter ad of a publication with
// its effective dimensions, category and display string.
func (s *Server) PublicationFormatsHandler(w http.ResponseWriter, r *http.Request) {
	s.instrument("publication_formats", w, r, func(w http.ResponseWriter) {
		log := middleware.LoggerFromRequest(r, s.Logger)
		id := mux.Vars(r)["id"]
		pub, err := s.Publications.GetPublication(r.Context(), id)
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, "publication not found")
			return
		}
		if err != nil {
			log.Error("get publication", zap.String("publication_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, PublicationFormats{
			PublicationID: pub.ID.Hex(),
			Name:          pub.Name(),
			Ads:           listAdFormats(pub),
		})
	})
}

// UpdateAdFormatHandler sets the format of one newsletter ad. A null body or
// an empty dimensions list clears the format.
func (s *Server) UpdateAdFormatHandler(w http.ResponseWriter, r *http.Request) {
	s.instrument("update_ad_format", w, r, func(w http.ResponseWriter) {
		log := middleware.LoggerFromRequest(r, s.Logger)
		vars := mux.Vars(r)
		id := vars["id"]
		nl, _ := strconv.Atoi(vars["nl"])
		adIdx, _ := strconv.Atoi(vars["ad"])

		var in *formats.Format
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		f, err := formats.Validate(in)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		pub, err := s.Publications.GetPublication(r.Context(), id)
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, "publication not found")
			return
		}
		if err != nil {
			log.Error("get publication", zap.String("publication_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		ad, err := pub.Ad(nl, adIdx)
		if err != nil {
			writeError(w, http.StatusNotFound, "newsletter ad not found")
			return
		}

		change := models.FormatChange{Newsletter: nl, Ad: adIdx, AdName: ad.Name, Format: f}
		if err := s.Publications.SetAdFormats(r.Context(), pub.ID, []models.FormatChange{change}); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				writeError(w, http.StatusConflict, "newsletter ad changed, reload and retry")
				return
			}
			log.Error("update ad format",
				zap.String("publication_id", id),
				zap.Int("newsletter", nl),
				zap.Int("ad", adIdx),
				zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to update format")
			return
		}
		ad.Format = f
		if f != nil {
			s.Metrics.IncrementClassifications(string(formats.Classify(f.Dimensions)))
		}

		s.notifyUpdate(r.Context(), log, formatUpdate(pub.ID.Hex(), nl, adIdx, f))
		log.Info("updated newsletter ad format",
			zap.String("publication_id", id),
			zap.Int("newsletter", nl),
			zap.Int("ad", adIdx))

		writeJSON(w, http.StatusOK, adFormat(pub.Channels.Newsletters[nl].Name, nl, adIdx, *ad))
	})
}

func formatUpdate(pubID string, nl, ad int, f *formats.Format) db.FormatUpdate {
	u := db.FormatUpdate{PublicationID: pubID, Newsletter: nl, Ad: ad, Dimensions: []string{}}
	if f != nil {
		u.Dimensions = formats.All(f.Dimensions)
	}
	return u
}
