package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/patrickwarner/mediahub/internal/formats"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 64 << 10

// FormatOptionsHandler returns the selector catalog grouped by category.
func (s *Server) FormatOptionsHandler(w http.ResponseWriter, r *http.Request) {
	s.instrument("format_options", w, r, func(w http.ResponseWriter) {
		writeJSON(w, http.StatusOK, formats.Options())
	})
}

// classifyRequest is the body of a classify call.
type classifyRequest struct {
	Dimensions formats.Dimensions `json:"dimensions"`
}

// ClassifyResponse describes a dimensions value the way listings show it.
type ClassifyResponse struct {
	Category formats.Category  `json:"category"`
	Primary  string            `json:"primary"`
	All      []string          `json:"all"`
	Display  string            `json:"display"`
	Labels   map[string]string `json:"labels"`
}

func describe(d formats.Dimensions) ClassifyResponse {
	primary, _ := formats.Primary(d)
	all := formats.All(d)
	labels := make(map[string]string, len(all))
	for _, v := range all {
		labels[v] = formats.Label(v)
	}
	return ClassifyResponse{
		Category: formats.Classify(d),
		Primary:  primary,
		All:      all,
		Display:  formats.DisplayDimensions(d),
		Labels:   labels,
	}
}

// ClassifyHandler classifies a dimensions value. An empty value is rejected
// because it carries no format.
func (s *Server) ClassifyHandler(w http.ResponseWriter, r *http.Request) {
	s.instrument("format_classify", w, r, func(w http.ResponseWriter) {
		var req classifyRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if _, ok := formats.Primary(req.Dimensions); !ok {
			writeError(w, http.StatusBadRequest, formats.ErrNoFormat.Error())
			return
		}
		resp := describe(req.Dimensions)
		s.Metrics.IncrementClassifications(string(resp.Category))
		writeJSON(w, http.StatusOK, resp)
	})
}

// NormalizeHandler cleans a selector payload. The body is the selector's
// change event: a format object, or null when the selection was cleared.
func (s *Server) NormalizeHandler(w http.ResponseWriter, r *http.Request) {
	s.instrument("format_normalize", w, r, func(w http.ResponseWriter) {
		var f *formats.Format
		if err := decodeJSON(r, &f); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		out, err := formats.Validate(f)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, out)
	})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}
