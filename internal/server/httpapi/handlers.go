package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/teadiary/internal/common"
	"github.com/dmitrijs2005/teadiary/internal/server/models"
)

type errorBody struct {
	Message string `json:"message"`
}

type healthBody struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Storage   string    `json:"storage"`
}

type statsBody struct {
	Partitions  int       `json:"partitions"`
	Visits      int64     `json:"visits"`
	LastUpdated time.Time `json:"lastUpdated"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Message: msg})
}

func (s *Server) fail(w http.ResponseWriter, req *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, "bin not found")
	case errors.Is(err, common.ErrorValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrorAlreadyExists):
		writeError(w, http.StatusConflict, "bin name already taken")
	default:
		s.logger.Error(req.Context(), "request failed", "path", req.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func readBody(w http.ResponseWriter, req *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "unreadable body")
		return nil, false
	}
	return data, true
}

func etag(b *models.Bin) string {
	sum := sha256.Sum256(b.Content)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func (s *Server) handleHealth(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeJSON(w, http.StatusOK, healthBody{
		Status:    "ok",
		Version:   s.opts.Version,
		Timestamp: s.now().UTC(),
		Storage:   s.opts.Storage,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, req *http.Request) {
	n, err := s.bins.Count(req.Context())
	if err != nil {
		s.fail(w, req, err)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, statsBody{
		Partitions:  n,
		Visits:      s.visits.Add(1),
		LastUpdated: s.now().UTC(),
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, req *http.Request) {
	data, ok := readBody(w, req)
	if !ok {
		return
	}
	b, err := s.bins.Create(req.Context(), req.Header.Get(common.BinNameHeaderName), data)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	s.logger.Info(req.Context(), "bin created", "id", b.ID, "name", b.Name)
	writeJSON(w, http.StatusOK, b.Envelope(true))
}

func (s *Server) handleLookup(w http.ResponseWriter, req *http.Request) {
	name := req.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	b, err := s.bins.GetByName(req.Context(), name)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, b.Envelope(false))
}

func (s *Server) handleGet(w http.ResponseWriter, req *http.Request) {
	b, err := s.bins.Get(req.Context(), req.PathValue("id"))
	if err != nil {
		s.fail(w, req, err)
		return
	}

	tag := etag(b)
	w.Header().Set("ETag", tag)
	w.Header().Set("Cache-Control", "no-cache")
	if req.Header.Get("If-None-Match") == tag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, b.Envelope(true))
}

func (s *Server) handlePut(w http.ResponseWriter, req *http.Request) {
	data, ok := readBody(w, req)
	if !ok {
		return
	}
	b, err := s.bins.Put(req.Context(), req.PathValue("id"), data)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	w.Header().Set("ETag", etag(b))
	writeJSON(w, http.StatusOK, b.Envelope(true))
}
