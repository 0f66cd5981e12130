// Package restapi exposes tag read/write operations over HTTP using
// chi for routing.
package restapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/plcgo/goenip/cip"
	"github.com/plcgo/goenip/logx"
	"github.com/plcgo/goenip/tagio"
)

// TagResponse is the JSON response for a tag read. Value is the
// scalar's display form, e.g. "42" or "3.5"; Type names the CIP
// elementary type the value was decoded as.
type TagResponse struct {
	Tag       string `json:"tag"`
	Type      string `json:"type"`
	Value     string `json:"value"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// WriteRequest is the JSON request body for a tag write: Type is a CIP
// elementary type name (DINT, REAL, ...) and Value is its decimal or
// floating-point text form.
type WriteRequest struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// WriteResponse is the JSON response after a tag write.
type WriteResponse struct {
	Tag       string `json:"tag"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

type handlers struct {
	backend tagio.Backend
	log     logx.Logger
}

// NewRouter builds a chi.Router exposing read/write endpoints against
// backend.
//
//	GET /tags/{tag}?count=1
//	PUT /tags/{tag}
func NewRouter(backend tagio.Backend, opts ...Option) chi.Router {
	h := &handlers{backend: backend, log: logx.NewNop()}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Get("/tags/*", h.handleRead)
	r.Put("/tags/*", h.handleWrite)
	r.Get("/healthz", h.handleHealth)
	return r
}

// Option configures the router's handlers.
type Option func(*handlers)

// WithLogger injects a logger.
func WithLogger(l logx.Logger) Option {
	return func(h *handlers) {
		if l != nil {
			h.log = l
		}
	}
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func tagFromWildcard(r *http.Request) string {
	tag := chi.URLParam(r, "*")
	unescaped, err := url.PathUnescape(tag)
	if err != nil {
		return tag
	}
	return unescaped
}

func (h *handlers) handleRead(w http.ResponseWriter, r *http.Request) {
	tag := tagFromWildcard(r)
	if tag == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing tag name"})
		return
	}

	count := 1
	if raw := r.URL.Query().Get("count"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &count); err != nil || count < 1 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid count"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	value, err := h.backend.ReadTag(ctx, tag, count)
	resp := TagResponse{Tag: tag, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if err != nil {
		resp.Error = err.Error()
		h.writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	typeCode := cip.TypeCode(value.TypeCode)
	resp.Type = cip.TypeName(typeCode)
	resp.Value = cip.FormatScalar(typeCode, value.Data)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) handleWrite(w http.ResponseWriter, r *http.Request) {
	tag := tagFromWildcard(r)
	if tag == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing tag name"})
		return
	}

	var req WriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	typeCode, err := cip.ParseTypeName(req.Type)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	data, err := cip.EncodeScalar(typeCode, req.Value)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("encode %s as %s: %v", req.Value, req.Type, err)})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err = h.backend.WriteTag(ctx, tag, tagio.Value{TypeCode: uint16(typeCode), Data: data})
	resp := WriteResponse{Tag: tag, Success: err == nil, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if err != nil {
		resp.Error = err.Error()
		h.writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
