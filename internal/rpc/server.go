// Package rpc exposes the crawler's network summary over a minimal
// JSON-RPC 2.0 endpoint: a single method, getmetrics, that returns the
// current NetworkSummary.
package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"

	"github.com/runziggurat/zcash-sub001/internal/crawler"
)

// MaxResponseSize caps the body httprouter will accept on the way in;
// the crawler's own summary payload is bounded by the known-network size,
// but a caller-supplied request body is capped defensively.
const MaxResponseSize = 200_000_000

// request is the subset of JSON-RPC 2.0 request fields getmetrics cares
// about.
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SummaryProvider supplies the current network summary on demand. A
// *crawler.KnownNetwork plus start time is the production implementation;
// tests can substitute a stub.
type SummaryProvider func() crawler.NetworkSummary

// Server is the JSON-RPC 2.0 HTTP server backing getmetrics.
type Server struct {
	router  *httprouter.Router
	summary SummaryProvider
	log     *logrus.Entry
}

// NewServer builds a Server that answers getmetrics from summary.
func NewServer(summary SummaryProvider, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Server{router: httprouter.New(), summary: summary, log: log}
	s.router.POST("/", s.handleRPC)
	return s
}

// Handler returns the http.Handler to mount, e.g. via http.ListenAndServe.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxResponseSize)

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, nil, -32700, "parse error")
		return
	}

	switch req.Method {
	case "getmetrics":
		s.writeResult(w, req.ID, s.summary())
	default:
		s.writeError(w, req.ID, -32601, "method not found")
	}
}

func (s *Server) writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response{JSONRPC: "2.0", ID: id, Result: result}); err != nil {
		s.log.WithError(err).Warn("failed to encode rpc response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK) // JSON-RPC reports errors in-body, not via HTTP status
	_ = json.NewEncoder(w).Encode(response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}
