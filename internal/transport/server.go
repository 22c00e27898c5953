package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/sdcgo/sdc-core/internal/runtime"
	"github.com/sdcgo/sdc-core/internal/soap"
)

// Handler processes one decoded SOAP request body for a given
// WS-Addressing Action and returns the response body to wrap in an
// envelope, or an error to convert into a SOAP fault (package soap's
// closed error taxonomy).
type Handler func(ctx context.Context, action string, body []byte) ([]byte, error)

// StatusSource reports liveness/readiness facts for the admin endpoints,
// implemented by the provider's top-level wiring (package runtime
// callers), mirroring the teacher's HealthResponse shape.
type StatusSource interface {
	MdibVersion() uint64
	ActiveSubscriptions() int
	DiscoveryCacheSize() int
	Ready() bool
}

// Server is the SDC provider's HTTP(S) endpoint: one path per SOAP
// service (GetService, SetService, ContextService, EventingService),
// plus the teacher's unauthenticated admin surface
// (/health,/healthz,/readyz,/metrics).
type Server struct {
	rt     *runtime.Runtime
	mux    *http.ServeMux
	token  string
	status StatusSource

	requestsServed atomic.Int64
}

// NewServer builds a Server. token, if non-empty, is required as a
// Bearer token on every service path (not the admin surface), matching
// the teacher's bearer-token auth model.
func NewServer(rt *runtime.Runtime, token string, status StatusSource) *Server {
	s := &Server{rt: rt, mux: http.NewServeMux(), token: token, status: status}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/readyz", s.handleReady)
	s.mux.HandleFunc("/metrics", s.handleMetrics)
	return s
}

// RegisterService wires a SOAP service at path (e.g. "/GetService") to
// h. Every request's WS-Addressing Action selects the operation within
// that service; h is responsible for further dispatch.
func (s *Server) RegisterService(path string, h Handler) {
	s.mux.HandleFunc(path, s.wrap(h))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) wrap(h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.requestsServed.Add(1)
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read error", http.StatusBadRequest)
			return
		}
		env, err := soap.Decode(raw)
		if err != nil {
			s.writeFault(w, soap.ToFault(err))
			return
		}
		respBody, err := h(r.Context(), env.Header.Action, env.Body)
		if err != nil {
			s.writeFault(w, soap.ToFault(err))
			return
		}
		replyEnv := soap.Envelope{Header: soap.NewReplyHeader(env.Header.Action+"Response", env.Header)}
		out, err := soap.Encode(replyEnv, respBody)
		if err != nil {
			s.writeFault(w, soap.ToFault(err))
			return
		}
		w.Header().Set("Content-Type", "application/soap+xml; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out)
	}
}

func (s *Server) writeFault(w http.ResponseWriter, f *soap.Fault) {
	status := http.StatusInternalServerError
	if f.Code == soap.CodeSender || f.Code == soap.CodeMustUnderstand {
		status = http.StatusBadRequest
	}
	out, err := soap.Encode(soap.Envelope{}, mustMarshalFault(f))
	if err != nil {
		http.Error(w, f.Reason, status)
		return
	}
	w.Header().Set("Content-Type", "application/soap+xml; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(out)
}

func mustMarshalFault(f *soap.Fault) []byte {
	b, err := json.Marshal(f)
	if err != nil {
		return []byte(f.Reason)
	}
	return b
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil || !s.status.Ready() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ready"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	out := map[string]any{"requests_served": s.requestsServed.Load()}
	if s.status != nil {
		out["mdib_version"] = s.status.MdibVersion()
		out["active_subscriptions"] = s.status.ActiveSubscriptions()
		out["discovery_cache_size"] = s.status.DiscoveryCacheSize()
	}
	_ = json.NewEncoder(w).Encode(out)
}

// ErrUnready reports that a component has no opinion yet (e.g. before
// the MDIB has been seeded). StatusSource methods return no error, so
// nothing in this package returns it.
var ErrUnready = errors.New("transport: not ready")
