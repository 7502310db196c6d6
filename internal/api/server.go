// Package api exposes the platform over HTTP JSON and a websocket event stream.
//
// The caller of every mutating request is whatever address the X-Caller header names,
// admin included. Nothing here checks that the sender controls that address, so the
// server must only be reachable through a trusted gateway that authenticates the
// wallet and sets the header itself.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/observability"
	"acdm-platform/internal/service"
	"acdm-platform/internal/verification"
)

// CallerHeader carries the caller's address on every request.
const CallerHeader = "X-Caller"

// Options for creating the API handler.
type Options struct {
	Service     *service.Service
	Hub         *Hub                   // optional; /api/v1/stream is not mounted without it
	RateLimiter *RateLimiter           // optional
	Verifier    *verification.Verifier // optional; mounts GET /api/v1/verify
	MetricsPath string                 // empty disables /metrics on this router
	Logger      logrus.FieldLogger
}

// Server holds the HTTP handlers.
type Server struct {
	svc      *service.Service
	hub      *Hub
	verifier *verification.Verifier
	log      *logrus.Entry
}

// NewHandler builds the router.
func NewHandler(opts Options) http.Handler {
	s := &Server{
		svc:      opts.Service,
		hub:      opts.Hub,
		verifier: opts.Verifier,
		log:      observability.Component(opts.Logger, "api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/status", s.handleStatus)
	if opts.MetricsPath != "" {
		r.Handle(opts.MetricsPath, observability.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if opts.RateLimiter != nil {
			r.Use(opts.RateLimiter.Handler)
		}

		r.Get("/state", s.handleState)

		r.Get("/referrals", s.handleReferrals)
		r.Post("/referrals", s.handleRegister)
		r.Get("/referrals/{address}", s.handleReferrer)

		r.Get("/rounds", s.handleRounds)
		r.Post("/rounds/sale", s.handleStartSale)
		r.Post("/rounds/trade", s.handleStartTrade)
		r.Get("/rounds/{seq}", s.handleRound)
		r.Get("/status-round/{number}", s.handleStatusRound)

		r.Post("/purchases", s.handleBuy)

		r.Get("/orders", s.handleOrders)
		r.Post("/orders", s.handleAddOrder)
		r.Get("/orders/{id}", s.handleOrder)
		r.Delete("/orders/{id}", s.handleRemoveOrder)
		r.Post("/orders/{id}/redeem", s.handleRedeem)

		r.Post("/approvals", s.handleApprove)
		r.Get("/accounts/{address}", s.handleAccount)

		if s.verifier != nil {
			r.Get("/verify", s.handleVerify)
		}
		if s.hub != nil {
			r.Get("/stream", s.hub.ServeHTTP)
		}
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status        string        `json:"status"`
	Uptime        string        `json:"uptime"`
	Service       service.Stats `json:"service"`
	StreamClients int           `json:"stream_clients"`
	Rounds        int           `json:"rounds"`
	OpenOrders    int           `json:"open_orders"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.svc.Stats()
	resp := StatusResponse{
		Status:  "running",
		Uptime:  time.Since(stats.Started).Round(time.Second).String(),
		Service: stats,
	}
	if snap, err := s.svc.Snapshot(r.Context()); err == nil {
		resp.Rounds = snap.RoundCount
		resp.OpenOrders = snap.OpenOrders
	}
	if s.hub != nil {
		resp.StreamClients = s.hub.Clients()
	}
	writeJSON(w, http.StatusOK, resp)
}

// caller parses the X-Caller header.
func caller(r *http.Request) (domain.Address, error) {
	v := r.Header.Get(CallerHeader)
	if v == "" {
		return "", badRequest("missing %s header", CallerHeader)
	}
	return domain.ParseAddress(v)
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("decode request: %v", err)
	}
	return nil
}
