package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
	"github.com/iftarinuae/location-resolver/internal/adapter/device"
	"github.com/iftarinuae/location-resolver/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 16 << 10

// LocationService resolves locations for the API. *locator.Service satisfies it.
type LocationService interface {
	Search(ctx context.Context, query string) []domain.Candidate
	Resolve(ctx context.Context, mode domain.Mode, c domain.Coordinate) (domain.ResolvedLocation, error)
	Locate(ctx context.Context, device domain.DeviceLocator) (domain.ResolvedLocation, error)
	Confirm(ctx context.Context, sessionID string, mode domain.Mode, loc domain.ResolvedLocation) (domain.ResolvedLocation, error)
}

// DeviceFactory wraps a reported device outcome in a DeviceLocator.
type DeviceFactory func(src device.Source) domain.DeviceLocator

// Server exposes the locations API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	svc        LocationService
	devices    DeviceFactory
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the /api/locations routes,
// /healthz, /readyz, and /metrics.
func NewServer(addr string, svc LocationService, devices DeviceFactory, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 20 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		svc:     svc,
		devices: devices,
		logger:  logger,
	}

	mux.HandleFunc("GET /api/locations/search", s.handleSearch)
	mux.HandleFunc("GET /api/locations/reverse", s.handleReverse)
	mux.HandleFunc("POST /api/locations/device", s.handleDevice)
	mux.HandleFunc("POST /api/locations/confirm", s.handleConfirm)

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type searchResponse struct {
	Candidates []domain.ResolvedLocation `json:"candidates"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type confirmRequest struct {
	SessionID string      `json:"session_id"`
	Mode      domain.Mode `json:"mode"`
	domain.ResolvedLocation
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	candidates := s.svc.Search(r.Context(), r.URL.Query().Get("q"))

	resp := searchResponse{Candidates: make([]domain.ResolvedLocation, 0, len(candidates))}
	for _, c := range candidates {
		resp.Candidates = append(resp.Candidates, c.Resolved())
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReverse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c, err := domain.ParseCoordinate(q.Get("lat"), q.Get("lon"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	loc, err := s.svc.Resolve(r.Context(), domain.ModePin, c)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, loc)
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	var report device.Report
	if err := decodeBody(w, r, &report); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	loc, err := s.svc.Locate(r.Context(), s.devices(report.Source()))
	if err != nil {
		s.logger.Info("device location failed", "kind", domain.ErrorKind(err), "error", err)
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, loc)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	mode, err := domain.ParseMode(string(req.Mode))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	loc, err := s.svc.Confirm(r.Context(), sessionID, mode, req.ResolvedLocation)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, loc)
}

var errMalformedBody = errors.New("malformed request body")

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errMalformedBody
	}
	return nil
}

func statusFor(err error) int {
	if errors.Is(err, domain.ErrInvalidCoordinate) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := domain.UserMessage(err)
	kind := domain.ErrorKind(err)
	if errors.Is(err, errMalformedBody) {
		msg, kind = err.Error(), "bad_request"
	}
	sharedobs.WriteJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

// AllReady combines readiness checks; the first failure wins.
func AllReady(checkers ...sharedobs.ReadinessChecker) sharedobs.ReadinessChecker {
	return readinessChecks(checkers)
}

type readinessChecks []sharedobs.ReadinessChecker

func (rc readinessChecks) CheckReadiness(ctx context.Context) error {
	for _, c := range rc {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
