package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/contract"
	"github.com/aretw0/contract/pkg/ports"
	"github.com/aretw0/contract/pkg/registry"
	"github.com/aretw0/contract/pkg/schema"
	"github.com/aretw0/contract/pkg/service"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Checker defines the operations the HTTP surface exposes.
type Checker interface {
	Parse(annotation string) (schema.Node, error)
	Check(ctx context.Context, name, annotation string, raw []byte) (service.Result, error)
	Contracts() []service.ContractInfo
	Contract(name string) (service.ContractInfo, error)
	CheckContract(ctx context.Context, name string, req service.ContractCheck) (service.Result, error)
	Run(ctx context.Context, name string, named map[string][]byte) (service.RunResult, error)
	Violations(ctx context.Context, limit int) ([]ports.Entry, error)
}

// ParseRequest is the body of POST /v1/parse.
type ParseRequest struct {
	Annotation string `json:"annotation"`
}

// ParseResponse describes a parsed annotation.
type ParseResponse struct {
	Annotation string      `json:"annotation"`
	Descriptor schema.Node `json:"descriptor"`
}

// CheckRequest is the body of POST /v1/check. Value is any JSON document.
type CheckRequest struct {
	Name       string          `json:"name,omitempty"`
	Annotation string          `json:"annotation"`
	Value      json.RawMessage `json:"value"`
}

// ContractCheckRequest is the body of POST /v1/contracts/{name}/check.
type ContractCheckRequest struct {
	Args    []json.RawMessage          `json:"args,omitempty"`
	Named   map[string]json.RawMessage `json:"named,omitempty"`
	Returns json.RawMessage            `json:"returns,omitempty"`
}

// RunRequest is the body of POST /v1/contracts/{name}/run.
type RunRequest struct {
	Args map[string]json.RawMessage `json:"args,omitempty"`
}

// ErrorResponse carries a request or declaration failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server implements the HTTP handlers.
type Server struct {
	Checker Checker
	Logger  *slog.Logger
}

// Option configures NewHandler.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// WithLogger sets the logger used for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(o *options) {
		o.gatherer = g
	}
}

// NewHandler creates a new HTTP handler for the checker.
func NewHandler(checker Checker, opts ...Option) http.Handler {
	o := &options{logger: slog.Default(), gatherer: prometheus.DefaultGatherer}
	for _, opt := range opts {
		opt(o)
	}
	s := &Server{Checker: checker, Logger: o.logger}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Handle("/metrics", promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/parse", s.Parse)
		r.Post("/check", s.Check)
		r.Get("/contracts", s.ListContracts)
		r.Get("/contracts/{name}", s.GetContract)
		r.Post("/contracts/{name}/check", s.CheckContract)
		r.Post("/contracts/{name}/run", s.RunContract)
		r.Get("/violations", s.ListViolations)
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Parse handles the POST /v1/parse request.
func (s *Server) Parse(w http.ResponseWriter, r *http.Request) {
	var body ParseRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, http.StatusBadRequest, "Parse: invalid request body", err)
		return
	}

	node, err := s.Checker.Parse(body.Annotation)
	if err != nil {
		s.fail(w, statusOf(err), "Parse failed", err)
		return
	}
	s.write(w, http.StatusOK, ParseResponse{Annotation: body.Annotation, Descriptor: node})
}

// Check handles the POST /v1/check request.
func (s *Server) Check(w http.ResponseWriter, r *http.Request) {
	var body CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, http.StatusBadRequest, "Check: invalid request body", err)
		return
	}
	if len(body.Value) == 0 {
		body.Value = json.RawMessage("null")
	}

	res, err := s.Checker.Check(r.Context(), body.Name, body.Annotation, body.Value)
	if err != nil {
		s.fail(w, statusOf(err), "Check failed", err)
		return
	}
	s.write(w, http.StatusOK, res)
}

// ListContracts handles the GET /v1/contracts request.
func (s *Server) ListContracts(w http.ResponseWriter, r *http.Request) {
	s.write(w, http.StatusOK, s.Checker.Contracts())
}

// GetContract handles the GET /v1/contracts/{name} request.
func (s *Server) GetContract(w http.ResponseWriter, r *http.Request) {
	info, err := s.Checker.Contract(chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, statusOf(err), "GetContract failed", err)
		return
	}
	s.write(w, http.StatusOK, info)
}

// CheckContract handles the POST /v1/contracts/{name}/check request.
func (s *Server) CheckContract(w http.ResponseWriter, r *http.Request) {
	var body ContractCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, http.StatusBadRequest, "CheckContract: invalid request body", err)
		return
	}

	req := service.ContractCheck{Returns: body.Returns}
	for _, raw := range body.Args {
		req.Args = append(req.Args, raw)
	}
	if len(body.Named) > 0 {
		req.Named = make(map[string][]byte, len(body.Named))
		for k, raw := range body.Named {
			req.Named[k] = raw
		}
	}

	res, err := s.Checker.CheckContract(r.Context(), chi.URLParam(r, "name"), req)
	if err != nil {
		s.fail(w, statusOf(err), "CheckContract failed", err)
		return
	}
	s.write(w, http.StatusOK, res)
}

// RunContract handles the POST /v1/contracts/{name}/run request. A
// violation is reported in the body with status 200, like a failed check.
func (s *Server) RunContract(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, http.StatusBadRequest, "RunContract: invalid request body", err)
		return
	}

	named := make(map[string][]byte, len(body.Args))
	for k, raw := range body.Args {
		named[k] = raw
	}

	res, err := s.Checker.Run(r.Context(), chi.URLParam(r, "name"), named)
	if err != nil {
		s.fail(w, statusOf(err), "RunContract failed", err)
		return
	}
	s.write(w, http.StatusOK, res)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.write(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.write(w, http.StatusOK, map[string]string{
		"app":     "contract-http",
		"version": strings.TrimSpace(contract.Version),
	})
}

// ListViolations handles the GET /v1/violations request.
// The optional limit query parameter defaults to 50.
func (s *Server) ListViolations(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.fail(w, http.StatusBadRequest, "ListViolations: invalid limit", errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	entries, err := s.Checker.Violations(r.Context(), limit)
	if err != nil {
		s.fail(w, statusOf(err), "ListViolations failed", err)
		return
	}
	if entries == nil {
		entries = []ports.Entry{}
	}
	s.write(w, http.StatusOK, entries)
}

// statusOf maps declaration and lookup failures to HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrNoJournal),
		errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case schema.IsParseError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string, err error) {
	if status >= http.StatusInternalServerError {
		s.Logger.Error(msg, "error", err)
	} else {
		s.Logger.Warn(msg, "error", err)
	}
	s.write(w, status, ErrorResponse{Error: err.Error()})
}

func (s *Server) write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "error", err)
	}
}
