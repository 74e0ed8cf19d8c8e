package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"bot-sim-lab/internal/bots"
	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/marketdata"
	"bot-sim-lab/internal/observability"
	"bot-sim-lab/internal/simulation"
	"bot-sim-lab/internal/storage"
	"bot-sim-lab/internal/storeset"
	"bot-sim-lab/internal/verification"
)

// maxBodyBytes bounds POST /runs bodies, inline candles included.
const maxBodyBytes = 32 << 20

// Server serves simulation runs over HTTP.
type Server struct {
	stores   *storeset.Set
	runner   *simulation.Runner
	verifier *verification.ReplayVerifier
	logger   *log.Logger

	// State
	mu          sync.Mutex
	started     time.Time
	runsServed  int
	lastRunTime time.Time
}

// NewServer wires a runner and verifier over stores.
func NewServer(stores *storeset.Set, annualFactor float64, logger *log.Logger) *Server {
	return &Server{
		stores: stores,
		runner: simulation.NewRunner(simulation.RunnerOptions{
			CandleStore:  stores.Candles,
			RunStore:     stores.Runs,
			DealStore:    stores.Deals,
			EquityStore:  stores.Equity,
			AnnualFactor: annualFactor,
		}),
		verifier: verification.NewReplayVerifier(verification.ReplayVerifierOptions{
			RunStore:     stores.Runs,
			DealStore:    stores.Deals,
			EquityStore:  stores.Equity,
			CandleStore:  stores.Candles,
			AnnualFactor: annualFactor,
		}),
		logger:  logger,
		started: time.Now(),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /runs", s.handleCreateRun)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /runs/{id}/deals", s.handleGetDeals)
	mux.HandleFunc("GET /runs/{id}/verify", s.handleVerifyRun)

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /status", s.handleStatus)

	// Prometheus metrics
	mux.Handle("GET /metrics", observability.Handler())

	return s.instrument(mux)
}

// statusRecorder captures the response code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument logs and counts every request by its matched route.
func (s *Server) instrument(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		mux.ServeHTTP(rec, r)

		_, route := mux.Handler(r)
		if route == "" {
			route = "unmatched"
		}
		observability.RecordHTTPRequest(route, strconv.Itoa(rec.code))
		s.logger.Printf("%s %s -> %d (%v)", r.Method, r.URL.Path, rec.code, time.Since(start))
	})
}

// handleCreateRun executes one simulation and returns its result.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var body runRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "decode request: "+err.Error())
		return
	}
	if !domain.BotType(body.BotType).Valid() {
		writeError(w, http.StatusBadRequest, "bot_type must be dca, grid or signal")
		return
	}

	req := body.toRequest()
	var (
		out *simulation.Outcome
		err error
	)
	if len(body.Candles) > 0 {
		candles := body.domainCandles()
		if err := marketdata.CheckOrder(candles); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		// The stored series must match what gets simulated, or the run cannot replay.
		if _, err := storage.ImportCandles(r.Context(), s.stores.Candles, req.Series, candles); err != nil {
			writeError(w, statusFor(err), "store candles: "+err.Error())
			return
		}
		out, err = s.runner.Execute(r.Context(), req, candles)
	} else {
		out, err = s.runner.Run(r.Context(), req)
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	s.mu.Lock()
	s.runsServed++
	s.lastRunTime = time.Now()
	s.mu.Unlock()

	resp := runResponse{
		Stored:      out.Stored,
		Summary:     toRunSummary(out.Summary),
		Deals:       make([]deal, len(out.Result.Deals)),
		EquityCurve: out.Result.EquityCurve,
	}
	for i := range out.Result.Deals {
		resp.Deals[i] = toDeal(&out.Result.Deals[i])
	}
	for _, c := range out.Decision.GOCriteria {
		if !c.Pass {
			resp.GateReasons = append(resp.GateReasons, c.Name+": "+c.Actual)
		}
	}
	for _, c := range out.Decision.NOGOChecks {
		if !c.Pass {
			resp.GateReasons = append(resp.GateReasons, c.Name+": "+c.Actual)
		}
	}

	code := http.StatusCreated
	if !out.Stored {
		code = http.StatusOK
	}
	writeJSON(w, code, resp)
}

// handleListRuns lists stored runs, optionally filtered by ?bot_type=.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	var (
		runs []*domain.RunSummary
		err  error
	)
	if bt := r.URL.Query().Get("bot_type"); bt != "" {
		if !domain.BotType(bt).Valid() {
			writeError(w, http.StatusBadRequest, "bot_type must be dca, grid or signal")
			return
		}
		runs, err = s.stores.Runs.GetByBotType(r.Context(), domain.BotType(bt))
	} else {
		runs, err = s.stores.Runs.GetAll(r.Context())
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	out := make([]runSummary, len(runs))
	for i, run := range runs {
		out[i] = toRunSummary(run)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.stores.Runs.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toRunSummary(run))
}

func (s *Server) handleGetDeals(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if _, err := s.stores.Runs.GetByID(r.Context(), runID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	deals, err := s.stores.Deals.GetByRunID(r.Context(), runID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	out := make([]deal, len(deals))
	for i, d := range deals {
		out[i] = toDeal(d)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleVerifyRun replays a stored run and reports divergences.
func (s *Server) handleVerifyRun(w http.ResponseWriter, r *http.Request) {
	res, err := s.verifier.VerifyRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	type divergence struct {
		Field    string `json:"field"`
		Expected any    `json:"expected"`
		Actual   any    `json:"actual"`
	}
	resp := struct {
		RunID       string       `json:"run_id"`
		Match       bool         `json:"match"`
		Divergences []divergence `json:"divergences"`
	}{RunID: res.RunID, Match: res.Match, Divergences: []divergence{}}
	for _, d := range res.Divergences {
		resp.Divergences = append(resp.Divergences, divergence{d.Field, d.Expected, d.Actual})
	}
	writeJSON(w, http.StatusOK, resp)
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status     string    `json:"status"`
	Uptime     string    `json:"uptime"`
	Started    time.Time `json:"started"`
	RunsServed int       `json:"runs_served"`
	LastRun    time.Time `json:"last_run,omitempty"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:     "running",
		Uptime:     time.Since(s.started).String(),
		Started:    s.started,
		RunsServed: s.runsServed,
		LastRun:    s.lastRunTime,
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, verification.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, simulation.ErrNoCandles),
		errors.Is(err, verification.ErrCandlesNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, bots.ErrMissingParam),
		errors.Is(err, bots.ErrInvalidParamType),
		errors.Is(err, bots.ErrInvalidParam),
		errors.Is(err, bots.ErrUnknownBotType),
		errors.Is(err, bots.ErrSignalLengthMismatch),
		errors.Is(err, simulation.ErrInvalidRequest),
		errors.Is(err, simulation.ErrNegativeSignalLag),
		errors.Is(err, storage.ErrInvalidInput),
		errors.Is(err, marketdata.ErrUnorderedCandles),
		errors.Is(err, marketdata.ErrInvalidRow):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
