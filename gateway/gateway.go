package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"swaproute/crypto"
	"swaproute/native/feetable"
	"swaproute/native/router"
	"swaproute/observability"
	"swaproute/quote"
)

// Executor runs a submitted route to settlement. Satisfied by host.Host.
type Executor interface {
	Execute(ctx context.Context, plan *router.RoutePlan, offer router.Asset) (*router.Asset, error)
}

// Recoverer forwards a balance held at the router to a recipient. Satisfied
// by host.Host; the gateway gates it behind the fee table's admin.
type Recoverer interface {
	Recover(ctx context.Context, asset router.Asset, recipient string) error
}

// Server is the HTTP surface over the router: submission, quoting, and fee
// administration.
type Server struct {
	executor  Executor
	recoverer Recoverer
	table     *feetable.Table
	querier   quote.VenueQuerier
	metrics   *observability.RouterMetrics
	gatherer  prometheus.Gatherer
	limiter   *rate.Limiter
	log       *slog.Logger
}

// Options bundles the server's collaborators.
type Options struct {
	Executor  Executor
	Recoverer Recoverer
	Table     *feetable.Table
	Querier   quote.VenueQuerier
	Metrics   *observability.RouterMetrics
	Gatherer  prometheus.Gatherer
	Limiter   *rate.Limiter
	Log       *slog.Logger
}

// NewServer builds the gateway. A nil logger falls back to the default.
func NewServer(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		executor:  opts.Executor,
		recoverer: opts.Recoverer,
		table:     opts.Table,
		querier:   opts.Querier,
		metrics:   opts.Metrics,
		gatherer:  opts.Gatherer,
		limiter:   opts.Limiter,
		log:       log,
	}
}

// Router assembles the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(s.log))
	r.Use(rateLimit(s.limiter))

	r.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/routes", s.handleSubmitRoute)
		r.Post("/quote", s.handleQuote)
		r.Get("/fees", s.handleListFees)
		r.Put("/fees/{venue}", s.handleSetFee)
		r.Delete("/fees/{venue}", s.handleRemoveFee)
		r.Put("/admin", s.handleUpdateAdmin)
		r.Put("/admin/collector", s.handleUpdateCollector)
		r.Post("/admin/withdraw", s.handleWithdraw)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmitRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	plan, offer, err := parseRouteRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	final, err := s.executor.Execute(r.Context(), plan, offer)
	if err != nil {
		writeError(w, routeErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, routeResponse{
		FinalReceived: final.Amount.String(),
		Asset:         renderInfo(final.Info),
	})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	offer, err := parseAsset(req.Offer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stages, err := parseStages(req.Stages)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, err := quote.SimulateRoute(s.querier, s.table, stages, offer)
	if err != nil {
		s.countQuote("error")
		writeError(w, routeErrorStatus(err), err.Error())
		return
	}
	s.countQuote("ok")
	writeJSON(w, http.StatusOK, quoteResponse{
		Output: q.Output.String(),
		Asset:  renderInfo(q.Asset),
	})
}

func (s *Server) handleListFees(w http.ResponseWriter, r *http.Request) {
	startAfter := r.URL.Query().Get("start_after")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	fees, err := s.table.Fees(startAfter, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]feeWire, len(fees))
	for i, fee := range fees {
		out[i] = feeWire{Venue: fee.Venue, Bps: fee.Bps}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetFee(w http.ResponseWriter, r *http.Request) {
	var req setFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	venue := chi.URLParam(r, "venue")
	if err := s.table.SetFee(req.Caller, venue, req.Bps); err != nil {
		writeError(w, feeErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, feeWire{Venue: venue, Bps: req.Bps})
}

func (s *Server) handleRemoveFee(w http.ResponseWriter, r *http.Request) {
	var req removeFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	venue := chi.URLParam(r, "venue")
	if err := s.table.RemoveFee(req.Caller, venue); err != nil {
		writeError(w, feeErrorStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateAdmin(w http.ResponseWriter, r *http.Request) {
	var req updateAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.table.UpdateAdmin(req.Caller, req.Admin); err != nil {
		writeError(w, feeErrorStatus(err), err.Error())
		return
	}
	s.log.Info("admin updated", "admin", req.Admin)
	writeJSON(w, http.StatusOK, map[string]string{"admin": req.Admin})
}

func (s *Server) handleUpdateCollector(w http.ResponseWriter, r *http.Request) {
	var req updateCollectorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.table.UpdateFeeCollector(req.Caller, req.Collector); err != nil {
		writeError(w, feeErrorStatus(err), err.Error())
		return
	}
	s.log.Info("fee collector updated", "collector", req.Collector)
	writeJSON(w, http.StatusOK, map[string]string{"collector": req.Collector})
}

// handleWithdraw recovers a balance stranded at the router, forwarding it to
// the named recipient. Admin only.
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.table.EnsureAdmin(req.Caller); err != nil {
		writeError(w, feeErrorStatus(err), err.Error())
		return
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recipient, err := crypto.ValidateAddress(req.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, "recipient: "+err.Error())
		return
	}
	if s.recoverer == nil {
		writeError(w, http.StatusServiceUnavailable, "recovery not available")
		return
	}
	if err := s.recoverer.Recover(r.Context(), asset, recipient); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, withdrawResponse{
		Recipient: recipient,
		Amount:    asset.Amount.String(),
		Asset:     renderInfo(asset.Info),
	})
}

func (s *Server) countQuote(outcome string) {
	if s.metrics != nil {
		s.metrics.QuoteRequests.WithLabelValues(outcome).Inc()
	}
}

func routeErrorStatus(err error) int {
	switch {
	case errors.Is(err, router.ErrMinimumReceiveNotMet):
		return http.StatusConflict
	case errors.Is(err, router.ErrZeroAmount),
		errors.Is(err, router.ErrNoStages),
		errors.Is(err, router.ErrEmptyRoute),
		errors.Is(err, router.ErrInvalidPercentageSum),
		errors.Is(err, router.ErrInvalidSplitPath),
		errors.Is(err, router.ErrMismatchedInitialFunds),
		errors.Is(err, router.ErrUnroutableSurplus),
		errors.Is(err, router.ErrAmountOverflow):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func feeErrorStatus(err error) int {
	switch {
	case errors.Is(err, feetable.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, feetable.ErrFeeOutOfRange):
		return http.StatusBadRequest
	case strings.Contains(err.Error(), "venue:"),
		strings.Contains(err.Error(), "new admin:"),
		strings.Contains(err.Error(), "new collector:"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
