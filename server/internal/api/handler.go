package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/repowatch/repowatch/pkg/types"
	"github.com/repowatch/repowatch/server/internal/alerts"
	"github.com/repowatch/repowatch/server/internal/notify"
	"github.com/repowatch/repowatch/server/internal/store"
)

const maxBodyBytes = 1 << 20

// Option configures a Handler.
type Option func(*Handler)

// WithGatherer serves g at GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option { return func(h *Handler) { h.gatherer = g } }

// WithSweeper enables POST /api/v1/maintenance.
func WithSweeper(s *alerts.Sweeper) Option { return func(h *Handler) { h.sweeper = s } }

// ChannelLister reports the notification channel registry.
type ChannelLister interface {
	Channels() []notify.Channel
}

// WithChannels enables GET /api/v1/channels.
func WithChannels(l ChannelLister) Option { return func(h *Handler) { h.channels = l } }

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	engine   *alerts.Engine
	store    *store.Store
	gatherer prometheus.Gatherer
	sweeper  *alerts.Sweeper
	channels ChannelLister
	mux      *http.ServeMux
}

// New creates a Handler wired to the alert engine and snapshot store and
// registers all routes.
func New(engine *alerts.Engine, st *store.Store, opts ...Option) http.Handler {
	h := &Handler{engine: engine, store: st, mux: http.NewServeMux()}
	for _, o := range opts {
		o(h)
	}

	h.mux.HandleFunc("GET /api/v1/health", h.health)
	h.mux.HandleFunc("GET /api/v1/stats", h.stats)

	h.mux.HandleFunc("GET /api/v1/repositories", h.listRepositories)
	// Repository names contain a slash: accept owner/name or a single escaped segment.
	h.mux.HandleFunc("GET /api/v1/repositories/{repo}", h.getRepository)
	h.mux.HandleFunc("GET /api/v1/repositories/{owner}/{name}", h.getRepository)
	h.mux.HandleFunc("POST /api/v1/repositories/{repo}/metrics", h.submitMetrics)
	h.mux.HandleFunc("POST /api/v1/repositories/{owner}/{name}/metrics", h.submitMetrics)

	h.mux.HandleFunc("GET /api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("GET /api/v1/alerts/{id}", h.getAlert)
	h.mux.HandleFunc("POST /api/v1/alerts/{id}/acknowledge", h.acknowledge)
	h.mux.HandleFunc("POST /api/v1/alerts/{id}/suppress", h.suppress)
	h.mux.HandleFunc("POST /api/v1/alerts/resolve", h.resolve)

	h.mux.HandleFunc("GET /api/v1/history", h.history)
	h.mux.HandleFunc("GET /api/v1/suppressions", h.suppressions)
	h.mux.HandleFunc("GET /api/v1/thresholds", h.thresholds)

	if h.channels != nil {
		h.mux.HandleFunc("GET /api/v1/channels", h.listChannels)
	}
	if h.sweeper != nil {
		h.mux.HandleFunc("POST /api/v1/maintenance", h.maintenance)
	}
	if h.gatherer != nil {
		h.mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns the worst active severity and headline counts.
func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	active := h.engine.Active()
	resp := HealthResponse{
		State:        stateFromAlerts(active),
		ActiveAlerts: len(active),
		Repositories: len(h.store.List()),
		PendingTasks: h.engine.Statistics().PendingTasks,
	}
	for _, a := range active {
		if a.Severity == alerts.SeverityCritical {
			resp.CriticalAlerts++
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, h.engine.Statistics())
}

func (h *Handler) listRepositories(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, h.store.List())
}

// getRepository returns the last snapshot of a repository and its active
// alerts. Entries past the store TTL are treated as not found.
func (h *Handler) getRepository(w http.ResponseWriter, r *http.Request) {
	repo := repoFromPath(r)
	e, ok := h.store.Fresh(repo)
	if !ok {
		jsonErr(w, http.StatusNotFound, "repository not found")
		return
	}
	jsonResp(w, http.StatusOK, RepositoryResponse{
		Repository: e.Repository,
		Snapshot:   e.Snapshot,
		LastSeen:   e.UpdatedAt.UTC().Format(time.RFC3339),
		Alerts:     filterAlerts(h.engine.Active(), repo, ""),
	})
}

// submitMetrics evaluates a snapshot posted in the request body.
func (h *Handler) submitMetrics(w http.ResponseWriter, r *http.Request) {
	repo := repoFromPath(r)
	var snap types.Snapshot
	if err := decodeBody(w, r, &snap); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	created := h.engine.EvaluateMetrics(repo, &snap)
	h.store.Put(repo, &snap, len(created))

	if created == nil {
		created = []alerts.Alert{}
	}
	jsonResp(w, http.StatusOK, EvaluateResponse{Repository: repo, Alerts: created})
}

// listAlerts returns active alerts, newest first. Optional query filters:
// repository and severity.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	jsonResp(w, http.StatusOK, filterAlerts(h.engine.Active(), q.Get("repository"), alerts.Severity(q.Get("severity"))))
}

func (h *Handler) getAlert(w http.ResponseWriter, r *http.Request) {
	a, ok := h.engine.Alert(r.PathValue("id"))
	if !ok {
		jsonErr(w, http.StatusNotFound, "alert not found")
		return
	}
	jsonResp(w, http.StatusOK, a)
}

func (h *Handler) acknowledge(w http.ResponseWriter, r *http.Request) {
	var req acknowledgeRequest
	if err := decodeBody(w, r, &req); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Actor == "" {
		jsonErr(w, http.StatusBadRequest, "actor is required")
		return
	}
	id := r.PathValue("id")
	if !h.engine.AcknowledgeAlert(id, req.Actor) {
		jsonErr(w, http.StatusNotFound, "alert not found")
		return
	}
	resp := actionResponse{OK: true}
	if a, ok := h.engine.Alert(id); ok {
		resp.Alert = &a
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) suppress(w http.ResponseWriter, r *http.Request) {
	var req suppressRequest
	if err := decodeBody(w, r, &req); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	var d time.Duration
	if req.Duration != "" {
		var err error
		if d, err = time.ParseDuration(req.Duration); err != nil || d <= 0 {
			jsonErr(w, http.StatusBadRequest, fmt.Sprintf("invalid duration %q", req.Duration))
			return
		}
	}
	id := r.PathValue("id")
	if !h.engine.SuppressAlert(id, d, req.Actor) {
		jsonErr(w, http.StatusNotFound, "alert not found")
		return
	}
	resp := actionResponse{OK: true}
	for _, s := range h.engine.Suppressions() {
		if s.AlertID == id {
			until := s.Until
			resp.Until = &until
			break
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeBody(w, r, &req); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Repository == "" || req.Type == "" {
		jsonErr(w, http.StatusBadRequest, "repository and type are required")
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = alerts.ReasonManual
	}
	if !h.engine.ResolveAlert(alerts.Key{Repository: req.Repository, Type: req.Type}, reason) {
		jsonErr(w, http.StatusNotFound, "no active alert for key")
		return
	}
	jsonResp(w, http.StatusOK, actionResponse{OK: true})
}

// history returns GET /api/v1/history?limit=N, newest first. No limit means all.
func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	jsonResp(w, http.StatusOK, h.engine.History(limit))
}

func (h *Handler) suppressions(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, h.engine.Suppressions())
}

func (h *Handler) thresholds(w http.ResponseWriter, _ *http.Request) {
	ts := h.engine.Thresholds()
	out := make([]ThresholdResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, toThresholdResponse(t))
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) listChannels(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, h.channels.Channels())
}

// maintenance runs one sweep immediately.
func (h *Handler) maintenance(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, h.sweeper.Sweep())
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func repoFromPath(r *http.Request) string {
	if owner := r.PathValue("owner"); owner != "" {
		return owner + "/" + r.PathValue("name")
	}
	return r.PathValue("repo")
}

// stateFromAlerts returns the most severe active severity, or "healthy".
func stateFromAlerts(active []alerts.Alert) string {
	best := 0
	state := "healthy"
	for _, a := range active {
		if rank := a.Severity.Rank(); rank > best {
			best = rank
			state = string(a.Severity)
		}
	}
	return state
}

func filterAlerts(list []alerts.Alert, repo string, sev alerts.Severity) []alerts.Alert {
	out := make([]alerts.Alert, 0, len(list))
	for _, a := range list {
		if repo != "" && a.Repository != repo {
			continue
		}
		if sev != "" && a.Severity != sev {
			continue
		}
		out = append(out, a)
	}
	return out
}
