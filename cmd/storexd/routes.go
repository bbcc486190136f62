package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/comalice/storex"
	"github.com/comalice/storex/internal/demo"
	"github.com/comalice/storex/serial"
)

const maxActionBytes = 1 << 20

// dispatchResponse is the body returned by POST /dispatch.
type dispatchResponse struct {
	Action any        `json:"action"`
	State  demo.State `json:"state"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *app) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.handleHealth)
	r.Get("/state", a.handleState)
	r.Post("/dispatch", a.handleDispatch)
	r.Get("/history", a.handleHistory)
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	r.Handle("/ws", a.stream)
	return r
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"pending": a.runner.Pending(),
		"clients": a.stream.Clients(),
	})
}

func (a *app) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := a.runner.GetState(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *app) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var action storex.Action
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxActionBytes))
	if err := dec.Decode(&action); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "decode action: " + err.Error()})
		return
	}

	var state demo.State
	err := a.runner.Do(r.Context(), func(st storex.Store[demo.State]) error {
		if _, err := st.Dispatch(action); err != nil {
			return err
		}
		s, err := st.GetState()
		state = s
		return err
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dispatchResponse{Action: action, State: state})
}

func (a *app) handleHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	if err := a.stack.Inspector.ExportYAML(w); err != nil {
		a.logger.Error("export history", slog.String("error", err.Error()))
	}
}

// writeError maps store and runner errors to HTTP statuses.
func (a *app) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, storex.ErrInvalidAction):
		status = http.StatusBadRequest
	case errors.Is(err, serial.ErrNotRunning):
		status = http.StatusServiceUnavailable
	case errors.Is(err, r.Context().Err()):
		status = http.StatusRequestTimeout
	}
	a.logger.Debug("request failed",
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("error", err.Error()),
	)
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
