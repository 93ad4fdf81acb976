package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"smsrelay/internal/domain"
	"smsrelay/internal/service"
	"smsrelay/internal/store"
)

type API struct {
	Svc *service.MessageService
}

func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/v1/messages", a.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/v1/messages/{id}", a.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/v1/messages/{id}", a.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/v1/messages/{id}/retry", a.handleRetry).Methods(http.MethodPost)
}

func (a *API) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}

	resp, err := a.Svc.Create(r.Context(), req)
	if err != nil {
		slog.Error("create message failed", "err", err, "channel_id", req.ChannelID)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, ErrMissingID, http.StatusBadRequest)
		return
	}
	rec, err := a.Svc.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "get message failed", id)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := a.Svc.Retry(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "retry message failed", id)
		return
	}
	writeJSON(w, http.StatusAccepted, rec)
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.Svc.Delete(r.Context(), id); err != nil {
		writeStoreError(w, err, "delete message failed", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeStoreError(w http.ResponseWriter, err error, msg, id string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, ErrNotFound, http.StatusNotFound)
	case errors.Is(err, store.ErrConflict):
		http.Error(w, ErrNotRetry, http.StatusConflict)
	default:
		slog.Error(msg, "err", err, "message_id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
