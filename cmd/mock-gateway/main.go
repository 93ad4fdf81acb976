// Command mock-gateway is a MessageBird-compatible SMS endpoint for local runs.
package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/oklog/ulid/v2"

	"smsrelay/internal/config"
	"smsrelay/internal/httpapi"
	"smsrelay/internal/logging"
)

type createRequest struct {
	Originator string   `json:"originator"`
	Recipients []string `json:"recipients"`
	Body       string   `json:"body"`
}

type apiError struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
	Parameter   string `json:"parameter,omitempty"`
}

type message struct {
	ID          string    `json:"id"`
	Originator  string    `json:"originator"`
	Body        string    `json:"body"`
	Recipients  []string  `json:"recipients"`
	CreatedDate time.Time `json:"createdDatetime"`
}

type server struct {
	cfg config.MockGatewayConfig

	mu   sync.Mutex
	rng  *rand.Rand
	sent map[string]message
}

func newServer(cfg config.MockGatewayConfig) *server {
	return &server{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
		sent: map[string]message{},
	}
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(httpapi.Logging)
	r.HandleFunc("/messages", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}", s.handleGet).Methods(http.MethodGet)
	r.Handle("/healthz", httpapi.Healthz()).Methods(http.MethodGet)
	return r
}

func main() {
	_ = godotenv.Load()
	cfg := config.LoadMockGateway()
	logging.Init("mock-gateway", cfg.LogFormat, cfg.LogLevel)

	s := newServer(cfg)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("mock gateway listening", "port", cfg.Port, "failure_rate", cfg.FailureRate)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("mock gateway server failed", "err", err)
		os.Exit(1)
	}
}

func (s *server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AccessKey != "" && r.Header.Get("Authorization") != "AccessKey "+s.cfg.AccessKey {
		writeErrors(w, http.StatusUnauthorized, apiError{Code: 2, Description: "Request not allowed (incorrect access_key)"})
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrors(w, http.StatusUnprocessableEntity, apiError{Code: 9, Description: "invalid json"})
		return
	}
	if errs := validate(req); len(errs) > 0 {
		writeErrors(w, http.StatusUnprocessableEntity, errs...)
		return
	}

	if s.cfg.Latency > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(s.cfg.Latency):
		}
	}
	if s.fail() {
		writeErrors(w, http.StatusInternalServerError, apiError{Code: 99, Description: "Internal error"})
		return
	}

	msg := message{
		ID:          strings.ToLower(ulid.Make().String()),
		Originator:  req.Originator,
		Body:        req.Body,
		Recipients:  req.Recipients,
		CreatedDate: time.Now().UTC(),
	}
	s.mu.Lock()
	s.sent[msg.ID] = msg
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, msg)
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	msg, ok := s.sent[id]
	s.mu.Unlock()
	if !ok {
		writeErrors(w, http.StatusNotFound, apiError{Code: 20, Description: "message not found"})
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *server) fail() bool {
	if s.cfg.FailureRate <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.cfg.FailureRate
}

func validate(req createRequest) []apiError {
	var errs []apiError
	if strings.TrimSpace(req.Originator) == "" {
		errs = append(errs, apiError{Code: 9, Description: "no (correct) originator given", Parameter: "originator"})
	}
	if len(req.Recipients) == 0 || strings.TrimSpace(req.Recipients[0]) == "" {
		errs = append(errs, apiError{Code: 9, Description: "no (correct) recipients found", Parameter: "recipient"})
	}
	if strings.TrimSpace(req.Body) == "" {
		errs = append(errs, apiError{Code: 9, Description: "body is required", Parameter: "body"})
	}
	return errs
}

func writeErrors(w http.ResponseWriter, status int, errs ...apiError) {
	writeJSON(w, status, map[string][]apiError{"errors": errs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
