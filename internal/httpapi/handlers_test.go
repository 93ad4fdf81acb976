package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smsrelay/internal/domain"
	"smsrelay/internal/service"
	"smsrelay/internal/store/mem"
)

func newTestServer(t *testing.T) (*Server, *mem.Store) {
	t.Helper()
	st := mem.New()
	srv := New(st.Ping)
	api := &API{Svc: &service.MessageService{Store: st, IDGen: func() string { return "msg_test" }}}
	api.Register(srv.Mux)
	return srv, st
}

func do(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Mux.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGet(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(srv, http.MethodPost, "/v1/messages", `{"to":"+1 555","content":{"text":"hi"},"channelId":"c1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var created domain.CreateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "msg_test", created.MessageID)

	rec = do(srv, http.MethodGet, "/v1/messages/msg_test", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Record
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "+1555", got.To)
	assert.Nil(t, got.Delivery)
}

func TestCreateAcceptsEmptyRecipient(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(srv, http.MethodPost, "/v1/messages", `{"to":"","content":{}}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestCreateRejectsBadJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(srv, http.MethodPost, "/v1/messages", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMissing(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(srv, http.MethodGet, "/v1/messages/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRetry(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()
	_, err := st.Create(ctx, &domain.Record{ID: "failed", Delivery: &domain.Delivery{State: domain.StateError}})
	require.NoError(t, err)
	_, err = st.Create(ctx, &domain.Record{ID: "pending", Delivery: &domain.Delivery{State: domain.StatePending}})
	require.NoError(t, err)

	rec := do(srv, http.MethodPost, "/v1/messages/failed/retry", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var got domain.Record
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, domain.StateRetry, got.Delivery.State)

	rec = do(srv, http.MethodPost, "/v1/messages/pending/retry", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(srv, http.MethodPost, "/v1/messages/nope/retry", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDelete(t *testing.T) {
	srv, st := newTestServer(t)
	_, err := st.Create(context.Background(), &domain.Record{ID: "m1"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, do(srv, http.MethodDelete, "/v1/messages/m1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(srv, http.MethodDelete, "/v1/messages/m1", "").Code)
}

func TestOperationalEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/readyz", "").Code)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/metrics", "").Code)
}

func TestReadyzFailsOnCheckError(t *testing.T) {
	srv := New(func(context.Context) error { return errors.New("db down") })
	assert.Equal(t, http.StatusServiceUnavailable, do(srv, http.MethodGet, "/readyz", "").Code)
}
