package main

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smsrelay/internal/config"
	"smsrelay/internal/gateway"
	"smsrelay/internal/providers/messagebird"
)

func newClient(t *testing.T, cfg config.MockGatewayConfig) *messagebird.Client {
	t.Helper()
	srv := httptest.NewServer(newServer(cfg).routes())
	t.Cleanup(srv.Close)
	return &messagebird.Client{AccessKey: "test_key", HTTP: srv.Client(), BaseURL: srv.URL}
}

func TestMockAcceptsValidMessage(t *testing.T) {
	c := newClient(t, config.MockGatewayConfig{AccessKey: "test_key"})

	resp, err := c.Send(context.Background(), gateway.Request{
		Originator: "InfoSkills Technology",
		Recipients: []string{"+31612345678"},
		Body:       "hello",
	})
	require.NoError(t, err)
	assert.Len(t, resp.ID, 26)
}

func TestMockRejectsWrongAccessKey(t *testing.T) {
	c := newClient(t, config.MockGatewayConfig{AccessKey: "other"})

	_, err := c.Send(context.Background(), gateway.Request{Originator: "x", Recipients: []string{"+1"}, Body: "b"})
	var gwErr *gateway.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, 401, gwErr.HTTPStatus)
	assert.Contains(t, gwErr.Error(), "incorrect access_key")
}

func TestMockValidatesPayload(t *testing.T) {
	c := newClient(t, config.MockGatewayConfig{})

	_, err := c.Send(context.Background(), gateway.Request{Originator: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no (correct) recipients found")
	assert.Contains(t, err.Error(), "body is required")
}

func TestMockFailureRate(t *testing.T) {
	c := newClient(t, config.MockGatewayConfig{FailureRate: 1})

	_, err := c.Send(context.Background(), gateway.Request{Originator: "x", Recipients: []string{"+1"}, Body: "b"})
	var gwErr *gateway.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, 500, gwErr.HTTPStatus)
}
