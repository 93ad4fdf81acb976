package messagebird

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"smsrelay/internal/gateway"
)

const (
	ProviderName   = "messagebird"
	DefaultBaseURL = "https://rest.messagebird.com"
)

type Client struct {
	AccessKey string
	HTTP      *http.Client
	BaseURL   string
}

type createRequest struct {
	Originator string   `json:"originator"`
	Recipients []string `json:"recipients"`
	Body       string   `json:"body"`
}

type createResponse struct {
	ID     string     `json:"id"`
	Errors []apiError `json:"errors"`
}

type apiError struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
	Parameter   string `json:"parameter"`
}

func (c *Client) Send(ctx context.Context, req gateway.Request) (gateway.Response, error) {
	payload, err := json.Marshal(createRequest{
		Originator: req.Originator,
		Recipients: req.Recipients,
		Body:       req.Body,
	})
	if err != nil {
		return gateway.Response{}, err
	}

	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return gateway.Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "AccessKey "+c.AccessKey)

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(httpReq)
	if err != nil {
		return gateway.Response{}, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	var out createResponse
	_ = json.Unmarshal(b, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gateway.Response{}, &gateway.Error{
			Provider:    ProviderName,
			HTTPStatus:  resp.StatusCode,
			Description: describe(out.Errors),
		}
	}
	if out.ID == "" {
		return gateway.Response{}, errors.New("messagebird response has no message id")
	}
	return gateway.Response{ID: out.ID}, nil
}

func describe(errs []apiError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Description != "" {
			parts = append(parts, e.Description)
		}
	}
	return strings.Join(parts, "; ")
}
