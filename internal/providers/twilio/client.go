package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"smsrelay/internal/gateway"
)

const ProviderName = "twilio"

type Client struct {
	AccountSID string
	AuthToken  string
	HTTP       *http.Client

	MessagingServiceSID string
	FromNumber          string
	BaseURL             string
}

type sendResponse struct {
	Sid       string `json:"sid"`
	Status    string `json:"status"`
	ErrorCode *int   `json:"error_code"`
	Message   string `json:"message"`
}

// Send posts one message per request; only the first recipient is used.
// Without a messaging service or number, the originator becomes an
// alphanumeric sender ID.
func (c *Client) Send(ctx context.Context, req gateway.Request) (gateway.Response, error) {
	if len(req.Recipients) == 0 {
		return gateway.Response{}, errors.New("twilio send requires a recipient")
	}

	form := url.Values{}
	form.Set("To", req.Recipients[0])
	form.Set("Body", req.Body)
	switch {
	case c.MessagingServiceSID != "":
		form.Set("MessagingServiceSid", c.MessagingServiceSID)
	case c.FromNumber != "":
		form.Set("From", c.FromNumber)
	default:
		form.Set("From", req.Originator)
	}

	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	endpoint := baseURL + "/2010-04-01/Accounts/" + c.AccountSID + "/Messages.json"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return gateway.Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(c.AccountSID, c.AuthToken)

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

	var out sendResponse
	_ = json.Unmarshal(b, &out)

	// Twilio returns 201 for created; treat 2xx as success
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gateway.Response{}, &gateway.Error{
			Provider:    ProviderName,
			HTTPStatus:  resp.StatusCode,
			Description: out.Message,
		}
	}
	return gateway.Response{ID: out.Sid}, nil
}
