package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	ReasonAccount  = "account_verification"
	ReasonPassword = "Password reset"

	// defaultSessionTTL applies when the gateway does not report expiresIn.
	defaultSessionTTL = 300
)

var ErrGatewayRejected = errors.New("otp gateway: request rejected")

// Gateway is the WhatsApp OTP service.
type Gateway interface {
	Ready(ctx context.Context) (bool, error)
	Send(ctx context.Context, contactNumber, reason string) (*Sent, error)
	Verify(ctx context.Context, uuid, contactNumber, otp string) (*Verified, error)
}

// Sent describes an OTP that the gateway has dispatched.
type Sent struct {
	UUID      string `json:"uuid"`
	ExpiresIn int    `json:"expiresIn"`
}

// Verified is the gateway verdict for an OTP.
type Verified struct {
	Success     bool   `json:"success"`
	VerifiedFor string `json:"verifiedFor"`
}

// Client talks to the OTP gateway over HTTP. Every request carries the
// x-api-key header.
type Client struct {
	baseURL      string
	apiKey       string
	appName      string
	statusClient *http.Client
	httpClient   *http.Client
}

func NewClient(baseURL, apiKey, appName string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		appName:      appName,
		statusClient: &http.Client{Timeout: 5 * time.Second},
		httpClient:   &http.Client{Timeout: 8 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, endpoint string, body any, out any) (int, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, rdr)
	if err != nil {
		return 0, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := hc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, fmt.Errorf("otp gateway: unexpected status %s", resp.Status)
		}
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

// Ready reports whether the WhatsApp session behind the gateway is usable.
func (c *Client) Ready(ctx context.Context) (bool, error) {
	var body struct {
		Success bool `json:"success"`
		Status  struct {
			IsReady       bool `json:"isReady"`
			Authenticated bool `json:"authenticated"`
		} `json:"status"`
	}
	code, err := c.do(ctx, c.statusClient, http.MethodGet, "/api/whatsapp/status", nil, &body)
	if err != nil {
		return false, err
	}
	if code != http.StatusOK {
		return false, fmt.Errorf("otp gateway: status check returned %d", code)
	}
	return body.Success && body.Status.IsReady && body.Status.Authenticated, nil
}

// Send asks the gateway to deliver an OTP to contactNumber. ExpiresIn falls
// back to five minutes when the gateway omits it.
func (c *Client) Send(ctx context.Context, contactNumber, reason string) (*Sent, error) {
	payload := map[string]string{"contactNumber": contactNumber, "reason": reason, "appName": c.appName}
	var body struct {
		Success bool `json:"success"`
		Sent
	}
	if _, err := c.do(ctx, c.httpClient, http.MethodPost, "/api/otp/send", payload, &body); err != nil {
		return nil, err
	}
	if !body.Success || body.UUID == "" {
		return nil, ErrGatewayRejected
	}
	if body.ExpiresIn <= 0 {
		body.ExpiresIn = defaultSessionTTL
	}
	return &body.Sent, nil
}

// Verify checks otp against the session uuid. A wrong code is not an error;
// it yields Success=false.
func (c *Client) Verify(ctx context.Context, uuid, contactNumber, otp string) (*Verified, error) {
	q := url.Values{}
	q.Set("uuid", uuid)
	q.Set("contactNumber", contactNumber)
	q.Set("otp", otp)
	var body Verified
	if _, err := c.do(ctx, c.httpClient, http.MethodGet, "/api/otp/verify?"+q.Encode(), nil, &body); err != nil {
		return nil, err
	}
	return &body, nil
}
