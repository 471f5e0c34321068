// Package billing integrates the external billing ledger as the gate between
// a finished crawl and its terminal state.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/target/crawld/internal/core"
)

// Config configures the HTTP ledger client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Client  *http.Client
}

// Client charges teams per produced document against an HTTP billing ledger.
// A transport or server error is returned as an error; a well-formed
// rejection comes back as an unsuccessful ChargeResult.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient builds a billing ledger client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("billing base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	if logger != nil {
		logger = logger.With("component", "billing")
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		client:  hc,
		logger:  logger,
	}, nil
}

type chargeRequest struct {
	TeamID        string `json:"teamId"`
	DocumentCount int    `json:"documentCount"`
}

type chargeResponse struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// Charge posts one charge for the given team and document count.
func (c *Client) Charge(ctx context.Context, teamID string, documentCount int) (core.ChargeResult, error) {
	body, err := json.Marshal(chargeRequest{TeamID: teamID, DocumentCount: documentCount})
	if err != nil {
		return core.ChargeResult{}, fmt.Errorf("encode charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return core.ChargeResult{}, fmt.Errorf("create charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return core.ChargeResult{}, fmt.Errorf("billing request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var decoded chargeResponse
		if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&decoded); decodeErr != nil {
			return core.ChargeResult{}, fmt.Errorf("decode charge response: %w", decodeErr)
		}
		return core.ChargeResult{Success: decoded.Success, Reason: decoded.Reason}, nil
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusForbidden:
		// The ledger signals a definitive rejection, not an outage.
		var decoded chargeResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&decoded)
		reason := decoded.Reason
		if reason == "" {
			reason = fmt.Sprintf("billing rejected with status %d", resp.StatusCode)
		}
		if c.logger != nil {
			c.logger.WarnContext(ctx, "billing charge rejected", "team_id", teamID, "reason", reason)
		}
		return core.ChargeResult{Success: false, Reason: reason}, nil
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return core.ChargeResult{}, fmt.Errorf("billing ledger returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
}

// AllowAllGate approves every charge. Used in local development and tests
// where no ledger is available.
type AllowAllGate struct{}

// Charge implements core.BillingGate.
func (AllowAllGate) Charge(context.Context, string, int) (core.ChargeResult, error) {
	return core.ChargeResult{Success: true}, nil
}
