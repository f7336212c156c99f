// Package quote submits monetary quotes for a service request to the REST
// collaborator. It is a business action beside the chat: its outcome never
// touches connection or message-log state.
package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// BusinessActionError is a failed quote submission, surfaced inline where
// the action was taken.
type BusinessActionError struct {
	StatusCode int
	Message    string
}

func (e *BusinessActionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("quote submission failed: %s", e.Message)
	}
	return fmt.Sprintf("quote submission failed: status %d", e.StatusCode)
}

// Quote is a monetary offer tied to a service request.
type Quote struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
}

// Client talks to the service-request collaborator.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Submit posts a quote for the given service request. A non-positive amount
// is rejected locally; any non-2xx response becomes a *BusinessActionError.
func (c *Client) Submit(ctx context.Context, requestID int64, q Quote) error {
	if !q.Amount.IsPositive() {
		return &BusinessActionError{Message: "amount must be greater than zero"}
	}

	body, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal quote: %w", err)
	}

	url := fmt.Sprintf("%s/requests/%d/quotes", c.baseURL, requestID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build quote request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return &BusinessActionError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var payload struct {
		Message string `json:"message"`
	}
	json.NewDecoder(resp.Body).Decode(&payload)
	return &BusinessActionError{StatusCode: resp.StatusCode, Message: payload.Message}
}
