package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sanoapro/sanoa-lab-sub000/internal/domain/agenda"
)

// Client reads bookings from an external calendar provider's REST API. It
// implements agenda.BookingSource, so reports can run against a hosted
// calendar instead of the local database.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a calendar API client. baseURL is the provider's API
// root; token is sent as a bearer token on every request.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// bookingsEnvelope is the provider's list response shape.
type bookingsEnvelope struct {
	Data []agenda.Booking `json:"data"`
}

// ListBookings fetches all bookings for an org whose start falls in
// [from, to). Timestamps are sent to the provider in UTC RFC 3339.
func (c *Client) ListBookings(ctx context.Context, orgID string, from, to time.Time) ([]agenda.Booking, error) {
	q := url.Values{}
	q.Set("org_id", orgID)
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/bookings?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build calendar request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar API returned status %d", resp.StatusCode)
	}

	var envelope bookingsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode calendar response: %w", err)
	}
	if envelope.Data == nil {
		return []agenda.Booking{}, nil
	}
	return envelope.Data, nil
}
