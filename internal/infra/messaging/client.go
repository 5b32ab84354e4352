package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"rentline/internal/infra/wire"
)

// ErrBootstrapFailed wraps any failure of the conversation bootstrap
// calls. Callers surface it as recoverable UI state, never as a crash.
var ErrBootstrapFailed = errors.New("messaging: bootstrap failed")

// CounterpartGroup is one conversation summary under an owned item.
type CounterpartGroup struct {
	RenterID string    `json:"renterid"`
	LatestAt wire.Time `json:"latest_datetime"`
}

// RenterGroup is one conversation summary where the caller rents.
type RenterGroup struct {
	ItemID   string    `json:"itemid"`
	OwnerID  string    `json:"ownerid"`
	LatestAt wire.Time `json:"latest_datetime"`
}

// Client consumes the messaging REST collaborator that serves the two
// conversation bootstrap queries.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *slog.Logger
}

// OwnerGroups fetches the conversation summaries for items the user
// owns, keyed by item.
func (c *Client) OwnerGroups(ctx context.Context, ownerID string) (map[string][]CounterpartGroup, error) {
	var payload struct {
		ChatGroups map[string][]CounterpartGroup `json:"chatGroups"`
	}
	if err := c.get(ctx, url.Values{"ownerid": {ownerID}}, &payload); err != nil {
		return nil, err
	}
	return payload.ChatGroups, nil
}

// RenterGroups fetches the conversation summaries where the user is
// the renter.
func (c *Client) RenterGroups(ctx context.Context, renterID string) ([]RenterGroup, error) {
	var payload struct {
		ChatGroups []RenterGroup `json:"chatGroups"`
	}
	if err := c.get(ctx, url.Values{"renterid": {renterID}}, &payload); err != nil {
		return nil, err
	}
	return payload.ChatGroups, nil
}

func (c *Client) get(ctx context.Context, query url.Values, out any) error {
	endpoint := c.BaseURL + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBootstrapFailed, err)
	}
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBootstrapFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status %d", ErrBootstrapFailed, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrBootstrapFailed, err)
	}
	return nil
}
