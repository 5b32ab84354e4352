package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"rentline/internal/infra/relay"
)

// Item is the catalog's item representation.
type Item struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Image        string  `json:"image"`
	Owner        string  `json:"owner"`
	PricePerDay  float64 `json:"price_per_day"`
	Condition    string  `json:"condition"`
	Availability string  `json:"availability"`
	Description  string  `json:"description"`
	Category     int     `json:"category"`
	Deposit      float64 `json:"deposit"`
}

// Category is one entry of the category lookup table.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Client consumes the item/category REST collaborator. Mutations carry
// the bearer credential; reads are anonymous, matching the service.
type Client struct {
	BaseURL     string
	HTTP        *http.Client
	Credentials relay.CredentialSource
	Logger      *slog.Logger
}

// List returns one page of items, optionally filtered by owner.
func (c *Client) List(ctx context.Context, limit, offset int, owner string) ([]Item, error) {
	query := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
	if owner != "" {
		query.Set("owner", owner)
	}
	var payload struct {
		Results []Item `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/items?"+query.Encode(), nil, &payload, false); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

// Get loads one item by ID.
func (c *Client) Get(ctx context.Context, id string) (Item, error) {
	var item Item
	if err := c.do(ctx, http.MethodGet, "/items/"+url.PathEscape(id), nil, &item, false); err != nil {
		return Item{}, err
	}
	return item, nil
}

// Categories returns the category lookup table.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := c.do(ctx, http.MethodGet, "/categories", nil, &categories, false); err != nil {
		return nil, err
	}
	return categories, nil
}

// Create registers a new item on behalf of the authenticated user.
func (c *Client) Create(ctx context.Context, item Item) (Item, error) {
	var created Item
	if err := c.do(ctx, http.MethodPost, "/items", item, &created, true); err != nil {
		return Item{}, err
	}
	return created, nil
}

// Update patches an existing item.
func (c *Client) Update(ctx context.Context, id string, item Item) (Item, error) {
	var updated Item
	if err := c.do(ctx, http.MethodPatch, "/items/"+url.PathEscape(id), item, &updated, true); err != nil {
		return Item{}, err
	}
	return updated, nil
}

// Delete removes an item.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/items/"+url.PathEscape(id), nil, nil, true)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("catalog: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("catalog: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		if c.Credentials == nil {
			return fmt.Errorf("catalog: no credential source for %s %s", method, path)
		}
		token, err := c.Credentials.Token(ctx)
		if err != nil {
			return fmt.Errorf("catalog: credential refresh failed: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("catalog: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("catalog: %s %s returned %d", method, path, resp.StatusCode)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("catalog: decode response: %w", err)
	}
	return nil
}
