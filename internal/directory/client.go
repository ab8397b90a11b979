package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client fetches directory records from the upstream organizational service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a directory client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// GetArea fetches an area by ID.
func (c *Client) GetArea(ctx context.Context, id int64) (Area, error) {
	var area Area
	err := c.getJSON(ctx, fmt.Sprintf("%s/areas/%d", c.baseURL, id), &area)
	return area, err
}

// GetPosition fetches a position by ID.
func (c *Client) GetPosition(ctx context.Context, id int64) (Position, error) {
	var position Position
	err := c.getJSON(ctx, fmt.Sprintf("%s/positions/%d", c.baseURL, id), &position)
	return position, err
}

// GetPerson fetches a person by ID.
func (c *Client) GetPerson(ctx context.Context, id int64) (Person, error) {
	var person Person
	err := c.getJSON(ctx, fmt.Sprintf("%s/persons/%d", c.baseURL, id), &person)
	return person, err
}

func (c *Client) getJSON(ctx context.Context, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("directory: fetch %s: %w", url, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("directory: fetch %s: status %d", url, res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(dest)
}
