package loxone

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Miniserver API paths.
const (
	structurePath = "/data/Loxapp3.json"
	spsIOPath     = "/dev/sps/io/"
)

// APIError is returned when the miniserver answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("miniserver returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to a Loxone miniserver over its HTTP/JSON API using basic
// auth. All calls are synchronous; timeouts come from the HTTP client.
type Client struct {
	host       string
	user       string
	password   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a client for the miniserver at host (host or host:port).
func NewClient(host, user, password string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		host:       strings.TrimSuffix(host, "/"),
		user:       user,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "loxone").Logger(),
	}
}

// Host returns the miniserver address.
func (c *Client) Host() string {
	return c.host
}

// FetchStructure retrieves and decodes the structure definition document.
func (c *Client) FetchStructure(ctx context.Context) (*StructureFile, error) {
	resp, err := c.get(ctx, "http://"+c.host+structurePath)
	if err != nil {
		return nil, fmt.Errorf("structure definition request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var structure StructureFile
	if err := json.NewDecoder(resp.Body).Decode(&structure); err != nil {
		return nil, fmt.Errorf("decoding structure definition: %w", err)
	}

	c.logger.Debug().
		Int("rooms", structure.Rooms.Len()).
		Int("categories", structure.Cats.Len()).
		Int("controls", structure.Controls.Len()).
		Msg("Fetched structure definition")

	return &structure, nil
}

// SetState issues a state change for the control identified by actionID. The
// response status is the only success signal; the body is not inspected, so a
// request the miniserver accepts but does not apply is reported as success.
func (c *Client) SetState(ctx context.Context, actionID, newState string) error {
	target := "http://" + c.host + spsIOPath + url.PathEscape(actionID) + "/" + url.PathEscape(newState)

	resp, err := c.get(ctx, target)
	if err != nil {
		return fmt.Errorf("state change request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	c.logger.Debug().
		Str("action_id", actionID).
		Str("state", newState).
		Msg("State changed")

	return nil
}

func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}
