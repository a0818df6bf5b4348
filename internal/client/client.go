// ABOUTME: HTTP client for the identity provider and the gateway history API
// ABOUTME: Fetches the caller's identity and ordered conversation snapshots

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrUnauthorized indicates the bearer token was missing, invalid, or expired.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the caller is not a participant of the conversation.
	ErrForbidden = errors.New("forbidden")
)

// Identity describes the authenticated user as reported by the identity provider.
type Identity struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Photo    string `json:"photo"`
	Role     string `json:"role"`
}

// HistoryMessage is one entry of a conversation snapshot.
type HistoryMessage struct {
	MessageID string    `json:"messageId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Client talks to the identity provider and the gateway's REST surface.
type Client struct {
	identityBaseURL string
	gatewayBaseURL  string
	token           string
	http            *http.Client
}

// New creates a client. Base URLs must not include a trailing slash;
// one is stripped if present. Pass nil httpClient for a default with
// a 10 second timeout.
func New(identityBaseURL, gatewayBaseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		identityBaseURL: strings.TrimSuffix(identityBaseURL, "/"),
		gatewayBaseURL:  strings.TrimSuffix(gatewayBaseURL, "/"),
		token:           token,
		http:            httpClient,
	}
}

// Token returns the bearer token the client authenticates with.
func (c *Client) Token() string {
	return c.token
}

// Me fetches the authenticated user's identity from the identity provider.
func (c *Client) Me(ctx context.Context) (*Identity, error) {
	var identity Identity
	if err := c.getJSON(ctx, c.identityBaseURL+"/user/me", &identity); err != nil {
		return nil, err
	}
	if identity.ID == "" {
		return nil, fmt.Errorf("identity response missing id")
	}
	return &identity, nil
}

// History fetches the ordered message snapshot for a conversation.
func (c *Client) History(ctx context.Context, conversationID string) ([]HistoryMessage, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation id required")
	}

	var msgs []HistoryMessage
	if err := c.getJSON(ctx, c.gatewayBaseURL+"/api/messages/"+conversationID, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, url, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", url, err)
	}
	return nil
}
