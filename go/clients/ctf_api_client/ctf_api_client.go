package ctf_api_client

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/mcdev12/ctfsession/go/clients"
)

// Client talks to the competition portal's REST API.
type Client struct {
	*clients.BaseClient
}

// NewClient creates a portal client. token, when set, is sent as a bearer token.
func NewClient(baseURL, token string) *Client {
	client := &Client{
		BaseClient: clients.NewBaseClient(strings.TrimRight(baseURL, "/")),
	}

	if token != "" {
		client.SetHeader(AuthorizationHeader, "Bearer "+token)
	}

	return client
}

// HubURL returns the websocket URL of the user event hub for a game.
func (c *Client) HubURL(gameID int) (string, error) {
	u, err := url.Parse(c.BaseURL() + UserHubEndpoint)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set(GameQueryParam, strconv.Itoa(gameID))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
