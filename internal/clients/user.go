package clients

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// UserClient answers a single question: does the user exist. Identity is
// owned by the User Service.
type UserClient struct {
	baseURL string
	http    *http.Client
}

func NewUserClient(baseURL string) *UserClient {
	return &UserClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *UserClient) UserExists(ctx context.Context, userID int64) (bool, error) {
	const op = "clients.UserClient.UserExists"

	url := fmt.Sprintf("%s/users/%d", c.baseURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%s: user service unavailable: %w", op, err)
	}

	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 400:
		return false, fmt.Errorf("%s: user service returned %d", op, resp.StatusCode)
	}

	return true, nil
}
