package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Cloud-Computing-Blue-Cloud/Booking-Service/internal/domain"
)

var ErrShowtimeNotFound = errors.New("showtime not found")

// TheatreClient consumes the Theatre Service's narrow read contract. The
// engine validates requested seats against the grid shape returned here; it
// never creates or deletes showtimes upstream.
type TheatreClient struct {
	baseURL string
	http    *http.Client
}

func NewTheatreClient(baseURL string) *TheatreClient {
	return &TheatreClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

type showtimeResponse struct {
	ShowtimeID  int64    `json:"showtime_id"`
	Rows        []string `json:"rows"`
	Cols        int      `json:"cols"`
	SeatsBooked int      `json:"seats_booked"`
}

// GetShowtime looks up a showtime by ID.
//
// Returns:
//   - *domain.ShowtimeRef: grid shape and booked-seat counter.
//   - error: ErrShowtimeNotFound when the upstream answers 404.
func (c *TheatreClient) GetShowtime(ctx context.Context, showtimeID int64) (*domain.ShowtimeRef, error) {
	const op = "clients.TheatreClient.GetShowtime"

	url := fmt.Sprintf("%s/showtimes/%d", c.baseURL, showtimeID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: theatre service unavailable: %w", op, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", op, ErrShowtimeNotFound)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s: theatre service returned %d", op, resp.StatusCode)
	}

	var body showtimeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &domain.ShowtimeRef{
		ID:          body.ShowtimeID,
		Rows:        body.Rows,
		Cols:        body.Cols,
		SeatsBooked: body.SeatsBooked,
	}, nil
}
