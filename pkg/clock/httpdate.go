package clock

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPDate derives wall-clock time from the Date header of an HTTP
// response, for devices without an RTC or NTP access.
type HTTPDate struct {
	client *resty.Client
}

func NewHTTPDate(url string, timeout time.Duration) *HTTPDate {
	return &HTTPDate{
		client: resty.New().
			SetBaseURL(url).
			SetTimeout(timeout),
	}
}

func (h *HTTPDate) Now(ctx context.Context) (time.Time, error) {
	resp, err := h.client.R().SetContext(ctx).Head("/")
	if err != nil {
		return time.Time{}, fmt.Errorf("clock: fetch time: %w", err)
	}
	date := resp.Header().Get("Date")
	if date == "" {
		return time.Time{}, errors.New("clock: no Date header in response")
	}
	t, err := http.ParseTime(date)
	if err != nil {
		return time.Time{}, fmt.Errorf("clock: parse Date header: %w", err)
	}
	return t, nil
}
