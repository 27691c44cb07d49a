package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"academy/internal/checkin"
)

// Notice is the payload sent to the academy messaging service when a
// student checks in late (or is marked absent by downstream jobs).
type Notice struct {
	StudentID   string    `json:"student_id"`
	ClassID     string    `json:"class_id"`
	Date        string    `json:"date"`
	Status      string    `json:"status"`
	CheckInTime time.Time `json:"check_in_time"`
}

// Client calls the academy messaging microservice. Delivery is best
// effort; callers log failures and move on.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, sends are acknowledged locally,
// which keeps dev environments free of a running messaging service.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Send delivers one notice.
func (c *Client) Send(ctx context.Context, n Notice) error {
	if c.Skip {
		return nil
	}

	body, _ := json.Marshal(n)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/notifications/attendance", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("messaging service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("messaging service error %s: %s", resp.Status, string(respBody))
	}
	return nil
}

// Health checks if the messaging service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("messaging service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("messaging service unhealthy: %s", resp.Status)
	}
	return nil
}

// NoticeFromOutcome converts a committed check-in into a notice.
func NoticeFromOutcome(o checkin.Outcome) Notice {
	return Notice{
		StudentID:   o.StudentID,
		ClassID:     o.ClassID,
		Date:        o.Date,
		Status:      string(o.Status),
		CheckInTime: o.CheckInTime,
	}
}
