// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

// Package backend is the HTTP client for the attendance server.
//
// Two wire contracts live here: the multipart attendance upload used by
// the sender and sync workers, and the JSON AI endpoints used by the
// remote-recognizer device variant. Responses are decoded structurally;
// no substring scanning of response bodies.
package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/chamcong/kioskd/internal/logging"
	"github.com/chamcong/kioskd/internal/metrics"
)

// ErrRejected is returned when the server answered but refused the
// request (non-2xx). Retrying the same payload is still legitimate; the
// refusal may be load shedding.
var ErrRejected = errors.New("backend: request rejected")

// RecognizeResult is the decoded verdict of the /api/ai/recognize call.
type RecognizeResult struct {
	Match bool   `json:"match"`
	Name  string `json:"name"`
}

type enrollResponse struct {
	Status string `json:"status"`
}

type aiRequest struct {
	Image      string `json:"image"`
	Timestamp  string `json:"timestamp"`
	EmployeeID string `json:"employee_id,omitempty"`
	IsOffline  bool   `json:"is_offline,omitempty"`
}

// Client talks to the attendance backend. The attendance upload is
// wrapped in a circuit breaker so a dead uplink fails fast and jobs fall
// through to the offline store instead of each burning the full retry
// budget.
type Client struct {
	baseURL string
	httpc   *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewClient creates a client for the backend at address (host:port).
func NewClient(address string, timeout time.Duration) *Client {
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "attendance-upload",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			logging.Info().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("upload circuit breaker state change")
			metrics.CircuitBreakerState.Set(stateToFloat(to))
		},
	})

	return &Client{
		baseURL: "http://" + address,
		httpc:   &http.Client{Timeout: timeout},
		breaker: cb,
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// LogAttendance delivers one confirmed check-in as a multipart upload.
// Success is any 2xx response.
func (c *Client) LogAttendance(ctx context.Context, employeeID, timestamp string, image []byte) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.logAttendance(ctx, employeeID, timestamp, image)
	})
	return err
}

func (c *Client) logAttendance(ctx context.Context, employeeID, timestamp string, image []byte) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("employee_id", employeeID); err != nil {
		return fmt.Errorf("backend: write employee_id field: %w", err)
	}
	part, err := mw.CreateFormFile("image", fmt.Sprintf("%s_%s.jpg", employeeID, timestamp))
	if err != nil {
		return fmt.Errorf("backend: create image part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return fmt.Errorf("backend: write image part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("backend: finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/log-attendance", &body)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("backend: post attendance: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}
	return nil
}

// Recognize submits a face crop to the AI recognize endpoint.
func (c *Client) Recognize(ctx context.Context, image []byte, timestamp string, offline bool) (RecognizeResult, error) {
	payload := aiRequest{
		Image:     base64.StdEncoding.EncodeToString(image),
		Timestamp: timestamp,
		IsOffline: offline,
	}
	var result RecognizeResult
	if err := c.postJSON(ctx, "/api/ai/recognize", payload, &result); err != nil {
		return RecognizeResult{}, err
	}
	return result, nil
}

// Enroll submits one enrollment sample to the AI enroll endpoint.
// The server answers "collecting" while it accumulates samples and
// "success" on the final one; both count as sample acceptance.
func (c *Client) Enroll(ctx context.Context, employeeID string, image []byte, timestamp string, offline bool) error {
	payload := aiRequest{
		Image:      base64.StdEncoding.EncodeToString(image),
		Timestamp:  timestamp,
		EmployeeID: employeeID,
		IsOffline:  offline,
	}
	var result enrollResponse
	if err := c.postJSON(ctx, "/api/ai/enroll", payload, &result); err != nil {
		return err
	}
	if result.Status != "collecting" && result.Status != "success" {
		return fmt.Errorf("%w: enroll status %q", ErrRejected, result.Status)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("backend: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("backend: post %s: %w", path, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: decode %s response: %w", path, err)
	}
	return nil
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
