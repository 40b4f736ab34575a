// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

package backend

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
)

type attendanceRecord struct {
	employeeID string
	filename   string
	image      []byte
}

type backendStub struct {
	mu          sync.Mutex
	attendance  []attendanceRecord
	recognize   RecognizeResult
	enrollState string
	status      int // non-zero forces this status on every endpoint
}

func (b *backendStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/log-attendance", func(w http.ResponseWriter, r *http.Request) {
		if b.forcedStatus(w) {
			return
		}
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			t.Errorf("multipart parse failed: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("image part missing: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		image, _ := io.ReadAll(file)

		b.mu.Lock()
		b.attendance = append(b.attendance, attendanceRecord{
			employeeID: r.FormValue("employee_id"),
			filename:   header.Filename,
			image:      image,
		})
		b.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/api/ai/recognize", func(w http.ResponseWriter, r *http.Request) {
		if b.forcedStatus(w) {
			return
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if img, _ := req["image"].(string); img != "" {
			if _, err := base64.StdEncoding.DecodeString(img); err != nil {
				t.Errorf("image not valid base64: %v", err)
			}
		}
		b.mu.Lock()
		result := b.recognize
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(result)
	})

	mux.HandleFunc("/api/ai/enroll", func(w http.ResponseWriter, r *http.Request) {
		if b.forcedStatus(w) {
			return
		}
		b.mu.Lock()
		status := b.enrollState
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	})

	return mux
}

func (b *backendStub) forcedStatus(w http.ResponseWriter) bool {
	b.mu.Lock()
	status := b.status
	b.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
		return true
	}
	return false
}

func newTestClient(t *testing.T, stub *backendStub) *Client {
	t.Helper()
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(strings.TrimPrefix(srv.URL, "http://"), 2*time.Second)
}

func TestLogAttendance(t *testing.T) {
	stub := &backendStub{}
	client := newTestClient(t, stub)

	image := []byte("jpeg-bytes")
	err := client.LogAttendance(context.Background(), "emp-7", "2026-03-02T09:15:00", image)
	if err != nil {
		t.Fatalf("LogAttendance failed: %v", err)
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if len(stub.attendance) != 1 {
		t.Fatalf("uploads = %d, want 1", len(stub.attendance))
	}
	rec := stub.attendance[0]
	if rec.employeeID != "emp-7" {
		t.Errorf("employee_id = %q", rec.employeeID)
	}
	if rec.filename != "emp-7_2026-03-02T09:15:00.jpg" {
		t.Errorf("filename = %q", rec.filename)
	}
	if string(rec.image) != "jpeg-bytes" {
		t.Error("image bytes differ")
	}
}

func TestLogAttendanceRejected(t *testing.T) {
	stub := &backendStub{status: http.StatusInternalServerError}
	client := newTestClient(t, stub)

	err := client.LogAttendance(context.Background(), "emp-7", "2026-03-02T09:15:00", nil)
	if !errors.Is(err, ErrRejected) {
		t.Errorf("expected ErrRejected, got %v", err)
	}
}

func TestRecognize(t *testing.T) {
	stub := &backendStub{recognize: RecognizeResult{Match: true, Name: "alice"}}
	client := newTestClient(t, stub)

	result, err := client.Recognize(context.Background(), []byte("jpeg"), "2026-03-02T09:15:00", false)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if !result.Match || result.Name != "alice" {
		t.Errorf("result = %+v", result)
	}
}

func TestEnrollStatuses(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		wantErr bool
	}{
		{name: "collecting accepted", status: "collecting"},
		{name: "success accepted", status: "success"},
		{name: "unknown refused", status: "rejected", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &backendStub{enrollState: tt.status}
			client := newTestClient(t, stub)

			err := client.Enroll(context.Background(), "emp-7", []byte("jpeg"), "2026-03-02T09:15:00", false)
			if tt.wantErr && err == nil {
				t.Errorf("status %q accepted", tt.status)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("status %q refused: %v", tt.status, err)
			}
		})
	}
}

func TestCircuitBreakerOpensOnConsecutiveFailures(t *testing.T) {
	stub := &backendStub{status: http.StatusBadGateway}
	client := newTestClient(t, stub)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := client.LogAttendance(ctx, "emp-7", "2026-03-02T09:15:00", nil); err == nil {
			t.Fatalf("attempt %d unexpectedly succeeded", i)
		}
	}

	// The breaker is now open: requests fail fast without touching the
	// server.
	stub.mu.Lock()
	before := len(stub.attendance)
	stub.mu.Unlock()

	if err := client.LogAttendance(ctx, "emp-7", "2026-03-02T09:15:00", nil); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected ErrOpenState, got %v", err)
	}

	stub.mu.Lock()
	after := len(stub.attendance)
	stub.mu.Unlock()
	if after != before {
		t.Error("request reached the server through an open breaker")
	}
}
