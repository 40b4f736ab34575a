// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

// Package upload carries confirmed check-ins from the recognition
// pipeline to the backend, falling back to the durable offline store
// when the network will not cooperate.
package upload

import (
	"time"

	"github.com/google/uuid"

	"github.com/chamcong/kioskd/internal/metrics"
)

// Job is one confirmed attendance event awaiting delivery.
//
// The image buffer is single-owner with move semantics: the producer
// gives it up on a successful enqueue, and the sender nils it after
// terminal handling (delivered, persisted offline, or dropped). Nobody
// touches a Job's buffer from two goroutines.
type Job struct {
	ID         string
	EmployeeID string
	Timestamp  string
	Image      []byte
}

// NewJob builds a job for a confirmed identity. Timestamp is the
// ISO-like local wall-clock string the backend expects.
func NewJob(employeeID string, at time.Time, image []byte) *Job {
	return &Job{
		ID:         uuid.New().String(),
		EmployeeID: employeeID,
		Timestamp:  at.Format("2006-01-02T15:04:05"),
		Image:      image,
	}
}

// Queue is the bounded in-memory FIFO between the pipeline and the
// sender worker.
type Queue struct {
	ch chan *Job
}

// NewQueue creates a queue holding at most size jobs.
func NewQueue(size int) *Queue {
	return &Queue{ch: make(chan *Job, size)}
}

// TryEnqueue hands a job to the sender without blocking. Returns false
// when the queue is full; the caller drops the job and logs the loss
// rather than stalling the recognition loop.
func (q *Queue) TryEnqueue(job *Job) bool {
	select {
	case q.ch <- job:
		metrics.UploadQueueDepth.Set(float64(len(q.ch)))
		return true
	default:
		return false
	}
}

// Jobs exposes the receive side for the sender worker.
func (q *Queue) Jobs() <-chan *Job {
	return q.ch
}

// Len reports the current queue depth.
func (q *Queue) Len() int {
	return len(q.ch)
}
