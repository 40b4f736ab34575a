// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

// Package offline is the durable store-and-forward queue: an append-only
// text ledger plus sibling image files on persistent storage. Entries
// survive power cycles and are drained strictly FIFO by the sync worker.
package offline

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const ledgerName = "queue.txt"

// Entry is one pending offline delivery, serialized as
// employeeId|timestamp|imagePath.
type Entry struct {
	EmployeeID string
	Timestamp  string
	ImagePath  string
}

func (e Entry) line() string {
	return e.EmployeeID + "|" + e.Timestamp + "|" + e.ImagePath
}

func parseLine(line string) (Entry, error) {
	parts := strings.Split(line, "|")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return Entry{}, fmt.Errorf("offline: malformed ledger line %q", line)
	}
	return Entry{EmployeeID: parts[0], Timestamp: parts[1], ImagePath: parts[2]}, nil
}

// Store owns the ledger file and its sibling images. All file operations
// are serialized by the internal mutex; the sender worker appends while
// the sync worker drains from the head.
type Store struct {
	dir    string
	ledger string
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewStore opens (creating if needed) the offline store directory.
func NewStore(dir string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("offline: create dir %s: %w", dir, err)
	}
	return &Store{
		dir:    dir,
		ledger: filepath.Join(dir, ledgerName),
		logger: logger.With().Str("component", "offline-store").Logger(),
	}, nil
}

// Persist writes the image blob and appends its ledger entry. The two
// lifecycles are coupled one-to-one: if the ledger append fails the
// image is removed again so no orphan blob survives.
func (s *Store) Persist(employeeID, timestamp string, image []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := fmt.Sprintf("off_%s_%s.jpg", safeTime(timestamp), uuid.New().String()[:8])
	imgPath := filepath.Join(s.dir, name)
	if err := os.WriteFile(imgPath, image, 0o644); err != nil {
		return fmt.Errorf("offline: write image: %w", err)
	}

	entry := Entry{EmployeeID: employeeID, Timestamp: timestamp, ImagePath: imgPath}
	if err := s.appendLine(entry.line()); err != nil {
		_ = os.Remove(imgPath)
		return err
	}

	s.logger.Info().
		Str("employee", employeeID).
		Str("image", name).
		Msg("job persisted to offline store")
	return nil
}

func (s *Store) appendLine(line string) error {
	f, err := os.OpenFile(s.ledger, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("offline: open ledger: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("offline: append ledger: %w", err)
	}
	return f.Sync()
}

// Head returns the first deliverable entry without removing it.
// Malformed head lines are dropped as unprocessable so one bad line
// cannot block the whole ledger. The second result is false when the
// ledger is empty.
func (s *Store) Head() (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		line, ok, err := s.firstLine()
		if err != nil || !ok {
			return Entry{}, false, err
		}
		entry, perr := parseLine(line)
		if perr == nil {
			return entry, true, nil
		}
		s.logger.Warn().Err(perr).Msg("dropping malformed ledger head")
		if err := s.removeFirstLine(); err != nil {
			return Entry{}, false, err
		}
	}
}

// RemoveHead removes only the head line, preserving FIFO order of the
// rest. The ledger is rewritten to a temp file and renamed over the
// original so a crash never leaves it truncated relative to the images
// it references.
func (s *Store) RemoveHead() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeFirstLine()
}

// Len counts pending entries. Used by tests and the health surface.
func (s *Store) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.readLines()
	if err != nil {
		return 0, err
	}
	return len(lines), nil
}

func (s *Store) firstLine() (string, bool, error) {
	f, err := os.Open(s.ledger)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("offline: open ledger: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			return line, true, nil
		}
	}
	return "", false, scanner.Err()
}

func (s *Store) readLines() ([]string, error) {
	data, err := os.ReadFile(s.ledger)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("offline: read ledger: %w", err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, strings.TrimSpace(line))
		}
	}
	return lines, nil
}

func (s *Store) removeFirstLine() error {
	lines, err := s.readLines()
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}

	tmp := s.ledger + ".tmp"
	rest := ""
	if len(lines) > 1 {
		rest = strings.Join(lines[1:], "\n") + "\n"
	}
	if err := os.WriteFile(tmp, []byte(rest), 0o644); err != nil {
		return fmt.Errorf("offline: write ledger tmp: %w", err)
	}
	if err := os.Rename(tmp, s.ledger); err != nil {
		return fmt.Errorf("offline: replace ledger: %w", err)
	}
	return nil
}

func safeTime(timestamp string) string {
	r := strings.NewReplacer("-", "", ":", "", "T", "_")
	return r.Replace(timestamp)
}
