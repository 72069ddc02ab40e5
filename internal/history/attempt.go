package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/FluidXR/untether/internal/wireless"
)

// Attempt is one recorded switch attempt.
type Attempt struct {
	ID              int64
	DeviceSerial    string
	Host            string
	Port            int
	Status          string // "succeeded", "failed" or "cancelled"
	Reason          string
	Detail          string
	AlreadySwitched bool
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Duration returns how long the attempt took.
func (a Attempt) Duration() time.Duration {
	return a.FinishedAt.Sub(a.StartedAt)
}

// FromOutcome builds the record for a finished attempt. requested is the
// address the caller asked for; it is kept when the outcome carries no
// resolved address.
func FromOutcome(serial string, requested wireless.Address, out wireless.Outcome, started, finished time.Time) Attempt {
	a := Attempt{
		DeviceSerial: serial,
		Host:         requested.Host,
		Port:         requested.Port,
		Status:       out.Status.String(),
		StartedAt:    started,
		FinishedAt:   finished,
	}
	switch out.Status {
	case wireless.StatusSucceeded:
		a.Host = out.Address.Host
		a.Port = out.Address.Port
		a.AlreadySwitched = out.AlreadySwitched
	case wireless.StatusFailed:
		if out.Address.Host != "" {
			a.Host = out.Address.Host
			a.Port = out.Address.Port
		}
		a.Reason = out.Reason.String()
		a.Detail = out.Detail
	}
	return a
}

// Record inserts an attempt and returns its ID.
func (h *DB) Record(a Attempt) (int64, error) {
	res, err := h.db.Exec(
		`INSERT INTO attempts (device_serial, host, port, status, reason, detail, already_switched, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.DeviceSerial, a.Host, a.Port, a.Status, a.Reason, a.Detail, a.AlreadySwitched, a.StartedAt.UTC(), a.FinishedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("record attempt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record attempt: %w", err)
	}
	return id, nil
}

const attemptColumns = `id, device_serial, host, port, status, reason, detail, already_switched, started_at, finished_at`

func scanAttempt(row interface{ Scan(...interface{}) error }) (Attempt, error) {
	var a Attempt
	err := row.Scan(&a.ID, &a.DeviceSerial, &a.Host, &a.Port, &a.Status, &a.Reason, &a.Detail,
		&a.AlreadySwitched, &a.StartedAt, &a.FinishedAt)
	return a, err
}

// LastSuccess returns the most recent successful attempt for a device, or
// nil if there is none.
func (h *DB) LastSuccess(deviceSerial string) (*Attempt, error) {
	row := h.db.QueryRow(
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE device_serial = ? AND status = ?
		 ORDER BY finished_at DESC, id DESC LIMIT 1`,
		deviceSerial, wireless.StatusSucceeded.String(),
	)
	a, err := scanAttempt(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("last success: %w", err)
	}
	return &a, nil
}

// List returns the most recent attempts, newest first. An empty serial
// lists every device. limit <= 0 means no limit.
func (h *DB) List(deviceSerial string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := h.db.Query(
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE ? = '' OR device_serial = ?
		 ORDER BY finished_at DESC, id DESC LIMIT ?`,
		deviceSerial, deviceSerial, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// DeviceStats summarizes the attempts made for a device.
type DeviceStats struct {
	Attempts  int
	Succeeded int
	Failed    int
	Cancelled int
}

// GetDeviceStats returns attempt counts for a device.
func (h *DB) GetDeviceStats(deviceSerial string) (DeviceStats, error) {
	var stats DeviceStats
	rows, err := h.db.Query(
		`SELECT status, COUNT(*) FROM attempts WHERE device_serial = ? GROUP BY status`, deviceSerial,
	)
	if err != nil {
		return stats, fmt.Errorf("device stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return stats, fmt.Errorf("scan device stats: %w", err)
		}
		stats.Attempts += n
		switch status {
		case wireless.StatusSucceeded.String():
			stats.Succeeded = n
		case wireless.StatusFailed.String():
			stats.Failed = n
		case wireless.StatusCancelled.String():
			stats.Cancelled = n
		}
	}
	return stats, rows.Err()
}
