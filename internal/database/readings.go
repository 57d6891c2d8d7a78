package database

import (
	"battery-status-bot/internal/types"
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// InsertReading stores one SoC sample.
func InsertReading(ctx context.Context, deviceRef string, soc float64, at time.Time) error {
	query := `INSERT INTO soc_readings (device_ref, soc, recorded_at) VALUES (?, ?, ?);`

	_, err := DB.ExecContext(ctx, query, deviceRef, soc, at.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// GetReadingsSince returns the samples of a device recorded at or after since, oldest first.
func GetReadingsSince(ctx context.Context, deviceRef string, since time.Time) ([]types.ReadingPoint, error) {
	query := `
	SELECT device_ref, soc, recorded_at
	FROM soc_readings
	WHERE device_ref = ? AND recorded_at >= ?
	ORDER BY recorded_at ASC;`

	rows, err := DB.QueryContext(ctx, query, deviceRef, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query readings for %s: %w", deviceRef, err)
	}
	defer rows.Close()

	var points []types.ReadingPoint
	for rows.Next() {
		var p types.ReadingPoint
		var recordedAt int64
		if err := rows.Scan(&p.DeviceRef, &p.SoC, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		p.At = time.Unix(recordedAt, 0)
		points = append(points, p)
	}
	return points, rows.Err()
}

// PruneReadings deletes samples older than before and returns how many were removed.
func PruneReadings(ctx context.Context, before time.Time) (int64, error) {
	res, err := DB.ExecContext(ctx, `DELETE FROM soc_readings WHERE recorded_at < ?;`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune readings: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// InsertAlertLog stores an emitted alert.
func InsertAlertLog(ctx context.Context, event types.AlertEvent) error {
	query := `
	INSERT INTO alert_log (device_ref, device_name, threshold, soc, severity, created_at)
	VALUES (?, ?, ?, ?, ?, ?);`

	_, err := DB.ExecContext(ctx, query,
		event.DeviceRef, event.DeviceName, event.Threshold, event.SoC, event.Severity.String(), event.At.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert alert log: %w", err)
	}

	log.Debugf("Alert logged: Device: %s, Threshold: %.0f, SoC: %.1f", event.DeviceRef, event.Threshold, event.SoC)
	return nil
}

// GetRecentAlerts returns the latest alerts, newest first.
func GetRecentAlerts(ctx context.Context, limit int) ([]types.AlertRecord, error) {
	query := `
	SELECT id, device_ref, device_name, threshold, soc, severity, created_at
	FROM alert_log
	ORDER BY created_at DESC, id DESC
	LIMIT ?;`

	rows, err := DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []types.AlertRecord
	for rows.Next() {
		var a types.AlertRecord
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.DeviceRef, &a.DeviceName, &a.Threshold, &a.SoC, &a.Severity, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		a.CreatedAt = time.Unix(createdAt, 0)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Recorder adapts the history tables to the alerter.
type Recorder struct{}

func (Recorder) RecordReading(ctx context.Context, ref string, soc float64, at time.Time) error {
	return InsertReading(ctx, ref, soc, at)
}

func (Recorder) RecordAlert(ctx context.Context, event types.AlertEvent) error {
	return InsertAlertLog(ctx, event)
}
