package database

import (
	"database/sql"
	"fmt"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(dbPath string) error {
	var err error
	DB, err = sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	DB.SetMaxOpenConns(1)

	createReadingsTable := `
	CREATE TABLE IF NOT EXISTS soc_readings (
		device_ref TEXT NOT NULL,
		soc REAL NOT NULL,
		recorded_at INTEGER NOT NULL
	);`
	_, err = DB.Exec(createReadingsTable)
	if err != nil {
		return fmt.Errorf("failed to create soc_readings table: %w", err)
	}

	_, err = DB.Exec(`CREATE INDEX IF NOT EXISTS idx_soc_readings_device_time ON soc_readings (device_ref, recorded_at);`)
	if err != nil {
		return fmt.Errorf("failed to create soc_readings index: %w", err)
	}

	createAlertLogTable := `
	CREATE TABLE IF NOT EXISTS alert_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_ref TEXT NOT NULL,
		device_name TEXT NOT NULL,
		threshold REAL NOT NULL,
		soc REAL NOT NULL,
		severity TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);`
	_, err = DB.Exec(createAlertLogTable)
	if err != nil {
		return fmt.Errorf("failed to create alert_log table: %w", err)
	}

	createMetricsTable := `
		CREATE TABLE IF NOT EXISTS metrics (
		metric_name TEXT NOT NULL,
		label_key TEXT NOT NULL DEFAULT '',
		label_value TEXT NOT NULL DEFAULT '',
		metric_value REAL NOT NULL,
		PRIMARY KEY (metric_name, label_key, label_value)
	);`
	_, err = DB.Exec(createMetricsTable)
	if err != nil {
		return fmt.Errorf("failed to create metrics table: %w", err)
	}

	log.Println("Database initialized successfully.")
	return nil
}

func CloseDB() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
