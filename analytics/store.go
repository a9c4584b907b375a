package analytics

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides database operations for analytics.
type Store struct {
	db *sql.DB
}

// NewStore creates a new analytics store.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS visits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			visitor_id TEXT NOT NULL,
			ip_hash TEXT NOT NULL,
			page_id TEXT NOT NULL,
			page_type TEXT NOT NULL,
			device TEXT NOT NULL,
			referrer TEXT,
			timestamp DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_visits_timestamp ON visits(timestamp);
		CREATE INDEX IF NOT EXISTS idx_visits_visitor_id ON visits(visitor_id);
		CREATE INDEX IF NOT EXISTS idx_visits_page ON visits(page_id);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// GetSetting retrieves a setting value by key. Returns empty string if not
// found.
func (s *Store) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return val, err
}

// SetSetting stores a setting value by key (upsert).
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	return err
}

// SaveVisit stores a new visit.
func (s *Store) SaveVisit(v *Visit) error {
	_, err := s.db.Exec(`INSERT INTO visits (visitor_id, ip_hash, page_id, page_type, device, referrer, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.VisitorID, v.IPHash, v.PageID, v.PageType, v.Device, v.Referrer, v.Timestamp.UTC())
	return err
}

// GetStats returns aggregated statistics for the given time period.
func (s *Store) GetStats(from, to time.Time) (*Stats, error) {
	stats := &Stats{
		Period:        from.Format("2006-01-02") + " to " + to.Format("2006-01-02"),
		PageStats:     []PageStat{},
		DeviceStats:   []DimensionStat{},
		ReferrerStats: []DimensionStat{},
		DailyViews:    []DailyView{},
	}

	err := s.db.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT visitor_id) FROM visits WHERE timestamp BETWEEN ? AND ?`,
		from.UTC(), to.UTC()).Scan(&stats.TotalViews, &stats.UniqueVisitors)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT page_id, page_type, COUNT(*) AS views
		FROM visits WHERE timestamp BETWEEN ? AND ?
		GROUP BY page_id, page_type ORDER BY views DESC LIMIT 50`,
		from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var p PageStat
		if err := rows.Scan(&p.PageID, &p.PageType, &p.Views); err != nil {
			rows.Close()
			return nil, err
		}
		stats.PageStats = append(stats.PageStats, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(`SELECT device, COUNT(*) AS n
		FROM visits WHERE timestamp BETWEEN ? AND ?
		GROUP BY device ORDER BY n DESC`,
		from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var d DimensionStat
		if err := rows.Scan(&d.Name, &d.Count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.DeviceStats = append(stats.DeviceStats, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(`SELECT COALESCE(referrer, ''), COUNT(*) AS n
		FROM visits WHERE timestamp BETWEEN ? AND ? AND referrer IS NOT NULL AND referrer != ''
		GROUP BY referrer ORDER BY n DESC LIMIT 20`,
		from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var d DimensionStat
		if err := rows.Scan(&d.Name, &d.Count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ReferrerStats = append(stats.ReferrerStats, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(`SELECT date(timestamp), COUNT(*)
		FROM visits WHERE timestamp BETWEEN ? AND ?
		GROUP BY date(timestamp) ORDER BY date(timestamp)`,
		from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var d DailyView
		if err := rows.Scan(&d.Date, &d.Views); err != nil {
			rows.Close()
			return nil, err
		}
		stats.DailyViews = append(stats.DailyViews, d)
	}
	rows.Close()
	return stats, rows.Err()
}

// DeleteOlderThan removes visits older than the cutoff and returns the
// number deleted.
func (s *Store) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM visits WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// StartCleanupScheduler deletes visits older than retentionDays on the
// given interval. The returned func stops the scheduler.
func (s *Store) StartCleanupScheduler(retentionDays int, interval time.Duration) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cutoff := time.Now().AddDate(0, 0, -retentionDays)
				if _, err := s.DeleteOlderThan(cutoff); err != nil {
					// Retention cleanup is best effort; next tick retries.
					continue
				}
			case <-stop:
				return
			}
		}
	}()
	return func() { close(stop) }
}
