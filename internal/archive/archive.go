package archive

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/directprint/agent/internal/core"
)

// Archive mirrors terminal jobs into sqlite so operators can inspect
// history past the registry's retention window. It is an optional,
// write-behind diagnostic surface: the registry stays the source of truth
// and in-flight jobs are never persisted.
type Archive struct {
	db            *sql.DB
	retentionDays int
	logger        zerolog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

type Entry struct {
	JobID       string     `json:"job_id"`
	Printer     string     `json:"printer"`
	State       string     `json:"state"`
	Error       string     `json:"error,omitempty"`
	Copies      int        `json:"copies"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func Open(path string, retentionDays int, logger zerolog.Logger) (*Archive, error) {
	if retentionDays <= 0 {
		retentionDays = 30
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS terminal_jobs (
			job_id       TEXT PRIMARY KEY,
			printer      TEXT NOT NULL,
			state        TEXT NOT NULL,
			error        TEXT NOT NULL DEFAULT '',
			copies       INTEGER NOT NULL DEFAULT 1,
			created_at   DATETIME NOT NULL,
			completed_at DATETIME
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create archive schema: %w", err)
	}

	return &Archive{
		db:            db,
		retentionDays: retentionDays,
		logger:        logger.With().Str("component", "archive").Logger(),
		stopCh:        make(chan struct{}),
	}, nil
}

// Record inserts one terminal job. Failures are the caller's to log, not
// to retry: the archive must never block or fail the print path.
func (a *Archive) Record(job core.PrintJob) error {
	_, err := a.db.Exec(`
		INSERT OR REPLACE INTO terminal_jobs (job_id, printer, state, error, copies, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.PrinterName, string(job.State), job.Error, job.Options.Copies, job.CreatedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to archive job: %w", err)
	}
	return nil
}

func (a *Archive) List(limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := a.db.Query(`
		SELECT job_id, printer, state, error, copies, created_at, completed_at
		FROM terminal_jobs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var completedAt sql.NullTime
		if err := rows.Scan(&e.JobID, &e.Printer, &e.State, &e.Error, &e.Copies, &e.CreatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan archive entry: %w", err)
		}
		if completedAt.Valid {
			e.CompletedAt = &completedAt.Time
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (a *Archive) Prune() (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -a.retentionDays)
	res, err := a.db.Exec("DELETE FROM terminal_jobs WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune archive: %w", err)
	}
	return res.RowsAffected()
}

func (a *Archive) StartPruner() {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.mu.Unlock()

	a.wg.Add(1)
	go a.pruneLoop()
}

func (a *Archive) pruneLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			if n, err := a.Prune(); err != nil {
				a.logger.Warn().Err(err).Msg("archive prune failed")
			} else if n > 0 {
				a.logger.Info().Int64("pruned", n).Msg("pruned archived jobs")
			}
		}
	}
}

func (a *Archive) Close() error {
	a.mu.Lock()
	if a.running {
		a.running = false
		close(a.stopCh)
	}
	a.mu.Unlock()
	a.wg.Wait()

	return a.db.Close()
}
