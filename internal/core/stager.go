package core

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Stager writes submitted documents to a process-scoped temporary
// directory. The spooler opens staged files independently, so a handle is
// only returned once the file is fully written, synced and closed.
type Stager struct {
	dir    string
	logger zerolog.Logger
}

// NewStager creates the staging directory under baseDir (the platform
// temp dir when empty). The directory is removed wholesale on Close, which
// also covers files orphaned by a crash mid-job.
func NewStager(baseDir string, logger zerolog.Logger) (*Stager, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}

	dir, err := os.MkdirTemp(baseDir, "directprint-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	return &Stager{
		dir:    dir,
		logger: logger.With().Str("component", "stager").Logger(),
	}, nil
}

// TempDocument is a staged file owned by exactly one job. Release deletes
// the file and is safe to call more than once; only the first call acts.
type TempDocument struct {
	path    string
	size    int64
	release sync.Once
	logger  zerolog.Logger
}

func (s *Stager) Stage(data []byte) (*TempDocument, error) {
	f, err := os.CreateTemp(s.dir, "job-*.spl")
	if err != nil {
		return nil, fmt.Errorf("failed to create staged file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to write staged file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to flush staged file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to close staged file: %w", err)
	}

	return &TempDocument{
		path:   f.Name(),
		size:   int64(len(data)),
		logger: s.logger,
	}, nil
}

func (s *Stager) Dir() string {
	return s.dir
}

func (s *Stager) Close() error {
	return os.RemoveAll(s.dir)
}

func (d *TempDocument) Path() string {
	return d.path
}

func (d *TempDocument) Size() int64 {
	return d.size
}

func (d *TempDocument) Release() {
	d.release.Do(func() {
		if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
			d.logger.Warn().Err(err).Str("path", d.path).Msg("failed to remove staged file")
		}
	})
}
