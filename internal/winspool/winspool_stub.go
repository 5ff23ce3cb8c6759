//go:build !windows

package winspool

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/directprint/agent/internal/core"
)

// ErrUnsupported is returned on platforms without a Windows print spooler.
// The agent still starts so the API surface can be exercised against the
// core with a mock spooler during development.
var ErrUnsupported = errors.New("winspool is only available on windows")

type Spooler struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Spooler {
	return &Spooler{logger: logger.With().Str("component", "winspool").Logger()}
}

func (s *Spooler) Printers() ([]core.PrinterDescriptor, error) {
	return nil, ErrUnsupported
}

func (s *Spooler) Capabilities(printerName string) (*core.Capabilities, error) {
	return nil, ErrUnsupported
}

func (s *Spooler) Submit(printerName, documentPath, jobName string, opts core.PrintOptions) (uint32, error) {
	return 0, ErrUnsupported
}

func (s *Spooler) JobStatus(printerName string, nativeID uint32) (core.NativeStatus, error) {
	return core.NativeStatus{}, ErrUnsupported
}

func (s *Spooler) CancelJob(printerName string, nativeID uint32) error {
	return ErrUnsupported
}
