package core

import (
	"errors"
	"time"
)

var (
	ErrPrinterNotFound    = errors.New("printer not found")
	ErrNoDefaultPrinter   = errors.New("no default printer")
	ErrPrinterUnavailable = errors.New("printer is not available")
	ErrJobNotFound        = errors.New("job not found")
	ErrDuplicateJob       = errors.New("job id already registered")
	ErrNotRunning         = errors.New("dispatcher is not running")
)

// JobState is the lifecycle state of a print job. Transitions only move
// forward: queued -> sent -> completed or failed.
type JobState string

const (
	StateQueued    JobState = "queued"
	StateSent      JobState = "sent"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

var stateRank = map[JobState]int{
	StateQueued:    0,
	StateSent:      1,
	StateCompleted: 2,
	StateFailed:    2,
}

func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

type Duplex string

const (
	DuplexNone      Duplex = "none"
	DuplexLongEdge  Duplex = "long_edge"
	DuplexShortEdge Duplex = "short_edge"
)

type Orientation string

const (
	OrientationPortrait         Orientation = "portrait"
	OrientationLandscape        Orientation = "landscape"
	OrientationReversePortrait  Orientation = "reverse_portrait"
	OrientationReverseLandscape Orientation = "reverse_landscape"
)

// PageSize dimensions are in microns, matching what the driver reports.
type PageSize struct {
	Name         string `json:"name,omitempty"`
	WidthMicron  uint32 `json:"width"`
	HeightMicron uint32 `json:"height"`
}

// PrintOptions are immutable once a job is submitted.
type PrintOptions struct {
	Copies      int
	Duplex      Duplex
	Orientation Orientation
	PageSize    *PageSize
}

// PrintJob is one submission tracked by the registry. The staged file at
// DocumentPath belongs to the job until it reaches a terminal state.
type PrintJob struct {
	ID           string
	PrinterName  string
	DocumentPath string
	Options      PrintOptions
	State        JobState
	Error        string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// Printer status snapshot values as reported at resolution time.
const (
	PrinterReady   = "ready"
	PrinterOffline = "offline"
	PrinterError   = "error"
	PrinterUnknown = "unknown"
)

type PrinterDescriptor struct {
	Name      string `json:"name"`
	IsDefault bool   `json:"default"`
	Status    string `json:"status"`
}

// Capabilities is what the driver reports for a printer, queried on demand.
type Capabilities struct {
	MaxCopies    int           `json:"max_copies,omitempty"`
	Duplex       []Duplex      `json:"duplex,omitempty"`
	Orientations []Orientation `json:"orientations,omitempty"`
	PageSizes    []PageSize    `json:"page_sizes,omitempty"`
}

// NativeStatus is a poll snapshot of a spooler job.
type NativeStatus struct {
	Done   bool
	Failed bool
	Reason string
}

// Spooler is the native print subsystem. Calls may block on driver I/O,
// so the dispatcher keeps them off the request path.
type Spooler interface {
	Printers() ([]PrinterDescriptor, error)
	Capabilities(printerName string) (*Capabilities, error)
	Submit(printerName, documentPath, jobName string, opts PrintOptions) (uint32, error)
	JobStatus(printerName string, nativeID uint32) (NativeStatus, error)
	CancelJob(printerName string, nativeID uint32) error
}
