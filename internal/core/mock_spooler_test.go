package core

import (
	"fmt"
	"sync"
)

// mockSpooler is a controllable native spooler for tests. submitGate, when
// set, blocks Submit until the gate is closed so tests can observe jobs
// parked in the queued state.
type mockSpooler struct {
	mu sync.Mutex

	printers    []PrinterDescriptor
	printersErr error

	submitErr      error
	submitGate     chan struct{}
	pollsUntilDone int
	failJobs       bool
	failReason     string

	nextID    uint32
	polls     map[uint32]int
	canceled  map[uint32]bool
	submitted map[uint32]string
}

func newMockSpooler(printers ...PrinterDescriptor) *mockSpooler {
	return &mockSpooler{
		printers:       printers,
		pollsUntilDone: 1,
		polls:          make(map[uint32]int),
		canceled:       make(map[uint32]bool),
		submitted:      make(map[uint32]string),
	}
}

func (m *mockSpooler) Printers() ([]PrinterDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.printersErr != nil {
		return nil, m.printersErr
	}
	out := make([]PrinterDescriptor, len(m.printers))
	copy(out, m.printers)
	return out, nil
}

func (m *mockSpooler) Capabilities(printerName string) (*Capabilities, error) {
	return &Capabilities{
		MaxCopies:    99,
		Duplex:       []Duplex{DuplexNone, DuplexLongEdge},
		Orientations: []Orientation{OrientationPortrait, OrientationLandscape},
		PageSizes:    []PageSize{{Name: "A4", WidthMicron: 210000, HeightMicron: 297000}},
	}, nil
}

func (m *mockSpooler) Submit(printerName, documentPath, jobName string, opts PrintOptions) (uint32, error) {
	if gate := m.gate(); gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return 0, m.submitErr
	}
	m.nextID++
	m.submitted[m.nextID] = documentPath
	return m.nextID, nil
}

func (m *mockSpooler) gate() chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitGate
}

func (m *mockSpooler) JobStatus(printerName string, nativeID uint32) (NativeStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.canceled[nativeID] {
		return NativeStatus{Done: true, Failed: true, Reason: "canceled by operator"}, nil
	}

	m.polls[nativeID]++
	if m.polls[nativeID] < m.pollsUntilDone {
		return NativeStatus{}, nil
	}
	if m.failJobs {
		reason := m.failReason
		if reason == "" {
			reason = "device error"
		}
		return NativeStatus{Done: true, Failed: true, Reason: reason}, nil
	}
	return NativeStatus{Done: true}, nil
}

func (m *mockSpooler) CancelJob(printerName string, nativeID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.submitted[nativeID]; !ok {
		return fmt.Errorf("unknown native job %d", nativeID)
	}
	m.canceled[nativeID] = true
	return nil
}

func (m *mockSpooler) canceledCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.canceled)
}

func readyPrinter(name string, isDefault bool) PrinterDescriptor {
	return PrinterDescriptor{Name: name, IsDefault: isDefault, Status: PrinterReady}
}
