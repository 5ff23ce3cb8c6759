package core

import (
	"fmt"
	"strings"
)

// Directory resolves caller-supplied printer names against the OS printer
// registry. Every call re-enumerates: printer availability changes behind
// the agent's back, so nothing is cached.
type Directory struct {
	spooler Spooler
}

func NewDirectory(spooler Spooler) *Directory {
	return &Directory{spooler: spooler}
}

func (d *Directory) List() ([]PrinterDescriptor, error) {
	printers, err := d.spooler.Printers()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate printers: %w", err)
	}
	return printers, nil
}

// Resolve matches name case-insensitively against installed printers. An
// empty name resolves the system default printer.
func (d *Directory) Resolve(name string) (PrinterDescriptor, error) {
	printers, err := d.List()
	if err != nil {
		return PrinterDescriptor{}, err
	}

	if name == "" {
		for _, p := range printers {
			if p.IsDefault {
				return p, nil
			}
		}
		return PrinterDescriptor{}, ErrNoDefaultPrinter
	}

	for _, p := range printers {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return PrinterDescriptor{}, fmt.Errorf("%w: %q", ErrPrinterNotFound, name)
}

func (d *Directory) Capabilities(name string) (*Capabilities, error) {
	printer, err := d.Resolve(name)
	if err != nil {
		return nil, err
	}

	caps, err := d.spooler.Capabilities(printer.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to query capabilities for %q: %w", printer.Name, err)
	}
	return caps, nil
}
