package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDefaultPrinter(t *testing.T) {
	spooler := newMockSpooler(
		readyPrinter("Office Laser", false),
		readyPrinter("Reception Inkjet", true),
	)
	d := NewDirectory(spooler)

	p, err := d.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "Reception Inkjet", p.Name)
	assert.True(t, p.IsDefault)
}

func TestResolveNoDefaultPrinter(t *testing.T) {
	d := NewDirectory(newMockSpooler(readyPrinter("Office Laser", false)))

	_, err := d.Resolve("")
	assert.ErrorIs(t, err, ErrNoDefaultPrinter)
}

func TestResolveNoPrintersInstalled(t *testing.T) {
	d := NewDirectory(newMockSpooler())

	_, err := d.Resolve("")
	assert.ErrorIs(t, err, ErrNoDefaultPrinter)

	_, err = d.Resolve("anything")
	assert.ErrorIs(t, err, ErrPrinterNotFound)
}

func TestResolveByNameCaseInsensitive(t *testing.T) {
	d := NewDirectory(newMockSpooler(readyPrinter("Office Laser", true)))

	p, err := d.Resolve("office laser")
	require.NoError(t, err)
	assert.Equal(t, "Office Laser", p.Name)
}

func TestResolveUnknownName(t *testing.T) {
	d := NewDirectory(newMockSpooler(readyPrinter("Office Laser", true)))

	_, err := d.Resolve("Basement Plotter")
	assert.ErrorIs(t, err, ErrPrinterNotFound)
}

func TestResolvePropagatesEnumerationError(t *testing.T) {
	spooler := newMockSpooler()
	spooler.printersErr = errors.New("spooler service down")
	d := NewDirectory(spooler)

	_, err := d.Resolve("Office Laser")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPrinterNotFound)
}

func TestCapabilitiesResolvesFirst(t *testing.T) {
	d := NewDirectory(newMockSpooler(readyPrinter("Office Laser", true)))

	caps, err := d.Capabilities("OFFICE LASER")
	require.NoError(t, err)
	assert.Equal(t, 99, caps.MaxCopies)
	require.Len(t, caps.PageSizes, 1)
	assert.Equal(t, "A4", caps.PageSizes[0].Name)

	_, err = d.Capabilities("nope")
	assert.ErrorIs(t, err, ErrPrinterNotFound)
}
