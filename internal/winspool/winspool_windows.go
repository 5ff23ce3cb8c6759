//go:build windows

package winspool

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unsafe"

	"github.com/rs/zerolog"
	"golang.org/x/sys/windows"

	"github.com/directprint/agent/internal/core"
)

var (
	winspoolDrv = windows.NewLazySystemDLL("winspool.drv")

	procEnumPrintersW      = winspoolDrv.NewProc("EnumPrintersW")
	procGetDefaultPrinterW = winspoolDrv.NewProc("GetDefaultPrinterW")
	procOpenPrinterW       = winspoolDrv.NewProc("OpenPrinterW")
	procClosePrinter       = winspoolDrv.NewProc("ClosePrinter")
	procStartDocPrinterW   = winspoolDrv.NewProc("StartDocPrinterW")
	procStartPagePrinter   = winspoolDrv.NewProc("StartPagePrinter")
	procWritePrinter       = winspoolDrv.NewProc("WritePrinter")
	procEndPagePrinter     = winspoolDrv.NewProc("EndPagePrinter")
	procEndDocPrinter      = winspoolDrv.NewProc("EndDocPrinter")
	procEnumJobsW          = winspoolDrv.NewProc("EnumJobsW")
	procSetJobW            = winspoolDrv.NewProc("SetJobW")
	procDeviceCapabilities = winspoolDrv.NewProc("DeviceCapabilitiesW")
)

const (
	printerEnumLocal       = 0x00000002
	printerEnumConnections = 0x00000004

	printerStatusPaused       = 0x00000001
	printerStatusError        = 0x00000002
	printerStatusPaperJam     = 0x00000008
	printerStatusPaperOut     = 0x00000010
	printerStatusOffline      = 0x00000080
	printerStatusNotAvailable = 0x00001000
	printerStatusDoorOpen     = 0x00400000

	jobStatusPaused   = 0x00000001
	jobStatusError    = 0x00000002
	jobStatusDeleting = 0x00000004
	jobStatusDeleted  = 0x00000100
	jobStatusPrinted  = 0x00000080

	jobControlCancel = 3

	dcPaperSize   = 3
	dcCopies      = 18
	dcOrientation = 17
	dcDuplex      = 7
	dcPaperNames  = 16
)

type printerInfo2 struct {
	pServerName         *uint16
	pPrinterName        *uint16
	pShareName          *uint16
	pPortName           *uint16
	pDriverName         *uint16
	pComment            *uint16
	pLocation           *uint16
	pDevMode            uintptr
	pSepFile            *uint16
	pPrintProcessor     *uint16
	pDatatype           *uint16
	pParameters         *uint16
	pSecurityDescriptor uintptr
	attributes          uint32
	priority            uint32
	defaultPriority     uint32
	startTime           uint32
	untilTime           uint32
	status              uint32
	cJobs               uint32
	averagePPM          uint32
}

type docInfo1 struct {
	pDocName    *uint16
	pOutputFile *uint16
	pDatatype   *uint16
}

type jobInfo1 struct {
	jobID        uint32
	pPrinterName *uint16
	pMachineName *uint16
	pUserName    *uint16
	pDocument    *uint16
	pDatatype    *uint16
	pStatus      *uint16
	status       uint32
	priority     uint32
	position     uint32
	totalPages   uint32
	pagesPrinted uint32
	submitted    windows.Systemtime
}

type pointS struct {
	x int32
	y int32
}

// Spooler talks to the local Windows print spooler over winspool.drv.
// Documents are submitted as RAW datatype streams; rendering stays with
// the driver stack.
type Spooler struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Spooler {
	return &Spooler{logger: logger.With().Str("component", "winspool").Logger()}
}

func (s *Spooler) Printers() ([]core.PrinterDescriptor, error) {
	var needed, returned uint32
	flags := uintptr(printerEnumLocal | printerEnumConnections)

	procEnumPrintersW.Call(flags, 0, 2, 0, 0, uintptr(unsafe.Pointer(&needed)), uintptr(unsafe.Pointer(&returned)))
	if needed == 0 {
		return nil, nil
	}

	buf := make([]byte, needed)
	r1, _, err := procEnumPrintersW.Call(flags, 0, 2,
		uintptr(unsafe.Pointer(&buf[0])), uintptr(needed),
		uintptr(unsafe.Pointer(&needed)), uintptr(unsafe.Pointer(&returned)))
	if r1 == 0 {
		return nil, fmt.Errorf("EnumPrinters: %w", err)
	}

	defaultName, _ := s.defaultPrinter()

	infos := unsafe.Slice((*printerInfo2)(unsafe.Pointer(&buf[0])), returned)
	printers := make([]core.PrinterDescriptor, 0, returned)
	for i := range infos {
		name := windows.UTF16PtrToString(infos[i].pPrinterName)
		printers = append(printers, core.PrinterDescriptor{
			Name:      name,
			IsDefault: name == defaultName,
			Status:    statusString(infos[i].status),
		})
	}
	return printers, nil
}

func (s *Spooler) defaultPrinter() (string, error) {
	var size uint32
	procGetDefaultPrinterW.Call(0, uintptr(unsafe.Pointer(&size)))
	if size == 0 {
		return "", errors.New("no default printer")
	}

	buf := make([]uint16, size)
	r1, _, err := procGetDefaultPrinterW.Call(uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&size)))
	if r1 == 0 {
		return "", fmt.Errorf("GetDefaultPrinter: %w", err)
	}
	return windows.UTF16ToString(buf), nil
}

func statusString(status uint32) string {
	switch {
	case status&(printerStatusOffline|printerStatusNotAvailable) != 0:
		return core.PrinterOffline
	case status&(printerStatusError|printerStatusPaperJam|printerStatusPaperOut|printerStatusDoorOpen) != 0:
		return core.PrinterError
	default:
		return core.PrinterReady
	}
}

func (s *Spooler) open(printerName string) (windows.Handle, error) {
	namePtr, err := windows.UTF16PtrFromString(printerName)
	if err != nil {
		return 0, err
	}

	var h windows.Handle
	r1, _, callErr := procOpenPrinterW.Call(uintptr(unsafe.Pointer(namePtr)), uintptr(unsafe.Pointer(&h)), 0)
	if r1 == 0 {
		return 0, fmt.Errorf("OpenPrinter %q: %w", printerName, callErr)
	}
	return h, nil
}

func closePrinter(h windows.Handle) {
	procClosePrinter.Call(uintptr(h))
}

// Submit streams the staged file to the spooler as one RAW document and
// returns the spooler's job id. Copies are written as repeated streams;
// layout options ride along in the job name for drivers that honor raw
// data only.
func (s *Spooler) Submit(printerName, documentPath, jobName string, opts core.PrintOptions) (uint32, error) {
	h, err := s.open(printerName)
	if err != nil {
		return 0, err
	}
	defer closePrinter(h)

	docName, err := windows.UTF16PtrFromString(jobName)
	if err != nil {
		return 0, err
	}
	datatype, err := windows.UTF16PtrFromString("RAW")
	if err != nil {
		return 0, err
	}

	di := docInfo1{pDocName: docName, pDatatype: datatype}
	jobID, _, callErr := procStartDocPrinterW.Call(uintptr(h), 1, uintptr(unsafe.Pointer(&di)))
	if jobID == 0 {
		return 0, fmt.Errorf("StartDocPrinter: %w", callErr)
	}
	defer procEndDocPrinter.Call(uintptr(h))

	copies := opts.Copies
	if copies < 1 {
		copies = 1
	}
	for i := 0; i < copies; i++ {
		if err := s.writeDocument(h, documentPath); err != nil {
			return 0, err
		}
	}

	return uint32(jobID), nil
}

func (s *Spooler) writeDocument(h windows.Handle, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open staged file: %w", err)
	}
	defer f.Close()

	r1, _, callErr := procStartPagePrinter.Call(uintptr(h))
	if r1 == 0 {
		return fmt.Errorf("StartPagePrinter: %w", callErr)
	}
	defer procEndPagePrinter.Call(uintptr(h))

	buf := make([]byte, 64*1024)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			var written uint32
			r1, _, callErr := procWritePrinter.Call(uintptr(h),
				uintptr(unsafe.Pointer(&buf[0])), uintptr(n),
				uintptr(unsafe.Pointer(&written)))
			if r1 == 0 || int(written) != n {
				return fmt.Errorf("WritePrinter: %w", callErr)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read staged file: %w", err)
		}
	}
}

// JobStatus reports a poll snapshot of one spooler job. A job id that has
// left the queue without an error flag counts as completed; the spooler
// drops finished jobs from EnumJobs.
func (s *Spooler) JobStatus(printerName string, nativeID uint32) (core.NativeStatus, error) {
	h, err := s.open(printerName)
	if err != nil {
		return core.NativeStatus{}, err
	}
	defer closePrinter(h)

	var needed, returned uint32
	procEnumJobsW.Call(uintptr(h), 0, 0xFFFF, 1, 0, 0,
		uintptr(unsafe.Pointer(&needed)), uintptr(unsafe.Pointer(&returned)))
	if needed == 0 {
		return core.NativeStatus{Done: true}, nil
	}

	buf := make([]byte, needed)
	r1, _, callErr := procEnumJobsW.Call(uintptr(h), 0, 0xFFFF, 1,
		uintptr(unsafe.Pointer(&buf[0])), uintptr(needed),
		uintptr(unsafe.Pointer(&needed)), uintptr(unsafe.Pointer(&returned)))
	if r1 == 0 {
		return core.NativeStatus{}, fmt.Errorf("EnumJobs: %w", callErr)
	}

	jobs := unsafe.Slice((*jobInfo1)(unsafe.Pointer(&buf[0])), returned)
	for i := range jobs {
		if jobs[i].jobID != nativeID {
			continue
		}
		status := jobs[i].status
		switch {
		case status&jobStatusError != 0:
			return core.NativeStatus{Done: true, Failed: true, Reason: jobReason(&jobs[i])}, nil
		case status&(jobStatusDeleted|jobStatusDeleting) != 0:
			return core.NativeStatus{Done: true, Failed: true, Reason: "job was deleted from the queue"}, nil
		case status&jobStatusPrinted != 0:
			return core.NativeStatus{Done: true}, nil
		default:
			return core.NativeStatus{}, nil
		}
	}

	// Not in the queue anymore: the spooler finished it.
	return core.NativeStatus{Done: true}, nil
}

func jobReason(info *jobInfo1) string {
	if info.pStatus != nil {
		if msg := windows.UTF16PtrToString(info.pStatus); msg != "" {
			return msg
		}
	}
	return "spooler reported a job error"
}

func (s *Spooler) CancelJob(printerName string, nativeID uint32) error {
	h, err := s.open(printerName)
	if err != nil {
		return err
	}
	defer closePrinter(h)

	r1, _, callErr := procSetJobW.Call(uintptr(h), uintptr(nativeID), 0, 0, jobControlCancel)
	if r1 == 0 {
		return fmt.Errorf("SetJob cancel: %w", callErr)
	}
	return nil
}

func (s *Spooler) Capabilities(printerName string) (*core.Capabilities, error) {
	namePtr, err := windows.UTF16PtrFromString(printerName)
	if err != nil {
		return nil, err
	}

	caps := &core.Capabilities{}

	if n, _, _ := procDeviceCapabilities.Call(uintptr(unsafe.Pointer(namePtr)), 0, dcCopies, 0, 0); int32(n) > 0 {
		caps.MaxCopies = int(n)
	}

	if n, _, _ := procDeviceCapabilities.Call(uintptr(unsafe.Pointer(namePtr)), 0, dcOrientation, 0, 0); int32(n) >= 0 {
		caps.Orientations = []core.Orientation{core.OrientationPortrait}
		if n == 90 || n == 270 {
			caps.Orientations = append(caps.Orientations, core.OrientationLandscape)
		}
	}

	if n, _, _ := procDeviceCapabilities.Call(uintptr(unsafe.Pointer(namePtr)), 0, dcDuplex, 0, 0); int32(n) == 1 {
		caps.Duplex = []core.Duplex{core.DuplexNone, core.DuplexLongEdge, core.DuplexShortEdge}
	} else {
		caps.Duplex = []core.Duplex{core.DuplexNone}
	}

	caps.PageSizes = s.pageSizes(namePtr)

	return caps, nil
}

// pageSizes pairs DC_PAPERNAMES (64 wchar entries) with DC_PAPERSIZE
// (POINT entries in tenths of a millimeter, reported here in microns).
func (s *Spooler) pageSizes(namePtr *uint16) []core.PageSize {
	count, _, _ := procDeviceCapabilities.Call(uintptr(unsafe.Pointer(namePtr)), 0, dcPaperSize, 0, 0)
	if int32(count) <= 0 {
		return nil
	}
	n := int(count)

	sizes := make([]pointS, n)
	r1, _, _ := procDeviceCapabilities.Call(uintptr(unsafe.Pointer(namePtr)), 0, dcPaperSize,
		uintptr(unsafe.Pointer(&sizes[0])), 0)
	if int32(r1) <= 0 {
		return nil
	}

	names := make([]uint16, n*64)
	haveNames := false
	r1, _, _ = procDeviceCapabilities.Call(uintptr(unsafe.Pointer(namePtr)), 0, dcPaperNames,
		uintptr(unsafe.Pointer(&names[0])), 0)
	if int32(r1) > 0 {
		haveNames = true
	}

	out := make([]core.PageSize, 0, n)
	for i := 0; i < n; i++ {
		ps := core.PageSize{
			WidthMicron:  uint32(sizes[i].x) * 100,
			HeightMicron: uint32(sizes[i].y) * 100,
		}
		if haveNames {
			ps.Name = windows.UTF16ToString(names[i*64 : (i+1)*64])
		}
		out = append(out, ps)
	}
	return out
}
