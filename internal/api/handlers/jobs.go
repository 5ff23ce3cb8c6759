package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/directprint/agent/internal/archive"
	"github.com/directprint/agent/internal/core"
	"github.com/directprint/agent/internal/metrics"
)

type PrintRequest struct {
	// File is the document content, base64 encoded.
	File        string         `json:"file" binding:"required"`
	Printer     string         `json:"printer"`
	Copies      int            `json:"copies"`
	Duplex      string         `json:"duplex"`
	Orientation string         `json:"orientation"`
	PageSize    *core.PageSize `json:"page_size"`
}

type SubmitResponse struct {
	JobID string `json:"job_id"`
}

type JobView struct {
	JobID       string     `json:"job_id"`
	Printer     string     `json:"printer"`
	State       string     `json:"state"`
	Error       string     `json:"error,omitempty"`
	Copies      int        `json:"copies"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMS  *int64     `json:"duration_ms,omitempty"`
}

type JobHandler struct {
	registry   *core.Registry
	stager     *core.Stager
	directory  *core.Directory
	dispatcher *core.Dispatcher
	archive    *archive.Archive // nil unless enabled
	metrics    *metrics.Metrics
}

func NewJobHandler(registry *core.Registry, stager *core.Stager, directory *core.Directory, dispatcher *core.Dispatcher, arc *archive.Archive, m *metrics.Metrics) *JobHandler {
	return &JobHandler{
		registry:   registry,
		stager:     stager,
		directory:  directory,
		dispatcher: dispatcher,
		archive:    arc,
		metrics:    m,
	}
}

func (h *JobHandler) Print(c *gin.Context) {
	var req PrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, err.Error())
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.File)
	if err != nil {
		respondErr(c, http.StatusBadRequest, "file is not valid base64")
		return
	}
	if len(data) == 0 {
		respondErr(c, http.StatusBadRequest, "file is empty")
		return
	}

	opts, err := parseOptions(&req)
	if err != nil {
		respondErr(c, http.StatusBadRequest, err.Error())
		return
	}

	// Resolve before staging so an unknown printer costs no disk I/O.
	printer, err := h.directory.Resolve(req.Printer)
	if err != nil {
		if errors.Is(err, core.ErrPrinterNotFound) || errors.Is(err, core.ErrNoDefaultPrinter) {
			respondErr(c, http.StatusNotFound, "no such printer")
			return
		}
		respondErr(c, http.StatusInternalServerError, "failed to resolve printer")
		return
	}

	doc, err := h.stager.Stage(data)
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "failed to stage document")
		return
	}

	jobID, err := h.dispatcher.Submit(doc, printer, opts)
	if err != nil {
		doc.Release()
		if errors.Is(err, core.ErrPrinterUnavailable) {
			respondErr(c, http.StatusConflict, err.Error())
			return
		}
		respondErr(c, http.StatusInternalServerError, "failed to submit job")
		return
	}

	if h.metrics != nil {
		h.metrics.JobsSubmitted.Inc()
		h.metrics.JobsInflight.Inc()
		h.metrics.StagedBytes.Add(float64(len(data)))
	}

	respondOK(c, SubmitResponse{JobID: jobID})
}

func parseOptions(req *PrintRequest) (core.PrintOptions, error) {
	opts := core.PrintOptions{
		Copies:   req.Copies,
		PageSize: req.PageSize,
	}

	switch req.Duplex {
	case "", string(core.DuplexNone):
		opts.Duplex = core.DuplexNone
	case string(core.DuplexLongEdge):
		opts.Duplex = core.DuplexLongEdge
	case string(core.DuplexShortEdge):
		opts.Duplex = core.DuplexShortEdge
	default:
		return opts, errors.New("invalid duplex mode")
	}

	switch req.Orientation {
	case "", string(core.OrientationPortrait):
		opts.Orientation = core.OrientationPortrait
	case string(core.OrientationLandscape):
		opts.Orientation = core.OrientationLandscape
	case string(core.OrientationReversePortrait):
		opts.Orientation = core.OrientationReversePortrait
	case string(core.OrientationReverseLandscape):
		opts.Orientation = core.OrientationReverseLandscape
	default:
		return opts, errors.New("invalid orientation")
	}

	return opts, nil
}

func (h *JobHandler) GetJob(c *gin.Context) {
	job, ok := h.registry.Get(c.Param("id"))
	if !ok {
		// Reaped and never-issued ids are indistinguishable on purpose.
		respondErr(c, http.StatusNotFound, "job not found")
		return
	}
	respondOK(c, jobToView(job))
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	jobs := h.registry.List()
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, jobToView(job))
	}
	respondOK(c, views)
}

func (h *JobHandler) CancelJob(c *gin.Context) {
	err := h.dispatcher.Cancel(c.Param("id"))
	if err != nil {
		if errors.Is(err, core.ErrJobNotFound) {
			respondErr(c, http.StatusNotFound, "job not found")
			return
		}
		respondErr(c, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(c, gin.H{"message": "cancel requested"})
}

// JobHistory serves the sqlite archive when it is enabled; otherwise the
// endpoint reports that no history is kept.
func (h *JobHandler) JobHistory(c *gin.Context) {
	if h.archive == nil {
		respondErr(c, http.StatusNotFound, "job history is not enabled")
		return
	}

	entries, err := h.archive.List(0)
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "failed to read job history")
		return
	}
	if entries == nil {
		entries = []archive.Entry{}
	}
	respondOK(c, entries)
}

func jobToView(job core.PrintJob) JobView {
	view := JobView{
		JobID:       job.ID,
		Printer:     job.PrinterName,
		State:       string(job.State),
		Error:       job.Error,
		Copies:      job.Options.Copies,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}
	if job.CompletedAt != nil {
		d := job.CompletedAt.Sub(job.CreatedAt).Milliseconds()
		view.DurationMS = &d
	}
	return view
}

func (h *JobHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/print", h.Print)
	r.GET("/jobs", h.ListJobs)
	r.GET("/jobs/history", h.JobHistory)
	r.GET("/jobs/:id", h.GetJob)
	r.POST("/jobs/:id/cancel", h.CancelJob)
}
