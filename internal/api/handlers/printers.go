package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/directprint/agent/internal/core"
)

type PrinterHandler struct {
	directory *core.Directory
}

func NewPrinterHandler(directory *core.Directory) *PrinterHandler {
	return &PrinterHandler{directory: directory}
}

func (h *PrinterHandler) ListPrinters(c *gin.Context) {
	printers, err := h.directory.List()
	if err != nil {
		respondErr(c, http.StatusInternalServerError, "failed to enumerate printers")
		return
	}
	if printers == nil {
		printers = []core.PrinterDescriptor{}
	}
	respondOK(c, printers)
}

func (h *PrinterHandler) GetCapabilities(c *gin.Context) {
	name := c.Param("name")

	caps, err := h.directory.Capabilities(name)
	if err != nil {
		if errors.Is(err, core.ErrPrinterNotFound) {
			respondErr(c, http.StatusNotFound, "no such printer")
			return
		}
		respondErr(c, http.StatusInternalServerError, "failed to query printer capabilities")
		return
	}
	respondOK(c, caps)
}

func (h *PrinterHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/printers", h.ListPrinters)
	r.GET("/printers/:name", h.GetCapabilities)
}
