package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/projectpynew-png/SFT-Number-Generator/internal/export"
	"github.com/projectpynew-png/SFT-Number-Generator/internal/registry"
)

type registerRequest struct {
	ApplicationName string `json:"application_name"`
	Description     string `json:"description"`
}

type reserveRequest struct {
	ApplicationName string `json:"application_name"`
	Description     string `json:"description"`
	Number          *int   `json:"number"`
}

type bulkRequest struct {
	Applications []registry.Application `json:"applications"`
	Text         string                 `json:"text"`
}

type bulkResponse struct {
	Results   []registry.BulkResult `json:"results"`
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
}

type numberResponse struct {
	Number       int                    `json:"number"`
	InRange      bool                   `json:"in_range"`
	Available    bool                   `json:"available"`
	Registration *registry.Registration `json:"registration,omitempty"`
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// failWith maps a registry error to its HTTP status
func (s *Server) failWith(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err, "request_id", c.GetString("request_id"))
	}
	fail(c, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrInvalidRange), errors.Is(err, registry.ErrEmptyName),
		errors.Is(err, registry.ErrInvalidName), errors.Is(err, export.ErrUnknownFormat):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrAlreadyUsed), errors.Is(err, registry.ErrCapacityExhausted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	stats := s.registry.Statistics()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"used":      stats.UsedCount,
		"remaining": stats.RemainingCount,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	respond(c, http.StatusOK, s.registry.Statistics())
}

func (s *Server) handleTimeline(c *gin.Context) {
	respond(c, http.StatusOK, s.registry.Timeline())
}

func (s *Server) handleNumber(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		fail(c, http.StatusBadRequest, fmt.Sprintf("invalid SFT number %q", c.Param("number")))
		return
	}

	resp := numberResponse{
		Number:    number,
		InRange:   registry.InRange(number),
		Available: s.registry.IsAvailable(number),
	}
	if reg, ok := s.registry.Lookup(number); ok {
		resp.Registration = &reg
	}
	respond(c, http.StatusOK, resp)
}

func (s *Server) handleListRegistrations(c *gin.Context) {
	raw, ok := c.GetQuery("recent")
	if !ok {
		respond(c, http.StatusOK, s.registry.Registrations())
		return
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		fail(c, http.StatusBadRequest, "recent must be a positive integer")
		return
	}
	respond(c, http.StatusOK, s.registry.Recent(n))
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	number, err := s.registry.Allocate(c.Request.Context(), req.ApplicationName, req.Description)
	if err != nil {
		s.failWith(c, err)
		return
	}
	s.created(c, number)
}

func (s *Server) handleReserve(c *gin.Context) {
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Number == nil {
		fail(c, http.StatusBadRequest, "number is required")
		return
	}

	number, err := s.registry.Reserve(c.Request.Context(), req.ApplicationName, req.Description, *req.Number)
	if err != nil {
		s.failWith(c, err)
		return
	}
	s.created(c, number)
}

func (s *Server) created(c *gin.Context, number int) {
	reg, ok := s.registry.Lookup(number)
	if !ok {
		s.failWith(c, fmt.Errorf("registration %d not found after write", number))
		return
	}
	respond(c, http.StatusCreated, reg)
}

func (s *Server) handleBulk(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	apps := req.Applications
	if len(apps) == 0 {
		apps = registry.ParseBulk(req.Text)
	}
	if len(apps) == 0 {
		fail(c, http.StatusBadRequest, "no applications given")
		return
	}

	results := s.registry.BulkRegister(c.Request.Context(), apps)
	resp := bulkResponse{Results: results}
	for _, res := range results {
		if res.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	respond(c, http.StatusOK, resp)
}

func (s *Server) handleExport(c *gin.Context) {
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatExcel)))
	if err != nil {
		s.failWith(c, err)
		return
	}

	data, err := export.Export(format, s.registry.Registrations(), s.registry.Statistics())
	if err != nil {
		s.failWith(c, err)
		return
	}

	filename := export.Filename(format, s.now())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Data(http.StatusOK, export.ContentType(format), data)
}
