package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/himanishpuri/AmramAI/pkg/amram"
	"github.com/himanishpuri/AmramAI/pkg/amram/separation"
	"github.com/himanishpuri/AmramAI/pkg/logger"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service amram.Service
	config  *ServerConfig
	log     amram.Logger
	started time.Time
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr           string
	DataDir        string
	Model          string
	SampleRate     int
	AllowedOrigins []string
	// SeparateTimeout bounds one POST /api/separate. Zero means no limit
	// beyond the client connection.
	SeparateTimeout time.Duration
}

func NewServer(service amram.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.Named("http"),
		started: time.Now(),
	}
}

// respondError writes an error response
func (s *Server) respondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var cfgErr *separation.ConfigurationError
	switch {
	case errors.Is(err, amram.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, amram.ErrJobNotFound), errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, amram.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// handleRoot handles GET /
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "AmramAI API",
		"version": version,
		"endpoints": map[string]string{
			"health":    "GET /health",
			"metrics":   "GET /metrics",
			"jobs":      "GET /api/jobs",
			"getJob":    "GET /api/jobs/:id",
			"deleteJob": "DELETE /api/jobs/:id",
			"separate":  "POST /api/separate",
			"mix":       "POST /api/mix",
			"info":      "GET /api/info?url=",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"time":        time.Now().Format(time.RFC3339),
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"model":       s.config.Model,
		"sample_rate": s.config.SampleRate,
	})
}

// handleListJobs handles GET /api/jobs
func (s *Server) handleListJobs(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	jobs, err := s.service.ListJobs(limit)
	if err != nil {
		s.log.Errorf("Failed to list jobs: %v", err)
		s.respondError(c, http.StatusInternalServerError, "Failed to retrieve jobs")
		return
	}

	dtos := make([]JobDTO, len(jobs))
	for i := range jobs {
		dtos[i] = toJobDTO(&jobs[i])
	}
	c.JSON(http.StatusOK, ListJobsResponse{Jobs: dtos, Count: len(dtos)})
}

// handleGetJob handles GET /api/jobs/:id
func (s *Server) handleGetJob(c *gin.Context) {
	job, err := s.service.GetJob(c.Param("id"))
	if err != nil {
		s.respondError(c, statusFor(err), err.Error())
		return
	}
	c.JSON(http.StatusOK, toJobDTO(job))
}

// handleDeleteJob handles DELETE /api/jobs/:id. Stem files are removed
// unless keep_files=true.
func (s *Server) handleDeleteJob(c *gin.Context) {
	id := c.Param("id")
	keep := c.Query("keep_files") == "true"
	if err := s.service.DeleteJob(id, !keep); err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			s.log.Errorf("Failed to delete job %s: %v", id, err)
		}
		s.respondError(c, statusFor(err), err.Error())
		return
	}
	s.log.Infof("Deleted job %s", id)
	c.JSON(http.StatusOK, DeleteJobResponse{Message: "Job deleted", ID: id, FilesRemoved: !keep})
}

// handleSeparate handles POST /api/separate. It blocks until the stems are
// written; a second request while one is running gets 409.
func (s *Server) handleSeparate(c *gin.Context) {
	var req SeparateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	if s.config.SeparateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.SeparateTimeout)
		defer cancel()
	}

	var (
		res *amram.SeparationResult
		err error
	)
	if req.URL != "" {
		s.log.Infof("Separating from URL %s", req.URL)
		res, err = s.service.SeparateURL(ctx, req.URL, nil)
	} else {
		s.log.Infof("Separating file %s", req.Path)
		res, err = s.service.SeparateTracks(ctx, req.Path, nil)
	}
	if err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			s.log.Errorf("Separation failed: %v", err)
		}
		s.respondError(c, code, err.Error())
		return
	}
	c.JSON(http.StatusOK, toSeparateResponse(res))
}

// handleMix handles POST /api/mix
func (s *Server) handleMix(c *gin.Context) {
	var req MixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	job, err := s.service.GetJob(req.JobID)
	if err != nil {
		s.respondError(c, statusFor(err), err.Error())
		return
	}
	tracks, err := req.tracksFor(job)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	out := s.service.CustomMixPath(job.Title)
	mix, err := s.service.MixTracks(c.Request.Context(), tracks, out)
	if err != nil {
		s.log.Errorf("Mix for job %s failed: %v", job.ID, err)
		s.respondError(c, statusFor(err), err.Error())
		return
	}
	c.JSON(http.StatusOK, MixResponse{Path: out, Used: mix.Used, Skipped: mix.Skipped, Peak: mix.Peak})
}

// handleInfo handles GET /api/info?url=
func (s *Server) handleInfo(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		s.respondError(c, http.StatusBadRequest, "url query parameter is required")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Minute)
	defer cancel()

	info, err := s.service.GetVideoInfo(ctx, url)
	if err != nil {
		s.log.Warnf("Video info for %s failed: %v", url, err)
		s.respondError(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, toVideoInfoDTO(info))
}
