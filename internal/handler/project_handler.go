package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"intraportal/internal/importer"
	"intraportal/internal/progress"
	"intraportal/internal/service/project"
	"intraportal/pkg/logger"
)

// DefaultMaxUploadBytes 上传文件大小上限
const DefaultMaxUploadBytes int64 = 32 << 20

type ProjectHandler struct {
	importer       *importer.Service
	projects       *project.Service
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewProjectHandler(imp *importer.Service, projects *project.Service, maxUploadBytes int64, logger *zap.Logger) *ProjectHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &ProjectHandler{
		importer:       imp,
		projects:       projects,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// ImportXML handles POST /projects/import-xml
func (h *ProjectHandler) ImportXML(c *gin.Context) {
	log := logger.WithTrace(c.Request.Context(), h.logger)

	fh, err := c.FormFile("file")
	if err != nil {
		log.Warn("ImportXML: no file in request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	log = log.With(zap.String("filename", fh.Filename), zap.Int64("size", fh.Size))
	log.Info("ImportXML request received", zap.String("client_ip", c.ClientIP()))

	if !strings.EqualFold(filepath.Ext(fh.Filename), ".xml") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File must be an XML file"})
		return
	}
	if fh.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File is too large"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		log.Error("ImportXML: failed to open upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import XML file"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes))
	if err != nil {
		log.Error("ImportXML: failed to read upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import XML file"})
		return
	}

	result, err := h.importer.Import(c.Request.Context(), importer.Upload{Filename: fh.Filename, Data: data})
	switch {
	case err == nil:
	case errors.Is(err, importer.ErrInvalidUpload):
		c.JSON(http.StatusBadRequest, gin.H{"error": "File must be a non-empty XML file"})
		return
	case errors.Is(err, importer.ErrInvalidDocument):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid MS Project XML file"})
		return
	case errors.Is(err, importer.ErrDuplicateImport), errors.Is(err, importer.ErrImportInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	default:
		log.Error("ImportXML: import failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import XML file"})
		return
	}

	log.Info("ImportXML: success", zap.Int64("project_id", result.ProjectID), zap.Int("tasks", result.Tasks))
	c.JSON(http.StatusCreated, result)
}

// List handles GET /projects
func (h *ProjectHandler) List(c *gin.Context) {
	log := logger.WithTrace(c.Request.Context(), h.logger)
	projects, err := h.projects.List(c.Request.Context())
	if err != nil {
		log.Error("List: failed to fetch projects", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch projects"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// Get handles GET /projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "project")
	if !ok {
		return
	}
	log := logger.WithTrace(c.Request.Context(), h.logger).With(zap.Int64("project_id", id))

	summary, err := h.projects.Get(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, log, err, "project", "failed to fetch project")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Delete handles DELETE /projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "project")
	if !ok {
		return
	}
	log := logger.WithTrace(c.Request.Context(), h.logger).With(zap.Int64("project_id", id))
	log.Info("Delete project request received", zap.String("client_ip", c.ClientIP()))

	if err := h.projects.Delete(c.Request.Context(), id); err != nil {
		respondStoreError(c, log, err, "project", "failed to delete project")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Recompute handles POST /projects/:id/recompute
func (h *ProjectHandler) Recompute(c *gin.Context) {
	id, ok := parseID(c, "project")
	if !ok {
		return
	}
	log := logger.WithTrace(c.Request.Context(), h.logger).With(zap.Int64("project_id", id))

	result, err := h.projects.Recompute(c.Request.Context(), id, progress.TriggerManual)
	if err != nil {
		respondStoreError(c, log, err, "project", "failed to recompute progress")
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListEmployees handles GET /employees
func (h *ProjectHandler) ListEmployees(c *gin.Context) {
	log := logger.WithTrace(c.Request.Context(), h.logger)
	employees, err := h.projects.ListEmployees(c.Request.Context())
	if err != nil {
		log.Error("ListEmployees: failed to fetch employees", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch employees"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"employees": employees})
}
