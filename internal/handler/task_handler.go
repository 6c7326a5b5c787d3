package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"intraportal/internal/model"
	"intraportal/internal/service/task"
	"intraportal/internal/validation"
	"intraportal/pkg/logger"
)

type TaskHandler struct {
	tasks  *task.Service
	logger *zap.Logger
}

func NewTaskHandler(tasks *task.Service, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

// Get handles GET /tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "task")
	if !ok {
		return
	}
	log := logger.WithTrace(c.Request.Context(), h.logger).With(zap.Int64("task_id", id))

	detail, err := h.tasks.Get(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, log, err, "task", "failed to fetch task")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Update handles PUT /tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "task")
	if !ok {
		return
	}
	log := logger.WithTrace(c.Request.Context(), h.logger).With(zap.Int64("task_id", id))
	log.Info("Update task request received", zap.String("client_ip", c.ClientIP()))

	var patch model.TaskPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		log.Warn("Update task: invalid body", zap.Error(err))
		if field, message, ok := validation.Describe(err); ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": field + ": " + message})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	detail, err := h.tasks.Update(c.Request.Context(), id, patch)
	if err != nil {
		var ve *task.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
			return
		}
		respondStoreError(c, log, err, "task", "failed to update task")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Delete handles DELETE /tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "task")
	if !ok {
		return
	}
	log := logger.WithTrace(c.Request.Context(), h.logger).With(zap.Int64("task_id", id))
	log.Info("Delete task request received", zap.String("client_ip", c.ClientIP()))

	if err := h.tasks.Delete(c.Request.Context(), id); err != nil {
		respondStoreError(c, log, err, "task", "failed to delete task")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
