package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"intraportal/internal/store"
)

// parseID 解析路径参数 :id，失败时已写入 400
func parseID(c *gin.Context, what string) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + what + " id"})
		return 0, false
	}
	return id, true
}

// respondStoreError not found 映射为 404，其余记录日志后返回 500
func respondStoreError(c *gin.Context, log *zap.Logger, err error, what, failMsg string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
		return
	}
	log.Error(failMsg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": failMsg})
}
