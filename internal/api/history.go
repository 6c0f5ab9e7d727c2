package api

import (
	"net/http"
	"strconv"

	"gatherhub/backend/internal/chat"
	apperrors "gatherhub/backend/pkg/errors"
	"gatherhub/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// HistoryHandler serves the paginated read path for room history
type HistoryHandler struct {
	history *chat.History
	logger  *logger.Logger
}

func NewHistoryHandler(history *chat.History, logger *logger.Logger) *HistoryHandler {
	return &HistoryHandler{history: history, logger: logger}
}

// Get returns one page of a room's messages, most recent page first,
// each page in chronological order
func (h *HistoryHandler) Get(c *gin.Context) {
	scope := chat.Scope{
		Type: chat.ScopeType(c.Param("scopeType")),
		ID:   c.Param("scopeId"),
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "0"))

	result, err := h.history.Fetch(c.Request.Context(), scope, page, pageSize)
	if err != nil {
		appErr := apperrors.FromError(err)
		h.logger.Warn("history fetch failed",
			"room", scope.RoomKey(),
			"error_code", appErr.Code,
		)
		c.JSON(appErr.StatusCode, gin.H{"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		}})
		return
	}

	c.JSON(http.StatusOK, result)
}
