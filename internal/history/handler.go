package history

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"warden/internal/constants"
	"warden/internal/logger"
	"warden/pkg/errors"
	"warden/pkg/models"
)

type Handler struct {
	repo   Repository
	logger logger.Logger
}

func NewHandler(repo Repository, log logger.Logger) *Handler {
	return &Handler{repo: repo, logger: log}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		group := v1.Group("/groups/:group_id")
		{
			group.GET("/actions", h.ListGroupActions)
			group.GET("/users/:user_id/actions", h.ListUserActions)
		}
	}
}

// ListGroupActions godoc
// @Summary      List dispatched actions for a group
// @Description  Returns actions in reverse chronological order, optionally filtered by kind
// @Tags         action-history
// @Accept       json
// @Produce      json
// @Param        group_id  path      int     true   "Group ID"
// @Param        kind      query     string  false  "Action kind filter"
// @Param        limit     query     int     false  "Page size"
// @Param        offset    query     int     false  "Page offset"
// @Success      200       {object}  map[string]interface{}
// @Failure      400       {object}  errors.ErrorResponse
// @Failure      500       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/actions [get]
func (h *Handler) ListGroupActions(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}

	h.respondWithActions(c, filter)
}

// ListUserActions godoc
// @Summary      List dispatched actions for a user in a group
// @Tags         action-history
// @Accept       json
// @Produce      json
// @Param        group_id  path      int     true   "Group ID"
// @Param        user_id   path      int     true   "User ID"
// @Param        kind      query     string  false  "Action kind filter"
// @Param        limit     query     int     false  "Page size"
// @Param        offset    query     int     false  "Page offset"
// @Success      200       {object}  map[string]interface{}
// @Failure      400       {object}  errors.ErrorResponse
// @Failure      500       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/users/{user_id}/actions [get]
func (h *Handler) ListUserActions(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}

	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID == 0 {
		h.handleError(c, errors.ErrValidation.WithDetail("user_id", c.Param("user_id")))
		return
	}
	filter.UserID = userID

	h.respondWithActions(c, filter)
}

func (h *Handler) respondWithActions(c *gin.Context, filter ListFilter) {
	records, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	total, err := h.repo.Count(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"actions": records,
		"total":   total,
	})
}

func (h *Handler) parseFilter(c *gin.Context) (ListFilter, bool) {
	groupID, err := strconv.ParseInt(c.Param("group_id"), 10, 64)
	if err != nil || groupID == 0 {
		h.handleError(c, errors.ErrValidation.WithDetail("group_id", c.Param("group_id")))
		return ListFilter{}, false
	}

	filter := ListFilter{
		GroupID: groupID,
		Limit:   constants.DefaultLimit,
	}

	if kind := c.Query("kind"); kind != "" {
		if !models.KnownActionKind(models.ActionKind(kind)) {
			h.handleError(c, errors.ErrValidation.WithDetail("kind", kind))
			return ListFilter{}, false
		}
		filter.Kind = models.ActionKind(kind)
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset > 0 {
			filter.Offset = offset
		}
	}

	return filter, true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}
