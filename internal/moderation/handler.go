package moderation

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"warden/internal/logger"
	"warden/pkg/errors"
	"warden/pkg/models"
)

// ActionSink receives action descriptors issued outside the message
// pipeline (manual warnings, manual lifts) for delivery to the
// transport. A non-nil error means at least one action was not
// delivered and its local effect was rolled back.
type ActionSink func(ctx context.Context, actions []models.Action) error

// Handler exposes the engine's warning ledger and restriction state
// over HTTP for operator tooling.
type Handler struct {
	coordinator *Coordinator
	logger      logger.Logger
	dispatch    ActionSink
}

func NewHandler(coordinator *Coordinator, log logger.Logger, dispatch ActionSink) *Handler {
	return &Handler{
		coordinator: coordinator,
		logger:      log,
		dispatch:    dispatch,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		user := v1.Group("/groups/:group_id/users/:user_id")
		{
			warnings := user.Group("/warnings")
			{
				warnings.GET("", h.ListWarnings)
				warnings.POST("", h.AddWarning)
				warnings.DELETE("/:index", h.RemoveWarning)
				warnings.DELETE("", h.ClearWarnings)
			}

			restrictions := user.Group("/restrictions")
			{
				restrictions.GET("", h.GetRestrictions)
				restrictions.DELETE("/:kind", h.LiftRestriction)
			}

			user.DELETE("/windows/:rule", h.ResetWindow)
		}
	}
}

type addWarningRequest struct {
	Reason   string `json:"reason" binding:"required"`
	IssuedBy int64  `json:"issued_by"`
}

// ListWarnings godoc
// @Summary      List a user's active warnings
// @Tags         warnings
// @Produce      json
// @Param        group_id  path      int  true  "Group ID"
// @Param        user_id   path      int  true  "User ID"
// @Success      200       {array}   Warning
// @Failure      400       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/users/{user_id}/warnings [get]
func (h *Handler) ListWarnings(c *gin.Context) {
	groupID, userID, ok := h.parseUserPath(c)
	if !ok {
		return
	}

	warnings := h.coordinator.Ledger().ListActive(groupID, userID)
	c.JSON(http.StatusOK, gin.H{
		"warnings": warnings,
		"count":    len(warnings),
	})
}

// AddWarning godoc
// @Summary      Issue a warning to a user
// @Description  Record an operator warning; threshold crossings emit escalation actions
// @Tags         warnings
// @Accept       json
// @Produce      json
// @Param        group_id  path      int                true  "Group ID"
// @Param        user_id   path      int                true  "User ID"
// @Param        warning   body      addWarningRequest  true  "Warning"
// @Success      201       {object}  map[string]interface{}
// @Failure      400       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/users/{user_id}/warnings [post]
func (h *Handler) AddWarning(c *gin.Context) {
	groupID, userID, ok := h.parseUserPath(c)
	if !ok {
		return
	}

	var req addWarningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	warning, actions, err := h.coordinator.AddManualWarning(c.Request.Context(), groupID, userID, req.Reason, req.IssuedBy)
	if err != nil {
		h.handleError(c, err)
		return
	}

	if len(actions) > 0 && h.dispatch != nil {
		// The warning itself is recorded either way; a failed
		// escalation delivery was already rolled back downstream.
		if err := h.dispatch(c.Request.Context(), actions); err != nil {
			h.handleError(c, err)
			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"warning": warning,
		"actions": actions,
	})
}

// RemoveWarning godoc
// @Summary      Remove a warning by index
// @Description  Remove the warning at the given zero-based position in the user's active list
// @Tags         warnings
// @Produce      json
// @Param        group_id  path      int  true  "Group ID"
// @Param        user_id   path      int  true  "User ID"
// @Param        index     path      int  true  "Zero-based warning index"
// @Success      200       {object}  Warning
// @Failure      400       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/users/{user_id}/warnings/{index} [delete]
func (h *Handler) RemoveWarning(c *gin.Context) {
	groupID, userID, ok := h.parseUserPath(c)
	if !ok {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithDetail("index", c.Param("index"))))
		return
	}

	removed, err := h.coordinator.Ledger().RemoveWarningAt(groupID, userID, index)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, removed)
}

// ClearWarnings godoc
// @Summary      Clear all active warnings for a user
// @Tags         warnings
// @Produce      json
// @Param        group_id  path      int  true  "Group ID"
// @Param        user_id   path      int  true  "User ID"
// @Success      200       {object}  map[string]interface{}
// @Failure      400       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/users/{user_id}/warnings [delete]
func (h *Handler) ClearWarnings(c *gin.Context) {
	groupID, userID, ok := h.parseUserPath(c)
	if !ok {
		return
	}

	removed := h.coordinator.Ledger().ClearAll(groupID, userID)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// GetRestrictions godoc
// @Summary      Get a user's active restrictions
// @Tags         restrictions
// @Produce      json
// @Param        group_id  path      int  true  "Group ID"
// @Param        user_id   path      int  true  "User ID"
// @Success      200       {array}   Restriction
// @Failure      400       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/users/{user_id}/restrictions [get]
func (h *Handler) GetRestrictions(c *gin.Context) {
	groupID, userID, ok := h.parseUserPath(c)
	if !ok {
		return
	}

	now := time.Now()
	restrictions := make([]Restriction, 0, 2)
	for _, kind := range []RestrictionKind{RestrictionMute, RestrictionBan} {
		if restriction, active := h.coordinator.Mutes().Active(groupID, userID, kind, now); active {
			restrictions = append(restrictions, restriction)
		}
	}
	c.JSON(http.StatusOK, restrictions)
}

// LiftRestriction godoc
// @Summary      Lift an active restriction
// @Description  Cancel a mute or ban and emit the corresponding lift action
// @Tags         restrictions
// @Produce      json
// @Param        group_id  path      int     true  "Group ID"
// @Param        user_id   path      int     true  "User ID"
// @Param        kind      path      string  true  "Restriction kind (mute, ban)"
// @Success      200       {object}  models.Action
// @Failure      400       {object}  errors.ErrorResponse
// @Failure      404       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/users/{user_id}/restrictions/{kind} [delete]
func (h *Handler) LiftRestriction(c *gin.Context) {
	groupID, userID, ok := h.parseUserPath(c)
	if !ok {
		return
	}

	kind := RestrictionKind(c.Param("kind"))
	if kind != RestrictionMute && kind != RestrictionBan {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithDetail("kind", c.Param("kind"))))
		return
	}

	if !h.coordinator.Mutes().Cancel(groupID, userID, kind) {
		h.handleError(c, errors.ErrNotFound.WithDetail("kind", string(kind)))
		return
	}

	liftKind := models.ActionUnmute
	if kind == RestrictionBan {
		liftKind = models.ActionUnban
	}
	action := models.Action{
		ID:       uuid.New().String(),
		Kind:     liftKind,
		GroupID:  groupID,
		UserID:   userID,
		Rule:     string(RuleEscalation),
		Reason:   "lifted by operator",
		IssuedAt: time.Now(),
	}

	if h.dispatch != nil {
		if err := h.dispatch(c.Request.Context(), []models.Action{action}); err != nil {
			h.handleError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, action)
}

// ResetWindow godoc
// @Summary      Reset a user's rate window
// @Description  Drop the sliding-window history for one rule kind so a forgiven burst does not re-trigger
// @Tags         restrictions
// @Produce      json
// @Param        group_id  path      int     true  "Group ID"
// @Param        user_id   path      int     true  "User ID"
// @Param        rule      path      string  true  "Rule kind (spam, flood)"
// @Success      200       {object}  map[string]interface{}
// @Failure      400       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/users/{user_id}/windows/{rule} [delete]
func (h *Handler) ResetWindow(c *gin.Context) {
	groupID, userID, ok := h.parseUserPath(c)
	if !ok {
		return
	}

	rule, err := ParseRuleKind(c.Param("rule"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.coordinator.Windows().Reset(WindowKey{GroupID: groupID, UserID: userID, Rule: rule})
	c.JSON(http.StatusOK, gin.H{"reset": rule})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

func (h *Handler) parseUserPath(c *gin.Context) (int64, int64, bool) {
	groupID, err := strconv.ParseInt(c.Param("group_id"), 10, 64)
	if err != nil || groupID == 0 {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithDetail("group_id", c.Param("group_id"))))
		return 0, 0, false
	}
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID == 0 {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithDetail("user_id", c.Param("user_id"))))
		return 0, 0, false
	}
	return groupID, userID, true
}
