package groups

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"warden/internal/constants"
	"warden/internal/logger"
	"warden/pkg/cel"
	"warden/pkg/errors"
)

type BaseHandler struct {
	Service Service
	Logger  logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

type Handler struct {
	BaseHandler
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{
			Service: service,
			Logger:  log,
		},
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		group := v1.Group("/groups/:group_id")
		{
			config := group.Group("/config")
			{
				config.GET("", h.GetConfig)
				config.PUT("", h.UpsertConfig)
				config.DELETE("", h.DeleteConfig)
				config.GET("/versions", h.GetConfigVersions)
				config.PATCH("/:family", h.UpdateRuleFamily)
			}

			keywords := group.Group("/keywords")
			{
				keywords.GET("", h.ListKeywords)
				keywords.POST("", h.AddKeyword)
				keywords.DELETE("/:keyword", h.RemoveKeyword)
			}
		}

		audit := v1.Group("/audit")
		{
			audit.GET("/logs", h.GetAuditLogs)
		}

		rules := v1.Group("/rules")
		{
			rules.GET("/expression-examples", h.GetExpressionExamples)
			rules.POST("/validate-expression", h.ValidateExpression)
		}
	}
}

// GetConfig godoc
// @Summary      Get a group's moderation config
// @Description  Get the full rule configuration for a group
// @Tags         group-config
// @Accept       json
// @Produce      json
// @Param        group_id  path      int  true  "Group ID"
// @Success      200       {object}  moderation.GroupConfig
// @Failure      404       {object}  errors.ErrorResponse
// @Failure      500       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/config [get]
func (h *Handler) GetConfig(c *gin.Context) {
	groupID, ok := h.parseGroupID(c)
	if !ok {
		return
	}

	cfg, err := h.Service.GetConfig(c.Request.Context(), groupID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpsertConfig godoc
// @Summary      Replace a group's moderation config
// @Description  Create or fully replace the rule configuration for a group
// @Tags         group-config
// @Accept       json
// @Produce      json
// @Param        group_id  path      int                  true  "Group ID"
// @Param        config    body      UpsertConfigRequest  true  "Group config"
// @Success      200       {object}  moderation.GroupConfig
// @Failure      400       {object}  errors.ErrorResponse
// @Failure      500       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/config [put]
func (h *Handler) UpsertConfig(c *gin.Context) {
	groupID, ok := h.parseGroupID(c)
	if !ok {
		return
	}

	var req UpsertConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	cfg, err := h.Service.UpsertConfig(c.Request.Context(), groupID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateRuleFamily godoc
// @Summary      Update a single rule family
// @Description  Replace one rule family inside a group's config without touching the others; a JSON null body clears the family
// @Tags         group-config
// @Accept       json
// @Produce      json
// @Param        group_id  path      int     true  "Group ID"
// @Param        family    path      string  true  "Rule family (link_filter, mention_filter, bad_word_filter, spam_rate, flood_rate, new_account, custom_rules, escalation)"
// @Param        rule      body      object  true  "Family payload"
// @Success      200       {object}  moderation.GroupConfig
// @Failure      400       {object}  errors.ErrorResponse
// @Failure      500       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/config/{family} [patch]
func (h *Handler) UpdateRuleFamily(c *gin.Context) {
	groupID, ok := h.parseGroupID(c)
	if !ok {
		return
	}

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	cfg, err := h.Service.UpdateRuleFamily(c.Request.Context(), groupID, c.Param("family"), payload)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// DeleteConfig godoc
// @Summary      Delete a group's moderation config
// @Description  Remove the rule configuration for a group, disabling all rules
// @Tags         group-config
// @Accept       json
// @Produce      json
// @Param        group_id  path  int  true  "Group ID"
// @Success      204       "No Content"
// @Failure      404       {object}  errors.ErrorResponse
// @Failure      500       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/config [delete]
func (h *Handler) DeleteConfig(c *gin.Context) {
	groupID, ok := h.parseGroupID(c)
	if !ok {
		return
	}

	if err := h.Service.DeleteConfig(c.Request.Context(), groupID); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetConfigVersions godoc
// @Summary      Get config version history
// @Description  Get version history for a group's moderation config
// @Tags         group-config
// @Accept       json
// @Produce      json
// @Param        group_id  path      int  true  "Group ID"
// @Success      200       {array}   ConfigVersion
// @Failure      500       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/config/versions [get]
func (h *Handler) GetConfigVersions(c *gin.Context) {
	groupID, ok := h.parseGroupID(c)
	if !ok {
		return
	}

	versions, err := h.Service.GetConfigVersions(c.Request.Context(), groupID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

// ListKeywords godoc
// @Summary      List a group's keyword rules
// @Description  Get all keyword rules for a group in insertion order
// @Tags         keywords
// @Accept       json
// @Produce      json
// @Param        group_id  path      int  true  "Group ID"
// @Success      200       {array}   moderation.KeywordRule
// @Failure      500       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/keywords [get]
func (h *Handler) ListKeywords(c *gin.Context) {
	groupID, ok := h.parseGroupID(c)
	if !ok {
		return
	}

	keywords, err := h.Service.ListKeywords(c.Request.Context(), groupID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, keywords)
}

// AddKeyword godoc
// @Summary      Add a keyword rule
// @Description  Add a keyword rule to a group; re-adding an existing keyword replaces its action
// @Tags         keywords
// @Accept       json
// @Produce      json
// @Param        group_id  path      int                true  "Group ID"
// @Param        keyword   body      AddKeywordRequest  true  "Keyword rule"
// @Success      201       {object}  moderation.KeywordRule
// @Failure      400       {object}  errors.ErrorResponse
// @Failure      500       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/keywords [post]
func (h *Handler) AddKeyword(c *gin.Context) {
	groupID, ok := h.parseGroupID(c)
	if !ok {
		return
	}

	var req AddKeywordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	rule, err := h.Service.AddKeyword(c.Request.Context(), groupID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// RemoveKeyword godoc
// @Summary      Remove a keyword rule
// @Description  Remove a keyword rule from a group
// @Tags         keywords
// @Accept       json
// @Produce      json
// @Param        group_id  path  int     true  "Group ID"
// @Param        keyword   path  string  true  "Keyword"
// @Success      204       "No Content"
// @Failure      404       {object}  errors.ErrorResponse
// @Failure      500       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/keywords/{keyword} [delete]
func (h *Handler) RemoveKeyword(c *gin.Context) {
	groupID, ok := h.parseGroupID(c)
	if !ok {
		return
	}

	if err := h.Service.RemoveKeyword(c.Request.Context(), groupID, c.Param("keyword")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetAuditLogs godoc
// @Summary      Get audit logs
// @Description  Get config audit logs with optional filtering by group and entity type
// @Tags         audit
// @Accept       json
// @Produce      json
// @Param        group_id     query     int     false  "Filter by group ID"
// @Param        entity_type  query     string  false  "Filter by entity type (config, keyword)"
// @Param        limit        query     int     false  "Maximum number of logs to return (1-1000)" default(100)
// @Success      200          {array}   AuditLog
// @Failure      500          {object}  errors.ErrorResponse
// @Router       /audit/logs [get]
func (h *Handler) GetAuditLogs(c *gin.Context) {
	entityType := c.Query("entity_type")
	limit := parseLimit(c.Query("limit"))

	var groupIDPtr *int64
	if raw := c.Query("group_id"); raw != "" {
		groupID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithDetail("group_id", raw)))
			return
		}
		groupIDPtr = &groupID
	}

	logs, err := h.Service.GetAuditLogs(c.Request.Context(), groupIDPtr, entityType, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// GetExpressionExamples godoc
// @Summary      Example custom rule expressions
// @Tags         rules
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /rules/expression-examples [get]
func (h *Handler) GetExpressionExamples(c *gin.Context) {
	c.JSON(http.StatusOK, cel.RuleExpressionExamples)
}

type validateExpressionRequest struct {
	Expression string `json:"expression" binding:"required"`
}

// ValidateExpression godoc
// @Summary      Validate a custom rule expression
// @Description  Compiles the expression against the moderation rule environment without storing it
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        request  body      validateExpressionRequest  true  "Expression to validate"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  errors.ErrorResponse
// @Router       /rules/validate-expression [post]
func (h *Handler) ValidateExpression(c *gin.Context) {
	var req validateExpressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	evaluator, err := cel.NewEvaluator()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if err := evaluator.ValidateRuleExpression(req.Expression); err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (h *BaseHandler) parseGroupID(c *gin.Context) (int64, bool) {
	groupID, err := strconv.ParseInt(c.Param("group_id"), 10, 64)
	if err != nil || groupID == 0 {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithDetail("group_id", c.Param("group_id"))))
		return 0, false
	}
	return groupID, true
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return constants.DefaultLimit
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 || parsed > constants.MaxLimit {
		return constants.DefaultLimit
	}
	return parsed
}
