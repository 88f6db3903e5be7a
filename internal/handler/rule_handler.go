package handler

import (
	"net/http"

	"taxnexus/internal/middleware"
	"taxnexus/internal/nexus"
	"taxnexus/internal/service"
	"taxnexus/pkg/response"

	"github.com/gin-gonic/gin"
)

// ruleKinds maps the URL segment of each rule table to its kind.
var ruleKinds = map[string]nexus.RuleKind{
	"thresholds":       nexus.KindThreshold,
	"marketplace":      nexus.KindMarketplace,
	"tax-rates":        nexus.KindTaxRate,
	"interest-penalty": nexus.KindInterestPenalty,
}

type RuleHandler struct {
	ruleService service.RuleService
}

func NewRuleHandler(ruleService service.RuleService) *RuleHandler {
	return &RuleHandler{ruleService: ruleService}
}

func (h *RuleHandler) RegisterRoutes(router *gin.RouterGroup) {
	read := middleware.RequireRole(middleware.ReadRoles...)
	admin := middleware.RequireRole(middleware.RoleAdmin)

	rules := router.Group("/api/rules")
	{
		rules.GET("/thresholds", read, h.ListThresholdRules)
		rules.POST("/thresholds", admin, h.CreateThresholdRule)
		rules.GET("/marketplace", read, h.ListMarketplaceRules)
		rules.POST("/marketplace", admin, h.CreateMarketplaceRule)
		rules.GET("/tax-rates", read, h.ListTaxRateRules)
		rules.POST("/tax-rates", admin, h.CreateTaxRateRule)
		rules.GET("/interest-penalty", read, h.ListInterestPenaltyRules)
		rules.POST("/interest-penalty", admin, h.CreateInterestPenaltyRule)

		rules.PATCH("/:kind/:id/close", admin, h.CloseRule)
		rules.DELETE("/:kind/:id", admin, h.DeleteRule)
	}
}

// ListThresholdRules returns threshold rule versions
// @Summary      List threshold rules
// @Tags         rules
// @Security     BearerAuth
// @Produce      json
// @Param        jurisdiction  query     string  false  "Two-letter state code"
// @Success      200           {object}  response.Response{data=[]service.ThresholdRuleResponse}
// @Router       /api/rules/thresholds [get]
func (h *RuleHandler) ListThresholdRules(c *gin.Context) {
	rules, err := h.ruleService.ListThresholdRules(c.Request.Context(), c.Query("jurisdiction"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rules))
}

// CreateThresholdRule adds a threshold rule version
// @Summary      Create threshold rule
// @Tags         rules
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ThresholdRuleRequest  true  "Rule"
// @Success      201      {object}  response.Response{data=service.ThresholdRuleResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/rules/thresholds [post]
func (h *RuleHandler) CreateThresholdRule(c *gin.Context) {
	var req service.ThresholdRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	rule, err := h.ruleService.CreateThresholdRule(c.Request.Context(), req, c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rule))
}

// ListMarketplaceRules returns marketplace rule versions
// @Summary      List marketplace rules
// @Tags         rules
// @Security     BearerAuth
// @Produce      json
// @Param        jurisdiction  query     string  false  "Two-letter state code"
// @Success      200           {object}  response.Response{data=[]service.MarketplaceRuleResponse}
// @Router       /api/rules/marketplace [get]
func (h *RuleHandler) ListMarketplaceRules(c *gin.Context) {
	rules, err := h.ruleService.ListMarketplaceRules(c.Request.Context(), c.Query("jurisdiction"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rules))
}

// CreateMarketplaceRule adds a marketplace rule version
// @Summary      Create marketplace rule
// @Tags         rules
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.MarketplaceRuleRequest  true  "Rule"
// @Success      201      {object}  response.Response{data=service.MarketplaceRuleResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/rules/marketplace [post]
func (h *RuleHandler) CreateMarketplaceRule(c *gin.Context) {
	var req service.MarketplaceRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	rule, err := h.ruleService.CreateMarketplaceRule(c.Request.Context(), req, c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rule))
}

// ListTaxRateRules returns tax rate versions
// @Summary      List tax rate rules
// @Tags         rules
// @Security     BearerAuth
// @Produce      json
// @Param        jurisdiction  query     string  false  "Two-letter state code"
// @Success      200           {object}  response.Response{data=[]service.TaxRateRuleResponse}
// @Router       /api/rules/tax-rates [get]
func (h *RuleHandler) ListTaxRateRules(c *gin.Context) {
	rules, err := h.ruleService.ListTaxRateRules(c.Request.Context(), c.Query("jurisdiction"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rules))
}

// CreateTaxRateRule adds a tax rate version
// @Summary      Create tax rate rule
// @Tags         rules
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.TaxRateRuleRequest  true  "Rule"
// @Success      201      {object}  response.Response{data=service.TaxRateRuleResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/rules/tax-rates [post]
func (h *RuleHandler) CreateTaxRateRule(c *gin.Context) {
	var req service.TaxRateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	rule, err := h.ruleService.CreateTaxRateRule(c.Request.Context(), req, c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rule))
}

// ListInterestPenaltyRules returns interest and penalty versions
// @Summary      List interest/penalty rules
// @Tags         rules
// @Security     BearerAuth
// @Produce      json
// @Param        jurisdiction  query     string  false  "Two-letter state code"
// @Success      200           {object}  response.Response{data=[]service.InterestPenaltyRuleResponse}
// @Router       /api/rules/interest-penalty [get]
func (h *RuleHandler) ListInterestPenaltyRules(c *gin.Context) {
	rules, err := h.ruleService.ListInterestPenaltyRules(c.Request.Context(), c.Query("jurisdiction"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rules))
}

// CreateInterestPenaltyRule adds an interest and penalty version
// @Summary      Create interest/penalty rule
// @Tags         rules
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.InterestPenaltyRuleRequest  true  "Rule"
// @Success      201      {object}  response.Response{data=service.InterestPenaltyRuleResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/rules/interest-penalty [post]
func (h *RuleHandler) CreateInterestPenaltyRule(c *gin.Context) {
	var req service.InterestPenaltyRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	rule, err := h.ruleService.CreateInterestPenaltyRule(c.Request.Context(), req, c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rule))
}

// CloseRule ends a rule version so a successor can start
// @Summary      Close rule version
// @Tags         rules
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        kind     path      string                    true  "thresholds, marketplace, tax-rates or interest-penalty"
// @Param        id       path      string                    true  "Rule ID"
// @Param        payload  body      service.CloseRuleRequest  true  "Exclusive end date"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/rules/{kind}/{id}/close [patch]
func (h *RuleHandler) CloseRule(c *gin.Context) {
	kind, ok := ruleKinds[c.Param("kind")]
	if !ok {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Unknown rule table: "+c.Param("kind")))
		return
	}
	var req service.CloseRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	if err := h.ruleService.CloseRule(c.Request.Context(), kind, c.Param("id"), req, c.GetString("userID")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Rule closed successfully"}))
}

// DeleteRule removes a rule version
// @Summary      Delete rule version
// @Tags         rules
// @Security     BearerAuth
// @Produce      json
// @Param        kind  path      string  true  "thresholds, marketplace, tax-rates or interest-penalty"
// @Param        id    path      string  true  "Rule ID"
// @Success      200   {object}  response.Response
// @Failure      404   {object}  response.Response
// @Router       /api/rules/{kind}/{id} [delete]
func (h *RuleHandler) DeleteRule(c *gin.Context) {
	kind, ok := ruleKinds[c.Param("kind")]
	if !ok {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Unknown rule table: "+c.Param("kind")))
		return
	}

	if err := h.ruleService.DeleteRule(c.Request.Context(), kind, c.Param("id"), c.GetString("userID")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Rule deleted successfully"}))
}
