package handler

import (
	"net/http"

	"taxnexus/internal/middleware"
	"taxnexus/internal/service"
	"taxnexus/pkg/pagination"
	"taxnexus/pkg/response"

	"github.com/gin-gonic/gin"
)

type AnalysisHandler struct {
	analysisService service.AnalysisService
}

func NewAnalysisHandler(analysisService service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysisService: analysisService}
}

func (h *AnalysisHandler) RegisterRoutes(router *gin.RouterGroup) {
	read := middleware.RequireRole(middleware.ReadRoles...)
	write := middleware.RequireRole(middleware.WriteRoles...)

	analyses := router.Group("/api/analyses")
	{
		analyses.GET("", read, h.ListAnalyses)
		analyses.POST("", write, h.CreateAnalysis)
		analyses.GET("/:id", read, h.GetAnalysis)
		analyses.DELETE("/:id", middleware.RequireRole(middleware.RoleAdmin), h.DeleteAnalysis)
		analyses.POST("/:id/transactions", write, h.ImportTransactions)
		analyses.POST("/:id/calculate", write, h.Calculate)
		analyses.GET("/:id/results", read, h.GetResults)
		analyses.POST("/:id/vda", read, h.ModelVDA)
	}
}

// ListAnalyses returns analyses, newest first
// @Summary      List analyses
// @Tags         analyses
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page{items=[]service.AnalysisResponse}}
// @Failure      500    {object}  response.Response
// @Router       /api/analyses [get]
func (h *AnalysisHandler) ListAnalyses(c *gin.Context) {
	p := pagination.Parse(c)
	analyses, total, err := h.analysisService.ListAnalyses(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Wrap(analyses, total)))
}

// CreateAnalysis opens a new client analysis
// @Summary      Create analysis
// @Tags         analyses
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateAnalysisRequest  true  "Client and as-of date"
// @Success      201      {object}  response.Response{data=service.AnalysisResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/analyses [post]
func (h *AnalysisHandler) CreateAnalysis(c *gin.Context) {
	var req service.CreateAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	a, err := h.analysisService.CreateAnalysis(c.Request.Context(), req, c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, a))
}

// GetAnalysis returns one analysis with its transaction count
// @Summary      Get analysis
// @Tags         analyses
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Analysis ID"
// @Success      200  {object}  response.Response{data=service.AnalysisResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/analyses/{id} [get]
func (h *AnalysisHandler) GetAnalysis(c *gin.Context) {
	a, err := h.analysisService.GetAnalysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, a))
}

// DeleteAnalysis removes an analysis and everything attached to it
// @Summary      Delete analysis
// @Tags         analyses
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Analysis ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/analyses/{id} [delete]
func (h *AnalysisHandler) DeleteAnalysis(c *gin.Context) {
	if err := h.analysisService.DeleteAnalysis(c.Request.Context(), c.Param("id"), c.GetString("userID")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Analysis deleted successfully"}))
}

// ImportTransactions appends normalized sales to an analysis
// @Summary      Import transactions
// @Description  Rows must already carry a 2-letter jurisdiction code and an ISO date. The batch is rejected as a whole if any row is invalid.
// @Tags         analyses
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                             true  "Analysis ID"
// @Param        payload  body      service.ImportTransactionsRequest  true  "Transactions"
// @Success      201      {object}  response.Response{data=service.ImportTransactionsResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/analyses/{id}/transactions [post]
func (h *AnalysisHandler) ImportTransactions(c *gin.Context) {
	var req service.ImportTransactionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	res, err := h.analysisService.ImportTransactions(c.Request.Context(), c.Param("id"), req, c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// Calculate reruns nexus and liability for the analysis
// @Summary      Calculate analysis
// @Description  Replaces previous results and broadcasts analysis.recalculated over the websocket.
// @Tags         analyses
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Analysis ID"
// @Success      200  {object}  response.Response{data=service.CalculationResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/analyses/{id}/calculate [post]
func (h *AnalysisHandler) Calculate(c *gin.Context) {
	res, err := h.analysisService.Calculate(c.Request.Context(), c.Param("id"), c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// GetResults returns the stored per-state, per-year results
// @Summary      Get results
// @Tags         analyses
// @Security     BearerAuth
// @Produce      json
// @Param        id            path      string  true   "Analysis ID"
// @Param        jurisdiction  query     string  false  "Two-letter state code"
// @Success      200           {object}  response.Response{data=service.CalculationResponse}
// @Failure      404           {object}  response.Response
// @Router       /api/analyses/{id}/results [get]
func (h *AnalysisHandler) GetResults(c *gin.Context) {
	res, err := h.analysisService.GetResults(c.Request.Context(), c.Param("id"), c.Query("jurisdiction"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// ModelVDA prices voluntary disclosure for the selected states
// @Summary      Model VDA
// @Description  Computed on demand from stored results and current rules; nothing is saved.
// @Tags         analyses
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string              true  "Analysis ID"
// @Param        payload  body      service.VDARequest  true  "Selected jurisdictions"
// @Success      200      {object}  response.Response{data=service.VDAResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/analyses/{id}/vda [post]
func (h *AnalysisHandler) ModelVDA(c *gin.Context) {
	var req service.VDARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	res, err := h.analysisService.ModelVDA(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
