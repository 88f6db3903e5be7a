package handler

import (
	"net/http"

	"taxnexus/internal/middleware"
	"taxnexus/internal/service"
	"taxnexus/pkg/response"

	"github.com/gin-gonic/gin"
)

type PhysicalNexusHandler struct {
	physicalNexusService service.PhysicalNexusService
}

func NewPhysicalNexusHandler(physicalNexusService service.PhysicalNexusService) *PhysicalNexusHandler {
	return &PhysicalNexusHandler{physicalNexusService: physicalNexusService}
}

func (h *PhysicalNexusHandler) RegisterRoutes(router *gin.RouterGroup) {
	write := middleware.RequireRole(middleware.WriteRoles...)

	facts := router.Group("/api/analyses/:id/physical-nexus")
	{
		facts.GET("", middleware.RequireRole(middleware.ReadRoles...), h.List)
		facts.POST("", write, h.Create)
		facts.PUT("/:factId", write, h.Update)
		facts.DELETE("/:factId", write, h.Delete)
	}
}

// List returns the physical presence facts of an analysis
// @Summary      List physical nexus facts
// @Tags         physical-nexus
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Analysis ID"
// @Success      200  {object}  response.Response{data=[]service.PhysicalNexusResponse}
// @Router       /api/analyses/{id}/physical-nexus [get]
func (h *PhysicalNexusHandler) List(c *gin.Context) {
	facts, err := h.physicalNexusService.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, facts))
}

// Create records a physical presence fact and recalculates
// @Summary      Create physical nexus fact
// @Tags         physical-nexus
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Analysis ID"
// @Param        payload  body      service.PhysicalNexusInput  true  "Fact"
// @Success      201      {object}  response.Response{data=service.PhysicalNexusMutation}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/analyses/{id}/physical-nexus [post]
func (h *PhysicalNexusHandler) Create(c *gin.Context) {
	var req service.PhysicalNexusInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	res, err := h.physicalNexusService.Create(c.Request.Context(), c.Param("id"), req, c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// Update replaces a physical presence fact and recalculates
// @Summary      Update physical nexus fact
// @Tags         physical-nexus
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Analysis ID"
// @Param        factId   path      string                      true  "Fact ID"
// @Param        payload  body      service.PhysicalNexusInput  true  "Fact"
// @Success      200      {object}  response.Response{data=service.PhysicalNexusMutation}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/analyses/{id}/physical-nexus/{factId} [put]
func (h *PhysicalNexusHandler) Update(c *gin.Context) {
	var req service.PhysicalNexusInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	res, err := h.physicalNexusService.Update(c.Request.Context(), c.Param("id"), c.Param("factId"), req, c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Delete removes a physical presence fact and recalculates
// @Summary      Delete physical nexus fact
// @Tags         physical-nexus
// @Security     BearerAuth
// @Produce      json
// @Param        id      path      string  true  "Analysis ID"
// @Param        factId  path      string  true  "Fact ID"
// @Success      200     {object}  response.Response{data=service.PhysicalNexusMutation}
// @Failure      404     {object}  response.Response
// @Router       /api/analyses/{id}/physical-nexus/{factId} [delete]
func (h *PhysicalNexusHandler) Delete(c *gin.Context) {
	res, err := h.physicalNexusService.Delete(c.Request.Context(), c.Param("id"), c.Param("factId"), c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
