package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reporting-scheduler/pkg/db/pagination"
	"reporting-scheduler/pkg/errutil"
	"reporting-scheduler/pkg/security"
	"reporting-scheduler/services/definition"
)

type DefinitionHandler struct {
	svc *definition.Service
}

func NewDefinitionHandler(svc *definition.Service) *DefinitionHandler {
	return &DefinitionHandler{svc: svc}
}

type definitionListResponse struct {
	StartIndex int                   `json:"startIndex"`
	TotalHits  int64                 `json:"totalHits"`
	Items      []*definition.Details `json:"reportDefinitionDetailsList"`
}

func (h *DefinitionHandler) Create(c *gin.Context) {
	var report definition.ReportDefinition
	if err := c.ShouldBindJSON(&report); err != nil {
		_ = c.Error(errutil.BadRequest("malformed report definition body", errutil.WithErr(err)))
		return
	}

	d, err := h.svc.Create(c.Request.Context(), security.FromContext(c.Request.Context()), &report)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reportDefinitionId": d.ID})
}

func (h *DefinitionHandler) Get(c *gin.Context) {
	d, err := h.svc.Get(c.Request.Context(), security.FromContext(c.Request.Context()), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reportDefinitionDetails": d})
}

func (h *DefinitionHandler) Update(c *gin.Context) {
	var report definition.ReportDefinition
	if err := c.ShouldBindJSON(&report); err != nil {
		_ = c.Error(errutil.BadRequest("malformed report definition body", errutil.WithErr(err)))
		return
	}

	d, err := h.svc.Update(c.Request.Context(), security.FromContext(c.Request.Context()), c.Param("id"), &report)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reportDefinitionId": d.ID})
}

func (h *DefinitionHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Delete(c.Request.Context(), security.FromContext(c.Request.Context()), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reportDefinitionId": id})
}

func (h *DefinitionHandler) List(c *gin.Context) {
	var p pagination.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination parameters", errutil.WithErr(err)))
		return
	}

	total, items, err := h.svc.List(c.Request.Context(), security.FromContext(c.Request.Context()), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, definitionListResponse{
		StartIndex: p.FromIndex,
		TotalHits:  total,
		Items:      items,
	})
}
