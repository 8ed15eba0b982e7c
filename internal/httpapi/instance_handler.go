package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reporting-scheduler/pkg/db/pagination"
	"reporting-scheduler/pkg/errutil"
	"reporting-scheduler/pkg/security"
	"reporting-scheduler/services/instance"
)

type InstanceHandler struct {
	svc *instance.Service
}

func NewInstanceHandler(svc *instance.Service) *InstanceHandler {
	return &InstanceHandler{svc: svc}
}

type instanceListResponse struct {
	StartIndex int                  `json:"startIndex"`
	TotalHits  int64                `json:"totalHits"`
	Items      []*instance.Instance `json:"reportInstanceList"`
}

type pollResponse struct {
	RetryAfterSeconds int                `json:"retryAfter"`
	Instance          *instance.Instance `json:"reportInstance,omitempty"`
}

func (h *InstanceHandler) CreateOnDemand(c *gin.Context) {
	inst, err := h.svc.CreateOnDemand(c.Request.Context(), security.FromContext(c.Request.Context()), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reportInstance": inst})
}

func (h *InstanceHandler) CreateInContext(c *gin.Context) {
	var req instance.InContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("malformed in-context request body", errutil.WithErr(err)))
		return
	}

	inst, err := h.svc.CreateInContext(c.Request.Context(), security.FromContext(c.Request.Context()), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reportInstance": inst})
}

func (h *InstanceHandler) Get(c *gin.Context) {
	inst, err := h.svc.Get(c.Request.Context(), security.FromContext(c.Request.Context()), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reportInstance": inst})
}

func (h *InstanceHandler) UpdateStatus(c *gin.Context) {
	var req instance.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("malformed status update body", errutil.WithErr(err)))
		return
	}

	inst, err := h.svc.UpdateStatus(c.Request.Context(), security.FromContext(c.Request.Context()), c.Param("id"), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reportInstance": inst})
}

func (h *InstanceHandler) List(c *gin.Context) {
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
	c.JSON(http.StatusOK, instanceListResponse{
		StartIndex: p.FromIndex,
		TotalHits:  total,
		Items:      items,
	})
}

// Poll is the worker-facing claim endpoint. Callers other than the polling
// identity get Forbidden.
func (h *InstanceHandler) Poll(c *gin.Context) {
	res, err := h.svc.Poll(c.Request.Context(), security.FromContext(c.Request.Context()))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, pollResponse{
		RetryAfterSeconds: int(res.RetryAfter.Seconds()),
		Instance:          res.Instance,
	})
}
