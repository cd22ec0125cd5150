package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/chat-account-api/internal/core/domain"
	"github.com/arklim/chat-account-api/internal/transport/http/middleware"
)

const labelDeletedMessage = "Label deleted successfully"

// LabelManager is implemented by the label service.
type LabelManager interface {
	Create(ctx context.Context, callerID, name string) (domain.Label, error)
	Get(ctx context.Context, callerID, id string) (domain.Label, error)
	List(ctx context.Context, callerID string) ([]domain.Label, error)
	Rename(ctx context.Context, callerID, id, name string) (domain.Label, error)
	Delete(ctx context.Context, callerID, id string) error
}

type LabelHandler struct {
	labels LabelManager
}

func NewLabelHandler(labels LabelManager) *LabelHandler {
	return &LabelHandler{labels: labels}
}

func (h *LabelHandler) Create(c *gin.Context) {
	callerID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		middleware.AbortWithError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req LabelRequest
	if !bindJSON(c, &req) {
		return
	}

	label, err := h.labels.Create(c.Request.Context(), callerID, req.Name)
	if err != nil {
		respondFlowError(c, err)
		return
	}
	c.JSON(http.StatusCreated, label)
}

func (h *LabelHandler) List(c *gin.Context) {
	callerID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		middleware.AbortWithError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	labels, err := h.labels.List(c.Request.Context(), callerID)
	if err != nil {
		respondFlowError(c, err)
		return
	}
	if labels == nil {
		labels = []domain.Label{}
	}
	c.JSON(http.StatusOK, LabelListResponse{Labels: labels})
}

func (h *LabelHandler) Get(c *gin.Context) {
	callerID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		middleware.AbortWithError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	label, err := h.labels.Get(c.Request.Context(), callerID, c.Param("id"))
	if err != nil {
		respondFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, label)
}

func (h *LabelHandler) Rename(c *gin.Context) {
	callerID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		middleware.AbortWithError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req LabelRequest
	if !bindJSON(c, &req) {
		return
	}

	label, err := h.labels.Rename(c.Request.Context(), callerID, c.Param("id"), req.Name)
	if err != nil {
		respondFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, label)
}

// Delete soft-deletes the label. It disappears from List and Get.
func (h *LabelHandler) Delete(c *gin.Context) {
	callerID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		middleware.AbortWithError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.labels.Delete(c.Request.Context(), callerID, c.Param("id")); err != nil {
		respondFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: labelDeletedMessage})
}
