package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/chat-account-api/internal/core/domain"
	"github.com/arklim/chat-account-api/internal/usecase"
)

// AccountDirectory is implemented by the account service.
type AccountDirectory interface {
	Get(ctx context.Context, id string) (domain.Profile, error)
	SyncChatUsers(ctx context.Context) (usecase.SyncResult, error)
}

type AccountHandler struct {
	accounts AccountDirectory
}

func NewAccountHandler(accounts AccountDirectory) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

func (h *AccountHandler) Get(c *gin.Context) {
	profile, err := h.accounts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Sync copies accounts missing from the chat user directory.
func (h *AccountHandler) Sync(c *gin.Context) {
	result, err := h.accounts.SyncChatUsers(c.Request.Context())
	if err != nil {
		respondFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, SyncResponse{
		Message:  usecase.MessageAccountsSynced,
		Inserted: result.Inserted,
		Total:    result.Total,
	})
}
