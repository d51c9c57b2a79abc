package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-clearance-api/internal/dto"
	"github.com/noah-isme/student-clearance-api/internal/service"
	"github.com/noah-isme/student-clearance-api/pkg/response"
)

type passwordResetService interface {
	VerifyCredentials(ctx context.Context, identity dto.ResetIdentity) error
	Confirm(ctx context.Context, req dto.ConfirmResetRequest, meta service.ClientMeta) error
}

// PasswordResetHandler exposes the two-phase password reset flow.
type PasswordResetHandler struct {
	service passwordResetService
}

// NewPasswordResetHandler constructs the handler.
func NewPasswordResetHandler(svc passwordResetService) *PasswordResetHandler {
	return &PasswordResetHandler{service: svc}
}

// VerifyCredentials godoc
// @Summary Verify reset identity
// @Description Checks username, email and birth date before a reset
// @Tags Password Reset
// @Accept json
// @Produce json
// @Param payload body dto.ResetIdentity true "Identity"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /verify-reset-credentials/ [post]
func (h *PasswordResetHandler) VerifyCredentials(c *gin.Context) {
	var req dto.ResetIdentity
	if err := bindPayload(c, &req, "invalid verification payload"); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.VerifyCredentials(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "Credentials verified.")
}

// Confirm godoc
// @Summary Confirm password reset
// @Description Re-verifies the identity and stores the new password
// @Tags Password Reset
// @Accept json
// @Produce json
// @Param payload body dto.ConfirmResetRequest true "Identity and new password"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reset-password-confirm/ [post]
func (h *PasswordResetHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmResetRequest
	if err := bindPayload(c, &req, "invalid reset payload"); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.Confirm(c.Request.Context(), req, clientMeta(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "Password has been reset successfully.")
}
