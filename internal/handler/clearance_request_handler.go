package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/noah-isme/student-clearance-api/internal/dto"
	"github.com/noah-isme/student-clearance-api/internal/middleware"
	"github.com/noah-isme/student-clearance-api/internal/models"
	"github.com/noah-isme/student-clearance-api/internal/service"
	appErrors "github.com/noah-isme/student-clearance-api/pkg/errors"
	"github.com/noah-isme/student-clearance-api/pkg/response"
)

const (
	fieldEClearanceProof = "eclearance_proof"
	fieldPaymentProof    = "payment_proof"
)

type clearanceRequestService interface {
	List(ctx context.Context, actor service.Actor, status string) ([]dto.ClearanceRequestView, error)
	Create(ctx context.Context, actor service.Actor, input dto.ClearanceRequestInput, proof *service.Upload) (*dto.ClearanceRequestView, error)
	Update(ctx context.Context, actor service.Actor, id int64, input dto.ClearanceRequestInput, partial bool, uploads service.RequestUploads) (*dto.ClearanceRequestView, error)
	Delete(ctx context.Context, actor service.Actor, id int64) error
	Stats(ctx context.Context) (*dto.RequestStats, error)
}

type requestExporter interface {
	Export(ctx context.Context, claims *models.JWTClaims, format dto.ExportFormat) (*dto.ExportFile, error)
}

// ClearanceRequestHandler serves the clearance request registry.
type ClearanceRequestHandler struct {
	requests clearanceRequestService
	exports  requestExporter
}

// NewClearanceRequestHandler constructs the handler.
func NewClearanceRequestHandler(requests clearanceRequestService, exports requestExporter) *ClearanceRequestHandler {
	return &ClearanceRequestHandler{requests: requests, exports: exports}
}

// List godoc
// @Summary List clearance requests
// @Description Staff see every request, students only their own. Newest first.
// @Tags Clearance Requests
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by request status"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /requests/ [get]
func (h *ClearanceRequestHandler) List(c *gin.Context) {
	items, err := h.requests.List(c.Request.Context(), actorFromContext(c), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"count": len(items)})
}

// Create godoc
// @Summary Submit a clearance request
// @Description Accepts JSON or multipart with an optional eclearance_proof image. The owner is always the caller.
// @Tags Clearance Requests
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ClearanceRequestInput true "Request fields"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /requests/create/ [post]
func (h *ClearanceRequestHandler) Create(c *gin.Context) {
	var input dto.ClearanceRequestInput
	if err := bindPayload(c, &input, "invalid request payload"); err != nil {
		response.Error(c, err)
		return
	}

	proof, closeProof, err := formUpload(c, fieldEClearanceProof)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeProof()

	view, err := h.requests.Create(c.Request.Context(), actorFromContext(c), input, proof)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Replace godoc
// @Summary Replace a clearance request
// @Description Full update. Required fields must all be present.
// @Tags Clearance Requests
// @Accept json,mpfd
// @Produce json
// @Param pk path int true "Request ID"
// @Param payload body dto.ClearanceRequestInput true "Request fields"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{pk}/ [put]
func (h *ClearanceRequestHandler) Replace(c *gin.Context) {
	h.update(c, false)
}

// Patch godoc
// @Summary Partially update a clearance request
// @Description Only supplied fields are validated and applied. Accepts payment_proof and eclearance_proof uploads.
// @Tags Clearance Requests
// @Accept json,mpfd
// @Produce json
// @Param pk path int true "Request ID"
// @Param payload body dto.ClearanceRequestInput true "Request fields"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{pk}/ [patch]
func (h *ClearanceRequestHandler) Patch(c *gin.Context) {
	h.update(c, true)
}

func (h *ClearanceRequestHandler) update(c *gin.Context, partial bool) {
	id, err := parsePK(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var input dto.ClearanceRequestInput
	if err := bindPayload(c, &input, "invalid request payload"); err != nil {
		response.Error(c, err)
		return
	}

	var uploads service.RequestUploads
	var closeProof, closePayment func()
	uploads.EClearanceProof, closeProof, err = formUpload(c, fieldEClearanceProof)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeProof()
	uploads.PaymentProof, closePayment, err = formUpload(c, fieldPaymentProof)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closePayment()

	view, err := h.requests.Update(c.Request.Context(), actorFromContext(c), id, input, partial, uploads)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Delete godoc
// @Summary Delete a clearance request
// @Tags Clearance Requests
// @Param pk path int true "Request ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /requests/{pk}/ [delete]
func (h *ClearanceRequestHandler) Delete(c *gin.Context) {
	id, err := parsePK(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.requests.Delete(c.Request.Context(), actorFromContext(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Stats godoc
// @Summary Request counts by status
// @Description Staff dashboard counters. Served from cache when available.
// @Tags Clearance Requests
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /requests/stats/ [get]
func (h *ClearanceRequestHandler) Stats(c *gin.Context) {
	stats, err := h.requests.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, stats.Cached)
	response.JSON(c, http.StatusOK, stats, middleware.ResponseMeta(c))
}

// Export godoc
// @Summary Export clearance requests
// @Description Downloads every request as CSV or PDF
// @Tags Clearance Requests
// @Produce text/csv,application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /requests/export/ [get]
func (h *ClearanceRequestHandler) Export(c *gin.Context) {
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	file, err := h.exports.Export(c.Request.Context(), claimsFromContext(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

func parsePK(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("pk"), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrNotFound, "clearance request not found")
	}
	return id, nil
}

// formUpload opens an optional multipart file. The returned close func is always safe to call.
func formUpload(c *gin.Context, field string) (*service.Upload, func(), error) {
	noop := func() {}
	if c.ContentType() != binding.MIMEMultipartPOSTForm {
		return nil, noop, nil
	}

	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, noop, nil
		}
		return nil, noop, bindingError(err, "invalid multipart payload")
	}

	file, err := header.Open()
	if err != nil {
		return nil, noop, bindingError(err, "failed to read uploaded file")
	}
	return newUpload(header, file), func() { _ = file.Close() }, nil
}

func newUpload(header *multipart.FileHeader, content io.Reader) *service.Upload {
	return &service.Upload{Filename: header.Filename, Size: header.Size, Content: content}
}
