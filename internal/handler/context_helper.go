package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-clearance-api/internal/middleware"
	"github.com/noah-isme/student-clearance-api/internal/models"
	"github.com/noah-isme/student-clearance-api/internal/service"
	appErrors "github.com/noah-isme/student-clearance-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

func clientMeta(c *gin.Context) service.ClientMeta {
	return service.ClientMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

// actorFromContext captures who is calling and the absolute base URL used for media links.
func actorFromContext(c *gin.Context) service.Actor {
	return service.Actor{
		Claims:     claimsFromContext(c),
		BaseURL:    baseURL(c.Request),
		ClientMeta: clientMeta(c),
	}
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	return scheme + "://" + r.Host
}

func bindingError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}

// bindPayload binds JSON or form bodies. An empty body binds to the zero value so the
// service layer can report every missing field.
func bindPayload(c *gin.Context, obj interface{}, message string) error {
	if err := c.ShouldBind(obj); err != nil && !errors.Is(err, io.EOF) {
		return bindingError(err, message)
	}
	return nil
}
