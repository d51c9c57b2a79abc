package handler

import (
	"errors"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/student-clearance-api/pkg/errors"
	"github.com/noah-isme/student-clearance-api/pkg/response"
)

type mediaOpener interface {
	Open(rel string) (*os.File, error)
}

// MediaHandler serves stored proof images.
type MediaHandler struct {
	store mediaOpener
}

// NewMediaHandler constructs the handler.
func NewMediaHandler(store mediaOpener) *MediaHandler {
	return &MediaHandler{store: store}
}

// Serve streams the artifact named by the *filepath route parameter.
func (h *MediaHandler) Serve(c *gin.Context) {
	rel := strings.TrimPrefix(path.Clean("/"+c.Param("filepath")), "/")
	if rel == "" {
		response.Error(c, appErrors.ErrNotFound)
		return
	}

	file, err := h.store.Open(rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open media file"))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		response.Error(c, appErrors.ErrNotFound)
		return
	}

	c.Header("Cache-Control", "private, max-age=3600")
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), file)
}
