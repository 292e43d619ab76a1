package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mgathogo/lendhub/internal/config"
	"github.com/mgathogo/lendhub/internal/uploads"
)

type ImageUploader interface {
	Upload(ctx context.Context, fileName string, file io.Reader) (string, error)
}

type UploadsHandler struct {
	uploader ImageUploader
}

func NewUploadsHandler(uploader ImageUploader) *UploadsHandler {
	return &UploadsHandler{uploader: uploader}
}

// Upload proxies a cover image to the external image host and returns
// the durable URL. Expects multipart fields `file` and `fileName`.
func (h *UploadsHandler) Upload(ctx *gin.Context) {
	fileHeader, err := ctx.FormFile("file")

	if err != nil {
		RespondBadRequest(ctx, "missing file field", nil)
		return
	}

	fileName := ctx.PostForm("fileName")

	if fileName == "" {
		RespondBadRequest(ctx, "missing fileName field", nil)
		return
	}

	f, err := fileHeader.Open()

	if err != nil {
		RespondInternal(ctx, "Could not read upload")
		return
	}

	defer f.Close()

	cctx, cancel := config.WithTimeout(20 * time.Second)

	defer cancel()

	url, err := h.uploader.Upload(cctx, fileName, f)

	if err != nil {
		if errors.Is(err, uploads.ErrUpstream) {
			RespondBadGateway(ctx, "Image host rejected the upload")
			return
		}

		RespondInternal(ctx, "Could not upload image")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"url": url})
}
