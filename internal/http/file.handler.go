package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/appcontext"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/services"
)

// multipartOverhead is allowed on top of the file size limit for the
// multipart envelope and other form fields.
const multipartOverhead = 1 << 20

// readUpload reads the multipart "file" field into memory, rejecting bodies
// larger than the configured content length.
func readUpload(ctx *appcontext.Context, c *gin.Context) (services.UploadedFile, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ctx.MaxContentLength+multipartOverhead)

	file, err := c.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			return services.UploadedFile{}, apperrors.New(apperrors.KindTooLarge,
				fmt.Sprintf("File too large. Maximum size: %dMB", ctx.MaxContentLength/(1024*1024)))
		}
		return services.UploadedFile{}, apperrors.Validation("No file uploaded")
	}
	if file.Filename == "" {
		return services.UploadedFile{}, apperrors.Validation("No file selected")
	}

	src, err := file.Open()
	if err != nil {
		return services.UploadedFile{}, apperrors.Wrap(apperrors.KindInternal, "Failed to open file", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return services.UploadedFile{}, apperrors.Wrap(apperrors.KindInternal, "Failed to read file", err)
	}
	return services.UploadedFile{Filename: file.Filename, Size: file.Size, Data: data}, nil
}

func isBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large")
}
