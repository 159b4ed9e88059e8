package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// allowedImageTypes is the set of sniffed MIME types accepted for captures.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// isHEIC matches an ISO-BMFF ftyp box with a HEIF brand, as written by
// phone cameras.
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "hevc", "mif1":
		return true
	}
	return false
}

func imageMIME(data []byte) (string, bool) {
	switch {
	case isWebP(data):
		return "image/webp", true
	case isHEIC(data):
		return "image/heic", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

// UploadCapture stores a photo and records it on an open visit. The visit
// is checked before the upload is read.
func (h *Handler) UploadCapture(c *gin.Context) {
	v, err := h.tracker.RequireOpen(visitParam(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "capture file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "capture file is required", "field": "file"})
		return
	}
	f, err := file.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.fail(c, err)
		return
	}
	mimeType, ok := imageMIME(data)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image format", "field": "file"})
		return
	}

	ctx := c.Request.Context()
	key, err := h.photos.Save(ctx, v.StoreID, mimeType, bytes.NewReader(data))
	if err != nil {
		h.fail(c, err)
		return
	}
	capture, err := h.tracker.AddCapture(v.ID, key, c.PostForm("category"), c.PostForm("comment"))
	if err != nil {
		if derr := h.photos.Delete(ctx, key); derr != nil {
			h.logger.Warn("failed to remove orphaned capture file", zap.String("key", key), zap.Error(derr))
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, capture)
}

// GetCaptureFile streams a capture's photo.
func (h *Handler) GetCaptureFile(c *gin.Context) {
	capture, ok := h.tracker.Capture(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "capture not found"})
		return
	}
	rc, mimeType, err := h.photos.Get(c.Request.Context(), capture.FileRef)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer rc.Close()

	c.Header("Cache-Control", "private, max-age=86400")
	c.DataFromReader(http.StatusOK, -1, mimeType, rc, nil)
}
