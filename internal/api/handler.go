package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"axis-blue-backend/internal/backend"
	"axis-blue-backend/internal/mw"
	"axis-blue-backend/internal/photostore"
	"axis-blue-backend/internal/syncer"
	"axis-blue-backend/internal/tracker"
)

const defaultMaxUpload = 25 << 20

// Deps are the services behind the API.
type Deps struct {
	Tracker  *tracker.Tracker
	Backends *backend.Manager
	Auth     *backend.Auth
	Syncer   *syncer.Service
	Photos   photostore.PhotoStore
	DB       *gorm.DB
	WebPush  *webpush.Options
	Logger   *zap.Logger

	// MaxUploadBytes caps a capture upload.
	MaxUploadBytes int64
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	tracker   *tracker.Tracker
	backends  *backend.Manager
	auth      *backend.Auth
	syncer    *syncer.Service
	photos    photostore.PhotoStore
	db        *gorm.DB
	webpush   *webpush.Options
	logger    *zap.Logger
	maxUpload int64
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = defaultMaxUpload
	}
	return &Handler{
		tracker:   d.Tracker,
		backends:  d.Backends,
		auth:      d.Auth,
		syncer:    d.Syncer,
		photos:    d.Photos,
		db:        d.DB,
		webpush:   d.WebPush,
		logger:    d.Logger,
		maxUpload: d.MaxUploadBytes,
	}
}

// fail maps an error to its HTTP response.
func (h *Handler) fail(c *gin.Context, err error) {
	var ve *tracker.ValidationError
	var se *tracker.StateError
	var be *backend.BackendError
	switch {
	case errors.As(err, &ve):
		body := gin.H{"error": err.Error()}
		if ve.Field != "" {
			body["field"] = ve.Field
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &se):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case backend.IsConfig(err):
		mw.NeedsConfig(c, err)
	case errors.Is(err, syncer.ErrSignedOut):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, photostore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &be):
		if backend.IsUnauthorized(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": be.Error()})
			return
		}
		h.logger.Warn("backend call failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": be.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// bind decodes an optional JSON body. An empty body leaves req untouched.
func bind(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return false
	}
	return true
}

// visitParam resolves the :id path segment; "current" means the open visit.
func visitParam(c *gin.Context) string {
	id := c.Param("id")
	if id == "current" {
		return ""
	}
	return id
}
