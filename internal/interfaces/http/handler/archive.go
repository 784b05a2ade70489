package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/storelink/backend/internal/domain/integration"
	"github.com/storelink/backend/internal/infrastructure/storage"
	"github.com/storelink/backend/internal/interfaces/http/router"
)

const maxArchiveListLimit = 500

// ArchiveBrowser lists retention archives and links to them
type ArchiveBrowser interface {
	List(ctx context.Context, prefix string, limit int) ([]storage.ArchiveObject, error)
	DownloadURL(ctx context.Context, key string) (string, time.Time, error)
}

// ArchiveLinkResponse is a time-limited download link
type ArchiveLinkResponse struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ArchiveHandler browses the sync log archives written by retention
type ArchiveHandler struct {
	BaseHandler
	archive ArchiveBrowser
}

// NewArchiveHandler creates a new ArchiveHandler
func NewArchiveHandler(archive ArchiveBrowser) *ArchiveHandler {
	return &ArchiveHandler{archive: archive}
}

// RegisterRoutes mounts the archive routes under /sync/archives
func (h *ArchiveHandler) RegisterRoutes(rg *gin.RouterGroup) {
	archives := router.NewDomainGroup("archives", "/sync/archives")
	archives.GET("", h.List)
	archives.GET("/download", h.Download)
	archives.RegisterRoutes(rg)
}

// List returns archive objects under ?prefix=, e.g. sync-logs/2026/03/
func (h *ArchiveHandler) List(c *gin.Context) {
	limit, err := queryInt(c, "limit", 100)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if limit == 0 || limit > maxArchiveListLimit {
		limit = maxArchiveListLimit
	}

	objects, err := h.archive.List(c.Request.Context(), c.Query("prefix"), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if objects == nil {
		objects = []storage.ArchiveObject{}
	}
	h.Success(c, objects)
}

// Download presigns a link for ?key=. Keys contain slashes, so they travel
// in the query rather than the path.
func (h *ArchiveHandler) Download(c *gin.Context) {
	key := strings.TrimPrefix(c.Query("key"), "/")
	if key == "" || strings.Contains(key, "..") {
		h.HandleError(c, integration.NewValidationError("key", "must name an archive object"))
		return
	}

	url, expires, err := h.archive.DownloadURL(c.Request.Context(), key)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ArchiveLinkResponse{Key: key, URL: url, ExpiresAt: expires})
}
