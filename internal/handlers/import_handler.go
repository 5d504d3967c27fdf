package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"order-ingestion-service/internal/mapping"
	"order-ingestion-service/internal/models"
	"order-ingestion-service/internal/services"
)

// FileImporter imports marketplace export files
type FileImporter interface {
	ImportFile(ctx context.Context, data []byte, opts services.ImportOptions) (*models.ImportReport, error)
}

// ManifestImporter reconciles carrier shipping manifests
type ManifestImporter interface {
	ImportShippingManifest(ctx context.Context, data []byte, filename string) (*models.ShippingReconciliationReport, error)
}

// RemoteFetcher pulls orders from the marketplace API
type RemoteFetcher interface {
	FetchRemoteOrders(ctx context.Context, start, end time.Time) (*services.RemoteImportResult, error)
}

// RunLister reads the import audit trail
type RunLister interface {
	List(ctx context.Context, kind string, limit, offset int) ([]models.ImportRun, int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ImportRun, error)
}

// ImportHandler handles file imports, manifest reconciliation and remote fetches
type ImportHandler struct {
	files    FileImporter
	manifest ManifestImporter
	remote   RemoteFetcher
	runs     RunLister
}

// NewImportHandler creates a new import handler
func NewImportHandler(files FileImporter, manifest ManifestImporter, remote RemoteFetcher, runs RunLister) *ImportHandler {
	return &ImportHandler{
		files:    files,
		manifest: manifest,
		remote:   remote,
		runs:     runs,
	}
}

// RemoteFetchRequest is the body of a remote fetch
type RemoteFetchRequest struct {
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`
}

// ImportOrders imports an Amazon or eBay export. The dialect query parameter
// skips header detection.
func (h *ImportHandler) ImportOrders(c *gin.Context) {
	opts := services.ImportOptions{}
	if raw := c.Query("dialect"); raw != "" {
		dialect := mapping.ParseDialect(raw)
		if dialect == mapping.DialectUnknown {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown dialect " + strconv.Quote(raw)})
			return
		}
		opts.Dialect = dialect
	}

	data, filename, err := readUpload(c)
	if err != nil {
		respondUploadError(c, err)
		return
	}
	opts.Filename = filename

	report, err := h.files.ImportFile(c.Request.Context(), data, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

// ImportShipping reconciles a carrier shipping manifest against stored orders
func (h *ImportHandler) ImportShipping(c *gin.Context) {
	data, filename, err := readUpload(c)
	if err != nil {
		respondUploadError(c, err)
		return
	}

	report, err := h.manifest.ImportShippingManifest(c.Request.Context(), data, filename)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

// FetchRemote imports the orders created inside the requested window
func (h *ImportHandler) FetchRemote(c *gin.Context) {
	var req RemoteFetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.remote.FetchRemoteOrders(c.Request.Context(), req.WindowStart, req.WindowEnd)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// ListRuns returns the import audit trail, newest first
func (h *ImportHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	runs, total, err := h.runs.List(c.Request.Context(), c.Query("kind"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  runs,
		"total": total,
	})
}

// GetRun returns a single import run
func (h *ImportHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	run, err := h.runs.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": run})
}

var errNoFile = errors.New("no file uploaded: send multipart field \"file\" or a raw request body")

// readUpload accepts either a multipart form with a "file" field or the file as
// the raw request body
func readUpload(c *gin.Context) ([]byte, string, error) {
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			var sizeErr *http.MaxBytesError
			if errors.As(err, &sizeErr) {
				return nil, "", err
			}
			return nil, "", errNoFile
		}
		f, err := header.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		return data, header.Filename, err
	}

	if c.Request.Body == nil {
		return nil, "", errNoFile
	}
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", errNoFile
	}
	return data, c.Query("filename"), nil
}

func respondUploadError(c *gin.Context, err error) {
	if errors.Is(err, errNoFile) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	respondError(c, err)
}
