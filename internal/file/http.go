package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/dumpit/dumpit/internal/metrics"
	"github.com/gin-gonic/gin"
)

const maxUploadSize = 100 * 1024 * 1024 // 100MB per file

// RegisterRoutes mounts the upload, listing and pin assignment endpoints
// under the provided router group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/upload", handler.upload)
	group.GET("/files/:pin", handler.listByPin)
	group.GET("/anonymous-files", handler.listAnonymous)
	group.POST("/assign-pin", handler.assignPin)
}

type httpHandler struct {
	service *Service
}

func (h *httpHandler) upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files uploaded"})
		return
	}

	pin := NoPin()
	if value := c.PostForm("pin"); value != "" {
		pin, err = AssignedPin(value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "PIN is required"})
			return
		}
	}

	uploads, closeAll, err := openUploads(headers)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded files"})
		return
	}
	defer closeAll()

	records, err := h.service.Upload(c.Request.Context(), uploads, pin)
	if err != nil {
		respondError(c, err, "Failed to upload files")
		return
	}

	for _, rec := range records {
		metrics.ObserveUpload(rec.Size)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"files":   records,
		"message": fmt.Sprintf("%d file(s) uploaded successfully", len(records)),
	})
}

func (h *httpHandler) listByPin(c *gin.Context) {
	records, err := h.service.ListByPin(
		c.Request.Context(),
		c.Param("pin"),
		c.Query("sortBy"),
		c.Query("order"),
	)
	if err != nil {
		respondError(c, err, "Failed to retrieve files")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "files": records})
}

func (h *httpHandler) listAnonymous(c *gin.Context) {
	records, err := h.service.ListUnassigned(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to retrieve anonymous files")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "files": records})
}

type assignPinRequest struct {
	Pin     string     `json:"pin"`
	FileIDs []recordID `json:"fileIds"`
}

// recordID accepts either a JSON string or number, since relational record
// ids are numeric while document ids are hex strings.
type recordID string

func (r *recordID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = recordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("file id must be a string or number")
	}
	*r = recordID(n.String())
	return nil
}

func (h *httpHandler) assignPin(c *gin.Context) {
	var req assignPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ids := make([]string, 0, len(req.FileIDs))
	for _, id := range req.FileIDs {
		ids = append(ids, string(id))
	}

	result, err := h.service.AssignPin(c.Request.Context(), req.Pin, ids)
	if err != nil {
		respondError(c, err, "Failed to assign PIN")
		return
	}

	metrics.ObservePinAssignment()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("PIN assigned to %d file(s)", result.Count),
		"files":   result.Records,
	})
}

func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNoFiles):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files uploaded"})
	case errors.Is(err, ErrEmptyPin):
		c.JSON(http.StatusBadRequest, gin.H{"error": "PIN is required"})
	case errors.Is(err, ErrNoIDs):
		c.JSON(http.StatusBadRequest, gin.H{"error": "File IDs are required"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func openUploads(headers []*multipart.FileHeader) ([]Upload, func(), error) {
	uploads := make([]Upload, 0, len(headers))
	var opened []multipart.File

	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	for _, header := range headers {
		if header.Size > maxUploadSize {
			closeAll()
			return nil, nil, ErrFileTooLarge
		}

		f, err := header.Open()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open upload file: %w", err)
		}
		opened = append(opened, f)

		uploads = append(uploads, Upload{
			OriginalName: header.Filename,
			Mimetype:     contentType(header),
			Size:         header.Size,
			Content:      f,
		})
	}

	return uploads, closeAll, nil
}

func contentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
