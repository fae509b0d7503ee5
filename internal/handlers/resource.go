package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ghprograms/programs-backend/internal/services"
)

const maxResourceUploadBytes = 512 << 20

type ResourceHandler struct {
	resourceService services.ResourceService
}

func NewResourceHandler(resourceService services.ResourceService) *ResourceHandler {
	return &ResourceHandler{resourceService: resourceService}
}

// POST /api/lessons/:id/resources  (multipart: file, kind, title)
func (h *ResourceHandler) UploadResource(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_lesson_id", err)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	if fileHeader.Size > maxResourceUploadBytes {
		RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large", nil)
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxResourceUploadBytes+1))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}

	result, err := h.resourceService.UploadResource(c.Request.Context(), services.UploadResourceInput{
		LessonID: lessonID,
		Kind:     strings.TrimSpace(c.PostForm("kind")),
		Title:    strings.TrimSpace(c.PostForm("title")),
		FileName: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		respondServiceError(c, "upload_resource_failed", err)
		return
	}
	RespondCreated(c, result)
}

// POST /api/lessons/:id/resources/link
func (h *ResourceHandler) CreateLinkResource(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_lesson_id", err)
		return
	}
	var req struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	resource, err := h.resourceService.CreateLinkResource(c.Request.Context(), services.CreateLinkResourceInput{
		LessonID: lessonID,
		Title:    req.Title,
		URL:      req.URL,
	})
	if err != nil {
		respondServiceError(c, "create_link_failed", err)
		return
	}
	RespondCreated(c, gin.H{"resource": resource})
}

// GET /api/lessons/:id/resources
func (h *ResourceHandler) ListResources(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_lesson_id", err)
		return
	}
	resources, err := h.resourceService.ListResources(c.Request.Context(), lessonID)
	if err != nil {
		respondServiceError(c, "list_resources_failed", err)
		return
	}
	RespondOK(c, gin.H{"resources": resources})
}

// DELETE /api/resources/:id
func (h *ResourceHandler) DeleteResource(c *gin.Context) {
	resourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_resource_id", err)
		return
	}
	if err := h.resourceService.DeleteResource(c.Request.Context(), resourceID); err != nil {
		respondServiceError(c, "delete_resource_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// GET /api/resources/:id/transcript
func (h *ResourceHandler) GetTranscript(c *gin.Context) {
	resourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_resource_id", err)
		return
	}
	segments, err := h.resourceService.GetTranscript(c.Request.Context(), resourceID)
	if err != nil {
		respondServiceError(c, "get_transcript_failed", err)
		return
	}
	RespondOK(c, gin.H{"segments": segments})
}
