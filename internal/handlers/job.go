package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ghprograms/programs-backend/internal/services"
)

type JobHandler struct {
	jobs services.JobService
}

func NewJobHandler(jobs services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.jobs.GetByIDForRequestUser(c.Request.Context(), jobID)
	if err != nil {
		respondServiceError(c, "job_not_found", err)
		return
	}
	RespondOK(c, gin.H{"job": job})
}

// GET /api/jobs/latest?entity_type=lesson_resource&entity_id=...&job_type=resource_ingest
func (h *JobHandler) GetLatestForEntity(c *gin.Context) {
	entityID, err := uuid.Parse(c.Query("entity_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_entity_id", err)
		return
	}
	entityType := strings.TrimSpace(c.Query("entity_type"))
	jobType := strings.TrimSpace(c.Query("job_type"))
	job, err := h.jobs.GetLatestForEntityForRequestUser(c.Request.Context(), entityType, entityID, jobType)
	if err != nil {
		respondServiceError(c, "job_lookup_failed", err)
		return
	}
	RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.jobs.CancelForRequestUser(c.Request.Context(), jobID)
	if err != nil {
		respondServiceError(c, "cancel_job_failed", err)
		return
	}
	RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/resume
func (h *JobHandler) ResumeJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.jobs.ResumeForRequestUser(c.Request.Context(), jobID)
	if err != nil {
		status := http.StatusBadRequest
		if strings.Contains(strings.ToLower(err.Error()), "not waiting") {
			status = http.StatusConflict
		}
		RespondError(c, status, "resume_job_failed", err)
		return
	}
	RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/restart
func (h *JobHandler) RestartJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.jobs.RestartForRequestUser(c.Request.Context(), jobID)
	if err != nil {
		status := http.StatusBadRequest
		if strings.Contains(strings.ToLower(err.Error()), "not restartable") {
			status = http.StatusConflict
		}
		RespondError(c, status, "restart_job_failed", err)
		return
	}
	RespondOK(c, gin.H{"job": job})
}
