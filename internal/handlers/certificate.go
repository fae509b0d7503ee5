package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ghprograms/programs-backend/internal/services"
)

type CertificateHandler struct {
	certificateService services.CertificateService
}

func NewCertificateHandler(certificateService services.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificateService: certificateService}
}

// GET /api/certificates
func (h *CertificateHandler) ListMyCertificates(c *gin.Context) {
	certs, err := h.certificateService.ListMyCertificates(c.Request.Context())
	if err != nil {
		respondServiceError(c, "list_certificates_failed", err)
		return
	}
	RespondOK(c, gin.H{"certificates": certs})
}

// GET /api/enrollments/:id/certificate
func (h *CertificateHandler) GetByEnrollment(c *gin.Context) {
	enrollmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_enrollment_id", err)
		return
	}
	cert, err := h.certificateService.GetByEnrollment(c.Request.Context(), enrollmentID)
	if err != nil {
		respondServiceError(c, "get_certificate_failed", err)
		return
	}
	RespondOK(c, gin.H{"certificate": cert})
}
