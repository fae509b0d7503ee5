package handlers

import (
	"fmt"

	"github.com/ghprograms/programs-backend/internal/jobs/runtime"
	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/services"
	"github.com/ghprograms/programs-backend/internal/types"
)

type CertificateRenderHandler struct {
	log          *logger.Logger
	certificates services.CertificateService
}

func NewCertificateRenderHandler(log *logger.Logger, certificates services.CertificateService) *CertificateRenderHandler {
	return &CertificateRenderHandler{
		log:          log.With("handler", "certificate_render"),
		certificates: certificates,
	}
}

func (h *CertificateRenderHandler) Type() string { return types.JobTypeCertificateRender }

func (h *CertificateRenderHandler) Run(ctx *runtime.Context) error {
	enrollmentID, ok := ctx.PayloadUUID("enrollment_id")
	if !ok {
		err := fmt.Errorf("missing enrollment_id")
		ctx.Fail("decode", err)
		return err
	}

	ctx.Progress("render", 30, "Rendering certificate")
	cert, err := h.certificates.Issue(ctx.Ctx, enrollmentID)
	if err != nil {
		ctx.Fail("render", err)
		return err
	}

	ctx.Succeed("done", map[string]any{
		"certificate_id": cert.ID.String(),
		"serial":         cert.Serial,
	})
	return nil
}
