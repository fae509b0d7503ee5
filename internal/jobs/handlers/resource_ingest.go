package handlers

import (
	"errors"
	"fmt"

	"github.com/ghprograms/programs-backend/internal/jobs/runtime"
	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/services"
	"github.com/ghprograms/programs-backend/internal/types"
)

type ResourceIngestHandler struct {
	log    *logger.Logger
	ingest services.MediaIngestService
}

func NewResourceIngestHandler(log *logger.Logger, ingest services.MediaIngestService) *ResourceIngestHandler {
	return &ResourceIngestHandler{
		log:    log.With("handler", "resource_ingest"),
		ingest: ingest,
	}
}

func (h *ResourceIngestHandler) Type() string { return types.JobTypeResourceIngest }

func (h *ResourceIngestHandler) Run(ctx *runtime.Context) error {
	resourceID, ok := ctx.PayloadUUID("resource_id")
	if !ok {
		err := fmt.Errorf("missing resource_id")
		ctx.Fail("decode", err)
		return err
	}

	ctx.Progress("ingest", 20, "Extracting resource content")
	if err := h.ingest.IngestResource(ctx.Ctx, resourceID); err != nil {
		// The bucket object can lag behind the resource row when the
		// client uploads straight to storage. Park instead of failing;
		// the next tick (resume or poll) retries the download.
		if errors.Is(err, services.ErrIngestAwaitingUpload) {
			ctx.WaitForUser("awaiting_upload", "Waiting for the file upload to finish")
			return nil
		}
		ctx.Fail("ingest", err)
		return err
	}

	ctx.Succeed("done", map[string]any{"resource_id": resourceID.String()})
	return nil
}
