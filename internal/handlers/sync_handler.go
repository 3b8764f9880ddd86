package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/cogland/parcelsync/internal/errors"
	"github.com/cogland/parcelsync/internal/middleware"
	"github.com/cogland/parcelsync/internal/services"
)

// SyncRunner is the part of the sync engine the HTTP layer needs.
type SyncRunner interface {
	Run(ctx context.Context, opts services.RunOptions) (services.Summary, error)
}

// SyncHandler handles sync run requests.
type SyncHandler struct {
	runner SyncRunner
}

// NewSyncHandler creates a new SyncHandler instance.
func NewSyncHandler(runner SyncRunner) *SyncHandler {
	return &SyncHandler{
		runner: runner,
	}
}

// SyncRequest represents the query parameters for the sync endpoint.
// Exactly one of parcel, each, or diff selects the run mode; the handler
// leaves that contract to the engine so CLI and HTTP callers get the same
// validation.
type SyncRequest struct {
	Parcel   string `form:"parcel"`
	Each     bool   `form:"each"`
	Diff     bool   `form:"diff"`
	Municode *int   `form:"municode" binding:"omitempty,min=1"`
	Commit   bool   `form:"commit"`
}

// SyncResponse represents the response for the sync endpoint.
type SyncResponse struct {
	Summary services.Summary `json:"summary"`
}

// Sync handles GET /api/v1/sync endpoint.
// It executes one sync run and reports the run summary. Runs are dry-run
// unless commit=true is passed.
func (h *SyncHandler) Sync(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req SyncRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	opts := services.RunOptions{
		ParcelID:   req.Parcel,
		EachParcel: req.Each,
		Diff:       req.Diff,
		Municode:   req.Municode,
		Commit:     req.Commit,
	}

	if log != nil {
		log.Info("Processing sync request", map[string]interface{}{
			"parcel": req.Parcel,
			"each":   req.Each,
			"diff":   req.Diff,
			"commit": req.Commit,
		})
	}

	summary, err := h.runner.Run(c.Request.Context(), opts)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInvocation) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Sync run failed", err)
		return
	}

	c.JSON(http.StatusOK, SyncResponse{Summary: summary})
}
