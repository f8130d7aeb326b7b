package merge

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Merger is implemented by accountmerge.Engine
type Merger interface {
	AuthorizeAdmin(ctx context.Context, actingAdminID string) (*models.Account, error)
	Preview(ctx context.Context, targetID, sourceID string) (*models.MergePreview, error)
	Execute(ctx context.Context, targetID, sourceID, actingAdminID string) (*models.MergeResult, error)
}

// EventEmitter is implemented by events.Emitter
type EventEmitter interface {
	EmitAccountMerged(ctx context.Context, result *models.MergeResult, mergedBy string) error
}

// MergeRequest names the surviving and the duplicate account
type MergeRequest struct {
	TargetID string `json:"target_id" validate:"required,uuid"`
	SourceID string `json:"source_id" validate:"required,uuid"`
}

// Handler serves the admin account merge endpoints
type Handler struct {
	merger  Merger
	emitter EventEmitter
	logger  ectologger.Logger
}

func NewHandler(merger Merger, emitter EventEmitter, logger ectologger.Logger) *Handler {
	return &Handler{
		merger:  merger,
		emitter: emitter,
		logger:  logger,
	}
}

// Register registers merge routes on the /admin/accounts/merge group
func (h *Handler) Register(g *echo.Group) {
	g.GET("/preview", h.Preview)
	g.POST("", h.Execute)
}

// Preview returns what merging source_id into target_id would do
func (h *Handler) Preview(c echo.Context) error {
	ctx := c.Request().Context()

	req := MergeRequest{
		TargetID: c.QueryParam("target_id"),
		SourceID: c.QueryParam("source_id"),
	}
	if err := validateRequest(req); err != nil {
		return err
	}

	if _, err := h.merger.AuthorizeAdmin(ctx, appctx.GetUserID(ctx)); err != nil {
		return err
	}

	preview, err := h.merger.Preview(ctx, req.TargetID, req.SourceID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, preview)
}

// Execute merges source_id into target_id as the authenticated admin
func (h *Handler) Execute(c echo.Context) error {
	ctx := c.Request().Context()

	var req MergeRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validateRequest(req); err != nil {
		return err
	}

	adminID := appctx.GetUserID(ctx)
	result, err := h.merger.Execute(ctx, req.TargetID, req.SourceID, adminID)
	if err != nil {
		return err
	}

	if err := h.emitter.EmitAccountMerged(ctx, result, adminID); err != nil {
		h.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"target_id": result.Target.ID,
			"source_id": result.DeletedSourceID,
		}).Warn("Merge committed but account.merged event was not published")
	}

	return c.JSON(http.StatusOK, result)
}

func validateRequest(req MergeRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			problems = append(problems, fmt.Sprintf("%s is required", jsonName(fe.StructField())))
			continue
		}
		problems = append(problems, fmt.Sprintf("%s must be a valid %s", jsonName(fe.StructField()), fe.Tag()))
	}
	return httperror.NewHTTPError(http.StatusBadRequest, strings.Join(problems, "; "))
}

func jsonName(field string) string {
	switch field {
	case "TargetID":
		return "target_id"
	case "SourceID":
		return "source_id"
	}
	return field
}
