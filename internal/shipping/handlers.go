package shipping

import (
	"errors"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vitorrgg/app-freteclick/internal/common"
	"github.com/vitorrgg/app-freteclick/internal/ecom"
	"github.com/vitorrgg/app-freteclick/internal/obs"
)

// Handler exposes the calculate-shipping module endpoint.
type Handler struct {
	Calc      *Calculator
	BodyLimit int64
}

// Calculate handles POST /ecom/modules/calculate-shipping.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("shipping.Handler").Start(r.Context(), "CalculateShipping")
	defer span.End()

	result := "error"
	defer func() { obs.IncCalculate(result) }()

	body, err := common.ReadBody(w, r, h.BodyLimit)
	if err != nil {
		span.RecordError(err)
		common.ModuleError(w, common.AsAppError(err, "BAD_REQUEST"))
		return
	}
	var req ecom.CalculateRequest
	if err := common.DecodeJSON(body, &req); err != nil {
		span.RecordError(err)
		result = "bad_request"
		common.ModuleError(w, common.AsAppError(err, "BAD_REQUEST"))
		return
	}
	span.SetAttributes(
		attribute.Int("calculate.items", len(req.Params.Items)),
		attribute.String("calculate.destination_zip", req.Params.To.DigitsZip()),
	)

	resp, err := h.Calc.Calculate(ctx, req)
	if err != nil {
		var appErr *common.AppError
		if !errors.As(err, &appErr) {
			appErr = common.Conflict(CodeCalculate, err.Error(), err)
		}
		result = appErr.Code
		span.RecordError(err)
		span.SetStatus(codes.Error, appErr.Code)
		common.ModuleError(w, appErr)
		return
	}

	result = "ok"
	if obs.CalculateServices != nil {
		obs.CalculateServices.Observe(float64(len(resp.ShippingServices)))
	}
	span.SetAttributes(attribute.Int("calculate.services", len(resp.ShippingServices)))
	common.JSON(w, http.StatusOK, resp)
}
