package tagging

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vitorrgg/app-freteclick/internal/common"
	"github.com/vitorrgg/app-freteclick/internal/ecom"
	"github.com/vitorrgg/app-freteclick/internal/obs"
	"github.com/vitorrgg/app-freteclick/internal/storeapi"
)

// CodeStoreAPI is the error code of failed trigger handling.
const CodeStoreAPI = "STORE_API_ERR"

type replayStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Webhook receives store triggers. Identical payloads of one store are
// handled once per ReplayTTL; a failed attempt frees the key so the store
// can retry.
type Webhook struct {
	Svc       *Service
	Replay    replayStore
	ReplayTTL time.Duration
	BodyLimit int64
}

// Handle handles POST /ecom/webhook.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("tagging.Webhook").Start(r.Context(), "StoreWebhook.Handle")
	defer span.End()
	logger := zerolog.Ctx(ctx)

	outcome := "error"
	defer func() { obs.IncTagWebhook(outcome) }()

	if h.Svc == nil {
		common.ModuleError(w, common.NewAppError("INTERNAL", "tag service not configured", http.StatusInternalServerError, nil))
		return
	}
	storeID := obs.StoreIDFromContext(ctx)
	if storeID == "" {
		outcome = "bad_request"
		common.ModuleError(w, common.NewAppError("BAD_REQUEST", "missing "+obs.StoreIDHeader+" header", http.StatusBadRequest, nil))
		return
	}
	span.SetAttributes(attribute.String("ecom.store_id", storeID))

	body, err := common.ReadBody(w, r, h.BodyLimit)
	if err != nil {
		span.RecordError(err)
		common.ModuleError(w, common.AsAppError(err, "BAD_REQUEST"))
		return
	}
	var trig ecom.Trigger
	if err := common.DecodeJSON(body, &trig); err != nil {
		span.RecordError(err)
		outcome = "bad_request"
		common.ModuleError(w, common.AsAppError(err, "BAD_REQUEST"))
		return
	}
	span.SetAttributes(
		attribute.String("ecom.trigger.resource", trig.Resource),
		attribute.String("ecom.trigger.resource_id", trig.ResourceID),
	)

	key := ""
	if h.Replay != nil {
		key = common.DigestKey("tagwh", []byte(storeID), body)
		fresh, err := h.Replay.SetNX(ctx, key, "1", h.ReplayTTL).Result()
		if err != nil {
			span.RecordError(err)
			common.ModuleError(w, common.NewAppError("INTERNAL", "replay protection failed", http.StatusInternalServerError, err))
			return
		}
		if !fresh {
			span.AddEvent("store webhook replay prevented")
			outcome = "replay"
			common.Text(w, http.StatusOK, string(Skip))
			return
		}
	}

	result, err := h.Svc.Handle(ctx, storeID, trig)
	if err != nil {
		if key != "" {
			if delErr := h.Replay.Del(context.WithoutCancel(ctx), key).Err(); delErr != nil {
				logger.Warn().Err(delErr).Msg("replay key not released")
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, storeapi.ErrNoAuth) {
			outcome = "no_auth"
			msg := fmt.Sprintf("Webhook for %s unhandled with no authentication found", storeID)
			logger.Error().Err(err).Str("resource", trig.Resource).Msg(msg)
			common.Text(w, http.StatusPreconditionFailed, msg)
			return
		}
		logger.Error().Err(err).Str("resource", trig.Resource).Str("resource_id", trig.ResourceID).Msg("store webhook failed")
		common.ModuleError(w, common.NewAppError(CodeStoreAPI, err.Error(), http.StatusInternalServerError, err))
		return
	}

	outcome = strings.ToLower(string(result))
	common.Text(w, http.StatusOK, string(result))
}
