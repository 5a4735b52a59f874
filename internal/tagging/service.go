// Package tagging buys the Frete Click tag of paid orders and writes the
// tracking code back to the store.
package tagging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vitorrgg/app-freteclick/internal/appdata"
	"github.com/vitorrgg/app-freteclick/internal/ecom"
	"github.com/vitorrgg/app-freteclick/internal/freteclick"
	"github.com/vitorrgg/app-freteclick/internal/shipping"
	"github.com/vitorrgg/app-freteclick/internal/storeapi"
)

// Outcome is the plain text answer sent back to the store.
type Outcome string

const (
	Success Outcome = "SUCCESS"
	Skip    Outcome = "SKIP"
)

// Values written to the order.
const (
	TrackingTag        = "freteclick"
	MetafieldNamespace = "app-freteclick"
	MetafieldField     = "rastreio"
)

const (
	resourceOrders = "orders"
	defaultLockTTL = 30 * time.Second
)

// ErrNoBuyer is returned for orders without a buyer to ship to.
var ErrNoBuyer = errors.New("tagging: order has no buyer")

// Store is the Store API surface used by the tag flow.
type Store interface {
	AppData(ctx context.Context, storeID string) (ecom.Application, error)
	Order(ctx context.Context, storeID, orderID string) (ecom.Order, error)
	PatchShippingLine(ctx context.Context, storeID, orderID, lineID string, patch any) error
	AddMetafield(ctx context.Context, storeID, orderID string, m storeapi.Metafield) error
}

// Carrier is the Frete Click purchasing surface used by the tag flow.
type Carrier interface {
	Me(ctx context.Context, token string) (freteclick.Identity, error)
	GetOrCreateCustomer(ctx context.Context, token string, buyer ecom.Buyer, to ecom.Address) (freteclick.ID, error)
	ChooseQuote(ctx context.Context, token, orderID string, req freteclick.ChooseQuoteRequest) (freteclick.Tag, error)
}

// Locker serializes tag creation per order.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service handles store triggers.
type Service struct {
	Store    Store
	Carrier  Carrier
	Resolver shipping.AddressResolver
	Locker   Locker
	LockTTL  time.Duration
	// Tags guards against buying a second tag when saving the first failed.
	Tags TagRecord
}

// Handle processes one trigger of storeID.
func (s *Service) Handle(ctx context.Context, storeID string, trig ecom.Trigger) (Outcome, error) {
	logger := zerolog.Ctx(ctx)

	app, err := s.Store.AppData(ctx, storeID)
	if err != nil {
		return "", err
	}
	cfg, err := appdata.Merge(app)
	if err != nil {
		logger.Warn().Err(err).Msg("malformed application data")
	}
	if cfg.IgnoresTrigger(trig.Resource) {
		return Skip, nil
	}
	if !bool(cfg.SendTagStatus) || cfg.APIKey == "" || trig.Resource != resourceOrders || !trig.PaidNow() {
		return Success, nil
	}

	var outcome Outcome
	run := func(ctx context.Context) error {
		var err error
		outcome, err = s.tagOrder(ctx, storeID, trig.ResourceID, cfg)
		return err
	}
	if s.Locker == nil {
		err := run(ctx)
		return outcome, err
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	err = s.Locker.WithLock(ctx, "tag:"+storeID+":"+trig.ResourceID, ttl, run)
	return outcome, err
}

func (s *Service) tagOrder(ctx context.Context, storeID, orderID string, cfg appdata.Config) (Outcome, error) {
	ctx, span := otel.Tracer("tagging.Service").Start(ctx, "CreateTag")
	defer span.End()
	span.SetAttributes(attribute.String("ecom.order_id", orderID))
	logger := zerolog.Ctx(ctx).With().Str("order_id", orderID).Logger()

	order, err := s.Store.Order(ctx, storeID, orderID)
	if err != nil {
		return "", err
	}
	if len(order.ShippingLines) == 0 {
		return Skip, nil
	}
	line := order.ShippingLines[0]
	if !line.HasFlag(shipping.CarrierFlag) || line.HasTrackingTag(TrackingTag) {
		return Skip, nil
	}
	carrierOrderID, ok := line.CustomField(shipping.FieldCarrierOID)
	if !ok {
		logger.Warn().Msg("shipping line has no carrier order id")
		return Skip, nil
	}
	if len(order.Buyers) == 0 {
		return "", ErrNoBuyer
	}

	recordKey := "tagbought:" + storeID + ":" + orderID
	tagID, bought := "", false
	if s.Tags != nil {
		tagID, bought, err = s.Tags.Bought(ctx, recordKey)
		if err != nil {
			return "", fmt.Errorf("read bought tag: %w", err)
		}
	}
	if bought {
		logger.Info().Str("tag_id", tagID).Msg("reusing carrier tag bought earlier")
	} else {
		tagID, err = s.buyTag(ctx, storeID, carrierOrderID, cfg, order, line)
		if err != nil {
			return "", err
		}
		if s.Tags != nil {
			if err := s.Tags.Remember(ctx, recordKey, tagID); err != nil {
				logger.Error().Err(err).Str("tag_id", tagID).Msg("bought tag not recorded")
			}
		}
	}
	span.SetAttributes(attribute.String("freteclick.tag_id", tagID))

	codes := append(append([]ecom.TrackingCode{}, line.TrackingCodes...), ecom.TrackingCode{Code: tagID, Tag: TrackingTag})
	if err := s.Store.PatchShippingLine(ctx, storeID, order.ID, line.ID, map[string]any{"tracking_codes": codes}); err != nil {
		return "", fmt.Errorf("save tracking code %s: %w", tagID, err)
	}
	err = s.Store.AddMetafield(ctx, storeID, order.ID, storeapi.Metafield{
		Namespace: MetafieldNamespace,
		Field:     MetafieldField,
		Value:     tagID,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("tag metafield not saved")
	}
	logger.Info().Str("tag_id", tagID).Msg("carrier tag saved")
	return Success, nil
}

// buyTag chooses the carrier quote of the order, which buys its tag.
func (s *Service) buyTag(ctx context.Context, storeID, carrierOrderID string, cfg appdata.Config, order ecom.Order, line ecom.ShippingLine) (string, error) {
	logger := zerolog.Ctx(ctx)
	token := cfg.TokenFor(line.WarehouseCode)
	ident, err := s.Carrier.Me(ctx, token)
	if err != nil {
		return "", err
	}

	delivery := s.complete(ctx, line.To)
	customerID, err := s.Carrier.GetOrCreateCustomer(ctx, token, order.Buyers[0], delivery)
	if err != nil {
		return "", err
	}

	retrieve := ecom.Address{}.Overlay(cfg.From)
	if cfg.Zip != "" {
		retrieve.Zip = cfg.Zip
	}
	retrieve = retrieve.Overlay(line.From)
	retrieve = s.complete(ctx, &retrieve)

	quoteID, _ := line.CustomField(shipping.FieldQuoteID)
	req := freteclick.ChooseQuoteRequest{
		Quote: quoteID,
		Payer: ident.CompanyID,
		Retrieve: freteclick.Party{
			ID:      ident.CompanyID,
			Address: freteclick.PartyAddress{Address: freteclick.NewAddress(retrieve)},
			Contact: ident.PeopleID,
		},
		Delivery: freteclick.Party{
			ID:      customerID,
			Address: freteclick.PartyAddress{Address: freteclick.NewAddress(delivery)},
			Contact: customerID,
		},
	}
	if order.Amount != nil {
		req.Price = order.Amount.Freight
	}
	logger.Info().Str("store_id", storeID).Str("carrier_order_id", carrierOrderID).Msg("buying carrier tag")

	tag, err := s.Carrier.ChooseQuote(ctx, token, carrierOrderID, req)
	if err != nil {
		return "", err
	}
	return tag.ID, nil
}

// complete fills city and state from the zip code when they are missing.
func (s *Service) complete(ctx context.Context, addr *ecom.Address) ecom.Address {
	if addr == nil {
		return ecom.Address{}
	}
	if s.Resolver == nil || addr.Located() {
		return *addr
	}
	return s.Resolver.Resolve(ctx, *addr)
}
