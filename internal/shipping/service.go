package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vitorrgg/app-freteclick/internal/appdata"
	"github.com/vitorrgg/app-freteclick/internal/common"
	"github.com/vitorrgg/app-freteclick/internal/ecom"
)

// Calculate error codes read by the platform.
const (
	CodeAuth        = "CALCULATE_AUTH_ERR"
	CodeCalculate   = "CALCULATE_ERR"
	CodeEmptyCart   = "CALCULATE_EMPTY_CART"
	CodeInvalidResp = "CALCULATE_INVALID_RES"
	CodeFailed      = "CALCULATE_FAILED"
)

// QuoteOrigin identifies the caller to the carrier.
const QuoteOrigin = "E-Com Plus"

const defaultSort = "preco"

// Calculator runs the calculate-shipping flow.
type Calculator struct {
	Quoter   Quoter
	Resolver AddressResolver
}

// Calculate builds the shipping services for req. Failures are returned as
// *common.AppError carrying the platform error code.
func (c *Calculator) Calculate(ctx context.Context, req ecom.CalculateRequest) (Response, error) {
	logger := zerolog.Ctx(ctx)
	params := req.Params

	cfg, err := appdata.Merge(req.Application)
	if err != nil {
		logger.Warn().Err(err).Msg("malformed application data")
	}
	if cfg.APIKey == "" {
		return Response{}, common.Conflict(CodeAuth, "Token unset on app hidden data (merchant must configure the app)", nil)
	}

	destinationZip := params.To.DigitsZip()
	freeFrom := FreeShippingThreshold(cfg, destinationZip)
	if params.To == nil {
		return Assemble(Result{FreeShippingFrom: freeFrom}), nil
	}

	originZip := cfg.OriginZip(params.From)
	if originZip == "" {
		return Response{}, common.Conflict(CodeCalculate, "Zip code is unset on app hidden data (merchant must configure the app)", nil)
	}
	if len(params.Items) == 0 {
		return Response{}, common.NewAppError(CodeEmptyCart, "Cannot calculate shipping without cart items", http.StatusBadRequest, nil)
	}

	cart := Aggregate(params.Items)
	sort := cfg.Ordernar
	if sort == "" {
		sort = defaultSort
	}

	origin := ecom.Address{}
	if params.From != nil {
		origin = *params.From
	}
	origin = origin.Overlay(cfg.From)
	origin.Zip = originZip
	destination := *params.To

	quotes, err := c.quoteAndResolve(ctx, QuoteRequest{
		OriginZip:      originZip,
		DestinationZip: destinationZip,
		Origin:         QuoteOrigin,
		Sort:           sort,
		Packages:       cart.Packages,
		Token:          cfg.APIKey,
	}, &origin, &destination)
	if err != nil {
		logger.Warn().Err(err).Str("origin_zip", originZip).Str("destination_zip", destinationZip).Msg("carrier quote failed")
		return Response{}, classifyQuoteError(err)
	}

	subtotal := cart.CartSubtotal
	if params.Subtotal != nil {
		subtotal = *params.Subtotal
	}
	engine := Engine{
		Config:           cfg,
		DestinationZip:   destinationZip,
		Subtotal:         subtotal,
		CartSubtotal:     cart.CartSubtotal,
		FinalWeight:      cart.FinalWeight,
		FreeShippingFrom: freeFrom,
		From:             &origin,
		To:               &destination,
	}
	res := engine.Apply(quotes)
	logger.Debug().Int("quotes", len(quotes)).Float64("cart_subtotal", cart.CartSubtotal).Msg("quotes normalized")
	return Assemble(res), nil
}

// quoteAndResolve requests quotes while both addresses are completed in the
// background. It returns only after every goroutine finished.
func (c *Calculator) quoteAndResolve(ctx context.Context, req QuoteRequest, from, to *ecom.Address) ([]Quote, error) {
	var wg sync.WaitGroup
	if c.Resolver != nil {
		for _, addr := range []*ecom.Address{from, to} {
			if addr.Located() {
				continue
			}
			wg.Add(1)
			go func(addr *ecom.Address) {
				defer wg.Done()
				*addr = c.Resolver.Resolve(ctx, *addr)
			}(addr)
		}
	}
	quotes, err := c.Quoter.Quote(ctx, req)
	wg.Wait()
	return quotes, err
}

func classifyQuoteError(err error) *common.AppError {
	var invalid *InvalidResponseError
	if errors.As(err, &invalid) {
		return common.Conflict(CodeInvalidResp, invalid.Body, err)
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		if msg, ok := upstream.CarrierMessage(); ok {
			if s, isString := msg.(string); isString {
				return common.Conflict(CodeFailed, s, err)
			}
			raw, _ := json.Marshal(msg)
			return common.Conflict(CodeFailed, string(raw), err).WithDetails(msg)
		}
		return common.Conflict(CodeCalculate, upstream.Error(), err).WithDetails(map[string]any{
			"status":   upstream.Status,
			"response": string(upstream.Body),
		})
	}
	return common.Conflict(CodeCalculate, err.Error(), err)
}
