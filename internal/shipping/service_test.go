package shipping_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vitorrgg/app-freteclick/internal/common"
	"github.com/vitorrgg/app-freteclick/internal/ecom"
	"github.com/vitorrgg/app-freteclick/internal/shipping"
)

type fakeQuoter struct {
	mu     sync.Mutex
	quotes []shipping.Quote
	err    error
	delay  time.Duration
	calls  []shipping.QuoteRequest
}

func (f *fakeQuoter) Quote(ctx context.Context, req shipping.QuoteRequest) ([]shipping.Quote, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.quotes, f.err
}

type fakeResolver struct{}

func (fakeResolver) Resolve(_ context.Context, addr ecom.Address) ecom.Address {
	time.Sleep(5 * time.Millisecond)
	addr.City = "City " + addr.Zip
	addr.ProvinceCode = "SP"
	return addr
}

func calculateRequest(t *testing.T, data string, params ecom.CalculateParams) ecom.CalculateRequest {
	t.Helper()
	return ecom.CalculateRequest{
		Params:      params,
		Application: ecom.Application{ID: "app", HiddenData: json.RawMessage(data)},
	}
}

func cartParams() ecom.CalculateParams {
	return ecom.CalculateParams{
		To: &ecom.Address{Zip: "50010-000"},
		Items: []ecom.Item{
			{SKU: "a", Quantity: 1, Price: 80, Weight: &ecom.Measure{Value: 1, Unit: "kg"}},
			{SKU: "b", Quantity: 2, Price: 60, Weight: &ecom.Measure{Value: 500, Unit: "g"}},
		},
	}
}

func requireAppError(t *testing.T, err error, code string, status int) *common.AppError {
	t.Helper()
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
	require.Equal(t, status, appErr.HTTPStatus)
	return appErr
}

func TestCalculateRequiresToken(t *testing.T) {
	t.Parallel()

	calc := &shipping.Calculator{Quoter: &fakeQuoter{}}
	_, err := calc.Calculate(context.Background(), calculateRequest(t, `{"zip":"01001000"}`, cartParams()))
	requireAppError(t, err, shipping.CodeAuth, http.StatusConflict)
}

func TestCalculatePreviewWithoutDestination(t *testing.T) {
	t.Parallel()

	quoter := &fakeQuoter{}
	calc := &shipping.Calculator{Quoter: quoter}
	resp, err := calc.Calculate(context.Background(), calculateRequest(t,
		`{"api_key":"k","free_shipping_rules":[{"min_amount":199}]}`,
		ecom.CalculateParams{}))
	require.NoError(t, err)
	require.Empty(t, resp.ShippingServices)
	require.Equal(t, 199.0, *resp.FreeShippingFromValue)
	require.Empty(t, quoter.calls)
}

func TestCalculateValidation(t *testing.T) {
	t.Parallel()

	calc := &shipping.Calculator{Quoter: &fakeQuoter{}}

	_, err := calc.Calculate(context.Background(), calculateRequest(t, `{"api_key":"k"}`, cartParams()))
	requireAppError(t, err, shipping.CodeCalculate, http.StatusConflict)

	params := cartParams()
	params.Items = nil
	_, err = calc.Calculate(context.Background(), calculateRequest(t, `{"api_key":"k","zip":"01001000"}`, params))
	requireAppError(t, err, shipping.CodeEmptyCart, http.StatusBadRequest)
}

func TestCalculateBuildsCarrierRequest(t *testing.T) {
	t.Parallel()

	quoter := &fakeQuoter{quotes: []shipping.Quote{
		{Service: "PAC", Price: 30, DeliveryDays: "6", CarrierName: "Correios PAC", InvoiceRequired: "S"},
		{Service: "Expresso", Price: 22, DeliveryDays: "3", CarrierName: "Jadlog"},
	}}
	calc := &shipping.Calculator{Quoter: quoter, Resolver: fakeResolver{}}
	req := calculateRequest(t,
		`{"api_key":"secret","zip":"01001-000","ordernar":"prazo","free_shipping_from_value":200,
		  "services":[{"service_name":"Correios PAC","label":"Econômico"}]}`,
		cartParams())

	resp, err := calc.Calculate(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, quoter.calls, 1)
	want := shipping.QuoteRequest{
		OriginZip:      "01001000",
		DestinationZip: "50010000",
		Origin:         shipping.QuoteOrigin,
		Sort:           "prazo",
		Token:          "secret",
		Packages: []shipping.Package{
			{Weight: 1, Height: 5, Width: 10, Length: 10, Value: 80, Quantity: 1},
			{Weight: 0.5, Height: 5, Width: 10, Length: 10, Value: 60, Quantity: 2},
		},
	}
	assert.Empty(t, cmp.Diff(want, quoter.calls[0]))

	require.Len(t, resp.ShippingServices, 2)
	require.Equal(t, "Econômico", resp.ShippingServices[0].Label)
	require.Equal(t, 200.0, *resp.FreeShippingFromValue)

	jadlog := resp.ShippingServices[1].ShippingLine
	require.Equal(t, 0.0, jadlog.TotalPrice, "cart subtotal 200 reaches the threshold")
	require.Equal(t, 22.0, jadlog.Discount)
	require.InDelta(t, 2.0, jadlog.Package.Weight.Value, 1e-9)

	opts := cmp.Options{cmpopts.IgnoreFields(ecom.Address{}, "Name", "Street")}
	assert.Empty(t, cmp.Diff(&ecom.Address{Zip: "01001000", City: "City 01001000", ProvinceCode: "SP"}, jadlog.From, opts))
	assert.Empty(t, cmp.Diff(&ecom.Address{Zip: "50010-000", City: "City 50010-000", ProvinceCode: "SP"}, jadlog.To, opts))
}

func TestCalculateUsesParamsSubtotalForRules(t *testing.T) {
	t.Parallel()

	quoter := &fakeQuoter{quotes: []shipping.Quote{{Service: "PAC", Price: 30, DeliveryDays: "6", CarrierName: "PAC"}}}
	calc := &shipping.Calculator{Quoter: quoter}
	data := `{"api_key":"k","zip":"01001000","shipping_rules":[{"service_name":"PAC","min_amount":500,"discount":{"value":10}}]}`

	params := cartParams()
	resp, err := calc.Calculate(context.Background(), calculateRequest(t, data, params))
	require.NoError(t, err)
	require.Zero(t, resp.ShippingServices[0].ShippingLine.Discount)

	subtotal := 650.0
	params.Subtotal = &subtotal
	resp, err = calc.Calculate(context.Background(), calculateRequest(t, data, params))
	require.NoError(t, err)
	require.Equal(t, 10.0, resp.ShippingServices[0].ShippingLine.Discount)
}

func TestCalculateClassifiesCarrierErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		err     error
		code    string
		message string
		details any
	}{
		{
			name:    "non json body",
			err:     &shipping.InvalidResponseError{Body: "<html>down</html>"},
			code:    shipping.CodeInvalidResp,
			message: "<html>down</html>",
		},
		{
			name:    "carrier message",
			err:     &shipping.UpstreamError{Status: http.StatusBadRequest, Body: []byte(`{"data":"CEP de destino inválido"}`)},
			code:    shipping.CodeFailed,
			message: "CEP de destino inválido",
		},
		{
			name:    "structured carrier message",
			err:     &shipping.UpstreamError{Status: http.StatusUnprocessableEntity, Body: []byte(`{"data":{"field":"cep"}}`)},
			code:    shipping.CodeFailed,
			message: `{"field":"cep"}`,
			details: map[string]any{"field": "cep"},
		},
		{
			name:    "unexpected body",
			err:     &shipping.UpstreamError{Status: http.StatusOK, Body: []byte(`{"response":"nope"}`)},
			code:    shipping.CodeCalculate,
			message: "invalid Frete Click calculate response (200)",
			details: map[string]any{"status": http.StatusOK, "response": `{"response":"nope"}`},
		},
		{
			name:    "transport",
			err:     errors.New("dial tcp: connection refused"),
			code:    shipping.CodeCalculate,
			message: "dial tcp: connection refused",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			calc := &shipping.Calculator{Quoter: &fakeQuoter{err: tc.err}}
			_, err := calc.Calculate(context.Background(), calculateRequest(t, `{"api_key":"k","zip":"01001000"}`, cartParams()))
			appErr := requireAppError(t, err, tc.code, http.StatusConflict)
			require.Equal(t, tc.message, appErr.Message)
			require.Equal(t, tc.details, appErr.Details)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

// Not parallel: goleak inspects every goroutine of the process.
func TestCalculateJoinsResolvers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	quoter := &fakeQuoter{delay: time.Second}
	calc := &shipping.Calculator{Quoter: quoter, Resolver: fakeResolver{}}

	done := make(chan error, 1)
	go func() {
		_, err := calc.Calculate(ctx, calculateRequest(t, `{"api_key":"k","zip":"01001000"}`, cartParams()))
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		appErr := requireAppError(t, err, shipping.CodeCalculate, http.StatusConflict)
		require.ErrorIs(t, appErr, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("calculate did not return after cancellation")
	}
}
