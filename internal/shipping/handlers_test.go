package shipping_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vitorrgg/app-freteclick/internal/shipping"
)

func postCalculate(t *testing.T, h *shipping.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ecom/modules/calculate-shipping", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Calculate(rec, req)
	return rec
}

func TestHandlerCalculate(t *testing.T) {
	t.Parallel()

	quoter := &fakeQuoter{quotes: []shipping.Quote{{Service: "PAC", Price: 19.9, DeliveryDays: "4", CarrierName: "Correios"}}}
	h := &shipping.Handler{Calc: &shipping.Calculator{Quoter: quoter}}

	rec := postCalculate(t, h, `{
		"params": {"to": {"zip": "50010000"}, "items": [{"sku": "x", "quantity": 1, "price": 10}]},
		"application": {"_id": "app", "hidden_data": {"api_key": "k", "zip": "01001000"}}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ShippingServices []struct {
			Label        string `json:"label"`
			ServiceCode  string `json:"service_code"`
			ShippingLine struct {
				TotalPrice   float64 `json:"total_price"`
				DeliveryTime struct {
					Days float64 `json:"days"`
				} `json:"delivery_time"`
				Flags []string `json:"flags"`
			} `json:"shipping_line"`
		} `json:"shipping_services"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.ShippingServices, 1)
	svc := resp.ShippingServices[0]
	require.Equal(t, "Correios", svc.Label)
	require.Equal(t, "correios", svc.ServiceCode)
	require.Equal(t, 19.9, svc.ShippingLine.TotalPrice)
	require.Equal(t, 4.0, svc.ShippingLine.DeliveryTime.Days)
	require.Equal(t, []string{shipping.CarrierFlag, "freteclick-PAC"}, svc.ShippingLine.Flags)
}

func TestHandlerCalculateErrors(t *testing.T) {
	t.Parallel()

	h := &shipping.Handler{Calc: &shipping.Calculator{Quoter: &fakeQuoter{}}, BodyLimit: 256}

	rec := postCalculate(t, h, `{"params":{},"application":{"data":{}}}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.JSONEq(t, `{"error":"CALCULATE_AUTH_ERR","message":"Token unset on app hidden data (merchant must configure the app)"}`, rec.Body.String())

	rec = postCalculate(t, h, `{"params":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postCalculate(t, h, `{"params":{"items":[{"quantity":-1}]},"application":{}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postCalculate(t, h, `{"params":{"to":{"zip":"`+strings.Repeat("9", 512)+`"}}}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
