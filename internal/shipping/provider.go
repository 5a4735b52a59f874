package shipping

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vitorrgg/app-freteclick/internal/ecom"
)

// QuoteRequest is the carrier quote payload.
type QuoteRequest struct {
	OriginZip      string    `json:"cepOrigem"`
	DestinationZip string    `json:"cepDestino"`
	Origin         string    `json:"origem"`
	Sort           string    `json:"ordernar"`
	Packages       []Package `json:"packages"`
	// Token authenticates the merchant against the carrier.
	Token string `json:"-"`
}

// PickupAddress is the address of a carrier pickup point.
type PickupAddress struct {
	Street     string          `json:"logradouro"`
	Number     ecom.FlexString `json:"numero"`
	Complement string          `json:"complemento"`
	Borough    string          `json:"bairro"`
	City       string          `json:"cidade"`
	Distance   ecom.FlexString `json:"distancia"`
}

// PickupPoint is a location where the buyer collects the package.
type PickupPoint struct {
	Name      string          `json:"nome"`
	Reference ecom.FlexString `json:"referencia"`
	Address   PickupAddress   `json:"endereco"`
}

// Quote is one raw carrier quote.
type Quote struct {
	Service         ecom.FlexString `json:"servico"`
	Price           float64         `json:"vlrFrete"`
	DeliveryDays    ecom.FlexString `json:"prazoEnt"`
	RetrievalDays   ecom.FlexString `json:"prazoRet"`
	CarrierName     string          `json:"transp_nome"`
	Description     string          `json:"descricao"`
	Reference       ecom.FlexString `json:"referencia"`
	InvoiceRequired string          `json:"nf_obrig"`
	CarrierDoc      ecom.FlexString `json:"cnpjTransp"`
	PickupPoints    []PickupPoint   `json:"pontosRetira"`
	QuoteID         ecom.FlexString `json:"quoteId"`
	OrderID         ecom.FlexString `json:"orderId"`
}

// ShippingName is the name rules and labels are matched against.
func (q Quote) ShippingName() string {
	if q.CarrierName != "" {
		return q.CarrierName
	}
	return q.Description
}

// Quoter requests carrier quotes.
type Quoter interface {
	Quote(ctx context.Context, req QuoteRequest) ([]Quote, error)
}

// AddressResolver completes an address from its zip code. Implementations
// never fail: the input is returned as is when nothing can be resolved.
type AddressResolver interface {
	Resolve(ctx context.Context, addr ecom.Address) ecom.Address
}

// InvalidResponseError reports a carrier response body that is not JSON.
type InvalidResponseError struct {
	Body string
}

func (e *InvalidResponseError) Error() string {
	return "invalid carrier JSON response"
}

// UpstreamError reports a carrier response that is JSON but not a quote list,
// or that came with a non-200 status.
type UpstreamError struct {
	Status int
	Body   []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("invalid Frete Click calculate response (%d)", e.Status)
}

// CarrierMessage returns the `data` member of a structured carrier error.
func (e *UpstreamError) CarrierMessage() (any, bool) {
	var body struct {
		Data any `json:"data"`
	}
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return nil, false
	}
	switch v := body.Data.(type) {
	case nil:
		return nil, false
	case string:
		return v, v != ""
	case bool:
		return v, v
	case float64:
		return v, v != 0
	default:
		return v, true
	}
}
