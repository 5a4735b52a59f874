package shipping

// Response is the calculate-shipping module response.
type Response struct {
	ShippingServices      []ShippingService `json:"shipping_services"`
	FreeShippingFromValue *float64          `json:"free_shipping_from_value,omitempty"`
}

// Assemble maps the engine result onto the platform response schema.
func Assemble(res Result) Response {
	services := res.Services
	if services == nil {
		services = []ShippingService{}
	}
	return Response{ShippingServices: services, FreeShippingFromValue: res.FreeShippingFrom}
}
