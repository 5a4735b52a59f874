package shipping

import (
	"strings"

	"github.com/vitorrgg/app-freteclick/internal/appdata"
	"github.com/vitorrgg/app-freteclick/internal/ecom"
)

// Literal carrier contract values.
const (
	CarrierFlag        = "freteclick-ws"
	flagMaxLen         = 20
	serviceCodeMaxLen  = 70
	carrierDocMaxLen   = 19
	defaultPostingDays = 3

	additionalPriceTag   = "additional_price"
	additionalPriceLabel = "Adicional padrão"
)

// Custom fields written on every calculated shipping line. The reference
// field name is read by existing store integrations and kept as is.
const (
	FieldReference  = "kangu_reference"
	FieldNFeNeeded  = "nfe_required"
	FieldQuoteID    = "freteclick_id"
	FieldCarrierOID = "freteclick_order_id"
)

// ShippingService is one entry of the calculate response.
type ShippingService struct {
	Label            string             `json:"label"`
	Carrier          string             `json:"carrier,omitempty"`
	CarrierDocNumber string             `json:"carrier_doc_number,omitempty"`
	ServiceName      string             `json:"service_name"`
	ServiceCode      string             `json:"service_code"`
	ShippingLine     *ecom.ShippingLine `json:"shipping_line"`
}

// Engine applies the merchant configuration to the carrier quotes of one
// calculation. It holds no state between calls.
type Engine struct {
	Config         appdata.Config
	DestinationZip string
	// Subtotal is compared against shipping rule min_amount.
	Subtotal float64
	// CartSubtotal is compared against the free shipping threshold.
	CartSubtotal     float64
	FinalWeight      float64
	FreeShippingFrom *float64
	From             *ecom.Address
	To               *ecom.Address
}

// Result is the ordered output of Engine.Apply.
type Result struct {
	Services         []ShippingService
	FreeShippingFrom *float64
}

// Apply turns quotes into shipping services, in quote order. At most one line,
// the first with the lowest price, receives the free shipping override.
func (e Engine) Apply(quotes []Quote) Result {
	res := Result{
		Services:         make([]ShippingService, 0, len(quotes)),
		FreeShippingFrom: e.FreeShippingFrom,
	}
	var lowest *ecom.ShippingLine
	for _, q := range quotes {
		line := e.baseLine(q)
		if lowest == nil || line.Price < lowest.Price {
			lowest = line
		}
		e.addRetrievalLead(line, q)
		e.applyAdditionalPrice(line)

		name := q.ShippingName()
		if rule := e.firstDiscountRule(name); rule != nil {
			applyDiscount(line, rule.Discount)
		}

		res.Services = append(res.Services, ShippingService{
			Label:            e.label(name),
			Carrier:          q.CarrierName,
			CarrierDocNumber: truncate(ecom.Digits(q.CarrierDoc.String()), carrierDocMaxLen),
			ServiceName:      serviceName(q),
			ServiceCode:      serviceCode(name),
			ShippingLine:     line,
		})
	}

	if lowest != nil && e.freeShippingReached() && lowest.Price != 0 {
		lowest.TotalPrice = lowest.Price - lowest.Price
		lowest.Discount = lowest.Price
	}
	return res
}

// FreeShippingThreshold is the lowest cart subtotal that earns free shipping
// to destinationZip, or nil when no threshold applies. A matching rule without
// min_amount makes shipping free unconditionally.
func FreeShippingThreshold(cfg appdata.Config, destinationZip string) *float64 {
	var threshold *float64
	if v := cfg.FreeShippingFromValue; v != nil && *v >= 0 {
		threshold = float64Ptr(*v)
	}
	for _, rule := range cfg.FreeShippingRules {
		if rule == nil || !zipInRange(destinationZip, rule.ZipRange) {
			continue
		}
		if rule.MinAmount == nil || *rule.MinAmount == 0 {
			return float64Ptr(0)
		}
		if threshold == nil || *threshold > *rule.MinAmount {
			threshold = float64Ptr(*rule.MinAmount)
		}
	}
	return threshold
}

func (e Engine) baseLine(q Quote) *ecom.ShippingLine {
	line := &ecom.ShippingLine{
		From:       cloneAddress(e.From),
		To:         cloneAddress(e.To),
		Price:      q.Price,
		TotalPrice: q.Price,
		DeliveryTime: &ecom.DeliveryTime{
			Days:        ecom.ParseDays(q.DeliveryDays.String()),
			WorkingDays: true,
		},
		PostingDeadline: e.postingDeadline(),
		Package: &ecom.Package{
			Weight: &ecom.Measure{Value: e.FinalWeight, Unit: "kg"},
		},
		Flags: []string{CarrierFlag, truncate("freteclick-"+q.Service.String(), flagMaxLen)},
	}

	reference := q.Reference
	if len(q.PickupPoints) > 0 {
		pickup := q.PickupPoints[0]
		line.DeliveryInstructions = pickupInstructions(pickup)
		reference = pickup.Reference
	}
	if reference != "" {
		line.CustomFields = append(line.CustomFields, ecom.CustomField{Field: FieldReference, Value: reference.String()})
	}
	nfe := "true"
	if q.InvoiceRequired == "N" {
		nfe = "false"
	}
	line.CustomFields = append(line.CustomFields, ecom.CustomField{Field: FieldNFeNeeded, Value: nfe})
	if q.QuoteID != "" {
		line.CustomFields = append(line.CustomFields, ecom.CustomField{Field: FieldQuoteID, Value: q.QuoteID.String()})
	}
	if q.OrderID != "" {
		line.CustomFields = append(line.CustomFields, ecom.CustomField{Field: FieldCarrierOID, Value: q.OrderID.String()})
	}
	return line
}

func (e Engine) postingDeadline() *ecom.PostingDeadline {
	pd := &ecom.PostingDeadline{Days: defaultPostingDays}
	if o := e.Config.PostingDeadline; o != nil {
		if o.Days != nil {
			pd.Days = ecom.Days(*o.Days)
		}
		pd.WorkingDays = o.WorkingDays
		pd.AfterApproval = o.AfterApproval
	}
	return pd
}

// addRetrievalLead adds the carrier pickup lead time to the posting deadline.
func (e Engine) addRetrievalLead(line *ecom.ShippingLine, q Quote) {
	if q.RetrievalDays == "" || !(line.PostingDeadline.Days >= 0) {
		return
	}
	line.PostingDeadline.Days += ecom.ParseDays(q.RetrievalDays.String())
}

// applyAdditionalPrice adds the merchant fee, or the discount when negative.
func (e Engine) applyAdditionalPrice(line *ecom.ShippingLine) {
	additional := e.Config.AdditionalPrice
	if additional == 0 {
		return
	}
	if additional > 0 {
		line.OtherAdditionals = append(line.OtherAdditionals, ecom.Additional{
			Tag:   additionalPriceTag,
			Label: additionalPriceLabel,
			Price: additional,
		})
	} else {
		line.Discount -= additional
	}
	line.TotalPrice += additional
	if line.TotalPrice < 0 {
		line.TotalPrice = 0
	}
}

// appliesDiscount is the stop condition of the shipping rule scan.
func appliesDiscount(rule *appdata.ShippingRule) bool {
	return rule.Discount != nil && rule.Discount.Value != nil && rule.ServiceName != ""
}

func (e Engine) ruleMatches(rule *appdata.ShippingRule, name string) bool {
	if !matchService(rule.ServiceSelector, name) || !zipInRange(e.DestinationZip, rule.ZipRange) {
		return false
	}
	return rule.MinAmount == nil || *rule.MinAmount <= e.Subtotal
}

// firstDiscountRule scans rules in declaration order and stops at the first
// matching rule that carries a discount.
func (e Engine) firstDiscountRule(name string) *appdata.ShippingRule {
	for _, rule := range e.Config.ShippingRules {
		if rule == nil || !e.ruleMatches(rule, name) {
			continue
		}
		if appliesDiscount(rule) {
			return rule
		}
	}
	return nil
}

func applyDiscount(line *ecom.ShippingLine, d *appdata.Discount) {
	value := *d.Value
	if d.Percentage {
		value *= line.TotalPrice / 100
	}
	line.Discount += value
	line.TotalPrice -= value
	if line.TotalPrice < 0 {
		line.TotalPrice = 0
	}
}

func (e Engine) label(name string) string {
	for _, svc := range e.Config.Services {
		if svc == nil || !matchService(svc.ServiceSelector, name) {
			continue
		}
		if svc.Label != "" {
			return svc.Label
		}
		break
	}
	return name
}

func (e Engine) freeShippingReached() bool {
	return e.FreeShippingFrom != nil && *e.FreeShippingFrom <= e.CartSubtotal
}

func pickupInstructions(p PickupPoint) string {
	a := p.Address
	var line string
	if a.Street != "" {
		line = a.Street
		if a.Number != "" {
			line += ", " + a.Number.String()
		}
		if a.Complement != "" {
			line += " - " + a.Complement
		}
		if a.Borough != "" {
			line += ", " + a.Borough
		}
		if a.City != "" {
			line += ", " + a.City
		}
		line += " - " + a.Distance.String() + "m"
	}
	return p.Name + " - " + line
}

func serviceName(q Quote) string {
	if q.Service != "" {
		return q.Service.String()
	}
	return q.Description
}

func serviceCode(name string) string {
	return truncate(strings.ToLower(strings.ReplaceAll(name, " ", "_")), serviceCodeMaxLen)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func cloneAddress(a *ecom.Address) *ecom.Address {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

func float64Ptr(v float64) *float64 { return &v }
