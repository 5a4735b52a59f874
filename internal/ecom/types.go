// Package ecom holds the E-Com Plus platform schemas exchanged by the module
// and webhook endpoints.
package ecom

import (
	"encoding/json"
	"strings"
)

// Measure is a numeric value paired with its unit (weight or length).
type Measure struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// Address mirrors the platform address object.
type Address struct {
	Zip          string `json:"zip"`
	Name         string `json:"name,omitempty"`
	Street       string `json:"street,omitempty"`
	Number       int    `json:"number,omitempty"`
	Complement   string `json:"complement,omitempty"`
	Borough      string `json:"borough,omitempty"`
	City         string `json:"city,omitempty"`
	Province     string `json:"province,omitempty"`
	ProvinceCode string `json:"province_code,omitempty"`
	Country      string `json:"country,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
}

// DigitsZip returns the zip code stripped of any non-digit character.
func (a *Address) DigitsZip() string {
	if a == nil {
		return ""
	}
	return Digits(a.Zip)
}

// Located reports whether the address already carries city and state.
func (a Address) Located() bool {
	return strings.TrimSpace(a.City) != "" && strings.TrimSpace(a.ProvinceCode) != ""
}

// Overlay returns a copy of a with every non-empty field of over applied on top.
func (a Address) Overlay(over *Address) Address {
	if over == nil {
		return a
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&a.Zip, over.Zip)
	set(&a.Name, over.Name)
	set(&a.Street, over.Street)
	if over.Number != 0 {
		a.Number = over.Number
	}
	set(&a.Complement, over.Complement)
	set(&a.Borough, over.Borough)
	set(&a.City, over.City)
	set(&a.Province, over.Province)
	set(&a.ProvinceCode, over.ProvinceCode)
	set(&a.Country, over.Country)
	set(&a.CountryCode, over.CountryCode)
	return a
}

// Item is a cart line item as received by the calculate module.
type Item struct {
	ProductID  string              `json:"product_id,omitempty"`
	SKU        string              `json:"sku,omitempty"`
	Name       string              `json:"name,omitempty"`
	Quantity   int                 `json:"quantity" validate:"gte=0"`
	Price      float64             `json:"price"`
	FinalPrice *float64            `json:"final_price,omitempty"`
	Weight     *Measure            `json:"weight,omitempty"`
	Dimensions map[string]*Measure `json:"dimensions,omitempty"`
}

// UnitPrice is the effective price of one unit, preferring final_price.
func (it Item) UnitPrice() float64 {
	if it.FinalPrice != nil && *it.FinalPrice > 0 {
		return *it.FinalPrice
	}
	return it.Price
}

// CalculateParams is the `params` object of a calculate-shipping request.
type CalculateParams struct {
	From     *Address `json:"from,omitempty"`
	To       *Address `json:"to,omitempty"`
	Items    []Item   `json:"items,omitempty" validate:"dive"`
	Subtotal *float64 `json:"subtotal,omitempty"`
}

// Application carries the merchant configuration objects of the app.
type Application struct {
	ID         string          `json:"_id,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	HiddenData json.RawMessage `json:"hidden_data,omitempty"`
}

// CalculateRequest is the body posted by the platform to the calculate module.
type CalculateRequest struct {
	Params      CalculateParams `json:"params"`
	Application Application     `json:"application"`
}

// Additional is an extra charge attached to a shipping line.
type Additional struct {
	Tag   string  `json:"tag"`
	Label string  `json:"label,omitempty"`
	Price float64 `json:"price"`
}

// DeliveryTime is the estimated delivery window.
type DeliveryTime struct {
	Days        Days `json:"days"`
	WorkingDays bool `json:"working_days"`
}

// PostingDeadline is the time the merchant needs before handing over the package.
type PostingDeadline struct {
	Days          Days  `json:"days"`
	WorkingDays   *bool `json:"working_days,omitempty"`
	AfterApproval *bool `json:"after_approval,omitempty"`
}

// Package summarizes the shipped package.
type Package struct {
	Weight *Measure `json:"weight,omitempty"`
}

// CustomField is a free key/value pair kept on the shipping line.
type CustomField struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// TrackingCode is a carrier tracking entry on a shipping line.
type TrackingCode struct {
	Code string `json:"code"`
	Tag  string `json:"tag,omitempty"`
	Link string `json:"link,omitempty"`
}

// ShippingLine is the platform shipping line, both in calculate responses and orders.
type ShippingLine struct {
	ID                   string           `json:"_id,omitempty"`
	From                 *Address         `json:"from,omitempty"`
	To                   *Address         `json:"to,omitempty"`
	Price                float64          `json:"price"`
	TotalPrice           float64          `json:"total_price"`
	Discount             float64          `json:"discount"`
	OtherAdditionals     []Additional     `json:"other_additionals,omitempty"`
	DeliveryTime         *DeliveryTime    `json:"delivery_time,omitempty"`
	DeliveryInstructions string           `json:"delivery_instructions,omitempty"`
	PostingDeadline      *PostingDeadline `json:"posting_deadline,omitempty"`
	Package              *Package         `json:"package,omitempty"`
	CustomFields         []CustomField    `json:"custom_fields,omitempty"`
	Flags                []string         `json:"flags,omitempty"`
	TrackingCodes        []TrackingCode   `json:"tracking_codes,omitempty"`
	WarehouseCode        string           `json:"warehouse_code,omitempty"`
}

// HasFlag reports whether the line carries the given flag.
func (l ShippingLine) HasFlag(flag string) bool {
	for _, f := range l.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// HasTrackingTag reports whether a tracking code with the given tag exists.
func (l ShippingLine) HasTrackingTag(tag string) bool {
	for _, tc := range l.TrackingCodes {
		if tc.Tag == tag {
			return true
		}
	}
	return false
}

// CustomField returns the value of the named custom field. Empty and "false"
// values are reported as absent.
func (l ShippingLine) CustomField(field string) (string, bool) {
	for _, cf := range l.CustomFields {
		if cf.Field != field {
			continue
		}
		if cf.Value == "" || cf.Value == "false" {
			return "", false
		}
		return cf.Value, true
	}
	return "", false
}

// Digits strips every non-digit rune from s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
