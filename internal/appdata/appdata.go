// Package appdata decodes the merchant configuration stored on the platform
// application (data overlaid by hidden_data).
package appdata

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/vitorrgg/app-freteclick/internal/ecom"
)

// Config is the merged merchant configuration.
type Config struct {
	APIKey                string                 `json:"api_key"`
	Zip                   string                 `json:"zip"`
	From                  *ecom.Address          `json:"from"`
	Ordernar              string                 `json:"ordernar"`
	FreeShippingFromValue *float64               `json:"free_shipping_from_value"`
	FreeShippingRules     List[FreeShippingRule] `json:"free_shipping_rules"`
	ShippingRules         List[ShippingRule]     `json:"shipping_rules"`
	Services              List[ServiceLabel]     `json:"services"`
	AdditionalPrice       float64                `json:"additional_price"`
	PostingDeadline       *PostingDeadline       `json:"posting_deadline"`
	SendTagStatus         Flag                   `json:"send_tag_status"`
	IgnoreTriggers        []string               `json:"ignore_triggers"`
	Warehouses            List[Warehouse]        `json:"warehouses"`
}

// ServiceSelector targets carrier services by name or code.
type ServiceSelector struct {
	ServiceName string `json:"service_name"`
	ServiceCode string `json:"service_code"`
}

// ZipRange bounds destination zip codes. Empty bounds are open.
type ZipRange struct {
	Min Zip `json:"min"`
	Max Zip `json:"max"`
}

type Discount struct {
	Value      *float64 `json:"value"`
	Percentage bool     `json:"percentage"`
}

type ShippingRule struct {
	ServiceSelector
	ZipRange  *ZipRange `json:"zip_range"`
	MinAmount *float64  `json:"min_amount"`
	Discount  *Discount `json:"discount"`
}

type FreeShippingRule struct {
	ZipRange  *ZipRange `json:"zip_range"`
	MinAmount *float64  `json:"min_amount"`
}

// ServiceLabel renames a carrier service in checkout.
type ServiceLabel struct {
	ServiceSelector
	Label string `json:"label"`
}

type PostingDeadline struct {
	Days          *float64 `json:"days"`
	WorkingDays   *bool    `json:"working_days"`
	AfterApproval *bool    `json:"after_approval"`
}

// Warehouse overrides the carrier token for orders shipped from it.
type Warehouse struct {
	Code   string        `json:"code"`
	APIKey string        `json:"api_key"`
	Zip    string        `json:"zip"`
	From   *ecom.Address `json:"from"`
}

// Merge decodes the application configuration. Keys of hidden_data take
// precedence over data. Fields with an unexpected JSON type are left at their
// zero value; only malformed JSON is reported.
func Merge(app ecom.Application) (Config, error) {
	merged := map[string]json.RawMessage{}
	for _, raw := range []json.RawMessage{app.Data, app.HiddenData} {
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				continue
			}
			return Config{}, err
		}
		for k, v := range obj {
			merged[k] = v
		}
	}

	var cfg Config
	if len(merged) == 0 {
		return cfg, nil
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return Config{}, err
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return Config{}, err
		}
	}
	return cfg, nil
}

// IgnoresTrigger reports whether the merchant muted triggers for resource.
func (c Config) IgnoresTrigger(resource string) bool {
	for _, r := range c.IgnoreTriggers {
		if r == resource {
			return true
		}
	}
	return false
}

// TokenFor returns the carrier token for a warehouse, defaulting to api_key.
func (c Config) TokenFor(warehouseCode string) string {
	if warehouseCode != "" {
		for _, w := range c.Warehouses {
			if w != nil && w.Code == warehouseCode && w.APIKey != "" {
				return w.APIKey
			}
		}
	}
	return c.APIKey
}

// OriginZip is the first non-empty digit-only zip among the request origin
// and the merchant zip.
func (c Config) OriginZip(from *ecom.Address) string {
	if zip := from.DigitsZip(); zip != "" {
		return zip
	}
	return ecom.Digits(c.Zip)
}

// List decodes a JSON array element by element. Elements that are null or
// fail to decode become nil entries instead of failing the whole list, and a
// non-array value decodes to an empty list.
type List[T any] []*T

func (l *List[T]) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		*l = nil
		return nil
	}
	out := make(List[T], 0, len(raw))
	for _, r := range raw {
		if r = bytes.TrimSpace(r); len(r) == 0 || r[0] != '{' {
			out = append(out, nil)
			continue
		}
		v := new(T)
		if err := json.Unmarshal(r, v); err != nil {
			var typeErr *json.UnmarshalTypeError
			if !errors.As(err, &typeErr) {
				out = append(out, nil)
				continue
			}
		}
		out = append(out, v)
	}
	*l = out
	return nil
}

// Zip is a zip code bound given either as a string or a number. Only digits are kept.
type Zip string

func (z *Zip) UnmarshalJSON(b []byte) error {
	var s ecom.FlexString
	if err := json.Unmarshal(b, &s); err != nil {
		*z = ""
		return nil
	}
	*z = Zip(ecom.Digits(string(s)))
	return nil
}

// Flag is a truthy toggle: true, a non-empty string or a non-zero number.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*f = Flag(t)
	case string:
		*f = Flag(strings.TrimSpace(t) != "")
	case float64:
		*f = Flag(t != 0)
	default:
		*f = Flag(v != nil)
	}
	return nil
}
