package ecom

import (
	"encoding/json"
	"strings"
)

// Order financial statuses the tag flow cares about.
const (
	StatusPaid = "paid"
)

type FinancialStatus struct {
	Current string `json:"current"`
}

type Amount struct {
	Total    float64  `json:"total"`
	Subtotal *float64 `json:"subtotal,omitempty"`
	Freight  *float64 `json:"freight,omitempty"`
}

type Name struct {
	GivenName  string `json:"given_name,omitempty"`
	MiddleName string `json:"middle_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
}

type Phone struct {
	Number string `json:"number"`
}

// Buyer is a customer attached to an order.
type Buyer struct {
	ID           string  `json:"_id,omitempty"`
	MainEmail    string  `json:"main_email"`
	DisplayName  string  `json:"display_name,omitempty"`
	Name         *Name   `json:"name,omitempty"`
	DocNumber    string  `json:"doc_number,omitempty"`
	RegistryType string  `json:"registry_type,omitempty"`
	Phones       []Phone `json:"phones,omitempty"`
}

// FullName joins the buyer name parts, falling back to the display name.
func (b Buyer) FullName() string {
	if b.Name != nil {
		parts := make([]string, 0, 3)
		for _, p := range []string{b.Name.GivenName, b.Name.MiddleName, b.Name.FamilyName} {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	return b.DisplayName
}

// Company reports whether the buyer registered as a legal entity.
func (b Buyer) Company() bool { return b.RegistryType == "j" }

// Order is the subset of the platform order resource used by the tag flow.
type Order struct {
	ID              string           `json:"_id"`
	Number          int              `json:"number,omitempty"`
	FinancialStatus *FinancialStatus `json:"financial_status,omitempty"`
	Amount          *Amount          `json:"amount,omitempty"`
	Buyers          []Buyer          `json:"buyers,omitempty"`
	ShippingLines   []ShippingLine   `json:"shipping_lines,omitempty"`
}

// Trigger is the webhook notification posted by the store.
type Trigger struct {
	Resource   string          `json:"resource" validate:"required"`
	ResourceID string          `json:"resource_id"`
	Action     string          `json:"action,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// TriggerOrderBody is the part of an orders trigger body the tag flow reads.
type TriggerOrderBody struct {
	FinancialStatus *FinancialStatus `json:"financial_status,omitempty"`
}

// PaidNow reports whether the trigger body moves the order to paid.
func (t Trigger) PaidNow() bool {
	if len(t.Body) == 0 {
		return false
	}
	var body TriggerOrderBody
	if err := json.Unmarshal(t.Body, &body); err != nil {
		return false
	}
	return body.FinancialStatus != nil && body.FinancialStatus.Current == StatusPaid
}
