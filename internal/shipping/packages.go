package shipping

import "github.com/vitorrgg/app-freteclick/internal/ecom"

// Package defaults applied when an item does not declare the measure.
const (
	DefaultWeightKg = 0.5
	DefaultHeightCm = 5
	DefaultWidthCm  = 10
	DefaultLengthCm = 10
)

// Package is one carrier package entry, one per cart item.
type Package struct {
	Weight   float64 `json:"peso"`
	Height   float64 `json:"altura"`
	Width    float64 `json:"largura"`
	Length   float64 `json:"comprimento"`
	Value    float64 `json:"valor"`
	Quantity int     `json:"quantidade"`
}

// Cart is the output of Aggregate.
type Cart struct {
	Packages []Package
	// FinalWeight is the total declared weight in kg, quantities included.
	FinalWeight float64
	// CartSubtotal sums quantity times unit price over every item.
	CartSubtotal float64
}

// Aggregate builds the carrier packages and cart totals. Item order is kept.
func Aggregate(items []ecom.Item) Cart {
	cart := Cart{Packages: make([]Package, 0, len(items))}
	for _, item := range items {
		qty := float64(item.Quantity)
		price := item.UnitPrice()
		cart.CartSubtotal += qty * price
		cart.FinalWeight += qty * CartWeightKg(item.Weight)

		pkg := Package{
			Weight:   orDefault(PayloadWeightKg(item.Weight), DefaultWeightKg),
			Height:   orDefault(LengthCm(item.Dimensions["height"]), DefaultHeightCm),
			Width:    orDefault(LengthCm(item.Dimensions["width"]), DefaultWidthCm),
			Length:   orDefault(LengthCm(item.Dimensions["length"]), DefaultLengthCm),
			Value:    price,
			Quantity: item.Quantity,
		}
		cart.Packages = append(cart.Packages, pkg)
	}
	return cart
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
