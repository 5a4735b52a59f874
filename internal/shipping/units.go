package shipping

import "github.com/vitorrgg/app-freteclick/internal/ecom"

// CartWeightKg converts an item weight to kilograms for cart aggregation.
// Units other than kg, g and mg contribute nothing.
func CartWeightKg(w *ecom.Measure) float64 {
	if w == nil || w.Value == 0 {
		return 0
	}
	switch w.Unit {
	case "kg":
		return w.Value
	case "g":
		return w.Value / 1000
	case "mg":
		return w.Value / 1_000_000
	default:
		return 0
	}
}

// PayloadWeightKg converts an item weight to kilograms for the carrier
// package payload. Unrecognized units are assumed to be kilograms already.
func PayloadWeightKg(w *ecom.Measure) float64 {
	if w == nil || w.Value == 0 {
		return 0
	}
	switch w.Unit {
	case "g":
		return w.Value / 1000
	case "mg":
		return w.Value / 1_000_000
	default:
		return w.Value
	}
}

// LengthCm converts a dimension to centimeters. Unrecognized units pass through.
func LengthCm(d *ecom.Measure) float64 {
	if d == nil || d.Value == 0 {
		return 0
	}
	switch d.Unit {
	case "m":
		return d.Value * 100
	case "mm":
		return d.Value / 10
	default:
		return d.Value
	}
}
