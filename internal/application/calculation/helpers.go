package calculation

import (
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// StationaryCombustion is a Scope 1 fuel burn. If ncv is positive the energy content
// (quantity × NCV, in GJ) is recorded as metadata.
func StationaryCombustion(fuelQuantity decimal.Decimal, fuelType string, factor decimal.Decimal, ncv decimal.Decimal) (Result, error) {
	r, err := CalculateEmissions(fuelQuantity, factor, one, one)
	if err != nil {
		return Result{}, err
	}
	r.Scope = Scope1
	r.Category = "Stationary Combustion"
	r.Metadata = map[string]string{"fuel_type": fuelType}
	if ncv.IsPositive() {
		r.Metadata["energy_content_gj"] = fuelQuantity.Mul(ncv).String()
	}
	return r, nil
}

// PurchasedElectricity is Scope 2 grid electricity in kWh.
func PurchasedElectricity(kwh, gridFactor decimal.Decimal, location string) (Result, error) {
	r, err := CalculateEmissions(kwh, gridFactor, one, one)
	if err != nil {
		return Result{}, err
	}
	if location == "" {
		location = "Not specified"
	}
	r.Scope = Scope2
	r.Category = "Purchased Electricity"
	r.Metadata = map[string]string{"location": location}
	return r, nil
}

// Transport is Scope 3 travel or freight. When weightTonnes is positive the activity
// is tonne-km (distance × weight), otherwise distance alone.
func Transport(distanceKm decimal.Decimal, mode string, factor decimal.Decimal, weightTonnes decimal.Decimal) (Result, error) {
	activity := distanceKm
	freight := weightTonnes.IsPositive()
	if freight {
		activity = distanceKm.Mul(weightTonnes)
	}
	r, err := CalculateEmissions(activity, factor, one, one)
	if err != nil {
		return Result{}, err
	}
	r.Scope = Scope3
	r.Category = "Transportation"
	r.Metadata = map[string]string{
		"transport_mode": mode,
		"distance_km":    distanceKm.String(),
	}
	if freight {
		r.Metadata["weight_tonnes"] = weightTonnes.String()
		r.Metadata["tonne_km"] = activity.String()
	}
	return r, nil
}

// WasteDisposal is Scope 3 waste sent for disposal.
func WasteDisposal(quantityTonnes decimal.Decimal, wasteType, method string, factor decimal.Decimal) (Result, error) {
	r, err := CalculateEmissions(quantityTonnes, factor, one, one)
	if err != nil {
		return Result{}, err
	}
	r.Scope = Scope3
	r.Category = "Waste Disposal"
	r.Metadata = map[string]string{
		"waste_type":      wasteType,
		"disposal_method": method,
	}
	return r, nil
}
