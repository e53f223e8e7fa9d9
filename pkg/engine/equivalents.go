package engine

import "github.com/gracehpc/gracehpc/pkg/intensity"

// Everyday activity reference factors used to contextualise emissions.
const (
	// Average UK passenger car, gCO2e per mile
	drivingGmsPerMile = 211.2
	// Carbon sequestered by one mature tree in one month, gCO2e
	treeGmsPerMonth = 833.0
	// Average UK household electricity use, kWh per day, at the UK average
	// grid intensity
	householdKWhPerDay = 7.397
	// One economy seat on a Bristol to Paris flight, gCO2e
	flightGms = 141700.0
)

// Equivalents express an emissions figure as everyday activities.
type Equivalents struct {
	DrivingMiles     float64
	TreeMonths       float64
	UKHouseholdDays  float64
	BristolParisFlts float64
}

// EquivalentsFor converts total emissions in gCO2e into everyday activity
// equivalents.
func EquivalentsFor(totalGms float64) Equivalents {
	return Equivalents{
		DrivingMiles:     totalGms / drivingGmsPerMile,
		TreeMonths:       totalGms / treeGmsPerMonth,
		UKHouseholdDays:  totalGms / (householdKWhPerDay * intensity.UKAverageGms),
		BristolParisFlts: totalGms / flightGms,
	}
}
