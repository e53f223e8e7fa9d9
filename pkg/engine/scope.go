package engine

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrValidation marks invalid run arguments caught at the boundary, before
// the pipeline runs.
var ErrValidation = errors.New("invalid argument")

// NoScope3 is the sentinel selector disabling embodied emissions.
const NoScope3 = "no_scope3"

// Embodied emission factors in gCO2e per node-hour for known HPC systems.
// The Isambard figures come from a lifecycle assessment of those systems and
// the Archer2 figure from its published documentation.
var scope3Systems = map[string]float64{
	"Isambard3":  43.0,
	"IsambardAI": 114.0,
	"Archer2":    23.0,
}

// ScopeFactors is the resolved scope 3 selector: disabled, a named system
// with its fixed per-node-hour factor, or a user supplied factor. It is
// resolved once at the boundary, never re-parsed inside the engine.
type ScopeFactors struct {
	label          string
	gmsPerNodeHour float64
	enabled        bool
}

// ParseScopeFactors resolves the scope 3 selector string. Valid selectors
// are "no_scope3", a known system name, or a non-negative number in
// gCO2e/node-hour. Anything else is a validation error.
func ParseScopeFactors(s string) (ScopeFactors, error) {
	if s == "" || s == NoScope3 {
		return ScopeFactors{label: NoScope3}, nil
	}

	if factor, ok := scope3Systems[s]; ok {
		return ScopeFactors{label: s, gmsPerNodeHour: factor, enabled: true}, nil
	}

	factor, err := strconv.ParseFloat(s, 64)
	if err != nil || factor < 0 {
		return ScopeFactors{}, fmt.Errorf(
			"%w: scope 3 selector %q must be %s, a known system (%v) or a non-negative gCO2e/node-hour factor",
			ErrValidation, s, NoScope3, Scope3Systems(),
		)
	}

	return ScopeFactors{label: s, gmsPerNodeHour: factor, enabled: true}, nil
}

// Enabled returns false for the no_scope3 sentinel.
func (s ScopeFactors) Enabled() bool {
	return s.enabled
}

// GmsPerNodeHour returns the embodied factor, zero when disabled.
func (s ScopeFactors) GmsPerNodeHour() float64 {
	return s.gmsPerNodeHour
}

func (s ScopeFactors) String() string {
	return s.label
}

// Scope3Systems returns the known system names in stable order.
func Scope3Systems() []string {
	return []string{"Archer2", "Isambard3", "IsambardAI"}
}
