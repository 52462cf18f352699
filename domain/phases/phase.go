package phases

// Phase is the qualitative growth-dynamics regime assigned to each curve
// index by the segmentation engine.
type Phase string

const (
	// PhaseUndetermined marks samples the classifier could not place.
	PhaseUndetermined Phase = "undetermined"
	// PhaseFlat is a linear regime with near-zero slope.
	PhaseFlat Phase = "flat"
	// PhaseAcceleration is positive curvature entering an impulse.
	PhaseAcceleration Phase = "acceleration"
	// PhaseImpulse is sustained near-linear exponential growth.
	PhaseImpulse Phase = "impulse"
	// PhaseRetardation is negative curvature leaving an impulse.
	PhaseRetardation Phase = "retardation"
	// PhaseCollapse is sustained population decline after growth.
	PhaseCollapse Phase = "collapse"
	// PhaseUndeterminedNonLinear marks curvature regions whose direction
	// never resolved against the noise threshold.
	PhaseUndeterminedNonLinear Phase = "undetermined_non_linear"
)

// AllPhases returns every phase in canonical order
func AllPhases() []Phase {
	return []Phase{
		PhaseUndetermined,
		PhaseFlat,
		PhaseAcceleration,
		PhaseImpulse,
		PhaseRetardation,
		PhaseCollapse,
		PhaseUndeterminedNonLinear,
	}
}

// IsLinear reports whether the phase is fitted with a linear model
func (p Phase) IsLinear() bool {
	return p == PhaseFlat || p == PhaseImpulse
}

// IsNonLinear reports whether the phase is a detected curvature region,
// fitted with the asymptote model
func (p Phase) IsNonLinear() bool {
	switch p {
	case PhaseAcceleration, PhaseRetardation, PhaseCollapse, PhaseUndeterminedNonLinear:
		return true
	}
	return false
}

// IsDetermined reports whether the phase carries a model at all
func (p Phase) IsDetermined() bool {
	return p != PhaseUndetermined
}

// Valid reports whether p is a known phase value
func (p Phase) Valid() bool {
	for _, known := range AllPhases() {
		if p == known {
			return true
		}
	}
	return false
}
