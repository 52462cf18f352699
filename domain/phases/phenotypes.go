package phases

import (
	"encoding/json"
	"fmt"
	"math"

	"phasegrid/domain/core"
)

// ============================================================================
// SEGMENT PHENOTYPES
// ============================================================================

// SegmentPhenotype names one scalar measure computed per segment.
type SegmentPhenotype string

const (
	// PhenotypeStart is the segment's first sample time, common to all
	// phase kinds and used downstream for ordering and lag computations.
	PhenotypeStart SegmentPhenotype = "start"
	// PhenotypeDuration is the segment's extent in time units.
	PhenotypeDuration SegmentPhenotype = "duration"
	// PhenotypeLinearSlope is the OLS slope of log2 size against time.
	PhenotypeLinearSlope SegmentPhenotype = "linear_model_slope"
	// PhenotypeLinearIntercept is the OLS intercept.
	PhenotypeLinearIntercept SegmentPhenotype = "linear_model_intercept"
	// PhenotypePopulationDoublings is slope x duration: the total log2
	// increase attributable to the fitted line.
	PhenotypePopulationDoublings SegmentPhenotype = "population_doublings"
	// PhenotypePopulationDoublingTime is ln(2)/slope for growing segments,
	// NaN otherwise.
	PhenotypePopulationDoublingTime SegmentPhenotype = "population_doubling_time"
	// PhenotypeAsymptoteAngle is the angle between the tangents bounding a
	// curvature region.
	PhenotypeAsymptoteAngle SegmentPhenotype = "asymptote_angle"
	// PhenotypeAsymptoteIntersection is the time where those tangents cross.
	PhenotypeAsymptoteIntersection SegmentPhenotype = "asymptote_intersection"
	// PhenotypeLinearRSquared is the goodness of fit of the linear model.
	// Diagnostic only: it is not part of any phase's tensor block layout.
	PhenotypeLinearRSquared SegmentPhenotype = "linear_model_r_squared"
)

// AllSegmentPhenotypes returns the registry in canonical order. Tensor block
// layouts and exports follow this order.
func AllSegmentPhenotypes() []SegmentPhenotype {
	return []SegmentPhenotype{
		PhenotypeStart,
		PhenotypeDuration,
		PhenotypeLinearSlope,
		PhenotypeLinearIntercept,
		PhenotypePopulationDoublings,
		PhenotypePopulationDoublingTime,
		PhenotypeAsymptoteAngle,
		PhenotypeAsymptoteIntersection,
	}
}

// PhenotypesFor returns the measures defined for a phase kind, in registry
// order. Linear phases carry the linear model block, non-linear phases the
// asymptote block, undetermined segments carry nothing.
func PhenotypesFor(p Phase) []SegmentPhenotype {
	switch {
	case p.IsLinear():
		return []SegmentPhenotype{
			PhenotypeStart,
			PhenotypeDuration,
			PhenotypeLinearSlope,
			PhenotypeLinearIntercept,
			PhenotypePopulationDoublings,
			PhenotypePopulationDoublingTime,
		}
	case p.IsNonLinear():
		return []SegmentPhenotype{
			PhenotypeStart,
			PhenotypeDuration,
			PhenotypeAsymptoteAngle,
			PhenotypeAsymptoteIntersection,
		}
	default:
		return nil
	}
}

// SegmentPhenotypes maps phenotype names to values for one segment.
type SegmentPhenotypes map[SegmentPhenotype]float64

// Get returns the value for key, NaN when the measure is absent
func (sp SegmentPhenotypes) Get(key SegmentPhenotype) float64 {
	if sp == nil {
		return math.NaN()
	}
	v, ok := sp[key]
	if !ok {
		return math.NaN()
	}
	return v
}

// Has reports whether the measure is present and finite
func (sp SegmentPhenotypes) Has(key SegmentPhenotype) bool {
	if sp == nil {
		return false
	}
	v, ok := sp[key]
	return ok && !math.IsNaN(v)
}

// MarshalJSON encodes values through the non-finite-safe float codec
func (sp SegmentPhenotypes) MarshalJSON() ([]byte, error) {
	m := make(map[SegmentPhenotype]core.Float, len(sp))
	for k, v := range sp {
		m[k] = core.Float(v)
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes values through the non-finite-safe float codec
func (sp *SegmentPhenotypes) UnmarshalJSON(data []byte) error {
	var m map[SegmentPhenotype]core.Float
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	out := make(SegmentPhenotypes, len(m))
	for k, v := range m {
		out[k] = float64(v)
	}
	*sp = out
	return nil
}

// ============================================================================
// META PHENOTYPES
// ============================================================================

// MetaPhenotype names one plate-level derived quantity computed from the
// phase segmentation of every curve.
type MetaPhenotype string

const (
	// MetaMajorImpulseYieldContribution is the population doublings of the
	// impulse contributing most to the total yield.
	MetaMajorImpulseYieldContribution MetaPhenotype = "major_impulse_yield_contribution"
	// MetaFirstMinorImpulseYieldContribution is the doublings of the second
	// most contributing impulse.
	MetaFirstMinorImpulseYieldContribution MetaPhenotype = "first_minor_impulse_yield_contribution"
	// MetaMajorImpulseAveragePopulationDoublingTime is the doubling time of
	// the major impulse.
	MetaMajorImpulseAveragePopulationDoublingTime MetaPhenotype = "major_impulse_average_population_doubling_time"
	// MetaFirstMinorImpulseAveragePopulationDoublingTime is the doubling
	// time of the second most contributing impulse.
	MetaFirstMinorImpulseAveragePopulationDoublingTime MetaPhenotype = "first_minor_impulse_average_population_doubling_time"
	// MetaMajorImpulseFlankAsymmetry is the asymptote-angle ratio of the
	// right to left flank of the major impulse.
	MetaMajorImpulseFlankAsymmetry MetaPhenotype = "major_impulse_flank_asymmetry"

	// MetaInitialAccelerationAsymptoteAngle is the asymptote angle of the
	// first acceleration phase.
	MetaInitialAccelerationAsymptoteAngle MetaPhenotype = "initial_acceleration_asymptote_angle"
	// MetaFinalRetardationAsymptoteAngle is the asymptote angle of the last
	// retardation phase.
	MetaFinalRetardationAsymptoteAngle MetaPhenotype = "final_retardation_asymptote_angle"
	// MetaInitialAccelerationAsymptoteIntersect is the tangent crossing time
	// of the first acceleration phase.
	MetaInitialAccelerationAsymptoteIntersect MetaPhenotype = "initial_acceleration_asymptote_intersect"
	// MetaFinalRetardationAsymptoteIntersect is the tangent crossing time of
	// the last retardation phase.
	MetaFinalRetardationAsymptoteIntersect MetaPhenotype = "final_retardation_asymptote_intersect"

	// MetaInitialLag is the crossing time of the first flat model and the
	// first impulse model following a flat phase.
	MetaInitialLag MetaPhenotype = "initial_lag"
	// MetaInitialLagAlternativeModel uses the experiment low point as the
	// flat reference instead of a fitted flat segment.
	MetaInitialLagAlternativeModel MetaPhenotype = "initial_lag_alternative_model"
	// MetaTimeBeforeMajorGrowth is the crossing time of the first flat model
	// and the major impulse model.
	MetaTimeBeforeMajorGrowth MetaPhenotype = "time_before_major_growth"

	// MetaModalities is the number of impulses.
	MetaModalities MetaPhenotype = "modalities"
	// MetaModalitiesAlternativeModel counts only impulses nested between the
	// first acceleration and the last retardation.
	MetaModalitiesAlternativeModel MetaPhenotype = "modalities_alternative_model"
	// MetaCollapses is the number of collapse phases.
	MetaCollapses MetaPhenotype = "collapses"
)

// AllMetaPhenotypes returns every meta phenotype kind in canonical order
func AllMetaPhenotypes() []MetaPhenotype {
	return []MetaPhenotype{
		MetaMajorImpulseYieldContribution,
		MetaFirstMinorImpulseYieldContribution,
		MetaMajorImpulseAveragePopulationDoublingTime,
		MetaFirstMinorImpulseAveragePopulationDoublingTime,
		MetaMajorImpulseFlankAsymmetry,
		MetaInitialAccelerationAsymptoteAngle,
		MetaFinalRetardationAsymptoteAngle,
		MetaInitialAccelerationAsymptoteIntersect,
		MetaFinalRetardationAsymptoteIntersect,
		MetaInitialLag,
		MetaInitialLagAlternativeModel,
		MetaTimeBeforeMajorGrowth,
		MetaModalities,
		MetaModalitiesAlternativeModel,
		MetaCollapses,
	}
}

// ParseMetaPhenotype parses a string into a MetaPhenotype
func ParseMetaPhenotype(s string) (MetaPhenotype, error) {
	for _, m := range AllMetaPhenotypes() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown meta phenotype %q", s)
}
