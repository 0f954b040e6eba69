package scoring

import (
	"math"

	"github.com/saferoute/saferoute/internal/hazard"
)

// Penalty constants.
const (
	longRouteKm          = 7.0
	darkLongRouteKm      = 6.0
	constructionPointCap = 150

	stormLongPenalty  = 25.0
	stormShortPenalty = 12.0

	crowdLongPenalty  = 20.0
	crowdShortPenalty = 10.0

	darkLongPenalty  = 15.0
	darkShortPenalty = 8.0

	constructionLongPenalty  = 15.0
	constructionShortPenalty = 5.0

	distanceFactor = 2.0

	activeCrowdDensity  = 0.9
	neutralCrowdDensity = 0.5
	densityScale        = 20.0
)

// Engine is a pure scoring function configured by mode and crowd convention.
// The zero value scores in ModeToggle with CrowdFlatPenalty.
type Engine struct {
	Mode  Mode
	Crowd CrowdConvention
}

// Score computes the unrounded breakdown. It never mutates its input.
func (e Engine) Score(in Input) Breakdown {
	distance := in.DistanceKm
	if distance < 0 || math.IsNaN(distance) {
		distance = 0
	}

	storm := in.Toggles.Storm || in.State.StormActive()
	crowd := in.Toggles.Crowd || in.State.CrowdActive()
	construction := in.Toggles.Construction || in.State.ConstructionActive()

	b := Breakdown{
		WeatherPenalty:      e.weatherPenalty(in, distance, storm),
		CrowdPenalty:        e.crowdPenalty(in, distance, crowd),
		DarknessPenalty:     e.darknessPenalty(in, distance),
		ConstructionPenalty: constructionPenalty(in.PolylinePoints, construction),
		DistancePenalty:     distance * distanceFactor,
	}
	b.FinalScore = Clamp(100 - b.Total())

	return b
}

// Clamp bounds a score into [0,100]. NaN maps to 0.
func Clamp(score float64) float64 {
	switch {
	case math.IsNaN(score), score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

func (e Engine) weatherPenalty(in Input, distance float64, storm bool) float64 {
	if in.Weather != nil && !in.Weather.Degraded {
		return in.Weather.Penalty
	}

	if e.Mode == ModeProfile {
		// A storm toggle without a storm in state grades as full intensity.
		if in.Toggles.Storm && !in.State.StormActive() {
			return conditionPenalty(hazard.ConditionStorm, 1)
		}
		return conditionPenalty(in.State.WeatherCondition, in.State.WeatherIntensity)
	}

	if !storm {
		return 0
	}
	if distance > longRouteKm {
		return stormLongPenalty
	}
	return stormShortPenalty
}

func conditionPenalty(c hazard.Condition, intensity float64) float64 {
	switch c {
	case hazard.ConditionRain:
		return 10 + 10*intensity
	case hazard.ConditionStorm:
		return 25 + 15*intensity
	case hazard.ConditionFog:
		return 15 + 10*intensity
	default:
		return 0
	}
}

func (e Engine) crowdPenalty(in Input, distance float64, active bool) float64 {
	if e.Crowd == CrowdDensityBonus {
		density := neutralCrowdDensity
		if active {
			density = activeCrowdDensity
		}
		if in.CrowdDensity != nil && !math.IsNaN(*in.CrowdDensity) {
			density = math.Max(0, math.Min(1, *in.CrowdDensity))
		}
		return (neutralCrowdDensity - density) * densityScale
	}

	if !active {
		return 0
	}
	if distance > longRouteKm {
		return crowdLongPenalty
	}
	return crowdShortPenalty
}

func (e Engine) darknessPenalty(in Input, distance float64) float64 {
	if in.TimeOfDay != Night {
		return 0
	}

	if e.Mode == ModeProfile {
		switch in.Vehicle {
		case VehiclePedestrian:
			return 20
		case VehicleBike:
			return 15
		case VehicleTruck:
			return 12
		default:
			return 10
		}
	}

	if distance > darkLongRouteKm {
		return darkLongPenalty
	}
	return darkShortPenalty
}

func constructionPenalty(points int, active bool) float64 {
	if !active {
		return 0
	}
	if points > constructionPointCap {
		return constructionLongPenalty
	}
	return constructionShortPenalty
}
