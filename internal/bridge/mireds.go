package bridge

import "math"

// The bulbs express colour temperature as a percent of their warm-to-cool
// range, 2700K–5000K. Hubs express it in mireds (1,000,000 / Kelvin).
const (
	// MinMireds is the coolest temperature the bulbs reach (5000K).
	MinMireds = 200

	// MaxMireds is the warmest temperature advertised to the hub (2703K,
	// rounded up to the conventional warm-white bound).
	MaxMireds = 370

	minKelvin  = 2700
	kelvinSpan = 2300
)

// PercentToMireds converts the bulb's 1–100 temperature percent to
// mireds. 1 is warmest (≈367 mireds), 100 is coolest (200 mireds).
func PercentToMireds(percent int) int {
	kelvin := minKelvin + kelvinSpan*percent/100
	return int(math.Round(1e6 / float64(kelvin)))
}

// MiredsToPercent converts mireds to the bulb's 1–100 temperature
// percent. The pair is not an exact inverse; round-tripping a percent
// value lands within ±1. The result is not clamped above; callers feed
// it through the device layer, which clamps into [1,100]. Non-positive
// mireds have no Kelvin equivalent and map to the warmest setting.
func MiredsToPercent(mireds int) int {
	if mireds <= 0 {
		return 1
	}
	kelvin := 1e6 / float64(mireds)
	return int(math.Ceil((kelvin - minKelvin) / kelvinSpan * 100))
}
