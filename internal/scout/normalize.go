package scout

// Normalization bounds. Signals are min-max scaled into [NormFloor,
// NormCeiling] within the current candidate pool so that zero-variance
// pools still contribute a positive value instead of collapsing to 0/0.
const (
	NormFloor   = 0.1
	NormCeiling = 1.0
)

// Normalize min-max scales the values into [NormFloor, NormCeiling] within
// the pool. When every value is identical (including a pool of one), all
// entries map to NormFloor.
func Normalize(values map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	if len(values) == 0 {
		return out
	}

	first := true
	var min, max float64
	for _, v := range values {
		if first {
			min, max = v, v
			first = false
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	if max == min {
		for k := range values {
			out[k] = NormFloor
		}
		return out
	}

	span := NormCeiling - NormFloor
	for k, v := range values {
		out[k] = NormFloor + span*(v-min)/(max-min)
	}
	return out
}
