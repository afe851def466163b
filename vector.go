package hpo

// MissingValue encodes an inactive parameter in a vectorized configuration.
const MissingValue = -1.0

// Vectorize maps a configuration onto the surrogate's feature space: one
// entry per parameter, in canonical order (see Names).
//
// Encoding:
// - Categorical, Ordinal: index of the value in Choices / Sequence
// - Missing (inactive) parameter: MissingValue
// - Numeric values: the value as float64
// - Non-numeric constants: 0
//
// Vectorize is a pure function of the configuration.
func (s *Space) Vectorize(config Configuration) []float64 {
	out := make([]float64, len(s.order))

	for i, name := range s.order {
		v, ok := config[name]
		if !ok {
			out[i] = MissingValue

			continue
		}

		switch p := s.params[name].(type) {
		case Categorical:
			out[i] = float64(indexOf(p.Choices, v))
		case Ordinal:
			out[i] = float64(indexOf(p.Sequence, v))
		case Constant, Continuous, Integer:
			if f, isNum := toFloat64(v); isNum {
				out[i] = f
			}
		default:
			out[i] = MissingValue
		}
	}

	return out
}

// VectorizeAll applies Vectorize to every configuration.
func (s *Space) VectorizeAll(configs []Configuration) [][]float64 {
	out := make([][]float64, len(configs))
	for i, c := range configs {
		out[i] = s.Vectorize(c)
	}

	return out
}
