package model

// Example is a labelled statement. In regression mode Label is the target
// confidence in [0,1]; in classification mode it is an integral class id.
type Example struct {
	Text  string  `json:"text" yaml:"text"`
	Label float64 `json:"label" yaml:"label"`
}

// Texts returns the statement text of every example, in order.
func Texts(examples []Example) []string {
	out := make([]string, len(examples))
	for i, ex := range examples {
		out[i] = ex.Text
	}
	return out
}

// Labels returns the label of every example, in order.
func Labels(examples []Example) []float64 {
	out := make([]float64, len(examples))
	for i, ex := range examples {
		out[i] = ex.Label
	}
	return out
}
