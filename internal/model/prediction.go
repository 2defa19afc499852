package model

// Prediction is the outcome of scoring one statement.
type Prediction struct {
	Confidence float64   // in (0,1)
	Label      int       // predicted class; -1 in regression mode
	Logits     []float64 // raw head output
}
