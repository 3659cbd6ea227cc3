package ml

// Classifier is a trained binary model. FeatureNames is the column order it was
// trained on; Predict returns a label and the model's confidence in it.
type Classifier interface {
	Predict(features []float64) (int, float64, error)
	FeatureNames() []string
}
