package linear

// Option configures a RidgeRegression.
type Option func(*RidgeRegression)

// WithRidge sets ε added to the diagonal of XᵗX.
func WithRidge(eps float64) Option {
	return func(r *RidgeRegression) {
		r.ridge = eps
	}
}

// WithOperation sets the operation name used in errors and warnings.
func WithOperation(op string) Option {
	return func(r *RidgeRegression) {
		r.op = op
	}
}
