package stepflow

// MaxOutputTokens sets the maximum number of tokens to generate in the response.
func MaxOutputTokens(n int64) ModelOption {
	return func(o *ModelOptions) {
		o.MaxOutputTokens = n
	}
}

// TopP sets the nucleus sampling parameter.
func TopP(p float64) ModelOption {
	return func(o *ModelOptions) {
		o.TopP = p
	}
}

// Temperature sets the sampling temperature to use, between 0.0 and 1.0.
func Temperature(t float64) ModelOption {
	return func(o *ModelOptions) {
		o.Temperature = t
	}
}
