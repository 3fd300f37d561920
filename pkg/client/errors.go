package client

// GenerationError reports a failed image synthesis attempt
type GenerationError struct {
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

func (e *GenerationError) Unwrap() error { return e.Err }

// AnalysisError reports a failed region analysis attempt
type AnalysisError struct {
	Message string
	Err     error
}

func (e *AnalysisError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

func (e *AnalysisError) Unwrap() error { return e.Err }
