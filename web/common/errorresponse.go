package common

// ErrorResponse is the `{message}` envelope used by the approve endpoint.
type ErrorResponse struct {
	Message string `json:"message"`
}

func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{
		Message: message,
	}
}

// FailureResponse is the `{error}` envelope used by every other endpoint.
type FailureResponse struct {
	Error string `json:"error"`
}

func NewFailureResponse(message string) *FailureResponse {
	return &FailureResponse{
		Error: message,
	}
}
