package common

type SuccessResponse struct {
	Success bool `json:"success"`
}

func NewSuccessResponse() *SuccessResponse {
	return &SuccessResponse{Success: true}
}

type MessageResponse struct {
	Message   string `json:"message"`
	SignedURL string `json:"signedUrl,omitempty"`
}
