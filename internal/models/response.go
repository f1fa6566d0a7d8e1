package models

// APIResponse is the envelope every endpoint writes: success carries data,
// failures carry a message, and request validation adds a field-to-problem
// map.
type APIResponse struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func NewSuccessResponse(data interface{}) APIResponse {
	return APIResponse{Success: true, Data: data}
}

func NewErrorResponse(message string) APIResponse {
	return APIResponse{Success: false, Error: message}
}

// NewValidationErrorResponse reports the per-field problems collected by a
// request's Validate method.
func NewValidationErrorResponse(fields map[string]string) APIResponse {
	return APIResponse{
		Success: false,
		Error:   "Invalid request",
		Errors:  fields,
	}
}
