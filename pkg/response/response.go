package response

// Response is the envelope middleware uses when it aborts a request
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorData  `json:"error,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ErrorBody builds a failure envelope for use with AbortWithStatusJSON.
func ErrorBody(code, message string) Response {
	return Response{Success: false, Error: &ErrorData{Code: code, Message: message}}
}
