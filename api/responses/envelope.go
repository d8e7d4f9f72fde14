package responses

// SuccessEnvelope wraps every 2xx JSON body as {"data": ...}.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// ErrorBody carries the public error code and message. Details are only set
// for codes whose metadata allows them, such as field validation failures.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every error response as {"error": {...}}.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}
