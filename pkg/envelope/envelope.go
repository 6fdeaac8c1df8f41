package envelope

// Response is the uniform body of every API response.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func OK(message string, data interface{}) *Response {
	return &Response{Success: true, Message: message, Data: data}
}

func Fail(message string, data interface{}) *Response {
	return &Response{Success: false, Message: message, Data: data}
}
