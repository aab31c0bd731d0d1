package transport

import "encoding/json"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope wraps every API response. Error carries the message of a failed
// request and Code its domain error code.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

// PageMeta describes the window a listing was cut to.
type PageMeta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

func Success(data interface{}, meta interface{}) Envelope {
	return Envelope{Status: StatusSuccess, Data: data, Meta: meta}
}

func Failure(code, message string, meta interface{}) Envelope {
	return Envelope{Status: StatusError, Code: code, Error: message, Meta: meta}
}

// Bytes encodes the envelope. Payloads that cannot be encoded degrade to a
// bare error envelope so the caller always receives JSON.
func (e Envelope) Bytes() []byte {
	out, err := json.Marshal(e)
	if err != nil {
		out, _ = json.Marshal(Failure("INTERNAL", "response encoding failed", nil))
	}
	return out
}
