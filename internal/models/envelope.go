package models

import "encoding/json"

// Envelope is the response body of every backend REST endpoint.
type Envelope struct {
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message"`
}
