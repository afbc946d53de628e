package api

import (
	"encoding/json"
	"fmt"
)

// Codec encodes messages as JSON. It is registered under the name "json",
// replacing Connect's protobuf JSON codec, so requests use Content-Type application/json.
type Codec struct{}

// Name implements connect.Codec.
func (Codec) Name() string { return "json" }

// Marshal implements connect.Codec.
func (Codec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", msg, err)
	}
	return data, nil
}

// Unmarshal implements connect.Codec.
func (Codec) Unmarshal(data []byte, msg any) error {
	// Connect sends an empty body for messages with no set fields.
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", msg, err)
	}
	return nil
}
