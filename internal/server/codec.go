package server

import (
	"encoding/json"
)

// jsonCodec lets Connect carry the workflow's plain Go messages as JSON.
// It is registered under "json" so it replaces the protobuf JSON codec.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}
