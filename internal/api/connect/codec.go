package connect

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// codecName is registered under the name connect uses for
// "application/json", replacing its protobuf-only JSON codec.
const codecName = "json"

// jsonCodec carries plain Go structs as JSON.
type jsonCodec struct{}

func (jsonCodec) Name() string {
	return codecName
}

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal %T", msg)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return errors.Wrapf(err, "failed to unmarshal %T", msg)
	}
	return nil
}
