package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RequestID represents a JSON-RPC ID that can be either a string or a number.
// Integral numbers are held as int64, all other numbers as float64.
type RequestID struct {
	value any
}

// NewRequestID creates a new RequestID from a string or number. Unsupported
// types yield an ID for which IsNil reports true.
func NewRequestID(value any) *RequestID {
	switch v := value.(type) {
	case string:
		return &RequestID{value: v}
	case int:
		return &RequestID{value: int64(v)}
	case int8:
		return &RequestID{value: int64(v)}
	case int16:
		return &RequestID{value: int64(v)}
	case int32:
		return &RequestID{value: int64(v)}
	case int64:
		return &RequestID{value: v}
	case uint:
		return &RequestID{value: int64(v)}
	case uint8:
		return &RequestID{value: int64(v)}
	case uint16:
		return &RequestID{value: int64(v)}
	case uint32:
		return &RequestID{value: int64(v)}
	case float32:
		return normalizeFloat(float64(v))
	case float64:
		return normalizeFloat(v)
	default:
		return &RequestID{value: nil}
	}
}

func normalizeFloat(f float64) *RequestID {
	if f == float64(int64(f)) {
		return &RequestID{value: int64(f)}
	}
	return &RequestID{value: f}
}

// String returns the string representation of the ID.
func (id *RequestID) String() string {
	if id == nil || id.value == nil {
		return ""
	}

	switch v := id.value.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		panic("unreachable: RequestID contains unsupported type")
	}
}

// Value returns the underlying value.
func (id *RequestID) Value() any {
	if id == nil {
		return nil
	}
	return id.value
}

// IsNil returns true if the ID is nil/empty.
func (id *RequestID) IsNil() bool {
	if id == nil {
		return true
	}

	return id.value == nil
}

// MarshalJSON implements json.Marshaler. An empty ID encodes as null.
func (id *RequestID) MarshalJSON() ([]byte, error) {
	if id == nil || id.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		id.value = str
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil && num != "" {
		if i, err := num.Int64(); err == nil {
			id.value = i
			return nil
		}
		if f, err := num.Float64(); err == nil {
			*id = *normalizeFloat(f)
			return nil
		}
	}

	return fmt.Errorf("JSON-RPC ID must be a string or number, got: %s", string(data))
}
