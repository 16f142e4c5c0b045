// Package msgpack provides MessagePack encoding for cached web service responses.
package msgpack

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrEmpty is returned when decoding an empty payload.
var ErrEmpty = errors.New("empty MessagePack data")

// Decode deserializes MessagePack data into a Go value.
// The v parameter should be a pointer to the target structure.
//
// Example:
//
//	type entry struct {
//	    URL  string `msgpack:"url"`
//	    Body []byte `msgpack:"body"`
//	}
//
//	var e entry
//	err := msgpack.Decode(data, &e)
func Decode(data []byte, v any) error {
	if len(data) == 0 {
		return ErrEmpty
	}

	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode MessagePack: %w", err)
	}

	return nil
}

// Encode serializes a Go value into MessagePack format.
func Encode(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode MessagePack: %w", err)
	}

	return data, nil
}
