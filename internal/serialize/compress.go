// Package serialize packs values for on-disk storage: MessagePack encoding
// followed by ZStandard compression.
package serialize

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/terradue/aeronet-go/internal/msgpack"
)

// Codec encodes values as zstd-compressed MessagePack.
// Create once and reuse; Marshal and Unmarshal are safe for concurrent use.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec creates a reusable codec.
// Uses SpeedDefault (level 3) for balanced compression ratio and speed.
// Caller must call Close() when done to release resources.
func NewCodec() (*Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// Marshal encodes v with MessagePack and compresses the result.
func (c *Codec) Marshal(v any) ([]byte, error) {
	data, err := msgpack.Encode(v)
	if err != nil {
		return nil, err
	}
	return c.Compress(data), nil
}

// Unmarshal decompresses data and decodes it into v.
func (c *Codec) Unmarshal(data []byte, v any) error {
	raw, err := c.Decompress(data)
	if err != nil {
		return err
	}
	return msgpack.Decode(raw, v)
}

// Compress compresses data using ZStandard.
func (c *Codec) Compress(data []byte) []byte {
	if len(data) == 0 {
		return []byte{}
	}

	// EncodeAll is goroutine-safe
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

// Decompress decompresses ZStandard data.
func (c *Codec) Decompress(compressed []byte) ([]byte, error) {
	if len(compressed) == 0 {
		return []byte{}, nil
	}

	// DecodeAll is goroutine-safe
	decompressed, err := c.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}

	return decompressed, nil
}

// Close releases codec resources.
func (c *Codec) Close() error {
	if c.decoder != nil {
		c.decoder.Close()
	}
	if c.encoder != nil {
		return c.encoder.Close()
	}
	return nil
}
