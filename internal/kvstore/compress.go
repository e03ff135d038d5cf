package kvstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Compressed wraps a Store and zstd-compresses values on save. Loads of
// values that do not carry the zstd frame magic are returned unchanged, so
// snapshots written before compression was enabled stay readable.
type Compressed struct {
	inner Store
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

// NewCompressed decorates inner with zstd compression.
func NewCompressed(inner Store) (*Compressed, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("init zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("init zstd decoder: %w", err)
	}
	return &Compressed{inner: inner, enc: enc, dec: dec}, nil
}

// Load implements Store.
func (c *Compressed) Load(ctx context.Context, key string) ([]byte, bool, error) {
	raw, ok, err := c.inner.Load(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	if !bytes.HasPrefix(raw, zstdMagic) {
		return raw, true, nil
	}
	out, err := c.dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, false, wrap("load", key, fmt.Errorf("decompress: %w", err))
	}
	return out, true, nil
}

// Save implements Store.
func (c *Compressed) Save(ctx context.Context, key string, value []byte) error {
	return c.inner.Save(ctx, key, c.enc.EncodeAll(value, nil))
}

// Remove implements Store.
func (c *Compressed) Remove(ctx context.Context, key string) error {
	return c.inner.Remove(ctx, key)
}

// Close releases the encoder and decoder.
func (c *Compressed) Close() error {
	c.dec.Close()
	return c.enc.Close()
}
