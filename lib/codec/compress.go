// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// MarshalCompressed encodes v to deterministic CBOR and wraps it in a
// single zstd frame. The encoder runs single-threaded so the frame
// layout is reproducible.
func MarshalCompressed(v any) ([]byte, error) {
	raw, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("codec: zstd encoder: %w", err)
	}
	defer encoder.Close()
	return encoder.EncodeAll(raw, nil), nil
}

// UnmarshalCompressed reverses MarshalCompressed.
func UnmarshalCompressed(data []byte, v any) error {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return fmt.Errorf("codec: zstd decoder: %w", err)
	}
	defer decoder.Close()

	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("codec: zstd decompression: %w", err)
	}
	return Unmarshal(raw, v)
}

// NewCompressingEncoder returns a CBOR encoder whose output streams
// through zstd into w. Call the returned close function to flush the
// frame.
func NewCompressingEncoder(w io.Writer) (*Encoder, func() error, error) {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, nil, fmt.Errorf("codec: zstd encoder: %w", err)
	}
	return NewEncoder(zw), zw.Close, nil
}

// NewDecompressingDecoder returns a CBOR decoder reading a zstd frame
// from r. Call the returned close function when done.
func NewDecompressingDecoder(r io.Reader) (*Decoder, func(), error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("codec: zstd decoder: %w", err)
	}
	return NewDecoder(zr), zr.Close, nil
}
