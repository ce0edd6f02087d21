// Package codec serializes profile data before it leaves the process.
package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/coral-mesh/liveprof/pkg/profiledata"
)

// Packer encodes and decodes profile data.
type Packer interface {
	Pack(data profiledata.Data) ([]byte, error)
	Unpack(b []byte) (profiledata.Data, error)
	// Extension is the file extension of packed payloads, without the dot.
	Extension() string
}

// Names of the available codecs.
const (
	NameJSON = "json"
	NameZstd = "zstd"

	extJSON = "json"
	extZstd = "json.zst"
)

// New returns the codec registered under name. An empty name selects JSON.
func New(name string) (Packer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameJSON:
		return JSON{}, nil
	case NameZstd:
		return NewZstd()
	default:
		return nil, fmt.Errorf("unknown codec %q (valid: %s, %s)", name, NameJSON, NameZstd)
	}
}

// ForFile returns the codec that produced a file, judged by its extension.
func ForFile(path string) (Packer, error) {
	switch {
	case strings.HasSuffix(path, "."+extZstd):
		return NewZstd()
	case strings.HasSuffix(path, "."+extJSON):
		return JSON{}, nil
	default:
		return nil, fmt.Errorf("cannot infer codec from file name %q", path)
	}
}

// JSON packs data as a JSON object keyed by metric key.
type JSON struct{}

func (JSON) Pack(data profiledata.Data) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: nil map", profiledata.ErrMalformed)
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}
	return b, nil
}

func (JSON) Unpack(b []byte) (profiledata.Data, error) {
	var data profiledata.Data
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return data, nil
}

func (JSON) Extension() string { return extJSON }

// Zstd packs data as zstd-compressed JSON.
type Zstd struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstd creates the compressed codec. It is safe for concurrent use.
func NewZstd() (*Zstd, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Zstd{enc: enc, dec: dec}, nil
}

func (z *Zstd) Pack(data profiledata.Data) ([]byte, error) {
	raw, err := JSON{}.Pack(data)
	if err != nil {
		return nil, err
	}
	return z.enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

func (z *Zstd) Unpack(b []byte) (profiledata.Data, error) {
	raw, err := z.dec.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress profile: %w", err)
	}
	return JSON{}.Unpack(raw)
}

func (z *Zstd) Extension() string { return extZstd }
