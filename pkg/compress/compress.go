// Package compress provides the payload codecs packets may name. The mode
// set is closed: "none", "zstd", "gzip" and "snappy". Every codec bounds
// decompression output to guard against decompression bombs.
package compress

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Mode names a payload codec.
type Mode string

const (
	ModeNone   Mode = "none"
	ModeZstd   Mode = "zstd"
	ModeGzip   Mode = "gzip"
	ModeSnappy Mode = "snappy"
)

// MaxDecodedSize caps decompression output. Inputs that would expand past
// this limit are rejected rather than decoded.
const MaxDecodedSize = 100 * 1024 * 1024 // 100MB

// DefaultZstdLevel balances ratio and speed for typical row payloads.
const DefaultZstdLevel = 3

// ParseMode validates a mode string. The empty string means "none" so
// that packets without a compression stamp decode unchanged.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "":
		return ModeNone, nil
	case ModeNone, ModeZstd, ModeGzip, ModeSnappy:
		return m, nil
	default:
		return "", fmt.Errorf("compress: unknown mode %q", s)
	}
}

// Codec compresses and decompresses byte payloads. Implementations must be
// safe for concurrent use.
type Codec interface {
	Mode() Mode
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// Registry holds one codec per mode.
type Registry struct {
	codecs map[Mode]Codec
	logger zerolog.Logger
}

// NewRegistry builds a registry with all supported codecs. zstdLevel
// follows the standard zstd scale; values at or below zero select
// DefaultZstdLevel and values above 19 are clamped.
func NewRegistry(logger zerolog.Logger, zstdLevel int) (*Registry, error) {
	z, err := newZstdCodec(zstdLevel)
	if err != nil {
		return nil, fmt.Errorf("compress: init zstd: %w", err)
	}
	r := &Registry{
		codecs: make(map[Mode]Codec),
		logger: logger.With().Str("component", "compress").Logger(),
	}
	for _, c := range []Codec{noneCodec{}, z, newGzipCodec(), snappyCodec{}} {
		r.codecs[c.Mode()] = c
	}
	return r, nil
}

// Get returns the codec for a mode.
func (r *Registry) Get(mode Mode) (Codec, error) {
	c, ok := r.codecs[mode]
	if !ok {
		return nil, fmt.Errorf("compress: unknown mode %q", mode)
	}
	return c, nil
}

// Modes lists the registered modes.
func (r *Registry) Modes() []Mode {
	modes := make([]Mode, 0, len(r.codecs))
	for m := range r.codecs {
		modes = append(modes, m)
	}
	return modes
}

// noneCodec passes payloads through untouched.
type noneCodec struct{}

func (noneCodec) Mode() Mode { return ModeNone }

func (noneCodec) Compress(data []byte) ([]byte, error) { return data, nil }

func (noneCodec) Decompress(data []byte) ([]byte, error) { return data, nil }
