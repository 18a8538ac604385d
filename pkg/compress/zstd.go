package compress

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstdCodec wraps a shared encoder/decoder pair. EncodeAll and DecodeAll
// are safe for concurrent use, so one pair serves all callers.
type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCodec(level int) (*zstdCodec, error) {
	if level <= 0 {
		level = DefaultZstdLevel
	}
	if level > 19 {
		level = 19
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxDecodedSize))
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

func (c *zstdCodec) Mode() Mode { return ModeZstd }

func (c *zstdCodec) Compress(data []byte) ([]byte, error) {
	return c.enc.EncodeAll(data, nil), nil
}

func (c *zstdCodec) Decompress(data []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	if len(out) > MaxDecodedSize {
		return nil, fmt.Errorf("zstd: decompressed size %d exceeds limit %d", len(out), MaxDecodedSize)
	}
	return out, nil
}
