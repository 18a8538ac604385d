package compress

import (
	"fmt"

	"github.com/golang/snappy"
)

// snappyCodec uses block-format snappy. Stateless, so one value serves
// all callers.
type snappyCodec struct{}

func (snappyCodec) Mode() Mode { return ModeSnappy }

func (snappyCodec) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCodec) Decompress(data []byte) ([]byte, error) {
	n, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("snappy: %w", err)
	}
	if n > MaxDecodedSize {
		return nil, fmt.Errorf("snappy: decompressed size %d exceeds limit %d", n, MaxDecodedSize)
	}
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy: %w", err)
	}
	return out, nil
}
