package compress

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// gzipCodec pools writers and readers. A gzip.Reader carries ~32KB of
// internal state that Reset() lets us reuse instead of reallocating per
// payload.
type gzipCodec struct {
	writers sync.Pool
	readers sync.Pool // no New: gzip.NewReader needs valid data up front
}

func newGzipCodec() *gzipCodec {
	c := &gzipCodec{}
	c.writers.New = func() interface{} {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}
	return c
}

func (c *gzipCodec) Mode() Mode { return ModeGzip }

func (c *gzipCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := c.writers.Get().(*gzip.Writer)
	w.Reset(&buf)
	if _, err := w.Write(data); err != nil {
		c.writers.Put(w)
		return nil, fmt.Errorf("gzip: %w", err)
	}
	if err := w.Close(); err != nil {
		c.writers.Put(w)
		return nil, fmt.Errorf("gzip: %w", err)
	}
	c.writers.Put(w)
	return buf.Bytes(), nil
}

func (c *gzipCodec) Decompress(data []byte) ([]byte, error) {
	var reader *gzip.Reader
	var err error
	if pooled := c.readers.Get(); pooled != nil {
		reader = pooled.(*gzip.Reader)
		err = reader.Reset(bytes.NewReader(data))
	} else {
		reader, err = gzip.NewReader(bytes.NewReader(data))
	}
	if err != nil {
		if reader != nil {
			c.readers.Put(reader)
		}
		return nil, fmt.Errorf("gzip: %w", err)
	}

	// Read one byte past the limit so oversized payloads are detectable.
	out, err := io.ReadAll(io.LimitReader(reader, MaxDecodedSize+1))
	c.readers.Put(reader)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	if len(out) > MaxDecodedSize {
		return nil, fmt.Errorf("gzip: decompressed size exceeds limit %d", MaxDecodedSize)
	}
	return out, nil
}
