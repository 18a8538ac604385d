// Package wire defines the versioned msgpack envelope packets travel in.
// The envelope is self-describing: schema, metadata and the row block all
// ride in one map so a consumer needs no out-of-band contract beyond this
// package's protocol name and version.
package wire

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/xxh3"

	"github.com/tabwire/tabwire/pkg/schema"
)

// ErrTooLarge marks envelopes over MaxEnvelopeSize, at both ends.
var ErrTooLarge = errors.New("envelope exceeds size limit")

const (
	// Protocol identifies this envelope family.
	Protocol = "tabwire"

	// Version is bumped on any incompatible envelope change.
	Version = 1

	// MaxEnvelopeSize is the maximum allowed encoded envelope (100MB).
	MaxEnvelopeSize = 100 * 1024 * 1024
)

// Envelope is the wire form of a packet. The row block always travels in
// Payload as an independently msgpack-encoded value sequence, compressed
// or not, so Checksum always covers the same bytes.
type Envelope struct {
	Protocol      string `msgpack:"protocol"`
	Version       int    `msgpack:"version"`
	MsgType       string `msgpack:"msg_type"`
	TableName     string `msgpack:"table_name"`
	MessageID     string `msgpack:"message_id"`
	TimestampUnix int64  `msgpack:"timestamp_unix"`
	Compression   string `msgpack:"compression"`

	// PartNumber and TotalParts are set only on multipart packets, 1-based.
	PartNumber int `msgpack:"part_number,omitempty"`
	TotalParts int `msgpack:"total_parts,omitempty"`

	Schema   []schema.Field `msgpack:"schema"`
	RowCount int            `msgpack:"row_count"`

	// Payload is the row block: msgpack array-of-arrays, nil for null
	// values, compressed per Compression.
	Payload []byte `msgpack:"payload"`

	// Checksum is the xxh3-64 hex digest of the uncompressed row block.
	Checksum string `msgpack:"checksum"`

	// Alarm is set only on error-report packets.
	Alarm *Alarm `msgpack:"alarm,omitempty"`
}

// Alarm is the wire form of an error report.
type Alarm struct {
	Severity string `msgpack:"severity"`
	Code     string `msgpack:"code"`
	Message  string `msgpack:"message"`
}

// Marshal stamps the protocol fields and encodes the envelope.
func Marshal(env *Envelope) ([]byte, error) {
	env.Protocol = Protocol
	env.Version = Version

	data, err := msgpack.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	if len(data) > MaxEnvelopeSize {
		return nil, fmt.Errorf("%d > %d bytes: %w", len(data), MaxEnvelopeSize, ErrTooLarge)
	}
	return data, nil
}

// Unmarshal decodes and checks an envelope. Protocol or version mismatch
// is an error; forward compatibility is handled by version bumps, not by
// guessing.
func Unmarshal(data []byte) (*Envelope, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty envelope")
	}
	if len(data) > MaxEnvelopeSize {
		return nil, fmt.Errorf("%d > %d bytes: %w", len(data), MaxEnvelopeSize, ErrTooLarge)
	}

	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Protocol != Protocol {
		return nil, fmt.Errorf("unexpected protocol %q", env.Protocol)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	return &env, nil
}

// EncodeRowBlock encodes rows as the canonical uncompressed row block.
func EncodeRowBlock(rows []schema.Row) ([]byte, error) {
	if rows == nil {
		rows = []schema.Row{}
	}
	data, err := msgpack.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("marshal row block: %w", err)
	}
	return data, nil
}

// DecodeRowBlock decodes a row block into raw rows. Values come back as
// uncanonicalized text or null; typed materialization is the caller's job.
func DecodeRowBlock(data []byte) ([]schema.Row, error) {
	var rows []schema.Row
	if err := msgpack.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal row block: %w", err)
	}
	return rows, nil
}

// BlockChecksum returns the xxh3-64 digest of a row block as 16 hex chars.
func BlockChecksum(block []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(block))
}
