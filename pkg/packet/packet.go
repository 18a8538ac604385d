// Package packet models the self-describing tabular transfer unit: a
// schema, the rows conforming to it, identifying metadata and an error
// slot that is mutually exclusive with a usable row set. The packet
// orchestrates the row codec, filter and mask engines; transport and
// persistence live elsewhere.
package packet

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/tabwire/tabwire/pkg/compress"
	"github.com/tabwire/tabwire/pkg/filter"
	"github.com/tabwire/tabwire/pkg/mask"
	"github.com/tabwire/tabwire/pkg/rowcodec"
	"github.com/tabwire/tabwire/pkg/schema"
	"github.com/tabwire/tabwire/pkg/sorting"
)

// MsgType classifies a packet. The set is closed; anything else fails
// ParseMsgType.
type MsgType string

const (
	// MsgReference is a full snapshot of a table.
	MsgReference MsgType = "reference"
	// MsgRequest asks a producer for data.
	MsgRequest MsgType = "request"
	// MsgResponse is an incremental reply to a request.
	MsgResponse MsgType = "response"
	// MsgAlarm reports an error condition instead of rows.
	MsgAlarm MsgType = "alarm"
)

// ParseMsgType validates a message type name.
func ParseMsgType(s string) (MsgType, error) {
	if len(s) > MaxMsgTypeLen {
		return "", newPacketError(ErrCodeFieldTooLong, "msg_type exceeds %d bytes", MaxMsgTypeLen)
	}
	mt := MsgType(strings.ToLower(strings.TrimSpace(s)))
	switch mt {
	case MsgReference, MsgRequest, MsgResponse, MsgAlarm:
		return mt, nil
	default:
		return "", newPacketError(ErrCodeUnknownMsgType, "unknown msg_type %q", s)
	}
}

// Metadata bounds, enforced at construction and again at decode.
const (
	MaxMsgTypeLen     = 32
	MaxTableNameLen   = 256
	MaxMessageIDLen   = 64
	MaxCompressionLen = 16
	MaxErrorLen       = 1024
)

// Packet is the root aggregate. All fields are private; construction and
// mutation go through methods so the rows/error exclusivity cannot be
// violated from outside.
type Packet struct {
	msgType       MsgType
	tableName     string
	messageID     string
	timestampUnix int64
	compression   compress.Mode

	// partNumber and totalParts are 1-based and set only on split parts.
	partNumber int
	totalParts int

	schema *schema.Schema
	rows   []schema.Row

	// errMsg marks the packet as an error carrier; mutually exclusive
	// with rows.
	errMsg string

	// alarm is set only on MsgAlarm packets.
	alarm *Alarm

	codec *rowcodec.Codec
}

// New creates an empty packet with a generated message id and the
// current UTC time as event timestamp.
func New(msgType MsgType, tableName string) (*Packet, error) {
	mt, err := ParseMsgType(string(msgType))
	if err != nil {
		return nil, err
	}
	if tableName == "" {
		return nil, fmt.Errorf("packet: table name required")
	}
	if len(tableName) > MaxTableNameLen {
		return nil, newPacketError(ErrCodeFieldTooLong, "table_name exceeds %d bytes", MaxTableNameLen)
	}
	return &Packet{
		msgType:       mt,
		tableName:     tableName,
		messageID:     NewMessageID(mt),
		timestampUnix: time.Now().UTC().Unix(),
		compression:   compress.ModeNone,
		codec:         rowcodec.New(zerolog.Nop()),
	}, nil
}

// NewAlarm creates an error-report packet. Alarm packets never carry
// rows; the alarm message doubles as the packet's error slot.
func NewAlarm(tableName string, alarm Alarm) (*Packet, error) {
	if err := alarm.Validate(); err != nil {
		return nil, fmt.Errorf("packet: %w", err)
	}
	p, err := New(MsgAlarm, tableName)
	if err != nil {
		return nil, err
	}
	sev, _ := ParseSeverity(string(alarm.Severity))
	alarm.Severity = sev
	p.alarm = &alarm
	p.errMsg = alarm.Message
	return p, nil
}

// SetSchema declares the packet's schema. The schema is immutable once
// rows exist; changing it would silently invalidate every materialized
// row.
func (p *Packet) SetSchema(s *schema.Schema) error {
	if s == nil {
		return fmt.Errorf("packet: nil schema")
	}
	if len(p.rows) > 0 {
		return fmt.Errorf("packet: schema is immutable once rows exist")
	}
	if p.msgType == MsgAlarm {
		return fmt.Errorf("packet: alarm packets carry no schema")
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("packet: %w", err)
	}
	p.schema = s
	return nil
}

// Schema returns the declared schema, nil if none was set.
func (p *Packet) Schema() *schema.Schema { return p.schema }

// AppendRow validates and appends one row. Values are canonicalized, so
// what the packet stores re-encodes byte-identically.
func (p *Packet) AppendRow(row schema.Row) error {
	if p.schema == nil {
		return fmt.Errorf("packet: schema must be set before rows")
	}
	if p.errMsg != "" {
		return fmt.Errorf("packet: cannot append rows to an error carrier")
	}
	decoded, err := p.codec.DecodeRow(p.schema, row)
	if err != nil {
		return err
	}
	p.rows = append(p.rows, decoded)
	return nil
}

// AppendTextRow appends a row given as raw text values. The null
// sentinel decodes as null.
func (p *Packet) AppendTextRow(values ...string) error {
	return p.AppendRow(schema.TextRow(values...))
}

// Rows exposes the packet's row set. Callers must treat it as read-only;
// Filter, Mask and Sort derive new packets instead of mutating this one.
func (p *Packet) Rows() []schema.Row { return p.rows }

// RowCount returns the number of rows.
func (p *Packet) RowCount() int { return len(p.rows) }

func (p *Packet) MsgType() MsgType           { return p.msgType }
func (p *Packet) TableName() string          { return p.tableName }
func (p *Packet) MessageID() string          { return p.messageID }
func (p *Packet) TimestampUnix() int64       { return p.timestampUnix }
func (p *Packet) Compression() compress.Mode { return p.compression }
func (p *Packet) PartNumber() int            { return p.partNumber }
func (p *Packet) TotalParts() int            { return p.totalParts }

// Err returns the error slot, empty when the packet is healthy.
func (p *Packet) Err() string { return p.errMsg }

// IsErrored reports whether the packet is an error carrier. Errored
// packets hold no trustworthy rows and refuse to encode unless they are
// alarms.
func (p *Packet) IsErrored() bool { return p.errMsg != "" }

// Alarm returns a copy of the alarm payload, nil for non-alarm packets.
func (p *Packet) Alarm() *Alarm {
	if p.alarm == nil {
		return nil
	}
	a := *p.alarm
	return &a
}

// SetCompression stamps the compression mode rows will be framed with at
// encode time. The mode set is closed.
func (p *Packet) SetCompression(mode string) error {
	if len(mode) > MaxCompressionLen {
		return newPacketError(ErrCodeFieldTooLong, "compression exceeds %d bytes", MaxCompressionLen)
	}
	m, err := compress.ParseMode(mode)
	if err != nil {
		return wrapPacketError(ErrCodeUnknownCompression, fmt.Sprintf("compression %q", mode), err)
	}
	p.compression = m
	return nil
}

// SetMessageID overrides the generated id, for retransmitting an
// identical logical message under its original identity.
func (p *Packet) SetMessageID(id string) error {
	if id == "" {
		return fmt.Errorf("packet: message id required")
	}
	if len(id) > MaxMessageIDLen {
		return newPacketError(ErrCodeFieldTooLong, "message_id exceeds %d bytes", MaxMessageIDLen)
	}
	p.messageID = id
	return nil
}

// SetTimestampUnix overrides the producer event time.
func (p *Packet) SetTimestampUnix(ts int64) { p.timestampUnix = ts }

// SetError turns the packet into an error carrier: the message is
// recorded and the row set is dropped, since consumers must not trust
// rows on an errored packet.
func (p *Packet) SetError(msg string) error {
	if msg == "" {
		return fmt.Errorf("packet: error message required")
	}
	if len(msg) > MaxErrorLen {
		return newPacketError(ErrCodeFieldTooLong, "error exceeds %d bytes", MaxErrorLen)
	}
	p.errMsg = msg
	p.rows = nil
	return nil
}

// Filter derives a new packet containing only the rows every spec
// matches. On failure the returned packet is an error carrier for the
// same table, alongside the error itself.
func (p *Packet) Filter(eng *filter.Engine, specs []filter.Spec) (*Packet, error) {
	if err := p.transformable(); err != nil {
		return nil, err
	}
	kept, err := eng.ApplyAll(p.schema, p.rows, specs)
	if err != nil {
		return p.failed(fmt.Sprintf("filter failed: %v", err)), fmt.Errorf("packet: filter: %w", err)
	}
	out := p.derive()
	out.rows = kept
	return out, nil
}

// FilterLenient is Filter with per-row errors downgraded to drops. The
// int reports how many rows were dropped for evaluation errors, on top
// of rows the specs simply did not match.
func (p *Packet) FilterLenient(eng *filter.Engine, specs []filter.Spec) (*Packet, int, error) {
	if err := p.transformable(); err != nil {
		return nil, 0, err
	}
	kept, dropped, err := eng.ApplyAllLenient(p.schema, p.rows, specs)
	if err != nil {
		return p.failed(fmt.Sprintf("filter failed: %v", err)), 0, fmt.Errorf("packet: filter: %w", err)
	}
	out := p.derive()
	out.rows = kept
	return out, dropped, nil
}

// Mask derives a new packet with the configured fields redacted.
func (p *Packet) Mask(eng *mask.Engine, cfg mask.Config) (*Packet, error) {
	if err := p.transformable(); err != nil {
		return nil, err
	}
	masked, err := eng.MaskAll(p.schema, p.rows, cfg)
	if err != nil {
		return p.failed(fmt.Sprintf("mask failed: %v", err)), fmt.Errorf("packet: mask: %w", err)
	}
	out := p.derive()
	out.rows = masked
	return out, nil
}

// Sort derives a new packet with rows ordered by the given keys.
func (p *Packet) Sort(specs []sorting.Spec) (*Packet, error) {
	if err := p.transformable(); err != nil {
		return nil, err
	}
	sorted, err := sorting.Apply(p.schema, p.rows, specs)
	if err != nil {
		return p.failed(fmt.Sprintf("sort failed: %v", err)), fmt.Errorf("packet: sort: %w", err)
	}
	out := p.derive()
	out.rows = sorted
	return out, nil
}

// Clone deep-copies the packet, message id included.
func (p *Packet) Clone() *Packet {
	out := *p
	out.codec = rowcodec.New(zerolog.Nop())
	if p.rows != nil {
		out.rows = make([]schema.Row, len(p.rows))
		for i, r := range p.rows {
			out.rows[i] = r.Clone()
		}
	}
	if p.alarm != nil {
		a := *p.alarm
		out.alarm = &a
	}
	return &out
}

// transformable gates the row-transforming operations.
func (p *Packet) transformable() error {
	if p.errMsg != "" {
		return fmt.Errorf("packet: operation on error carrier")
	}
	if p.schema == nil {
		return fmt.Errorf("packet: schema must be set")
	}
	return nil
}

// derive creates a sibling packet sharing metadata and schema but with a
// fresh message id. The derived packet is a new logical message: it has
// different content, so reusing the source id would defeat consumer
// deduplication.
func (p *Packet) derive() *Packet {
	return &Packet{
		msgType:       p.msgType,
		tableName:     p.tableName,
		messageID:     NewMessageID(p.msgType),
		timestampUnix: p.timestampUnix,
		compression:   p.compression,
		schema:        p.schema,
		codec:         rowcodec.New(zerolog.Nop()),
	}
}

// failed derives an error-carrier sibling.
func (p *Packet) failed(msg string) *Packet {
	out := p.derive()
	out.errMsg = truncateUTF8(msg, MaxErrorLen)
	return out
}

// truncateUTF8 cuts s to at most max bytes without splitting a rune.
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
