package packet

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tabwire/tabwire/internal/wire"
	"github.com/tabwire/tabwire/pkg/compress"
	"github.com/tabwire/tabwire/pkg/rowcodec"
	"github.com/tabwire/tabwire/pkg/schema"
)

// DefaultMinCompressSize skips compression for row blocks smaller than
// this; tiny blocks tend to grow under framing overhead.
const DefaultMinCompressSize = 512

// Encoder renders packets to their wire form.
type Encoder struct {
	registry        *compress.Registry
	logger          zerolog.Logger
	minCompressSize int
}

// NewEncoder creates an encoder using the given codec registry.
func NewEncoder(logger zerolog.Logger, registry *compress.Registry) *Encoder {
	return &Encoder{
		registry:        registry,
		logger:          logger.With().Str("component", "packet-encoder").Logger(),
		minCompressSize: DefaultMinCompressSize,
	}
}

// SetMinCompressSize adjusts the compression threshold. Zero compresses
// every non-empty block.
func (e *Encoder) SetMinCompressSize(n int) {
	if n < 0 {
		n = 0
	}
	e.minCompressSize = n
}

// Encode produces the packet's encoded envelope. Error carriers refuse to
// encode: local failures stay local, and intentional error reports travel
// as alarm packets instead.
func (e *Encoder) Encode(p *Packet) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("packet: nil packet")
	}
	if p.IsErrored() && p.msgType != MsgAlarm {
		return nil, newPacketError(ErrCodeCannotEncodeError,
			"packet carries error %q", p.errMsg)
	}

	env := &wire.Envelope{
		MsgType:       string(p.msgType),
		TableName:     p.tableName,
		MessageID:     p.messageID,
		TimestampUnix: p.timestampUnix,
		Compression:   string(compress.ModeNone),
		PartNumber:    p.partNumber,
		TotalParts:    p.totalParts,
	}

	if p.msgType == MsgAlarm {
		if p.alarm == nil {
			return nil, newPacketError(ErrCodeBadEnvelope, "alarm packet without alarm payload")
		}
		env.Alarm = &wire.Alarm{
			Severity: string(p.alarm.Severity),
			Code:     p.alarm.Code,
			Message:  p.alarm.Message,
		}
	} else {
		if p.schema != nil {
			env.Schema = p.schema.Fields()
		}
		block, err := wire.EncodeRowBlock(p.rows)
		if err != nil {
			return nil, wrapPacketError(ErrCodeBadEnvelope, "row block", err)
		}
		env.RowCount = len(p.rows)
		env.Checksum = wire.BlockChecksum(block)

		payload := block
		if p.compression != compress.ModeNone && len(block) >= e.minCompressSize {
			codec, err := e.registry.Get(p.compression)
			if err != nil {
				return nil, wrapPacketError(ErrCodeUnknownCompression,
					fmt.Sprintf("compression %q", p.compression), err)
			}
			payload, err = codec.Compress(block)
			if err != nil {
				return nil, wrapPacketError(ErrCodeCompressionFailed,
					fmt.Sprintf("compression %q", p.compression), err)
			}
			env.Compression = string(p.compression)
		} else if p.compression != compress.ModeNone {
			e.logger.Debug().
				Int("block_bytes", len(block)).
				Int("threshold", e.minCompressSize).
				Msg("Row block below compression threshold, sending uncompressed")
		}
		env.Payload = payload
	}

	data, err := wire.Marshal(env)
	if err != nil {
		if errors.Is(err, wire.ErrTooLarge) {
			return nil, wrapPacketError(ErrCodeTooLarge, "envelope", err)
		}
		return nil, wrapPacketError(ErrCodeBadEnvelope, "marshal", err)
	}

	e.logger.Debug().
		Str("msg_type", string(p.msgType)).
		Str("table", p.tableName).
		Str("message_id", p.messageID).
		Int("rows", len(p.rows)).
		Str("compression", env.Compression).
		Int("bytes", len(data)).
		Msg("Encoded packet")
	return data, nil
}

// Decoder materializes packets from their wire form.
type Decoder struct {
	registry *compress.Registry
	rows     *rowcodec.Codec
	logger   zerolog.Logger

	packetsDecoded uint64
	packetsFailed  uint64
}

// NewDecoder creates a decoder with the reject length policy.
func NewDecoder(logger zerolog.Logger, registry *compress.Registry) *Decoder {
	return NewDecoderWithPolicy(logger, registry, rowcodec.LengthReject)
}

// NewDecoderWithPolicy creates a decoder with an explicit length policy
// for oversized bounded TEXT values.
func NewDecoderWithPolicy(logger zerolog.Logger, registry *compress.Registry, policy rowcodec.LengthPolicy) *Decoder {
	scoped := logger.With().Str("component", "packet-decoder").Logger()
	return &Decoder{
		registry: registry,
		rows:     rowcodec.NewWithPolicy(scoped, policy),
		logger:   scoped,
	}
}

// Decode validates and materializes one packet. The check order is fixed:
// envelope, metadata bounds, closed sets, schema, checksum, rows. Unknown
// compression fails before any payload is touched, and row
// materialization fails fast on the first bad row.
func (d *Decoder) Decode(data []byte) (*Packet, error) {
	p, err := d.decode(data)
	if err != nil {
		d.packetsFailed++
		return nil, err
	}
	d.packetsDecoded++
	return p, nil
}

func (d *Decoder) decode(data []byte) (*Packet, error) {
	env, err := wire.Unmarshal(data)
	if err != nil {
		if errors.Is(err, wire.ErrTooLarge) {
			return nil, wrapPacketError(ErrCodeTooLarge, "envelope", err)
		}
		return nil, wrapPacketError(ErrCodeBadEnvelope, "envelope", err)
	}

	if err := checkEnvelopeBounds(env); err != nil {
		return nil, err
	}

	mt, err := ParseMsgType(env.MsgType)
	if err != nil {
		return nil, err
	}
	mode, err := compress.ParseMode(env.Compression)
	if err != nil {
		return nil, wrapPacketError(ErrCodeUnknownCompression,
			fmt.Sprintf("compression %q", env.Compression), err)
	}

	var s *schema.Schema
	if len(env.Schema) > 0 {
		s = schema.New(env.Schema...)
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("packet: schema: %w", err)
		}
	}

	p := &Packet{
		msgType:       mt,
		tableName:     env.TableName,
		messageID:     env.MessageID,
		timestampUnix: env.TimestampUnix,
		compression:   mode,
		partNumber:    env.PartNumber,
		totalParts:    env.TotalParts,
		schema:        s,
		codec:         rowcodec.New(zerolog.Nop()),
	}

	// An alarm makes the envelope an error report: any rows riding along
	// are untrustworthy and get discarded.
	if env.Alarm != nil || mt == MsgAlarm {
		if env.Alarm == nil {
			return nil, newPacketError(ErrCodeBadEnvelope, "alarm packet without alarm payload")
		}
		sev, err := ParseSeverity(env.Alarm.Severity)
		if err != nil {
			return nil, wrapPacketError(ErrCodeBadEnvelope, "alarm", err)
		}
		alarm := Alarm{Severity: sev, Code: env.Alarm.Code, Message: env.Alarm.Message}
		if err := alarm.Validate(); err != nil {
			var perr *PacketError
			if errors.As(err, &perr) {
				return nil, err
			}
			return nil, wrapPacketError(ErrCodeBadEnvelope, "alarm", err)
		}
		if len(env.Payload) > 0 || env.RowCount > 0 {
			d.logger.Warn().
				Str("message_id", env.MessageID).
				Int("row_count", env.RowCount).
				Msg("Discarding rows on alarm envelope")
		}
		p.alarm = &alarm
		p.errMsg = alarm.Message
		p.rows = nil
		return p, nil
	}

	if len(env.Payload) == 0 {
		return nil, newPacketError(ErrCodeBadEnvelope, "missing row payload")
	}
	codec, err := d.registry.Get(mode)
	if err != nil {
		return nil, wrapPacketError(ErrCodeUnknownCompression,
			fmt.Sprintf("compression %q", mode), err)
	}
	block, err := codec.Decompress(env.Payload)
	if err != nil {
		return nil, wrapPacketError(ErrCodeCompressionFailed,
			fmt.Sprintf("compression %q", mode), err)
	}

	if sum := wire.BlockChecksum(block); sum != env.Checksum {
		return nil, newPacketError(ErrCodeChecksumMismatch,
			"row block checksum %s, envelope declares %s", sum, env.Checksum)
	}

	raws, err := wire.DecodeRowBlock(block)
	if err != nil {
		return nil, wrapPacketError(ErrCodeBadEnvelope, "row block", err)
	}
	if len(raws) != env.RowCount {
		return nil, newPacketError(ErrCodeBadEnvelope,
			"row_count %d, row block holds %d", env.RowCount, len(raws))
	}

	if len(raws) > 0 {
		if s == nil {
			return nil, newPacketError(ErrCodeBadEnvelope, "rows without schema")
		}
		rawValues := make([][]schema.Value, len(raws))
		for i, r := range raws {
			rawValues[i] = r
		}
		rows, err := d.rows.DecodeAll(s, rawValues)
		if err != nil {
			return nil, fmt.Errorf("packet: %w", err)
		}
		p.rows = rows
	}

	d.logger.Debug().
		Str("msg_type", string(mt)).
		Str("table", env.TableName).
		Str("message_id", env.MessageID).
		Int("rows", len(p.rows)).
		Msg("Decoded packet")
	return p, nil
}

// Stats reports decode counters.
func (d *Decoder) Stats() map[string]uint64 {
	return map[string]uint64{
		"packets_decoded": d.packetsDecoded,
		"packets_failed":  d.packetsFailed,
	}
}

func checkEnvelopeBounds(env *wire.Envelope) error {
	if env.TableName == "" {
		return newPacketError(ErrCodeBadEnvelope, "table_name required")
	}
	if len(env.TableName) > MaxTableNameLen {
		return newPacketError(ErrCodeFieldTooLong, "table_name exceeds %d bytes", MaxTableNameLen)
	}
	if env.MessageID == "" {
		return newPacketError(ErrCodeBadEnvelope, "message_id required")
	}
	if len(env.MessageID) > MaxMessageIDLen {
		return newPacketError(ErrCodeFieldTooLong, "message_id exceeds %d bytes", MaxMessageIDLen)
	}
	if len(env.Compression) > MaxCompressionLen {
		return newPacketError(ErrCodeFieldTooLong, "compression exceeds %d bytes", MaxCompressionLen)
	}
	return nil
}
