package packet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tabwire/tabwire/internal/wire"
	"github.com/tabwire/tabwire/pkg/rowcodec"
	"github.com/tabwire/tabwire/pkg/schema"
)

// DefaultMaxPartBytes keeps split parts under typical 4MB broker frame
// limits with headroom for envelope overhead.
const DefaultMaxPartBytes = 3800 * 1024

// partSlack covers the envelope fields that vary between the overhead
// probe and a real part: part stamps, row_count digits, msgpack array
// headers.
const partSlack = 64

// Split partitions a packet's rows into parts whose estimated encoded
// size stays under maxBytes. Part ids derive from the source id
// (<id>-P<n>) and parts carry 1-based part_number/total_parts stamps.
// Packets that already fit, including header-only ones, split into
// themselves. The estimate uses uncompressed sizes; compression only
// shrinks parts further.
func Split(p *Packet, maxBytes int) ([]*Packet, error) {
	if p == nil {
		return nil, fmt.Errorf("packet: nil packet")
	}
	if p.IsErrored() && p.msgType != MsgAlarm {
		return nil, fmt.Errorf("packet: cannot split an error carrier")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPartBytes
	}
	if p.RowCount() == 0 {
		return []*Packet{p}, nil
	}

	overhead, err := partOverhead(p)
	if err != nil {
		return nil, err
	}
	budget := maxBytes - overhead - partSlack
	if budget <= 0 {
		return nil, newPacketError(ErrCodeTooLarge,
			"part budget %d below envelope overhead %d", maxBytes, overhead+partSlack)
	}

	var chunks [][]schema.Row
	var cur []schema.Row
	curBytes := 0
	for i, row := range p.rows {
		block, err := wire.EncodeRowBlock([]schema.Row{row})
		if err != nil {
			return nil, wrapPacketError(ErrCodeBadEnvelope, "row block", err)
		}
		n := len(block)
		if n > budget {
			return nil, newPacketError(ErrCodeTooLarge,
				"row %d alone exceeds part budget %d", i, maxBytes)
		}
		if curBytes+n > budget && len(cur) > 0 {
			chunks = append(chunks, cur)
			cur = nil
			curBytes = 0
		}
		cur = append(cur, row)
		curBytes += n
	}
	chunks = append(chunks, cur)

	if len(chunks) == 1 {
		return []*Packet{p}, nil
	}

	parts := make([]*Packet, len(chunks))
	for i, chunk := range chunks {
		id := fmt.Sprintf("%s-P%d", p.messageID, i+1)
		if len(id) > MaxMessageIDLen {
			return nil, newPacketError(ErrCodeFieldTooLong,
				"part id %q exceeds %d bytes", id, MaxMessageIDLen)
		}
		parts[i] = &Packet{
			msgType:       p.msgType,
			tableName:     p.tableName,
			messageID:     id,
			timestampUnix: p.timestampUnix,
			compression:   p.compression,
			partNumber:    i + 1,
			totalParts:    len(chunks),
			schema:        p.schema,
			rows:          chunk,
			codec:         rowcodec.New(zerolog.Nop()),
		}
	}
	return parts, nil
}

// partOverhead measures the encoded size of the packet with its row set
// emptied.
func partOverhead(p *Packet) (int, error) {
	env := &wire.Envelope{
		MsgType:       string(p.msgType),
		TableName:     p.tableName,
		MessageID:     p.messageID,
		TimestampUnix: p.timestampUnix,
		Compression:   string(p.compression),
		Checksum:      wire.BlockChecksum(nil),
	}
	if p.schema != nil {
		env.Schema = p.schema.Fields()
	}
	data, err := wire.Marshal(env)
	if err != nil {
		return 0, wrapPacketError(ErrCodeBadEnvelope, "overhead probe", err)
	}
	return len(data), nil
}

// Join reassembles split parts into the original packet, restoring the
// base message id. Parts may arrive in any order; gaps, duplicates,
// foreign parts and metadata drift all fail with PartMismatch.
func Join(parts []*Packet) (*Packet, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("packet: no parts to join")
	}
	if len(parts) == 1 && parts[0].totalParts == 0 {
		return parts[0].Clone(), nil
	}

	total := parts[0].totalParts
	if total != len(parts) {
		return nil, newPacketError(ErrCodePartMismatch,
			"have %d parts, total_parts declares %d", len(parts), total)
	}

	baseID, _, ok := splitPartSuffix(parts[0].messageID)
	if !ok {
		return nil, newPacketError(ErrCodePartMismatch,
			"part id %q has no part suffix", parts[0].messageID)
	}

	ordered := make([]*Packet, total)
	for _, part := range parts {
		if part.IsErrored() {
			return nil, fmt.Errorf("packet: cannot join error carrier %q", part.messageID)
		}
		if part.totalParts != total {
			return nil, newPacketError(ErrCodePartMismatch,
				"part %q declares total_parts %d, expected %d", part.messageID, part.totalParts, total)
		}
		if part.partNumber < 1 || part.partNumber > total {
			return nil, newPacketError(ErrCodePartMismatch,
				"part %q has part_number %d out of 1..%d", part.messageID, part.partNumber, total)
		}
		if ordered[part.partNumber-1] != nil {
			return nil, newPacketError(ErrCodePartMismatch,
				"duplicate part_number %d", part.partNumber)
		}
		base, n, ok := splitPartSuffix(part.messageID)
		if !ok || base != baseID || n != part.partNumber {
			return nil, newPacketError(ErrCodePartMismatch,
				"part id %q does not match base %q part %d", part.messageID, baseID, part.partNumber)
		}
		first := parts[0]
		if part.msgType != first.msgType || part.tableName != first.tableName {
			return nil, newPacketError(ErrCodePartMismatch,
				"part %q metadata differs from sibling parts", part.messageID)
		}
		if !schemasMatch(first.schema, part.schema) {
			return nil, newPacketError(ErrCodePartMismatch,
				"part %q schema differs from sibling parts", part.messageID)
		}
		ordered[part.partNumber-1] = part
	}

	out := &Packet{
		msgType:       ordered[0].msgType,
		tableName:     ordered[0].tableName,
		messageID:     baseID,
		timestampUnix: ordered[0].timestampUnix,
		compression:   ordered[0].compression,
		schema:        ordered[0].schema,
		codec:         rowcodec.New(zerolog.Nop()),
	}
	for _, part := range ordered {
		out.rows = append(out.rows, part.rows...)
	}
	return out, nil
}

func schemasMatch(a, b *schema.Schema) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(b)
}

// splitPartSuffix parses "<base>-P<n>" part ids.
func splitPartSuffix(id string) (string, int, bool) {
	idx := strings.LastIndex(id, "-P")
	if idx <= 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(id[idx+2:])
	if err != nil || n < 1 {
		return "", 0, false
	}
	return id[:idx], n, true
}
