package packet

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/tabwire/tabwire/pkg/schema"
)

// packetJSON is the inspection/export shape. JSON is one-way; the msgpack
// envelope stays the wire contract.
type packetJSON struct {
	MsgType       string         `json:"msg_type"`
	TableName     string         `json:"table_name"`
	MessageID     string         `json:"message_id"`
	TimestampUnix int64          `json:"timestamp_unix"`
	Compression   string         `json:"compression"`
	PartNumber    int            `json:"part_number,omitempty"`
	TotalParts    int            `json:"total_parts,omitempty"`
	Schema        []schema.Field `json:"schema,omitempty"`
	RowCount      int            `json:"row_count"`
	Rows          []schema.Row   `json:"rows,omitempty"`
	Error         string         `json:"error,omitempty"`
	Alarm         *Alarm         `json:"alarm,omitempty"`
}

// MarshalJSON renders the packet for inspection and bridging. Null values
// render as JSON null.
func (p *Packet) MarshalJSON() ([]byte, error) {
	out := packetJSON{
		MsgType:       string(p.msgType),
		TableName:     p.tableName,
		MessageID:     p.messageID,
		TimestampUnix: p.timestampUnix,
		Compression:   string(p.compression),
		PartNumber:    p.partNumber,
		TotalParts:    p.totalParts,
		RowCount:      len(p.rows),
		Rows:          p.rows,
		Error:         p.errMsg,
		Alarm:         p.alarm,
	}
	if p.schema != nil {
		out.Schema = p.schema.Fields()
	}
	return json.Marshal(out)
}

// String summarizes the packet for log lines.
func (p *Packet) String() string {
	if p.IsErrored() {
		return fmt.Sprintf("%s %s id=%s error=%q", p.msgType, p.tableName, p.messageID, p.errMsg)
	}
	return fmt.Sprintf("%s %s id=%s rows=%d", p.msgType, p.tableName, p.messageID, len(p.rows))
}
