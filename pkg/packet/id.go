package packet

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// idPrefixes maps message types to their id prefix.
var idPrefixes = map[MsgType]string{
	MsgReference: "REF",
	MsgRequest:   "REQ",
	MsgResponse:  "RESP",
	MsgAlarm:     "ALARM",
}

// NewMessageID generates a message id of the form PREFIX-YEAR-UUID8, e.g.
// REF-2026-1a2b3c4d. Ids are generated once at construction and stay
// stable across retransmission; consumers key deduplication on them.
func NewMessageID(msgType MsgType) string {
	prefix, ok := idPrefixes[msgType]
	if !ok {
		prefix = "MSG"
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UTC().Year(), uuid.NewString()[:8])
}
