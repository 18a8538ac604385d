package packet

import (
	"fmt"
	"strings"
)

// Severity grades an alarm.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ParseSeverity validates a severity name. The empty string means
// SeverityInfo.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	switch sev {
	case "":
		return SeverityInfo, nil
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return sev, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// MaxAlarmCodeLen bounds the machine-readable alarm code.
const MaxAlarmCodeLen = 64

// Alarm is a structured error report. Alarm packets are the only packets
// that travel with an error instead of rows.
type Alarm struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
}

// Validate checks severity membership and field bounds. The message is
// required: it doubles as the carrying packet's error slot, and an alarm
// without one would not register as errored.
func (a Alarm) Validate() error {
	if _, err := ParseSeverity(string(a.Severity)); err != nil {
		return err
	}
	if a.Code == "" {
		return fmt.Errorf("alarm code required")
	}
	if len(a.Code) > MaxAlarmCodeLen {
		return newPacketError(ErrCodeFieldTooLong, "alarm code exceeds %d bytes", MaxAlarmCodeLen)
	}
	if a.Message == "" {
		return fmt.Errorf("alarm message required")
	}
	if len(a.Message) > MaxErrorLen {
		return newPacketError(ErrCodeFieldTooLong, "alarm message exceeds %d bytes", MaxErrorLen)
	}
	return nil
}
