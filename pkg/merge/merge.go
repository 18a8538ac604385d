// Package merge combines two same-schema packets into one. Row identity
// comes from the schema's key fields (or an explicit override), and the
// strategy decides which side wins when identities collide.
package merge

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tabwire/tabwire/pkg/packet"
	"github.com/tabwire/tabwire/pkg/schema"
)

// Strategy names a merge policy.
type Strategy string

const (
	// Union keeps every distinct identity from both sides; the left row
	// wins a collision, and duplicates within one side collapse to the
	// first occurrence.
	Union Strategy = "union"
	// Intersection keeps identities present on both sides, taking the
	// left row.
	Intersection Strategy = "intersection"
	// LeftPriority keeps the left side verbatim; the right contributes
	// only identities the left lacks.
	LeftPriority Strategy = "left_priority"
	// RightPriority mirrors LeftPriority.
	RightPriority Strategy = "right_priority"
	// Append concatenates rows with no identity checks.
	Append Strategy = "append"
)

// ParseStrategy validates a strategy name. The empty string means Union.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case "":
		return Union, nil
	case Union, Intersection, LeftPriority, RightPriority, Append:
		return st, nil
	default:
		return "", fmt.Errorf("merge: unknown strategy %q", s)
	}
}

// Options selects the strategy and, optionally, overrides which fields
// form row identity.
type Options struct {
	Strategy Strategy `json:"strategy" mapstructure:"strategy"`

	// Keys overrides the schema's is_key fields.
	Keys []string `json:"keys,omitempty" mapstructure:"keys"`
}

// Stats reports what the merge did. Conflicts counts input rows that were
// suppressed in favor of an emitted row with the same identity.
type Stats struct {
	LeftRows   int
	RightRows  int
	OutputRows int
	Conflicts  int
}

// Merger merges packets.
type Merger struct {
	logger zerolog.Logger
}

// New creates a merger.
func New(logger zerolog.Logger) *Merger {
	return &Merger{logger: logger.With().Str("component", "merge").Logger()}
}

// Merge combines left and right into a new packet with a fresh message
// id. Both packets must be healthy, carry schemas, and the schemas must
// be equal. The output keeps the left packet's type, table and
// compression, and the newer of the two event timestamps.
func (m *Merger) Merge(left, right *packet.Packet, opts Options) (*packet.Packet, Stats, error) {
	var stats Stats
	if left == nil || right == nil {
		return nil, stats, fmt.Errorf("merge: nil packet")
	}
	if left.IsErrored() || right.IsErrored() {
		return nil, stats, fmt.Errorf("merge: cannot merge error carriers")
	}
	if left.Schema() == nil || right.Schema() == nil {
		return nil, stats, fmt.Errorf("merge: both packets need a schema")
	}
	s := left.Schema()
	if !s.Equal(right.Schema()) {
		return nil, stats, fmt.Errorf("merge: schemas differ")
	}
	strat, err := ParseStrategy(string(opts.Strategy))
	if err != nil {
		return nil, stats, err
	}

	stats.LeftRows = left.RowCount()
	stats.RightRows = right.RowCount()

	var rows []schema.Row
	switch strat {
	case Append:
		rows = append(rows, left.Rows()...)
		rows = append(rows, right.Rows()...)
	default:
		keyIdx, kerr := keyIndexes(s, opts.Keys)
		if kerr != nil {
			return nil, stats, kerr
		}
		rows = m.mergeKeyed(strat, keyIdx, left.Rows(), right.Rows(), &stats)
	}

	out, err := packet.New(left.MsgType(), left.TableName())
	if err != nil {
		return nil, stats, fmt.Errorf("merge: %w", err)
	}
	if err := out.SetSchema(s); err != nil {
		return nil, stats, fmt.Errorf("merge: %w", err)
	}
	if err := out.SetCompression(string(left.Compression())); err != nil {
		return nil, stats, fmt.Errorf("merge: %w", err)
	}
	ts := left.TimestampUnix()
	if right.TimestampUnix() > ts {
		ts = right.TimestampUnix()
	}
	out.SetTimestampUnix(ts)

	for i, row := range rows {
		if err := out.AppendRow(row); err != nil {
			return nil, stats, fmt.Errorf("merge: output row %d: %w", i, err)
		}
	}
	stats.OutputRows = out.RowCount()

	m.logger.Debug().
		Str("strategy", string(strat)).
		Int("left", stats.LeftRows).
		Int("right", stats.RightRows).
		Int("out", stats.OutputRows).
		Int("conflicts", stats.Conflicts).
		Msg("Merged packets")
	return out, stats, nil
}

func (m *Merger) mergeKeyed(strat Strategy, keyIdx []int, left, right []schema.Row, stats *Stats) []schema.Row {
	var rows []schema.Row
	switch strat {
	case Union:
		seen := make(map[string]bool)
		for _, row := range left {
			k := rowKey(row, keyIdx)
			if seen[k] {
				stats.Conflicts++
				continue
			}
			seen[k] = true
			rows = append(rows, row)
		}
		for _, row := range right {
			k := rowKey(row, keyIdx)
			if seen[k] {
				stats.Conflicts++
				continue
			}
			seen[k] = true
			rows = append(rows, row)
		}

	case LeftPriority, RightPriority:
		primary, filler := left, right
		if strat == RightPriority {
			primary, filler = right, left
		}
		taken := make(map[string]bool)
		for _, row := range primary {
			taken[rowKey(row, keyIdx)] = true
			rows = append(rows, row)
		}
		for _, row := range filler {
			k := rowKey(row, keyIdx)
			if taken[k] {
				stats.Conflicts++
				continue
			}
			taken[k] = true
			rows = append(rows, row)
		}

	case Intersection:
		rightKeys := make(map[string]bool, len(right))
		for _, row := range right {
			rightKeys[rowKey(row, keyIdx)] = true
		}
		emitted := make(map[string]bool)
		for _, row := range left {
			k := rowKey(row, keyIdx)
			if !rightKeys[k] {
				continue
			}
			if emitted[k] {
				stats.Conflicts++
				continue
			}
			emitted[k] = true
			rows = append(rows, row)
		}
		for _, row := range right {
			if emitted[rowKey(row, keyIdx)] {
				stats.Conflicts++
			}
		}
	}
	return rows
}

// keyIndexes resolves row identity fields: an explicit override, or the
// schema's is_key fields.
func keyIndexes(s *schema.Schema, override []string) ([]int, error) {
	if len(override) > 0 {
		idx := make([]int, len(override))
		for i, name := range override {
			j, ok := s.Index(name)
			if !ok {
				return nil, fmt.Errorf("merge: unknown key field %q", name)
			}
			idx[i] = j
		}
		return idx, nil
	}
	idx := s.KeyFields()
	if len(idx) == 0 {
		return nil, fmt.Errorf("merge: schema declares no key fields")
	}
	return idx, nil
}

// rowKey builds a composite identity string. Null key values get a
// sentinel token, so two rows with null in the same key position share an
// identity.
func rowKey(row schema.Row, keyIdx []int) string {
	parts := make([]string, len(keyIdx))
	for i, idx := range keyIdx {
		if idx >= len(row) || row[idx].IsNull() {
			parts[i] = schema.NullText
			continue
		}
		parts[i] = row[idx].Text()
	}
	return strings.Join(parts, "\x1f")
}
