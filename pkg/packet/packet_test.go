package packet

import (
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabwire/tabwire/pkg/filter"
	"github.com/tabwire/tabwire/pkg/mask"
	"github.com/tabwire/tabwire/pkg/rowcodec"
	"github.com/tabwire/tabwire/pkg/schema"
	"github.com/tabwire/tabwire/pkg/sorting"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s := schema.New(
		schema.Field{Name: "id", Type: schema.TypeInteger, IsKey: true},
		schema.Field{Name: "name", Type: schema.TypeText, Length: 32},
		schema.Field{Name: "ssn", Type: schema.TypeText, Length: 11},
		schema.Field{Name: "balance", Type: schema.TypeDecimal, Precision: 12, Scale: 2},
	)
	require.NoError(t, s.Validate())
	return s
}

func testPacket(t *testing.T) *Packet {
	t.Helper()
	p, err := New(MsgReference, "accounts")
	require.NoError(t, err)
	require.NoError(t, p.SetSchema(testSchema(t)))
	require.NoError(t, p.AppendTextRow("5", "ada", "111-22-3333", "10.50"))
	require.NoError(t, p.AppendTextRow("10", "bob", "444-55-6666", "99.99"))
	require.NoError(t, p.AppendTextRow("15", "eve", `\N`, "0.00"))
	return p
}

func TestNew(t *testing.T) {
	p, err := New(MsgReference, "accounts")
	require.NoError(t, err)

	assert.Equal(t, MsgReference, p.MsgType())
	assert.Equal(t, "accounts", p.TableName())
	assert.True(t, strings.HasPrefix(p.MessageID(), "REF-"))
	assert.Len(t, p.MessageID(), 17)
	assert.Positive(t, p.TimestampUnix())
	assert.Equal(t, "none", string(p.Compression()))
	assert.Zero(t, p.RowCount())
	assert.False(t, p.IsErrored())
}

func TestNewValidation(t *testing.T) {
	_, err := New("gossip", "accounts")
	var perr *PacketError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, ErrCodeUnknownMsgType, perr.Code)

	_, err = New(MsgReference, "")
	require.Error(t, err)

	_, err = New(MsgReference, strings.Repeat("t", MaxTableNameLen+1))
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, ErrCodeFieldTooLong, perr.Code)
}

func TestParseMsgType(t *testing.T) {
	for _, in := range []string{"reference", "REQUEST", " response ", "alarm"} {
		_, err := ParseMsgType(in)
		assert.NoError(t, err, in)
	}
	_, err := ParseMsgType("snapshot")
	require.Error(t, err)
}

func TestMessageIDPrefixes(t *testing.T) {
	tests := []struct {
		msgType MsgType
		prefix  string
	}{
		{MsgReference, "REF-"},
		{MsgRequest, "REQ-"},
		{MsgResponse, "RESP-"},
		{MsgAlarm, "ALARM-"},
	}
	for _, tt := range tests {
		id := NewMessageID(tt.msgType)
		assert.True(t, strings.HasPrefix(id, tt.prefix), id)
		assert.LessOrEqual(t, len(id), MaxMessageIDLen)
	}
}

func TestSetSchema(t *testing.T) {
	p, err := New(MsgReference, "accounts")
	require.NoError(t, err)

	require.Error(t, p.SetSchema(nil))

	bad := schema.New(
		schema.Field{Name: "a", Type: schema.TypeText},
		schema.Field{Name: "A", Type: schema.TypeText},
	)
	err = p.SetSchema(bad)
	var serr *schema.SchemaError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, schema.ErrCodeDuplicateField, serr.Code)

	require.NoError(t, p.SetSchema(testSchema(t)))
	require.NoError(t, p.AppendTextRow("1", "x", "y", "1.00"))

	// Immutable once rows exist.
	err = p.SetSchema(testSchema(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "immutable")
}

func TestAppendRow(t *testing.T) {
	p, err := New(MsgReference, "accounts")
	require.NoError(t, err)

	// No schema yet.
	require.Error(t, p.AppendTextRow("1", "x", "y", "1.00"))

	require.NoError(t, p.SetSchema(testSchema(t)))

	// Values are canonicalized on append.
	require.NoError(t, p.AppendTextRow("007", "ada", "111-22-3333", "10.5"))
	row := p.Rows()[0]
	assert.Equal(t, "7", row[0].Text())
	assert.Equal(t, "10.50", row[3].Text())

	// Arity and type defects surface as RowError.
	err = p.AppendTextRow("1", "x")
	var rerr *rowcodec.RowError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, rowcodec.ErrCodeArity, rerr.Code)

	err = p.AppendTextRow("NaN?", "x", "y", "1.00")
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, rowcodec.ErrCodeTypeMismatch, rerr.Code)
}

func TestSetError(t *testing.T) {
	p := testPacket(t)
	require.Equal(t, 3, p.RowCount())

	require.Error(t, p.SetError(""))

	err := p.SetError(strings.Repeat("e", MaxErrorLen+1))
	var perr *PacketError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, ErrCodeFieldTooLong, perr.Code)

	require.NoError(t, p.SetError("upstream feed stalled"))
	assert.True(t, p.IsErrored())
	assert.Equal(t, "upstream feed stalled", p.Err())
	assert.Zero(t, p.RowCount())

	// No new rows on an error carrier.
	require.Error(t, p.AppendTextRow("1", "x", "y", "1.00"))
}

func TestSetCompression(t *testing.T) {
	p := testPacket(t)

	require.NoError(t, p.SetCompression("zstd"))
	assert.Equal(t, "zstd", string(p.Compression()))

	err := p.SetCompression("zzz-unknown")
	var perr *PacketError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, ErrCodeUnknownCompression, perr.Code)

	err = p.SetCompression(strings.Repeat("z", MaxCompressionLen+1))
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, ErrCodeFieldTooLong, perr.Code)
}

func TestSetMessageID(t *testing.T) {
	p := testPacket(t)

	require.NoError(t, p.SetMessageID("REF-2026-cafecafe"))
	assert.Equal(t, "REF-2026-cafecafe", p.MessageID())

	require.Error(t, p.SetMessageID(""))

	err := p.SetMessageID(strings.Repeat("i", MaxMessageIDLen+1))
	var perr *PacketError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, ErrCodeFieldTooLong, perr.Code)
}

func TestFilterDerivesNewPacket(t *testing.T) {
	p := testPacket(t)
	eng := filter.NewEngine(zerolog.Nop())

	out, err := p.Filter(eng, []filter.Spec{{Field: "id", Op: ">=", Value: "10"}})
	require.NoError(t, err)

	assert.Equal(t, 2, out.RowCount())
	assert.Equal(t, "10", out.Rows()[0][0].Text())
	assert.Equal(t, "15", out.Rows()[1][0].Text())

	// Derived identity: same stream, new logical message.
	assert.Equal(t, p.TableName(), out.TableName())
	assert.Equal(t, p.MsgType(), out.MsgType())
	assert.Equal(t, p.TimestampUnix(), out.TimestampUnix())
	assert.NotEqual(t, p.MessageID(), out.MessageID())

	// Source untouched.
	assert.Equal(t, 3, p.RowCount())
}

func TestFilterFailureReturnsCarrier(t *testing.T) {
	p := testPacket(t)
	eng := filter.NewEngine(zerolog.Nop())

	out, err := p.Filter(eng, []filter.Spec{{Field: "ghost", Op: "eq", Value: "1"}})
	require.Error(t, err)
	var ferr *filter.FilterError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, filter.ErrCodeUnknownField, ferr.Code)

	require.NotNil(t, out)
	assert.True(t, out.IsErrored())
	assert.Zero(t, out.RowCount())
	assert.Contains(t, out.Err(), "filter failed")
}

func TestFilterLenient(t *testing.T) {
	p := testPacket(t)
	eng := filter.NewEngine(zerolog.Nop())

	// ssn is null on one row; like never matches null but never errors
	// either, so nothing is dropped for errors here.
	out, dropped, err := p.FilterLenient(eng, []filter.Spec{{Field: "ssn", Op: "like", Value: "111%"}})
	require.NoError(t, err)
	assert.Zero(t, dropped)
	assert.Equal(t, 1, out.RowCount())
}

func TestMaskDerivesNewPacket(t *testing.T) {
	p := testPacket(t)
	eng := mask.NewEngine(zerolog.Nop())

	out, err := p.Mask(eng, mask.Config{Fields: []string{"ssn"}, MaskChar: "*", VisibleChars: 4})
	require.NoError(t, err)

	assert.Equal(t, "*******3333", out.Rows()[0][2].Text())
	assert.True(t, out.Rows()[2][2].IsNull())
	assert.NotEqual(t, p.MessageID(), out.MessageID())

	// Source rows unmasked.
	assert.Equal(t, "111-22-3333", p.Rows()[0][2].Text())
}

func TestSortDerivesNewPacket(t *testing.T) {
	p := testPacket(t)

	out, err := p.Sort([]sorting.Spec{{Field: "id", Direction: sorting.Desc}})
	require.NoError(t, err)
	assert.Equal(t, "15", out.Rows()[0][0].Text())
	assert.Equal(t, "5", out.Rows()[2][0].Text())
	assert.Equal(t, "5", p.Rows()[0][0].Text())
}

func TestTransformsRequireHealthyPacket(t *testing.T) {
	p := testPacket(t)
	require.NoError(t, p.SetError("broken"))

	feng := filter.NewEngine(zerolog.Nop())
	_, err := p.Filter(feng, nil)
	require.Error(t, err)

	meng := mask.NewEngine(zerolog.Nop())
	_, err = p.Mask(meng, mask.Config{Fields: []string{"ssn"}})
	require.Error(t, err)

	_, err = p.Sort(nil)
	require.Error(t, err)
}

func TestClone(t *testing.T) {
	p := testPacket(t)
	c := p.Clone()

	assert.Equal(t, p.MessageID(), c.MessageID())
	assert.Equal(t, p.RowCount(), c.RowCount())

	// Deep rows: mutating the clone's slice leaves the source alone.
	c.rows[0][0] = schema.String("999")
	assert.Equal(t, "5", p.Rows()[0][0].Text())
}

func TestNewAlarm(t *testing.T) {
	p, err := NewAlarm("accounts", Alarm{Code: "FEED_DOWN", Message: "upstream gone"})
	require.NoError(t, err)

	assert.Equal(t, MsgAlarm, p.MsgType())
	assert.True(t, p.IsErrored())
	assert.Equal(t, "upstream gone", p.Err())

	a := p.Alarm()
	require.NotNil(t, a)
	assert.Equal(t, SeverityInfo, a.Severity)
	assert.Equal(t, "FEED_DOWN", a.Code)

	// Alarm packets never take schema or rows.
	require.Error(t, p.SetSchema(testSchema(t)))
	require.Error(t, p.AppendTextRow("1"))
}

func TestNewAlarmValidation(t *testing.T) {
	_, err := NewAlarm("accounts", Alarm{Severity: "fatal", Code: "X", Message: "m"})
	require.Error(t, err)

	_, err = NewAlarm("accounts", Alarm{Code: "", Message: "m"})
	require.Error(t, err)

	// A message-less alarm would carry an empty error slot and read as
	// healthy; rejected up front instead.
	_, err = NewAlarm("accounts", Alarm{Code: "X", Message: ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message required")

	_, err = NewAlarm("accounts", Alarm{Code: "X", Message: strings.Repeat("m", MaxErrorLen+1)})
	require.Error(t, err)
}

func TestTruncateUTF8(t *testing.T) {
	assert.Equal(t, "abc", truncateUTF8("abc", 10))
	assert.Equal(t, "ab", truncateUTF8("abc", 2))
	// Never cuts mid-rune.
	assert.Equal(t, "a", truncateUTF8("aéz", 2))
}
