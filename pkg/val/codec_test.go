package val

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, v Value) Value {
	t.Helper()
	require := require.New(t)
	data, err := Encode(v)
	require.NoError(err)
	out, err := Decode(data)
	require.NoError(err)
	return out
}

func TestCodecRoundTripsScalars(t *testing.T) {
	require := require.New(t)
	require.Equal(None{}, roundTrip(t, None{}))
	require.Equal(Null{}, roundTrip(t, Null{}))
	require.Equal(Bool(true), roundTrip(t, Bool(true)))
	require.Equal(Str("hello"), roundTrip(t, Str("hello")))
	require.Equal(DurationV(time.Minute), roundTrip(t, DurationV(time.Minute)))
}

func TestCodecRoundTripsNumberVariants(t *testing.T) {
	require := require.New(t)
	require.True(Equal(Int(42), roundTrip(t, Int(42))))
	require.True(Equal(Float(3.5), roundTrip(t, Float(3.5))))
	require.True(Equal(Dec(MustDecimal("1.2345")), roundTrip(t, Dec(MustDecimal("1.2345")))))
}

func TestCodecRoundTripsUuid(t *testing.T) {
	require := require.New(t)
	u := UuidV(uuid.New())
	out := roundTrip(t, u)
	require.Equal(u, out)
}

func TestCodecRoundTripsDatetime(t *testing.T) {
	require := require.New(t)
	now := DatetimeV(time.Now().UTC().Truncate(time.Nanosecond))
	out := roundTrip(t, now)
	require.Equal(time.Time(now).UnixNano(), time.Time(out.(DatetimeV)).UnixNano())
}

func TestCodecRoundTripsCompositeValues(t *testing.T) {
	require := require.New(t)
	obj := Object{
		"name": Str("alice"),
		"tags": Array{Str("a"), Str("b")},
		"age":  Int(30),
	}
	out := roundTrip(t, obj)
	require.True(Equal(obj, out))
}

func TestCodecRoundTripsRecordID(t *testing.T) {
	require := require.New(t)
	rid := RecordID{Table: "person", Key: NewRecordIDString("alice")}
	out := roundTrip(t, rid)
	require.Equal(rid, out)
}

func TestCodecRoundTripsRange(t *testing.T) {
	require := require.New(t)
	r := RangeV{StartKind: Inclusive, Start: Int(1), EndKind: Exclusive, End: Int(10)}
	out := roundTrip(t, r)
	require.Equal(r, out)
}

func TestCodecRoundTripsBytes(t *testing.T) {
	require := require.New(t)
	b := Bytes{0xDE, 0xAD, 0xBE, 0xEF}
	out := roundTrip(t, b)
	require.Equal(b, out)
}
