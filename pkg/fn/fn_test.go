package fn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/val"
)

func call(t *testing.T, r *Registry, deps *Deps, name string, args ...val.Value) (val.Value, error) {
	t.Helper()
	return r.Call(context.Background(), deps, name, args)
}

func TestCallUnknownFunctionReturnsFieldNotFound(t *testing.T) {
	r := Default()
	_, err := call(t, r, nil, "nope::nope")
	require.Error(t, err)
	require.True(t, xerrors.Of(err, xerrors.KindFieldNotFound))
}

func TestStringConcatAndLen(t *testing.T) {
	r := Default()
	v, err := call(t, r, nil, "string::concat", val.Str("foo"), val.Str("bar"))
	require.NoError(t, err)
	require.Equal(t, val.Str("foobar"), v)

	v, err = call(t, r, nil, "string::len", val.Str("hello"))
	require.NoError(t, err)
	require.Equal(t, val.Int(5), v)
}

func TestStringSliceBoundsError(t *testing.T) {
	r := Default()
	_, err := call(t, r, nil, "string::slice", val.Str("hi"), val.Int(5))
	require.Error(t, err)
	require.True(t, xerrors.Of(err, xerrors.KindInvalidArguments))
}

func TestMathMaxAcceptsVarargsOrArray(t *testing.T) {
	r := Default()
	v, err := call(t, r, nil, "math::max", val.Int(3), val.Int(9), val.Int(1))
	require.NoError(t, err)
	require.Equal(t, val.Int(9), v)

	v, err = call(t, r, nil, "math::max", val.Array{val.Int(3), val.Int(9), val.Int(1)})
	require.NoError(t, err)
	require.Equal(t, val.Int(9), v)
}

func TestMathSqrtOfNegativeIsInvalidArguments(t *testing.T) {
	r := Default()
	_, err := call(t, r, nil, "math::sqrt", val.Int(-4))
	require.Error(t, err)
	require.True(t, xerrors.Of(err, xerrors.KindInvalidArguments))
}

func TestArrayDistinctAndSort(t *testing.T) {
	r := Default()
	v, err := call(t, r, nil, "array::distinct", val.Array{val.Int(1), val.Int(2), val.Int(1)})
	require.NoError(t, err)
	require.Equal(t, val.Array{val.Int(1), val.Int(2)}, v)

	v, err = call(t, r, nil, "array::sort", val.Array{val.Int(3), val.Int(1), val.Int(2)})
	require.NoError(t, err)
	require.Equal(t, val.Array{val.Int(1), val.Int(2), val.Int(3)}, v)
}

func TestRandGuidRejectsMaxAbove64(t *testing.T) {
	r := Default()
	_, err := call(t, r, nil, "rand::guid", val.Int(1), val.Int(65))
	require.Error(t, err)
	require.True(t, xerrors.Of(err, xerrors.KindInvalidArguments))
}

func TestRandGuidProducesLengthWithinRange(t *testing.T) {
	r := Default()
	v, err := call(t, r, nil, "rand::guid", val.Int(10), val.Int(20))
	require.NoError(t, err)
	s, ok := v.(val.Str)
	require.True(t, ok)
	require.GreaterOrEqual(t, len(string(s)), 10)
	require.LessOrEqual(t, len(string(s)), 20)
}

func TestRandUUIDReturnsV7(t *testing.T) {
	r := Default()
	v, err := call(t, r, nil, "rand::uuid")
	require.NoError(t, err)
	u, ok := v.(val.UuidV)
	require.True(t, ok)
	require.Equal(t, 7, u.Version())
}

func TestTypeTableCastsStringToTableReference(t *testing.T) {
	r := Default()
	v, err := call(t, r, nil, "type::table", val.Str("person"))
	require.NoError(t, err)
	require.Equal(t, val.TableV("person"), v)
}

func TestTypeStringCoercesNumber(t *testing.T) {
	r := Default()
	v, err := call(t, r, nil, "type::string", val.Int(42))
	require.NoError(t, err)
	require.Equal(t, val.Str("42"), v)
}

func TestTypeIntParsesDecimalAndHexStrings(t *testing.T) {
	r := Default()
	v, err := call(t, r, nil, "type::int", val.Str("42"))
	require.NoError(t, err)
	require.Equal(t, val.Int(42), v)

	v, err = call(t, r, nil, "type::int", val.Str("0x2a"))
	require.NoError(t, err)
	require.Equal(t, val.Int(42), v)

	v, err = call(t, r, nil, "type::int", val.Str("-7"))
	require.NoError(t, err)
	require.Equal(t, val.Int(-7), v)
}

func TestTypeIntRejectsNonNumericString(t *testing.T) {
	r := Default()
	_, err := call(t, r, nil, "type::int", val.Str("not a number"))
	require.Error(t, err)
	require.True(t, xerrors.Of(err, xerrors.KindCoerce))
}

func TestTypeFloatParsesDecimalString(t *testing.T) {
	r := Default()
	v, err := call(t, r, nil, "type::float", val.Str("3.5"))
	require.NoError(t, err)
	require.Equal(t, val.Float(3.5), v)
}

func TestCryptoSha256KnownDigest(t *testing.T) {
	r := Default()
	v, err := call(t, r, nil, "crypto::sha256", val.Str(""))
	require.NoError(t, err)
	require.Equal(t, val.Str("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"), v)
}

func TestVectorDistanceEuclidean(t *testing.T) {
	r := Default()
	v, err := call(t, r, nil, "vector::distance::euclidean",
		val.Array{val.Int(0), val.Int(0)}, val.Array{val.Int(3), val.Int(4)})
	require.NoError(t, err)
	require.InDelta(t, 5.0, float64(v.(val.Number).AsFloat()), 1e-9)
}

func TestVectorDistanceDimensionMismatch(t *testing.T) {
	r := Default()
	_, err := call(t, r, nil, "vector::distance::euclidean",
		val.Array{val.Int(0)}, val.Array{val.Int(3), val.Int(4)})
	require.Error(t, err)
	require.True(t, xerrors.Of(err, xerrors.KindInvalidArguments))
}

type fakeHTTP struct {
	status int
	body   []byte
	err    error
}

func (f *fakeHTTP) Do(_ context.Context, _, _ string, _ map[string]string, _ []byte) (int, []byte, error) {
	return f.status, f.body, f.err
}

func TestHTTPGetReturnsStatusAndBody(t *testing.T) {
	r := Default()
	deps := &Deps{HTTP: &fakeHTTP{status: 200, body: []byte("ok")}}
	v, err := call(t, r, deps, "http::get", val.Str("https://example.test"))
	require.NoError(t, err)
	obj := v.(val.Object)
	require.Equal(t, val.Int(200), obj["status"])
	require.Equal(t, val.Str("ok"), obj["body"])
}

func TestHTTPWithoutDepsIsInternal(t *testing.T) {
	r := Default()
	_, err := call(t, r, nil, "http::get", val.Str("https://example.test"))
	require.Error(t, err)
	require.True(t, xerrors.Of(err, xerrors.KindInternal))
}

type fakeBucket struct {
	objects map[string][]byte
}

func (b *fakeBucket) Put(_ context.Context, bucket, key string, data []byte) error {
	if b.objects == nil {
		b.objects = map[string][]byte{}
	}
	b.objects[bucket+"/"+key] = data
	return nil
}

func (b *fakeBucket) Get(_ context.Context, bucket, key string) ([]byte, error) {
	return b.objects[bucket+"/"+key], nil
}

func (b *fakeBucket) Delete(_ context.Context, bucket, key string) error {
	delete(b.objects, bucket+"/"+key)
	return nil
}

func (b *fakeBucket) List(_ context.Context, bucket, _ string) ([]string, error) {
	var out []string
	for k := range b.objects {
		out = append(out, k)
	}
	return out, nil
}

func TestBucketPutThenGetRoundTrips(t *testing.T) {
	r := Default()
	deps := &Deps{Bucket: &fakeBucket{}}
	f := val.FileV{Bucket: "avatars", Key: "a.png"}
	_, err := call(t, r, deps, "bucket::put", f, val.Bytes("hi"))
	require.NoError(t, err)

	v, err := call(t, r, deps, "bucket::get", f)
	require.NoError(t, err)
	require.Equal(t, val.Bytes("hi"), v)
}
