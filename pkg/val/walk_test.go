package val

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWalkFieldPath(t *testing.T) {
	require := require.New(t)
	root := Object{"a": Object{"b": Int(42)}}
	idiom := Idiom{FieldPart("a"), FieldPart("b")}
	out, err := Walk(root, idiom, nil)
	require.NoError(err)
	require.Len(out, 1)
	require.Equal(Int(42), out[0].Value)
	require.Equal("a.b", out[0].Path.String())
}

func TestWalkMissingFieldYieldsNone(t *testing.T) {
	require := require.New(t)
	root := Object{"a": Int(1)}
	out, err := Walk(root, Idiom{FieldPart("missing")}, nil)
	require.NoError(err)
	require.Len(out, 1)
	require.Equal(None{}, out[0].Value)
}

func TestWalkAllFansOutOverArray(t *testing.T) {
	require := require.New(t)
	root := Array{Object{"x": Int(1)}, Object{"x": Int(2)}}
	out, err := Walk(root, Idiom{AllPart(), FieldPart("x")}, nil)
	require.NoError(err)
	require.Len(out, 2)
	require.Equal(Int(1), out[0].Value)
	require.Equal(Int(2), out[1].Value)
}

func TestWalkAllFansOutOverObjectKeysSorted(t *testing.T) {
	require := require.New(t)
	root := Object{"z": Int(1), "a": Int(2)}
	out, err := Walk(root, Idiom{AllPart()}, nil)
	require.NoError(err)
	require.Len(out, 2)
	require.Equal(Int(2), out[0].Value) // "a" sorts first
	require.Equal(Int(1), out[1].Value)
}

func TestWalkFirstAndLast(t *testing.T) {
	require := require.New(t)
	root := Array{Int(1), Int(2), Int(3)}
	out, err := Walk(root, Idiom{FirstPart()}, nil)
	require.NoError(err)
	require.Equal(Int(1), out[0].Value)

	out, err = Walk(root, Idiom{LastPart()}, nil)
	require.NoError(err)
	require.Equal(Int(3), out[0].Value)
}

func TestWalkOptionalShortCircuitsOnNone(t *testing.T) {
	require := require.New(t)
	root := Object{"a": None{}}
	out, err := Walk(root, Idiom{FieldPart("a"), OptionalPart(), FieldPart("b")}, nil)
	require.NoError(err)
	require.Len(out, 1)
	require.Equal(None{}, out[0].Value)
}

func TestWalkWhereWithoutEvaluatorIsUnimplemented(t *testing.T) {
	require := require.New(t)
	root := Array{Int(1)}
	_, err := Walk(root, Idiom{WherePart(nil)}, nil)
	require.Error(err)
}

func TestWalkDestructureExtractsNamedFields(t *testing.T) {
	require := require.New(t)
	root := Object{"a": Int(1), "b": Int(2), "c": Int(3)}
	idiom := Idiom{{
		Tag: PartDestructure,
		Destructure: []DestructurePart{
			{Name: "a"},
			{Name: "b"},
		},
	}}
	out, err := Walk(root, idiom, nil)
	require.NoError(err)
	require.Len(out, 2)
	require.Equal(Int(1), out[0].Value)
	require.Equal(Int(2), out[1].Value)
}

func TestPutReconstructsPathFromWalk(t *testing.T) {
	require := require.New(t)
	root := Object{"a": Object{"b": Int(1)}}
	idiom := Idiom{FieldPart("a"), FieldPart("b")}
	out, err := Walk(root, idiom, nil)
	require.NoError(err)
	require.Len(out, 1)

	rebuilt, err := Put(Object{}, out[0].Path, out[0].Value)
	require.NoError(err)

	roundTrip, err := Walk(rebuilt, idiom, nil)
	require.NoError(err)
	require.Equal(out[0].Value, roundTrip[0].Value)
}
