package fn

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/val"
)

// maxGuidLength is the arity/range bound spec §7 names directly:
// rand::guid(min, max) where max > 64 is InvalidArguments.
const maxGuidLength = 64

const guidAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func registerRand(r *Registry) {
	r.Register("rand::bool", fnRandBool)
	r.Register("rand::uuid", fnRandUUID)
	r.Register("rand::int", fnRandInt)
	r.Register("rand::float", fnRandFloat)
	r.Register("rand::guid", fnRandGuid)
	r.Register("rand::enum", fnRandEnum)
}

func fnRandBool(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("rand::bool", args, 0, 0); err != nil {
		return nil, err
	}
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	if err != nil {
		return nil, xerrors.New(xerrors.KindInternal, "fn: rand::bool: "+err.Error())
	}
	return val.Bool(n.Int64() == 1), nil
}

func fnRandUUID(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("rand::uuid", args, 0, 0); err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, xerrors.New(xerrors.KindInternal, "fn: rand::uuid: "+err.Error())
	}
	return val.UuidV(id), nil
}

func fnRandInt(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("rand::int", args, 2, 2); err != nil {
		return nil, err
	}
	lo, err := asInt("rand::int", args[0])
	if err != nil {
		return nil, err
	}
	hi, err := asInt("rand::int", args[1])
	if err != nil {
		return nil, err
	}
	if hi < lo {
		return nil, xerrors.New(xerrors.KindInvalidArguments, "fn: rand::int max must be >= min")
	}
	span := hi - lo + 1
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return nil, xerrors.New(xerrors.KindInternal, "fn: rand::int: "+err.Error())
	}
	return val.Int(lo + n.Int64()), nil
}

func fnRandFloat(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("rand::float", args, 0, 2); err != nil {
		return nil, err
	}
	lo, hi := 0.0, 1.0
	if len(args) == 2 {
		ln, err := asNumber("rand::float", args[0])
		if err != nil {
			return nil, err
		}
		hn, err := asNumber("rand::float", args[1])
		if err != nil {
			return nil, err
		}
		lo, hi = ln.AsFloat(), hn.AsFloat()
		if hi < lo {
			return nil, xerrors.New(xerrors.KindInvalidArguments, "fn: rand::float max must be >= min")
		}
	}
	const precision = 1 << 53
	n, err := rand.Int(rand.Reader, big.NewInt(precision))
	if err != nil {
		return nil, xerrors.New(xerrors.KindInternal, "fn: rand::float: "+err.Error())
	}
	frac := float64(n.Int64()) / float64(precision)
	return val.Float(lo + frac*(hi-lo)), nil
}

// fnRandGuid implements rand::guid(min, max): a random alphanumeric
// string of a length chosen uniformly from [min, max]. max > 64 is the
// InvalidArguments example spec §7 names by name.
func fnRandGuid(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("rand::guid", args, 0, 2); err != nil {
		return nil, err
	}
	min, max := int64(20), int64(20)
	if len(args) == 2 {
		var err error
		min, err = asInt("rand::guid", args[0])
		if err != nil {
			return nil, err
		}
		max, err = asInt("rand::guid", args[1])
		if err != nil {
			return nil, err
		}
	}
	if max > maxGuidLength {
		return nil, xerrors.New(xerrors.KindInvalidArguments, "fn: rand::guid max must not exceed 64")
	}
	if min < 1 || max < min {
		return nil, xerrors.New(xerrors.KindInvalidArguments, "fn: rand::guid min/max out of range")
	}
	length := min
	if max > min {
		n, err := rand.Int(rand.Reader, big.NewInt(max-min+1))
		if err != nil {
			return nil, xerrors.New(xerrors.KindInternal, "fn: rand::guid: "+err.Error())
		}
		length += n.Int64()
	}
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(guidAlphabet))))
		if err != nil {
			return nil, xerrors.New(xerrors.KindInternal, "fn: rand::guid: "+err.Error())
		}
		out[i] = guidAlphabet[n.Int64()]
	}
	return val.Str(string(out)), nil
}

func fnRandEnum(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("rand::enum", args, 1, -1); err != nil {
		return nil, err
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(args))))
	if err != nil {
		return nil, xerrors.New(xerrors.KindInternal, "fn: rand::enum: "+err.Error())
	}
	return args[n.Int64()], nil
}
