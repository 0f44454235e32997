package fn

import (
	"context"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/val"
)

func registerBucket(r *Registry) {
	r.Register("bucket::put", fnBucketPut)
	r.Register("bucket::get", fnBucketGet)
	r.Register("bucket::delete", fnBucketDelete)
	r.Register("bucket::list", fnBucketList)
}

// fnBucketPut implements bucket::put(file, data) against deps.Bucket —
// spec §6.5's first-class File value (val.FileV{Bucket,Key}) is the
// handle every bucket:: function addresses its object by.
func fnBucketPut(ctx context.Context, deps *Deps, args []val.Value) (val.Value, error) {
	if err := arity("bucket::put", args, 2, 2); err != nil {
		return nil, err
	}
	if deps == nil || deps.Bucket == nil {
		return nil, xerrors.New(xerrors.KindInternal, "fn: bucket:: functions require a bucket store dependency")
	}
	f, err := asFile("bucket::put", args[0])
	if err != nil {
		return nil, err
	}
	data, err := asBytes("bucket::put", args[1])
	if err != nil {
		return nil, err
	}
	if err := deps.Bucket.Put(ctx, f.Bucket, f.Key, data); err != nil {
		return nil, xerrors.New(xerrors.KindInternal, "fn: bucket::put: "+err.Error())
	}
	return f, nil
}

func fnBucketGet(ctx context.Context, deps *Deps, args []val.Value) (val.Value, error) {
	if err := arity("bucket::get", args, 1, 1); err != nil {
		return nil, err
	}
	if deps == nil || deps.Bucket == nil {
		return nil, xerrors.New(xerrors.KindInternal, "fn: bucket:: functions require a bucket store dependency")
	}
	f, err := asFile("bucket::get", args[0])
	if err != nil {
		return nil, err
	}
	data, err := deps.Bucket.Get(ctx, f.Bucket, f.Key)
	if err != nil {
		return nil, xerrors.New(xerrors.KindInternal, "fn: bucket::get: "+err.Error())
	}
	return val.Bytes(data), nil
}

func fnBucketDelete(ctx context.Context, deps *Deps, args []val.Value) (val.Value, error) {
	if err := arity("bucket::delete", args, 1, 1); err != nil {
		return nil, err
	}
	if deps == nil || deps.Bucket == nil {
		return nil, xerrors.New(xerrors.KindInternal, "fn: bucket:: functions require a bucket store dependency")
	}
	f, err := asFile("bucket::delete", args[0])
	if err != nil {
		return nil, err
	}
	if err := deps.Bucket.Delete(ctx, f.Bucket, f.Key); err != nil {
		return nil, xerrors.New(xerrors.KindInternal, "fn: bucket::delete: "+err.Error())
	}
	return val.None{}, nil
}

func fnBucketList(ctx context.Context, deps *Deps, args []val.Value) (val.Value, error) {
	if err := arity("bucket::list", args, 1, 2); err != nil {
		return nil, err
	}
	if deps == nil || deps.Bucket == nil {
		return nil, xerrors.New(xerrors.KindInternal, "fn: bucket:: functions require a bucket store dependency")
	}
	bucket, err := asString("bucket::list", args[0])
	if err != nil {
		return nil, err
	}
	prefix := ""
	if len(args) == 2 {
		prefix, err = asString("bucket::list", args[1])
		if err != nil {
			return nil, err
		}
	}
	keys, err := deps.Bucket.List(ctx, bucket, prefix)
	if err != nil {
		return nil, xerrors.New(xerrors.KindInternal, "fn: bucket::list: "+err.Error())
	}
	out := make(val.Array, len(keys))
	for i, k := range keys {
		out[i] = val.FileV{Bucket: bucket, Key: k}
	}
	return out, nil
}

func asFile(name string, v val.Value) (val.FileV, error) {
	f, ok := v.(val.FileV)
	if !ok {
		return val.FileV{}, xerrors.New(xerrors.KindTypeMismatch, "fn: "+name+" expects a file argument")
	}
	return f, nil
}

func asBytes(name string, v val.Value) ([]byte, error) {
	switch b := v.(type) {
	case val.Bytes:
		return []byte(b), nil
	case val.Str:
		return []byte(string(b)), nil
	}
	return nil, xerrors.New(xerrors.KindTypeMismatch, "fn: "+name+" expects a bytes or string argument")
}
