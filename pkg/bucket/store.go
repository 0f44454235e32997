// Package bucket implements the object-store contract of spec §6.5: a
// bucket is a flat, database-scoped namespace of objects addressed by
// key, and a File{Bucket,Key} value (pkg/val.FileV) is a first-class
// reference into it. Store's operation set is exactly the nine spec
// names: put, put_if_not_exists, get, head, delete, copy, rename,
// exists, list.
//
// §6.5 leaves the interface "open for an external object-store
// implementation" (a Non-goal collaborator per §1) — pkg/bucket/kvstore
// is the one concrete backend this module ships, built on pkg/kv the
// same way every other storage-facing package in this module is.
package bucket

import (
	"context"
	"time"
)

// Object is the metadata Head returns for one stored object.
type Object struct {
	Bucket  string
	Key     string
	Size    int64
	ETag    string
	ModTime time.Time
}

// Store is the object-store contract spec §6.5 names. Destination
// strings passed as a bare key (rather than an explicit
// pkg/val.FileV{Bucket,Key}) are interpreted as relative paths within
// the source bucket by the caller one layer up (pkg/fn's bucket::copy
// and bucket::rename resolve a bare string destination against the
// source File before calling Copy/Rename) — Store itself always takes
// an explicit destination bucket and key.
type Store interface {
	Put(ctx context.Context, bucket, key string, data []byte) error
	PutIfNotExists(ctx context.Context, bucket, key string, data []byte) (bool, error)
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Head(ctx context.Context, bucket, key string) (Object, error)
	Delete(ctx context.Context, bucket, key string) error
	Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
	Rename(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
	Exists(ctx context.Context, bucket, key string) (bool, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}
