// Package kvstore implements pkg/bucket.Store over pkg/kv: the default,
// in-core object-store backend spec §6.5 asks for. Each object is one
// key under keys.BucketObjectKey, and its value is a small wire record
// (ETag, ModTime, then the raw bytes) so Head can answer without reading
// the full object body back out through the caller.
package kvstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"time"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/bucket"
	"github.com/nexusdb/nexus/pkg/keys"
	"github.com/nexusdb/nexus/pkg/kv"
)

// Store is a database-scoped object store backed by a single pkg/kv.KV.
// Every method opens and commits its own transaction — Rename and Copy
// each need both the read and the write in the same transaction, so
// they don't decompose into Get+Put calls internally.
type Store struct {
	KV     kv.KV
	NS, DB string
}

// New returns a Store scoped to one namespace/database.
func New(backend kv.KV, ns, db string) *Store {
	return &Store{KV: backend, NS: ns, DB: db}
}

var _ bucket.Store = (*Store)(nil)

// record is the on-disk wire format of one stored object.
type record struct {
	ETag    string
	ModTime time.Time
	Data    []byte
}

func encodeRecord(r record) []byte {
	etag := []byte(r.ETag)
	out := make([]byte, 0, 4+len(etag)+8+len(r.Data))
	out = appendLenPrefixed(out, etag)
	var tb [8]byte
	ns := r.ModTime.UnixNano()
	putUint64(tb[:], uint64(ns))
	out = append(out, tb[:]...)
	out = append(out, r.Data...)
	return out
}

func decodeRecord(b []byte) (record, error) {
	etag, off, err := readLenPrefixed(b)
	if err != nil {
		return record{}, err
	}
	if off+8 > len(b) {
		return record{}, xerrors.New(xerrors.KindInternal, "kvstore: truncated record")
	}
	ns := int64(getUint64(b[off : off+8]))
	data := b[off+8:]
	return record{ETag: string(etag), ModTime: time.Unix(0, ns).UTC(), Data: data}, nil
}

func appendLenPrefixed(out, chunk []byte) []byte {
	var lb [4]byte
	n := uint32(len(chunk))
	putUint32(lb[:], n)
	out = append(out, lb[:]...)
	return append(out, chunk...)
}

func readLenPrefixed(b []byte) (chunk []byte, newOff int, err error) {
	if len(b) < 4 {
		return nil, 0, xerrors.New(xerrors.KindInternal, "kvstore: truncated length prefix")
	}
	n := int(getUint32(b[:4]))
	if 4+n > len(b) {
		return nil, 0, xerrors.New(xerrors.KindInternal, "kvstore: truncated record body")
	}
	return b[4 : 4+n], 4 + n, nil
}

func putUint32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[7-i] = byte(v >> (8 * i))
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func etagOf(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func (s *Store) Put(ctx context.Context, buck, key string, data []byte) error {
	tx, err := s.KV.Begin(ctx, kv.ReadWrite)
	if err != nil {
		return err
	}
	defer tx.Cancel()
	body := encodeRecord(record{ETag: etagOf(data), ModTime: time.Now().UTC(), Data: data})
	if err := tx.Set(keys.BucketObjectKey(s.NS, s.DB, buck, key), body); err != nil {
		return err
	}
	_, err = tx.Commit(ctx)
	return err
}

func (s *Store) PutIfNotExists(ctx context.Context, buck, key string, data []byte) (bool, error) {
	tx, err := s.KV.Begin(ctx, kv.ReadWrite)
	if err != nil {
		return false, err
	}
	defer tx.Cancel()
	body := encodeRecord(record{ETag: etagOf(data), ModTime: time.Now().UTC(), Data: data})
	wrote, err := tx.PutIfNotExists(keys.BucketObjectKey(s.NS, s.DB, buck, key), body)
	if err != nil {
		return false, err
	}
	if !wrote {
		return false, nil
	}
	if _, err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Get(ctx context.Context, buck, key string) ([]byte, error) {
	tx, err := s.KV.Begin(ctx, kv.ReadOnly)
	if err != nil {
		return nil, err
	}
	defer tx.Cancel()
	b, ok, err := tx.Get(keys.BucketObjectKey(s.NS, s.DB, buck, key))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, xerrors.New(xerrors.KindIdNotFound, "kvstore: no such object "+buck+"/"+key)
	}
	rec, err := decodeRecord(b)
	if err != nil {
		return nil, err
	}
	return rec.Data, nil
}

func (s *Store) Head(ctx context.Context, buck, key string) (bucket.Object, error) {
	tx, err := s.KV.Begin(ctx, kv.ReadOnly)
	if err != nil {
		return bucket.Object{}, err
	}
	defer tx.Cancel()
	b, ok, err := tx.Get(keys.BucketObjectKey(s.NS, s.DB, buck, key))
	if err != nil {
		return bucket.Object{}, err
	}
	if !ok {
		return bucket.Object{}, xerrors.New(xerrors.KindIdNotFound, "kvstore: no such object "+buck+"/"+key)
	}
	rec, err := decodeRecord(b)
	if err != nil {
		return bucket.Object{}, err
	}
	return bucket.Object{Bucket: buck, Key: key, Size: int64(len(rec.Data)), ETag: rec.ETag, ModTime: rec.ModTime}, nil
}

func (s *Store) Delete(ctx context.Context, buck, key string) error {
	tx, err := s.KV.Begin(ctx, kv.ReadWrite)
	if err != nil {
		return err
	}
	defer tx.Cancel()
	if err := tx.Delete(keys.BucketObjectKey(s.NS, s.DB, buck, key)); err != nil {
		return err
	}
	_, err = tx.Commit(ctx)
	return err
}

func (s *Store) Exists(ctx context.Context, buck, key string) (bool, error) {
	tx, err := s.KV.Begin(ctx, kv.ReadOnly)
	if err != nil {
		return false, err
	}
	defer tx.Cancel()
	_, ok, err := tx.Get(keys.BucketObjectKey(s.NS, s.DB, buck, key))
	return ok, err
}

func (s *Store) List(ctx context.Context, buck, prefix string) ([]string, error) {
	tx, err := s.KV.Begin(ctx, kv.ReadOnly)
	if err != nil {
		return nil, err
	}
	defer tx.Cancel()
	base := keys.BucketObjectPrefix(s.NS, s.DB, buck)
	begin, end := keys.RangeOf(base)
	kvs, err := tx.Scan(kv.Range{Begin: begin, End: end}, 0, nil)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(kvs))
	for _, kve := range kvs {
		key, err := readNulString(kve.Key, len(base))
		if err != nil {
			return nil, err
		}
		if prefix != "" && !hasPrefix(key, prefix) {
			continue
		}
		out = append(out, key)
	}
	return out, nil
}

// Copy reads the source object and writes it under dstBucket/dstKey,
// preserving content (and so ETag) but stamping a fresh ModTime — the
// same semantics an S3-style copy has.
func (s *Store) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	tx, err := s.KV.Begin(ctx, kv.ReadWrite)
	if err != nil {
		return err
	}
	defer tx.Cancel()
	b, ok, err := tx.Get(keys.BucketObjectKey(s.NS, s.DB, srcBucket, srcKey))
	if err != nil {
		return err
	}
	if !ok {
		return xerrors.New(xerrors.KindIdNotFound, "kvstore: no such object "+srcBucket+"/"+srcKey)
	}
	rec, err := decodeRecord(b)
	if err != nil {
		return err
	}
	rec.ModTime = time.Now().UTC()
	if err := tx.Set(keys.BucketObjectKey(s.NS, s.DB, dstBucket, dstKey), encodeRecord(rec)); err != nil {
		return err
	}
	_, err = tx.Commit(ctx)
	return err
}

// Rename is Copy followed by deleting the source, committed atomically
// in one transaction (the one Store operation that can't decompose into
// two independent calls without risking a reader observing both copies
// or neither).
func (s *Store) Rename(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	tx, err := s.KV.Begin(ctx, kv.ReadWrite)
	if err != nil {
		return err
	}
	defer tx.Cancel()
	srcK := keys.BucketObjectKey(s.NS, s.DB, srcBucket, srcKey)
	b, ok, err := tx.Get(srcK)
	if err != nil {
		return err
	}
	if !ok {
		return xerrors.New(xerrors.KindIdNotFound, "kvstore: no such object "+srcBucket+"/"+srcKey)
	}
	rec, err := decodeRecord(b)
	if err != nil {
		return err
	}
	rec.ModTime = time.Now().UTC()
	if err := tx.Set(keys.BucketObjectKey(s.NS, s.DB, dstBucket, dstKey), encodeRecord(rec)); err != nil {
		return err
	}
	if err := tx.Delete(srcK); err != nil {
		return err
	}
	_, err = tx.Commit(ctx)
	return err
}

func readNulString(b []byte, off int) (string, error) {
	for i := off; i < len(b); i++ {
		if b[i] == 0x00 {
			return string(b[off:i]), nil
		}
	}
	return "", xerrors.New(xerrors.KindInternal, "kvstore: unterminated key")
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
