// Package fn implements the built-in scalar/array/string/math/rand/type/
// time/crypto/vector/http/bucket function library every expression's
// FuncCall node resolves against before falling back to a user-defined
// pkg/catalog.Function (spec's built-in function families, named
// piecemeal across the spec: `type::table`, `rand::guid`,
// `vector::distance::knn`). Every function takes and returns val.Value so
// pkg/exec can call through the same Registry regardless of family.
//
// http:: and bucket:: functions depend on collaborators this package
// doesn't own (an HTTP client, the object store of pkg/bucket) — they
// take those as injected interfaces on Deps, the same pattern
// pkg/index/hnsw.ConditionChecker and pkg/live's Matcher/Projector use to
// stay independent of not-yet-built or side-effecting packages.
package fn

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/val"
)

// Fn is one built-in function's implementation. ctx carries cancellation
// for functions that do I/O (http::, bucket::); deps supplies the
// collaborators those families need and is nil-safe for every pure
// function.
type Fn func(ctx context.Context, deps *Deps, args []val.Value) (val.Value, error)

// Deps are the side-effecting collaborators http:: and bucket:: functions
// call through. A nil field makes every function in that family fail
// with KindInternal rather than panic, so a Registry built without them
// (e.g. in a test for the pure families) stays safe to Call against.
type Deps struct {
	HTTP   HTTPDoer
	Bucket BucketStore
}

// HTTPDoer is the minimal surface http:: functions need. *http.Client
// does not satisfy it directly: its Do method takes an *http.Request.
type HTTPDoer interface {
	Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (status int, respBody []byte, err error)
}

// BucketStore is the minimal surface bucket:: functions need; pkg/bucket's
// store implements it.
type BucketStore interface {
	Put(ctx context.Context, bucket, key string, data []byte) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Delete(ctx context.Context, bucket, key string) error
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

// Registry is a name -> Fn lookup table. The zero Registry is empty;
// Default returns one pre-populated with every built-in family.
type Registry struct {
	fns map[string]Fn
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{fns: make(map[string]Fn)}
}

// Register adds or replaces the function named name.
func (r *Registry) Register(name string, f Fn) {
	r.fns[name] = f
}

// Lookup reports whether name is registered.
func (r *Registry) Lookup(name string) (Fn, bool) {
	f, ok := r.fns[name]
	return f, ok
}

// Names returns every registered function name, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.fns))
	for n := range r.fns {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Call resolves name and invokes it, returning KindFieldNotFound if no
// such built-in is registered. pkg/exec checks Lookup before calling and
// falls back to the catalog's user-defined functions when the name is
// not registered.
func (r *Registry) Call(ctx context.Context, deps *Deps, name string, args []val.Value) (val.Value, error) {
	f, ok := r.fns[name]
	if !ok {
		return nil, xerrors.New(xerrors.KindFieldNotFound, "fn: no built-in function "+name)
	}
	return f(ctx, deps, args)
}

// Default returns a Registry with every built-in family registered.
func Default() *Registry {
	r := NewRegistry()
	registerString(r)
	registerMath(r)
	registerArray(r)
	registerRand(r)
	registerType(r)
	registerTime(r)
	registerCrypto(r)
	registerVector(r)
	registerHTTP(r)
	registerBucket(r)
	return r
}

// arity reports an InvalidArguments error when len(args) isn't within
// [min, max] (max < 0 means unbounded) — the taxonomy spec §7 names
// directly via `rand::guid(min, max)` where max > 64.
func arity(name string, args []val.Value, min, max int) error {
	if len(args) < min || (max >= 0 && len(args) > max) {
		return xerrors.New(xerrors.KindInvalidArguments,
			fmt.Sprintf("fn: %s expects %s arguments, got %d", name, arityRange(min, max), len(args)))
	}
	return nil
}

func arityRange(min, max int) string {
	if max < 0 {
		return fmt.Sprintf("at least %d", min)
	}
	if min == max {
		return fmt.Sprintf("exactly %d", min)
	}
	return fmt.Sprintf("between %d and %d", min, max)
}

func asString(name string, v val.Value) (string, error) {
	switch s := v.(type) {
	case val.Str:
		return string(s), nil
	case val.TableV:
		return string(s), nil
	}
	return "", xerrors.New(xerrors.KindTypeMismatch, "fn: "+name+" expects a string argument")
}

func asNumber(name string, v val.Value) (val.Number, error) {
	n, ok := v.(val.Number)
	if !ok {
		return val.Number{}, xerrors.New(xerrors.KindTypeMismatch, "fn: "+name+" expects a number argument")
	}
	return n, nil
}

func asArray(name string, v val.Value) (val.Array, error) {
	a, ok := v.(val.Array)
	if !ok {
		return nil, xerrors.New(xerrors.KindTypeMismatch, "fn: "+name+" expects an array argument")
	}
	return a, nil
}

func asInt(name string, v val.Value) (int64, error) {
	n, err := asNumber(name, v)
	if err != nil {
		return 0, err
	}
	i, ok := n.AsInt()
	if !ok {
		return 0, xerrors.New(xerrors.KindTypeMismatch, "fn: "+name+" expects an integral number argument")
	}
	return i, nil
}

func stringsOf(name string, args []val.Value) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		s, err := asString(name, a)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// joinStrings is a tiny shared helper the string:: family uses more than
// once (join, concat).
func joinStrings(parts []string, sep string) string {
	return strings.Join(parts, sep)
}
