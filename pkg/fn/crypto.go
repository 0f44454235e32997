// crypto:: functions hash a string argument and hex-encode the digest.
// The domain-stack table wires no crypto library in for this concern —
// the teacher's crypto dependencies (gnark-crypto, go-kzg-4844, BLS) are
// consensus-specific commitment schemes with no built-in-function
// analogue here, so these use the standard library's hash
// implementations directly (see DESIGN.md).
package fn

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"

	"github.com/nexusdb/nexus/pkg/val"
)

func registerCrypto(r *Registry) {
	r.Register("crypto::md5", fnCryptoHash(func(b []byte) []byte { h := md5.Sum(b); return h[:] }))
	r.Register("crypto::sha1", fnCryptoHash(func(b []byte) []byte { h := sha1.Sum(b); return h[:] }))
	r.Register("crypto::sha256", fnCryptoHash(func(b []byte) []byte { h := sha256.Sum256(b); return h[:] }))
	r.Register("crypto::sha512", fnCryptoHash(func(b []byte) []byte { h := sha512.Sum512(b); return h[:] }))
}

func fnCryptoHash(sum func([]byte) []byte) Fn {
	return func(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
		if err := arity("crypto::hash", args, 1, 1); err != nil {
			return nil, err
		}
		s, err := asString("crypto::hash", args[0])
		if err != nil {
			return nil, err
		}
		return val.Str(hex.EncodeToString(sum([]byte(s)))), nil
	}
}
