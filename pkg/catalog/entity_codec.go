package catalog

import "github.com/nexusdb/nexus/pkg/val"

// Encode/Decode* pairs for every catalog entity, each going through the
// shared revisioned envelope (codec.go). One pair per entity rather
// than a generic helper, matching the teacher's style of one named
// accessor per table rather than a single reflective load path
// (erigon-lib/kv/tables.go: one named bucket constant and one typed
// reader per table, not a generic "get any table" function).

func (e Namespace) Encode() ([]byte, error) { return encodeRevisioned(e.Revision(), e) }
func DecodeNamespace(b []byte) (Namespace, error) {
	var e Namespace
	_, err := decodeRevisioned(b, &e)
	return e, err
}

func (e Database) Encode() ([]byte, error) { return encodeRevisioned(e.Revision(), e) }
func DecodeDatabase(b []byte) (Database, error) {
	var e Database
	_, err := decodeRevisioned(b, &e)
	return e, err
}

func (e Table) Encode() ([]byte, error) { return encodeRevisioned(e.Revision(), e) }
func DecodeTable(b []byte) (Table, error) {
	var e Table
	_, err := decodeRevisioned(b, &e)
	return e, err
}

func (e Field) Encode() ([]byte, error) { return encodeRevisioned(e.Revision(), e) }
func DecodeField(b []byte) (Field, error) {
	var e Field
	_, err := decodeRevisioned(b, &e)
	return e, err
}

func (e Index) Encode() ([]byte, error) { return encodeRevisioned(e.Revision(), e) }
func DecodeIndex(b []byte) (Index, error) {
	var e Index
	_, err := decodeRevisioned(b, &e)
	return e, err
}

func (e Access) Encode() ([]byte, error) { return encodeRevisioned(e.Revision(), e) }
func DecodeAccess(b []byte) (Access, error) {
	var e Access
	_, err := decodeRevisioned(b, &e)
	return e, err
}

func (e Analyzer) Encode() ([]byte, error) { return encodeRevisioned(e.Revision(), e) }
func DecodeAnalyzer(b []byte) (Analyzer, error) {
	var e Analyzer
	_, err := decodeRevisioned(b, &e)
	return e, err
}

func (e Event) Encode() ([]byte, error) { return encodeRevisioned(e.Revision(), e) }
func DecodeEvent(b []byte) (Event, error) {
	var e Event
	_, err := decodeRevisioned(b, &e)
	return e, err
}

func (e Function) Encode() ([]byte, error) { return encodeRevisioned(e.Revision(), e) }
func DecodeFunction(b []byte) (Function, error) {
	var e Function
	_, err := decodeRevisioned(b, &e)
	return e, err
}

// paramWire/configWire carry their Value through pkg/val's own wire
// codec (pkg/val/codec.go) rather than a plain JSON field: val.Value is
// an interface over concrete types with unexported fields (Number,
// RecordID, ...), so a reflective JSON marshal of the interface would
// silently serialize to "{}". val.Encode/Decode already solve exactly
// this by type-switching on the concrete variant.
type paramWire struct {
	Name  string `json:"name"`
	Value []byte `json:"value"`
}

func (e Param) Encode() ([]byte, error) {
	vb, err := val.Encode(e.Value)
	if err != nil {
		return nil, err
	}
	return encodeRevisioned(e.Revision(), paramWire{Name: e.Name, Value: vb})
}

func DecodeParam(b []byte) (Param, error) {
	var w paramWire
	if _, err := decodeRevisioned(b, &w); err != nil {
		return Param{}, err
	}
	v, err := val.Decode(w.Value)
	if err != nil {
		return Param{}, err
	}
	return Param{Name: w.Name, Value: v}, nil
}

func (e User) Encode() ([]byte, error) { return encodeRevisioned(e.Revision(), e) }
func DecodeUser(b []byte) (User, error) {
	var e User
	_, err := decodeRevisioned(b, &e)
	return e, err
}

func (e Bucket) Encode() ([]byte, error) { return encodeRevisioned(e.Revision(), e) }
func DecodeBucket(b []byte) (Bucket, error) {
	var e Bucket
	_, err := decodeRevisioned(b, &e)
	return e, err
}

func (e Api) Encode() ([]byte, error) { return encodeRevisioned(e.Revision(), e) }
func DecodeApi(b []byte) (Api, error) {
	var e Api
	_, err := decodeRevisioned(b, &e)
	return e, err
}

type configWire struct {
	Name  string `json:"name"`
	Value []byte `json:"value"`
}

func (e Config) Encode() ([]byte, error) {
	vb, err := val.Encode(e.Value)
	if err != nil {
		return nil, err
	}
	return encodeRevisioned(e.Revision(), configWire{Name: e.Name, Value: vb})
}

func DecodeConfig(b []byte) (Config, error) {
	var w configWire
	if _, err := decodeRevisioned(b, &w); err != nil {
		return Config{}, err
	}
	v, err := val.Decode(w.Value)
	if err != nil {
		return Config{}, err
	}
	return Config{Name: w.Name, Value: v}, nil
}
