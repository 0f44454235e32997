package catalog

import (
	json "github.com/goccy/go-json"

	"github.com/nexusdb/nexus/internal/xerrors"
)

// wireEnvelope pairs a Revision with the entity's JSON body, the same
// "tag then payload" shape pkg/val's codec.go uses for Values. Using
// goccy/go-json (the teacher/pack's fast JSON engine) instead of
// encoding/json keeps every revisioned format in the core on one
// codec; val.Kind's own MarshalJSON/UnmarshalJSON methods let entities
// embedding a Kind (Field, FunctionParam) nest inside this envelope
// without any extra glue here.
type wireEnvelope struct {
	Rev  Revision        `json:"rev"`
	Body json.RawMessage `json:"body"`
}

func encodeRevisioned(rev Revision, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindInternal, "catalog: encode", err)
	}
	return json.Marshal(wireEnvelope{Rev: rev, Body: b})
}

func decodeRevisioned(data []byte, out any) (Revision, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return 0, xerrors.Wrap(xerrors.KindInternal, "catalog: decode envelope", err)
	}
	if err := json.Unmarshal(env.Body, out); err != nil {
		return 0, xerrors.Wrap(xerrors.KindInternal, "catalog: decode body", err)
	}
	return env.Rev, nil
}
