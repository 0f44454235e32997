package fn

import (
	"context"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/val"
)

func registerHTTP(r *Registry) {
	r.Register("http::get", fnHTTPMethod("GET"))
	r.Register("http::post", fnHTTPMethod("POST"))
	r.Register("http::put", fnHTTPMethod("PUT"))
	r.Register("http::patch", fnHTTPMethod("PATCH"))
	r.Register("http::delete", fnHTTPMethod("DELETE"))
	r.Register("http::head", fnHTTPMethod("HEAD"))
}

// fnHTTPMethod implements http::<verb>(url [, body [, headers]]) against
// deps.HTTP — see the package doc for why the transport is injected
// rather than called directly.
func fnHTTPMethod(method string) Fn {
	return func(ctx context.Context, deps *Deps, args []val.Value) (val.Value, error) {
		if err := arity("http::"+method, args, 1, 3); err != nil {
			return nil, err
		}
		if deps == nil || deps.HTTP == nil {
			return nil, xerrors.New(xerrors.KindInternal, "fn: http:: functions require an HTTP client dependency")
		}
		url, err := asString("http::"+method, args[0])
		if err != nil {
			return nil, err
		}
		var body []byte
		if len(args) >= 2 {
			if b, ok := args[1].(val.Str); ok {
				body = []byte(string(b))
			} else if b, ok := args[1].(val.Bytes); ok {
				body = []byte(b)
			}
		}
		headers := map[string]string{}
		if len(args) == 3 {
			obj, ok := args[2].(val.Object)
			if !ok {
				return nil, xerrors.New(xerrors.KindTypeMismatch, "fn: http:: headers argument must be an object")
			}
			for k, v := range obj {
				if s, ok := v.(val.Str); ok {
					headers[k] = string(s)
				}
			}
		}
		status, respBody, err := deps.HTTP.Do(ctx, method, url, headers, body)
		if err != nil {
			return nil, xerrors.New(xerrors.KindInternal, "fn: http::"+method+": "+err.Error())
		}
		return val.Object{
			"status": val.Int(int64(status)),
			"body":   val.Str(string(respBody)),
		}, nil
	}
}
