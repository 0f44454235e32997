// Package wire implements the two collaborator-boundary transports spec
// §6.4 names for a Session: proto-shaped request/response types for an
// RPC front end, and a gorilla/websocket stream for live-query
// notifications. Per §1 ("HTTP/WebSocket/RPC server shells... are
// deliberately out of scope"), this package stops at the transport
// shape — no .proto is compiled and no gRPC service is registered here;
// NewGRPCServer and ExecuteRequest/ExecuteResponse exist so a server
// shell built on top of this module (cmd/nexusd, or an external one)
// has somewhere real to plug in, not to make this module itself a
// running server.
package wire

import (
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/nexusdb/nexus/pkg/session"
)

// ExecuteRequest is the wire shape of one Session.Execute call. Field
// numbering mirrors what protoc would assign generating from a oneshot
// execute.proto; QueryText carries the already-parsed statement in
// whatever textual form the front end received it in (spec §6.1: this
// module's normative input is an expression/statement tree, not text —
// turning QueryText back into that tree is a front-end concern outside
// this package).
type ExecuteRequest struct {
	Namespace string            `protobuf:"bytes,1,opt,name=namespace"`
	Database  string            `protobuf:"bytes,2,opt,name=database"`
	QueryText string            `protobuf:"bytes,3,opt,name=query_text"`
	Params    map[string]string `protobuf:"bytes,4,rep,name=params"`
}

// ExecuteResponse wraps the QueryResult slice Session.Execute returns.
type ExecuteResponse struct {
	Results []*QueryResultProto `protobuf:"bytes,1,rep,name=results"`
}

// QueryResultProto is the wire form of one session.QueryResult.
type QueryResultProto struct {
	Duration *durationpb.Duration `protobuf:"bytes,1,opt,name=duration"`
	Ok       bool                 `protobuf:"varint,2,opt,name=ok"`
	Result   string               `protobuf:"bytes,3,opt,name=result"` // set when Ok
	Error    string               `protobuf:"bytes,4,opt,name=error"`  // set when !Ok
}

// EncodeExecuteResponse converts a Session.Execute result slice to its
// wire form.
func EncodeExecuteResponse(results []session.QueryResult) *ExecuteResponse {
	out := &ExecuteResponse{Results: make([]*QueryResultProto, 0, len(results))}
	for _, r := range results {
		p := &QueryResultProto{
			Duration: durationpb.New(r.Duration),
			Ok:       r.Status == session.StatusOk,
		}
		if p.Ok {
			if r.Result != nil {
				p.Result = r.Result.String()
			}
		} else if r.Err != nil {
			p.Error = r.Err.Error()
		}
		out.Results = append(out.Results, p)
	}
	return out
}

// DurationOf reads a QueryResultProto's duration back out as a
// time.Duration, the inverse of durationpb.New.
func DurationOf(p *QueryResultProto) time.Duration {
	if p == nil || p.Duration == nil {
		return 0
	}
	return p.Duration.AsDuration()
}

// NewGRPCServer returns a bare *grpc.Server a server shell can register
// services on and Serve. This module registers nothing on it itself —
// per §1, running the RPC surface is a collaborator's job.
func NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	return grpc.NewServer(opts...)
}
