// Command nexusd is the server shell around pkg/exec/pkg/session: it
// loads configuration, wires storage/catalog/functions/live-query hub
// into an exec.Executor, and starts the wire package's gRPC server. The
// Executor is built but not registered on that server, and no websocket
// transport is started. Running this shell is outside the spec's own
// scope (§1 names HTTP/WebSocket/RPC server shells as deliberately out
// of scope for the core); nexusd is a thin, separately-owned binary
// around the core.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
