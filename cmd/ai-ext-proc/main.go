// Command ai-ext-proc runs the prompt-guard ext_proc sidecar: it loads
// per-route guardrail policy, serves health/readiness over HTTP, and wires
// the streaming guardrail engine's collaborators. The gRPC ext_proc
// listener itself is out of scope (see DESIGN.md); this binary wires and
// starts everything around it.
package main

import (
	"fmt"
	"os"

	"github.com/cecil-the-coder/ai-provider-kit/cmd/ai-ext-proc/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
