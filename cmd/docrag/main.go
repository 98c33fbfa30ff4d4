// Command docrag answers questions about a local document collection with
// retrieval-augmented generation. It provides a CLI (via Cobra) for ingesting
// documents, querying, evaluating answers and serving an HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/docrag-go/cmd/docrag/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
