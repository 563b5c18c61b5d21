// Command failedjobs inspects and edits the job failure log written by the
// server. Run it while the server is stopped; the server only reads the log
// at startup.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
