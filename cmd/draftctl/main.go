// Command draftctl generates survey drafts through the generation API and
// edits the persisted copies.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "draftctl:", err)
		os.Exit(1)
	}
}
