// Command inspect reports on the vector store and the activity tracker
// backend, and exports or searches tracked activities.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand(nil).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
