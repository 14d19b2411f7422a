// The main package for the cryptoingest executable.
package main

import (
	"github.com/cryptoganster/cryptoingest/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
