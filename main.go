// The main package for the hmdbscan executable.
package main

import (
	"github.com/metabolink/hmdbscan/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
