// The main package for the turboduck executable.
package main

import (
	"github.com/JakeFAU/turboduck/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
