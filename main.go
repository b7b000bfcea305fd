// The main package for the title-relay executable.
package main

import (
	"github.com/JakeFAU/title-relay/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
