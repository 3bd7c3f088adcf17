// ./main.go
package main

import (
	"github.com/xkilldash9x/courtbook/cmd"
)

// main is the entry point for the courtbook CLI.
func main() {
	cmd.Execute()
}
