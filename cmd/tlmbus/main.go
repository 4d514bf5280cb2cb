// Package main is the entry point of the tlmbus command.
package main

import "github.com/sarchlab/tlmbus/cmd"

func main() {
	cmd.Execute()
}
