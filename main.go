// Package main is the entry point for the Spore CLI.
package main

import "spore.dev/pkg/spore/cmd"

func main() {
	cmd.Execute()
}
