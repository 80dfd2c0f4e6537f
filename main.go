package main

import "github.com/agentic-research/dalgen/cmd"

func main() {
	cmd.Execute()
}
