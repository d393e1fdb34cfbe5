package main

import "github.com/lucasdoreac/triage/cmd/triage/commands"

func main() {
	commands.Execute()
}
