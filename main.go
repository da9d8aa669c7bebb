package main

import (
	"github.com/gatewatch/gatewatch/cmd/gatewatch/commands"
)

func main() {
	commands.Execute()
}
