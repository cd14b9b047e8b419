package main

import (
	"github.com/packetloom/capcore/cmd"
)

func main() {
	cmd.Execute()
}
