package main

import (
	"github.com/jbbonice2/lorawan-adr-simulator/cmd/lorawan-adr-simulator/cmd"
)

var version string // set by the compiler

func main() {
	cmd.Execute(version)
}
