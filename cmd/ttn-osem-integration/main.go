package main

import "github.com/sensebox/ttn-osem-integration/cmd/ttn-osem-integration/cmd"

var version string // set by the compiler

func main() {
	cmd.Execute(version)
}
