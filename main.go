package main

import (
	"github.com/0xERR0R/dnstestbed/cmd"
)

func main() {
	cmd.Execute()
}
