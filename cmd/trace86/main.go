package main

import (
	"os"

	"github.com/pekd/trace86/cmd/trace86/cmds"
)

func main() {
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
