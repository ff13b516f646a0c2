package main

import (
	"github.com/weighworks/gatescale/pkg/cli/sh"

	_ "github.com/weighworks/gatescale/pkg/cli/cmds/all"
)

//go-build: CGO_ENABLED=0

func main() {
	sh.Main()
}
