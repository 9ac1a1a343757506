package main

import (
	"github.com/robotalks/wifibridge/pkg/cli/sh"
	"github.com/robotalks/wifibridge/pkg/config"

	_ "github.com/robotalks/wifibridge/pkg/cli/cmds/bridge"
)

//go-build: CGO_ENABLED=0

func init() {
	config.SetupFlags()
}

func main() {
	sh.Main()
}
