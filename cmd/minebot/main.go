package main

import (
	"github.com/minebots-gg/minebot/common/run"
	"github.com/minebots-gg/minebot/mcversion"
	"github.com/minebots-gg/minebot/moderation"
)

func main() {
	run.Init()

	moderation.RegisterPlugin()
	mcversion.RegisterPlugin()

	run.Run()
}
