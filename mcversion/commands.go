package mcversion

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/minebots-gg/minebot/commands"
	"github.com/minebots-gg/minebot/common"
	"github.com/minebots-gg/minebot/feeds"
)

func RegisterPlugin() {
	feeds.RegisterPlugin(newPlugin())
}

var _ common.BotInitHandler = (*Plugin)(nil)

func (p *Plugin) BotInit() {
	commands.RegisterCommands(
		&commands.Command{
			Name:          "versioncheck",
			Description:   "Runs one version feed check right away and reports the latest known versions",
			RequiredPerms: discordgo.PermissionManageServer,
			Run:           p.runVersionCheckCmd,
		},
		&commands.Command{
			Name:          "setversionfeeds",
			Description:   "Points the version poller at alternate endpoints, testing environments only",
			RequiredPerms: discordgo.PermissionManageServer,
			Run:           p.runSetFeedsCmd,
		},
	)
}

func (p *Plugin) runVersionCheckCmd(data *commands.Data) (interface{}, error) {
	err := p.CheckVersions()
	if err == ErrCheckInProgress {
		return "A version check is already running, try again in a moment.", nil
	} else if err != nil {
		return "Version check failed.", err
	}

	latest := p.Latest()
	return fmt.Sprintf("All good! Latest release: **%s**, latest snapshot: **%s**", latest.Release, latest.Snapshot), nil
}

func (p *Plugin) runSetFeedsCmd(data *commands.Data) (interface{}, error) {
	if !common.Testing {
		return "Feed endpoints can only be changed in testing environments.", nil
	}

	if len(data.Args) != 2 {
		return "Usage: `<manifest url> <jira url>`", nil
	}

	p.SetFeedURLs(data.Args[0], data.Args[1])
	return "Feed endpoints updated.", nil
}
