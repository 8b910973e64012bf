package moderation

import (
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/minebots-gg/minebot/commands"
	"github.com/minebots-gg/minebot/common"
	"github.com/minebots-gg/minebot/common/config"
	"github.com/minebots-gg/minebot/common/scheduler"
)

var logger = common.GetPluginLogger(&Plugin{})

type Plugin struct {
	Reversals *ReversalIndex

	store  *sqlInfractionStore
	config *Config
}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Moderation",
		SysName:  "moderation",
		Category: common.PluginCategoryModeration,
	}
}

var (
	confMuteRole      = config.RegisterOption("minebot.mute_role", "Role assigned to muted members", "")
	confVoiceMuteRole = config.RegisterOption("minebot.voice_mute_role", "Role assigned to voice muted members", "")
	confActionChannel = config.RegisterOption("minebot.action_channel", "Channel mod log entries and expiry notices are posted in", "")
)

// Config is the snapshot of moderation related settings a reversal needs,
// read from the config layers when the plugin starts
type Config struct {
	GuildID       string
	MuteRole      string
	VoiceMuteRole string
	ActionChannel string
}

func loadConfig() *Config {
	return &Config{
		GuildID:       common.ConfGuildID.GetString(),
		MuteRole:      confMuteRole.GetString(),
		VoiceMuteRole: confVoiceMuteRole.GetString(),
		ActionChannel: confActionChannel.GetString(),
	}
}

func RegisterPlugin() {
	common.InitSchemas("moderation", DBSchemas...)

	store := &sqlInfractionStore{DB: common.PQ}
	cfg := loadConfig()

	p := &Plugin{
		Reversals: NewReversalIndex(scheduler.New(), store, common.BotSession, cfg),
		store:     store,
		config:    cfg,
	}

	common.RegisterPlugin(p)
}

var (
	_ common.BotInitHandler    = (*Plugin)(nil)
	_ common.BotStopperHandler = (*Plugin)(nil)
)

// StopBot drops all pending reversals, they are re-derived from the
// database on the next startup
func (p *Plugin) StopBot(wg *sync.WaitGroup) {
	p.Reversals.ResetAll()
	wg.Done()
}

func (p *Plugin) BotInit() {
	commands.RegisterCommands(p.moderationCommands()...)

	common.BotSession.AddHandler(p.handleReady)
	common.BotSession.AddHandler(p.handleResumed)
}

// The gateway session was rebuilt, in-memory schedules are considered
// stale: drop everything and re-derive from still-active infractions.
func (p *Plugin) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	p.rescheduleAll()
}

func (p *Plugin) handleResumed(s *discordgo.Session, r *discordgo.Resumed) {
	p.rescheduleAll()
}

func (p *Plugin) rescheduleAll() {
	p.Reversals.ResetAll()

	n, err := p.Reversals.ScheduleAllPending()
	if err != nil {
		logger.WithError(err).Error("failed re-scheduling reversals from the database")
		return
	}

	logger.Infof("re-scheduled %d infraction reversals", n)
}
