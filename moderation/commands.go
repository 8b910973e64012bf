package moderation

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/minebots-gg/minebot/commands"
)

func (p *Plugin) moderationCommands() []*commands.Command {
	return []*commands.Command{
		{
			Name:          "mute",
			Description:   "Mutes a member, optionally for a limited duration (eg 10m, 2h)",
			RequiredPerms: discordgo.PermissionKickMembers,
			Run: func(data *commands.Data) (interface{}, error) {
				return p.runMuteCmd(InfractionMute, data)
			},
		},
		{
			Name:          "voicemute",
			Aliases:       []string{"vmute"},
			Description:   "Voice mutes a member, optionally for a limited duration",
			RequiredPerms: discordgo.PermissionKickMembers,
			Run: func(data *commands.Data) (interface{}, error) {
				return p.runMuteCmd(InfractionVoiceMute, data)
			},
		},
		{
			Name:          "unmute",
			Description:   "Unmutes a member early",
			RequiredPerms: discordgo.PermissionKickMembers,
			Run: func(data *commands.Data) (interface{}, error) {
				return p.runUnmuteCmd(InfractionMute, data)
			},
		},
		{
			Name:          "unvoicemute",
			Description:   "Removes a voice mute early",
			RequiredPerms: discordgo.PermissionKickMembers,
			Run: func(data *commands.Data) (interface{}, error) {
				return p.runUnmuteCmd(InfractionVoiceMute, data)
			},
		},
		{
			Name:          "ban",
			Description:   "Bans a member, optionally for a limited duration",
			RequiredPerms: discordgo.PermissionBanMembers,
			Run:           p.runBanCmd,
		},
		{
			Name:          "unban",
			Description:   "Lifts a ban early",
			RequiredPerms: discordgo.PermissionBanMembers,
			Run:           p.runUnbanCmd,
		},
		{
			Name:          "warn",
			Description:   "Warns a member",
			RequiredPerms: discordgo.PermissionKickMembers,
			Run:           p.runWarnCmd,
		},
	}
}

func (p *Plugin) runMuteCmd(typ InfractionType, data *commands.Data) (interface{}, error) {
	userID, rest, ok := parseTarget(data.Args)
	if !ok {
		return "Usage: `<user> [duration] [reason]`", nil
	}

	duration, reason := parseDurationAndReason(rest)

	err := p.MuteUser(typ, data.Msg.Author, userID, reason, duration)
	if err == ErrNoMuteRole {
		return "No role configured for this mute kind.", nil
	} else if err != nil {
		return nil, err
	}

	return "👌 " + fmtUser(userID) + " was " + typ.String() + "d.", nil
}

func (p *Plugin) runUnmuteCmd(typ InfractionType, data *commands.Data) (interface{}, error) {
	userID, rest, ok := parseTarget(data.Args)
	if !ok {
		return "Usage: `<user> [reason]`", nil
	}

	err := p.UnmuteUser(typ, data.Msg.Author, userID, strings.Join(rest, " "))
	if err == ErrNotActive {
		return "That user has no active " + typ.String() + ".", nil
	} else if err == ErrNoMuteRole {
		return "No role configured for this mute kind.", nil
	} else if err != nil {
		return nil, err
	}

	return "👌 " + fmtUser(userID) + " was unmuted.", nil
}

func (p *Plugin) runBanCmd(data *commands.Data) (interface{}, error) {
	userID, rest, ok := parseTarget(data.Args)
	if !ok {
		return "Usage: `<user> [duration] [reason]`", nil
	}

	duration, reason := parseDurationAndReason(rest)

	err := p.BanUser(data.Msg.Author, userID, reason, duration)
	if err != nil {
		return nil, err
	}

	return "👌 " + fmtUser(userID) + " was banned.", nil
}

func (p *Plugin) runUnbanCmd(data *commands.Data) (interface{}, error) {
	userID, rest, ok := parseTarget(data.Args)
	if !ok {
		return "Usage: `<user> [reason]`", nil
	}

	err := p.UnbanUser(data.Msg.Author, userID, strings.Join(rest, " "))
	if err == ErrNotActive {
		return "That user has no active ban on record.", nil
	} else if err != nil {
		return nil, err
	}

	return "👌 " + fmtUser(userID) + " was unbanned.", nil
}

func (p *Plugin) runWarnCmd(data *commands.Data) (interface{}, error) {
	userID, rest, ok := parseTarget(data.Args)
	if !ok || len(rest) == 0 {
		return "Usage: `<user> <reason>`", nil
	}

	err := p.WarnUser(data.Msg.Author, userID, strings.Join(rest, " "))
	if err != nil {
		return nil, err
	}

	return "👌 " + fmtUser(userID) + " was warned.", nil
}

// parseTarget accepts a raw id or a mention as the first argument
func parseTarget(args []string) (userID string, rest []string, ok bool) {
	if len(args) == 0 {
		return "", nil, false
	}

	raw := strings.TrimSuffix(strings.TrimPrefix(args[0], "<@"), ">")
	raw = strings.TrimPrefix(raw, "!")

	if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
		return "", nil, false
	}

	return raw, args[1:], true
}

// parseDurationAndReason treats the first remaining arg as a duration when
// it parses as one ("90m", "2h"), bare numbers are minutes, everything
// else is the reason
func parseDurationAndReason(args []string) (time.Duration, string) {
	if len(args) == 0 {
		return 0, ""
	}

	if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
		return time.Duration(n) * time.Minute, strings.Join(args[1:], " ")
	}

	if d, err := time.ParseDuration(args[0]); err == nil && d > 0 {
		return d, strings.Join(args[1:], " ")
	}

	return 0, strings.Join(args, " ")
}
