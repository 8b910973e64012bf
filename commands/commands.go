// Package commands is a small prefix command layer on top of the discord
// session, plugins register their commands during BotInit and responses
// returned from a run function are sent back to the invoking channel.
package commands

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/minebots-gg/minebot/common"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("p", "commands")

type Data struct {
	Session *discordgo.Session
	Msg     *discordgo.Message
	Args    []string
}

type Command struct {
	Name        string
	Aliases     []string
	Description string

	// Permission bits the member needs in the invoking channel, 0 means
	// anyone can run it. The bot owner always passes.
	RequiredPerms int64

	Run func(data *Data) (interface{}, error)
}

var registry = make(map[string]*Command)

// RegisterCommands adds commands to the registry, names and aliases are case insensitive
func RegisterCommands(cmds ...*Command) {
	for _, cmd := range cmds {
		registry[strings.ToLower(cmd.Name)] = cmd
		for _, alias := range cmd.Aliases {
			registry[strings.ToLower(alias)] = cmd
		}
	}
}

// InitCommands attaches the message handler, called once after all plugins
// registered their commands
func InitCommands() {
	common.BotSession.AddHandler(handleMessageCreate)
	logger.Infof("Initialized %d commands", len(registry))
}

func handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	prefix := common.ConfCommandPrefix.GetString()
	if !strings.HasPrefix(m.Content, prefix) {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(m.Content, prefix))
	if len(fields) == 0 {
		return
	}

	cmd, ok := registry[strings.ToLower(fields[0])]
	if !ok {
		return
	}

	if !hasRequiredPerms(s, m, cmd) {
		s.ChannelMessageSend(m.ChannelID, "You lack the required permissions for that command.")
		return
	}

	resp, err := cmd.Run(&Data{
		Session: s,
		Msg:     m.Message,
		Args:    fields[1:],
	})
	if err != nil {
		logger.WithError(err).Errorf("Command %s returned an error", cmd.Name)
		if resp == nil {
			resp = "An error occurred."
		}
	}

	switch v := resp.(type) {
	case string:
		if v != "" {
			s.ChannelMessageSend(m.ChannelID, v)
		}
	case *discordgo.MessageEmbed:
		s.ChannelMessageSendEmbed(m.ChannelID, v)
	}
}

func hasRequiredPerms(s *discordgo.Session, m *discordgo.MessageCreate, cmd *Command) bool {
	if cmd.RequiredPerms == 0 {
		return true
	}

	if m.Author.ID == common.ConfBotOwner.GetString() {
		return true
	}

	perms, err := s.State.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		perms, err = memberPermissions(s, m)
		if err != nil {
			logger.WithError(err).Error("Failed retrieving member permissions")
			return false
		}
	}

	return perms&cmd.RequiredPerms == cmd.RequiredPerms || perms&discordgo.PermissionAdministrator != 0
}

// memberPermissions is the rest fallback for when the member is not cached
func memberPermissions(s *discordgo.Session, m *discordgo.MessageCreate) (int64, error) {
	member, err := s.GuildMember(m.GuildID, m.Author.ID)
	if err != nil {
		return 0, err
	}

	guild, err := s.Guild(m.GuildID)
	if err != nil {
		return 0, err
	}

	var perms int64
	for _, roleID := range member.Roles {
		for _, role := range guild.Roles {
			if role.ID == roleID {
				perms |= int64(role.Permissions)
			}
		}
	}

	if m.Author.ID == guild.OwnerID {
		perms |= discordgo.PermissionAdministrator
	}

	return perms, nil
}
