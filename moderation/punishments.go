package moderation

import (
	"database/sql"
	"fmt"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/minebots-gg/minebot/common"
)

const (
	ErrNoMuteRole    = errors.Sentinel("no mute role configured")
	ErrAlreadyActive = errors.Sentinel("user already has an active infraction of this type")
	ErrNotActive     = errors.Sentinel("user has no active infraction of this type")
)

// MuteUser assigns the mute role matching the infraction type, records the
// infraction and schedules the reversal when a duration is given.
// duration <= 0 means the mute never expires on its own.
func (p *Plugin) MuteUser(typ InfractionType, author *discordgo.User, userID, reason string, duration time.Duration) error {
	roleID := p.config.MuteRole
	action := MAMute
	if typ == InfractionVoiceMute {
		roleID = p.config.VoiceMuteRole
		action = MAVoiceMute
	}
	if roleID == "" {
		return ErrNoMuteRole
	}

	err := common.BotSession.GuildMemberRoleAdd(p.config.GuildID, userID, roleID)
	if err != nil {
		return errors.WithMessage(err, "add mute role")
	}

	inf, err := p.createInfraction(typ, author, userID, reason, duration)
	if err != nil {
		return err
	}

	if duration > 0 {
		action.Footer = "Expires after: " + duration.String()
		p.Reversals.ScheduleReversal(typ, userID, inf.ID, inf.ExpiresAt.Time)
	}

	logger.Infof("MODERATION: %s %s %s cause %q", author.Username, action.Prefix, userID, reason)
	p.postModlog(author, action, userID, reason)
	return nil
}

// UnmuteUser is the pardon path, it removes the role, marks the newest
// active mute infraction inactive and cancels its pending reversal
func (p *Plugin) UnmuteUser(typ InfractionType, author *discordgo.User, userID, reason string) error {
	roleID := p.config.MuteRole
	if typ == InfractionVoiceMute {
		roleID = p.config.VoiceMuteRole
	}
	if roleID == "" {
		return ErrNoMuteRole
	}

	err := common.BotSession.GuildMemberRoleRemove(p.config.GuildID, userID, roleID)
	if err != nil && !common.IsDiscordNotFound(err) {
		return errors.WithMessage(err, "remove mute role")
	}

	err = p.deactivateInfraction(userID, typ)
	if err != nil {
		return err
	}

	logger.Infof("MODERATION: %s %s %s cause %q", author.Username, MAUnmute.Prefix, userID, reason)
	p.postModlog(author, MAUnmute, userID, reason)
	return nil
}

// BanUser bans, records the infraction and schedules the unban when a
// duration is given
func (p *Plugin) BanUser(author *discordgo.User, userID, reason string, duration time.Duration) error {
	fullReason := author.String() + ": " + reason
	err := common.BotSession.GuildBanCreateWithReason(p.config.GuildID, userID, fullReason, 1)
	if err != nil {
		return errors.WithMessage(err, "ban")
	}

	inf, err := p.createInfraction(InfractionBan, author, userID, reason, duration)
	if err != nil {
		return err
	}

	action := MABanned
	if duration > 0 {
		action.Footer = "Expires after: " + duration.String()
		p.Reversals.ScheduleReversal(InfractionBan, userID, inf.ID, inf.ExpiresAt.Time)
	}

	logger.Infof("MODERATION: %s %s %s cause %q", author.Username, action.Prefix, userID, reason)
	p.postModlog(author, action, userID, reason)
	return nil
}

// UnbanUser lifts a ban early and cancels its pending reversal
func (p *Plugin) UnbanUser(author *discordgo.User, userID, reason string) error {
	err := common.BotSession.GuildBanDelete(p.config.GuildID, userID)
	if err != nil && !common.IsDiscordNotFound(err) {
		return errors.WithMessage(err, "unban")
	}

	err = p.deactivateInfraction(userID, InfractionBan)
	if err != nil {
		return err
	}

	logger.Infof("MODERATION: %s %s %s cause %q", author.Username, MAUnbanned.Prefix, userID, reason)
	p.postModlog(author, MAUnbanned, userID, reason)
	return nil
}

// WarnUser records a warning, warnings are permanent and never schedule a reversal
func (p *Plugin) WarnUser(author *discordgo.User, userID, reason string) error {
	_, err := p.createInfraction(InfractionWarn, author, userID, reason, 0)
	if err != nil {
		return err
	}

	p.postModlog(author, MAWarned, userID, reason)
	return nil
}

func (p *Plugin) createInfraction(typ InfractionType, author *discordgo.User, userID, reason string, duration time.Duration) (*Infraction, error) {
	inf := &Infraction{
		UserID:   userID,
		AuthorID: author.ID,
		Type:     typ,
		Reason:   reason,
	}
	if duration > 0 {
		inf.ExpiresAt = sql.NullTime{Time: time.Now().Add(duration), Valid: true}
	}

	err := p.store.Create(inf)
	if err != nil {
		return nil, errors.WithMessage(err, "create infraction")
	}

	return inf, nil
}

func (p *Plugin) deactivateInfraction(userID string, typ InfractionType) error {
	inf, err := p.store.ActiveByUser(userID, typ)
	if err == sql.ErrNoRows {
		return ErrNotActive
	} else if err != nil {
		return errors.WithStackIf(err)
	}

	if err := p.store.SetInactive(inf.ID); err != nil {
		return err
	}

	p.Reversals.Cancel(inf.ID)
	return nil
}

func (p *Plugin) postModlog(author *discordgo.User, action ModlogAction, userID, reason string) {
	if p.config.ActionChannel == "" {
		return
	}

	embed := modlogEmbed(author, action, userID, reason)
	_, err := common.BotSession.ChannelMessageSendEmbed(p.config.ActionChannel, embed)
	if err != nil {
		logger.WithError(err).Error("failed posting mod log entry")
	}
}

func fmtUser(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}
