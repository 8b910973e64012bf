package moderation

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/minebots-gg/minebot/common"
	"github.com/minebots-gg/minebot/common/scheduler"
	"github.com/sirupsen/logrus"
)

// DiscordActions is the slice of the discord session the reversal index
// uses, satisfied by *discordgo.Session
type DiscordActions interface {
	GuildMemberRoleRemove(guildID, userID, roleID string) error
	GuildBanDelete(guildID, userID string) error
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error)
}

// ReversalIndex bridges infraction ids to scheduler handles so the timed
// undoing of an infraction can be cancelled early (pardon) or dropped
// wholesale (reconnect). Entries are removed when their job fires or is
// cancelled, there is at most one entry per infraction id.
type ReversalIndex struct {
	mu      sync.Mutex
	entries map[int64]scheduler.Handle

	sched   *scheduler.Scheduler
	store   InfractionStore
	discord DiscordActions
	config  *Config
}

func NewReversalIndex(sched *scheduler.Scheduler, store InfractionStore, discord DiscordActions, config *Config) *ReversalIndex {
	return &ReversalIndex{
		entries: make(map[int64]scheduler.Handle),
		sched:   sched,
		store:   store,
		discord: discord,
		config:  config,
	}
}

// ScheduleReversal schedules the undoing of an infraction at expiresAt.
// Expiry times in the past fire near-immediately. Types with nothing to
// reverse (warns, kicks) are a no-op. An already scheduled reversal for
// the same infraction id is replaced.
func (ri *ReversalIndex) ScheduleReversal(typ InfractionType, userID string, infractionID int64, expiresAt time.Time) {
	if !typ.Expires() {
		return
	}

	ri.mu.Lock()
	defer ri.mu.Unlock()

	if old, ok := ri.entries[infractionID]; ok {
		ri.sched.Cancel(old)
	}

	// the callback identifies itself through self so the cleanup in fire
	// can tell whether the index entry still belongs to it. *self is
	// written while ri.mu is held and the callback re-acquires ri.mu
	// before reading it, so even a zero delay job sees the assignment.
	delay := time.Until(expiresAt)
	self := new(scheduler.Handle)
	*self = ri.sched.Schedule(delay, func() {
		ri.fire(typ, userID, infractionID, self)
	})
	ri.entries[infractionID] = *self
}

// Cancel removes a pending reversal, used when an operator pardons the
// infraction before its natural expiry. No-op for unknown ids.
func (ri *ReversalIndex) Cancel(infractionID int64) {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	handle, ok := ri.entries[infractionID]
	if !ok {
		return
	}

	ri.sched.Cancel(handle)
	delete(ri.entries, infractionID)
}

// ResetAll cancels every pending reversal and clears the index, the caller
// is expected to re-derive fresh schedules from the database afterwards
func (ri *ReversalIndex) ResetAll() {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	for _, handle := range ri.entries {
		ri.sched.Cancel(handle)
	}

	ri.entries = make(map[int64]scheduler.Handle)
}

// ScheduleAllPending schedules a reversal for every still-active expiring
// infraction in the store, the restart/reconnect bootstrap path
func (ri *ReversalIndex) ScheduleAllPending() (int, error) {
	pending, err := ri.store.ActiveExpiring()
	if err != nil {
		return 0, err
	}

	for _, inf := range pending {
		ri.ScheduleReversal(inf.Type, inf.UserID, inf.ID, inf.ExpiresAt.Time)
	}

	return len(pending), nil
}

// Pending returns the number of reversals currently scheduled
func (ri *ReversalIndex) Pending() int {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	return len(ri.entries)
}

func (ri *ReversalIndex) lookup(infractionID int64) (scheduler.Handle, bool) {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	handle, ok := ri.entries[infractionID]
	return handle, ok
}

// fire undoes the infraction's effect, marks it inactive and posts the
// expiry notice. The store update and the notice are independent, a
// failure in one does not stop the other.
func (ri *ReversalIndex) fire(typ InfractionType, userID string, infractionID int64, self *scheduler.Handle) {
	l := logger.WithField("infraction", infractionID).WithField("user", userID)

	switch typ {
	case InfractionBan:
		err := ri.discord.GuildBanDelete(ri.config.GuildID, userID)
		if err != nil && !common.IsDiscordNotFound(err) {
			l.WithError(err).Error("failed lifting expired ban")
		}
	case InfractionMute:
		ri.removeRole(l, userID, ri.config.MuteRole)
	case InfractionVoiceMute:
		ri.removeRole(l, userID, ri.config.VoiceMuteRole)
	default:
		// non-expiring types are never scheduled
		l.Error("reversal fired for non-expiring infraction type ", typ)
	}

	if err := ri.store.SetInactive(infractionID); err != nil {
		l.WithError(err).Error("failed marking infraction inactive")
	}

	ri.postExpiryNotice(typ, userID, infractionID)

	// remove the entry only if it still refers to this job, a reconnect
	// may have re-scheduled the infraction while this firing was in
	// flight and that newer job must stay cancellable
	ri.mu.Lock()
	if cur, ok := ri.entries[infractionID]; ok && cur == *self {
		delete(ri.entries, infractionID)
	}
	ri.mu.Unlock()
}

// removeRole takes the punishment role off the member, silently skipped
// when they are no longer on the guild since the effect is moot
func (ri *ReversalIndex) removeRole(l *logrus.Entry, userID, roleID string) {
	if roleID == "" {
		l.Error("no role configured for this mute kind")
		return
	}

	err := ri.discord.GuildMemberRoleRemove(ri.config.GuildID, userID, roleID)
	if err != nil && !common.IsDiscordNotFound(err) {
		l.WithError(err).Error("failed removing punishment role")
	}
}

func (ri *ReversalIndex) postExpiryNotice(typ InfractionType, userID string, infractionID int64) {
	if ri.config.ActionChannel == "" {
		return
	}

	action := MAUnmute
	if typ == InfractionBan {
		action = MAUnbanned
	}
	action.Footer = fmt.Sprintf("Infraction #%d • %s expired", infractionID, typ)

	embed := modlogEmbed(nil, action, userID, fmt.Sprintf("%s expired", typ))
	_, err := ri.discord.ChannelMessageSendEmbed(ri.config.ActionChannel, embed)
	if err != nil {
		logger.WithError(err).WithField("infraction", infractionID).Error("failed posting expiry notice")
	}
}
