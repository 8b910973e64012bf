package moderation

import (
	"database/sql"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/minebots-gg/minebot/common/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu              sync.Mutex
	inactive        []int64
	expiring        []*Infraction
	failSetInactive error

	// when set, SetInactive signals entered and parks until released,
	// letting tests hold a reversal mid-fire
	enteredSetInactive chan struct{}
	releaseSetInactive chan struct{}
}

func (f *fakeStore) SetInactive(id int64) error {
	if f.enteredSetInactive != nil {
		f.enteredSetInactive <- struct{}{}
		<-f.releaseSetInactive
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failSetInactive != nil {
		return f.failSetInactive
	}

	f.inactive = append(f.inactive, id)
	return nil
}

func (f *fakeStore) ActiveExpiring() ([]*Infraction, error) {
	return f.expiring, nil
}

func (f *fakeStore) inactiveIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]int64, len(f.inactive))
	copy(out, f.inactive)
	return out
}

type fakeDiscord struct {
	mu           sync.Mutex
	roleRemovals [][3]string // guild, user, role
	banDeletes   [][2]string // guild, user
	embeds       []*discordgo.MessageEmbed
	roleErr      error
}

func (f *fakeDiscord) GuildMemberRoleRemove(guildID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.roleErr != nil {
		return f.roleErr
	}

	f.roleRemovals = append(f.roleRemovals, [3]string{guildID, userID, roleID})
	return nil
}

func (f *fakeDiscord) GuildBanDelete(guildID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.banDeletes = append(f.banDeletes, [2]string{guildID, userID})
	return nil
}

func (f *fakeDiscord) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.embeds = append(f.embeds, embed)
	return &discordgo.Message{ID: "1", ChannelID: channelID}, nil
}

func (f *fakeDiscord) numBanDeletes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.banDeletes)
}

func (f *fakeDiscord) numEmbeds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.embeds)
}

func testConfig() *Config {
	return &Config{
		GuildID:       "100",
		MuteRole:      "200",
		VoiceMuteRole: "201",
		ActionChannel: "300",
	}
}

func newTestIndex() (*ReversalIndex, *fakeStore, *fakeDiscord) {
	store := &fakeStore{}
	discord := &fakeDiscord{}
	ri := NewReversalIndex(scheduler.New(), store, discord, testConfig())
	return ri, store, discord
}

func notFoundErr() error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: 404},
	}
}

func TestPastExpiryFiresImmediately(t *testing.T) {
	ri, store, discord := newTestIndex()

	ri.ScheduleReversal(InfractionMute, "55", 1, time.Now().Add(-time.Hour))

	require.Eventually(t, func() bool {
		return len(store.inactiveIDs()) == 1
	}, time.Second*5, time.Millisecond*10, "past-due reversal never fired")

	discord.mu.Lock()
	require.Len(t, discord.roleRemovals, 1)
	assert.Equal(t, [3]string{"100", "55", "200"}, discord.roleRemovals[0])
	discord.mu.Unlock()
}

func TestBanReversal(t *testing.T) {
	ri, store, discord := newTestIndex()

	ri.ScheduleReversal(InfractionBan, "77", 42, time.Now().Add(time.Millisecond*20))

	require.Eventually(t, func() bool {
		return discord.numBanDeletes() == 1
	}, time.Second*5, time.Millisecond*10)

	// give the rest of the firing path a moment to finish
	require.Eventually(t, func() bool {
		_, stillThere := ri.lookup(42)
		return !stillThere
	}, time.Second*5, time.Millisecond*10, "index entry not removed after firing")

	discord.mu.Lock()
	assert.Equal(t, [2]string{"100", "77"}, discord.banDeletes[0])
	assert.Len(t, discord.banDeletes, 1, "unban called more than once")
	discord.mu.Unlock()

	assert.Equal(t, []int64{42}, store.inactiveIDs(), "marked inactive more than once or not at all")
	assert.Equal(t, 1, discord.numEmbeds(), "expected exactly one expiry notice")
}

func TestVoiceMuteRemovesVoiceRole(t *testing.T) {
	ri, _, discord := newTestIndex()

	ri.ScheduleReversal(InfractionVoiceMute, "55", 2, time.Now())

	require.Eventually(t, func() bool {
		discord.mu.Lock()
		defer discord.mu.Unlock()
		return len(discord.roleRemovals) == 1
	}, time.Second*5, time.Millisecond*10)

	discord.mu.Lock()
	assert.Equal(t, "201", discord.roleRemovals[0][2])
	discord.mu.Unlock()
}

func TestCancelRemovesEntry(t *testing.T) {
	ri, store, _ := newTestIndex()

	ri.ScheduleReversal(InfractionMute, "55", 7, time.Now().Add(time.Hour))
	_, ok := ri.lookup(7)
	require.True(t, ok)

	ri.Cancel(7)

	_, ok = ri.lookup(7)
	assert.False(t, ok, "entry still present after cancel")
	assert.Equal(t, 0, ri.Pending())
	assert.Empty(t, store.inactiveIDs())
}

func TestResetAll(t *testing.T) {
	ri, _, _ := newTestIndex()

	for i := int64(1); i <= 25; i++ {
		ri.ScheduleReversal(InfractionBan, "55", i, time.Now().Add(time.Hour))
	}
	require.Equal(t, 25, ri.Pending())

	ri.ResetAll()

	assert.Equal(t, 0, ri.Pending())
	assert.Equal(t, 0, ri.sched.Pending(), "scheduler still has jobs after ResetAll")
}

func TestNonExpiringTypesAreNoop(t *testing.T) {
	ri, _, _ := newTestIndex()

	ri.ScheduleReversal(InfractionWarn, "55", 1, time.Now().Add(time.Hour))
	ri.ScheduleReversal(InfractionKick, "55", 2, time.Now().Add(time.Hour))

	assert.Equal(t, 0, ri.Pending())
}

func TestMemberGoneSkipsRoleSilently(t *testing.T) {
	ri, store, discord := newTestIndex()
	discord.roleErr = notFoundErr()

	ri.ScheduleReversal(InfractionMute, "55", 9, time.Now())

	require.Eventually(t, func() bool {
		return len(store.inactiveIDs()) == 1
	}, time.Second*5, time.Millisecond*10)

	// the moderation effect was moot but the bookkeeping still happens
	assert.Equal(t, []int64{9}, store.inactiveIDs())
	assert.Equal(t, 1, discord.numEmbeds())
}

func TestStoreFailureStillPostsNotice(t *testing.T) {
	ri, store, discord := newTestIndex()
	store.failSetInactive = sql.ErrConnDone

	ri.ScheduleReversal(InfractionMute, "55", 4, time.Now())

	require.Eventually(t, func() bool {
		return discord.numEmbeds() == 1
	}, time.Second*5, time.Millisecond*10, "notice was blocked by the store failure")
}

func TestScheduleAllPending(t *testing.T) {
	ri, store, _ := newTestIndex()
	store.expiring = []*Infraction{
		{ID: 1, UserID: "55", Type: InfractionMute, ExpiresAt: sql.NullTime{Time: time.Now().Add(time.Hour), Valid: true}},
		{ID: 2, UserID: "56", Type: InfractionBan, ExpiresAt: sql.NullTime{Time: time.Now().Add(time.Hour), Valid: true}},
	}

	n, err := ri.ScheduleAllPending()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, ri.Pending())
}

func TestInFlightFireKeepsRescheduledEntry(t *testing.T) {
	ri, store, discord := newTestIndex()
	store.enteredSetInactive = make(chan struct{})
	store.releaseSetInactive = make(chan struct{})

	ri.ScheduleReversal(InfractionMute, "55", 1, time.Now())

	// the job is now parked inside the store update, mid-fire
	<-store.enteredSetInactive

	// the reconnect bootstrap re-derives a schedule for the same
	// infraction while the old job is still firing
	ri.ScheduleReversal(InfractionMute, "55", 1, time.Now().Add(time.Hour))

	close(store.releaseSetInactive)

	require.Eventually(t, func() bool {
		return discord.numEmbeds() == 1
	}, time.Second*5, time.Millisecond*10, "old firing never finished")

	_, ok := ri.lookup(1)
	assert.True(t, ok, "re-scheduled entry was removed by the old firing")
	assert.Equal(t, 1, ri.Pending())
	assert.Equal(t, 1, ri.sched.Pending())

	// and the pardon path can still reach the new job
	ri.Cancel(1)
	assert.Equal(t, 0, ri.Pending())
	assert.Equal(t, 0, ri.sched.Pending())
}

func TestRescheduleReplacesEntry(t *testing.T) {
	ri, _, _ := newTestIndex()

	ri.ScheduleReversal(InfractionMute, "55", 3, time.Now().Add(time.Hour))
	ri.ScheduleReversal(InfractionMute, "55", 3, time.Now().Add(time.Minute*30))

	assert.Equal(t, 1, ri.Pending())
	assert.Equal(t, 1, ri.sched.Pending(), "old job was not cancelled on reschedule")
}
