package mcversion

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	jsoniter "github.com/json-iterator/go"
	"github.com/mediocregopher/radix/v3"
	"github.com/minebots-gg/minebot/common"
	"github.com/minebots-gg/minebot/feeds"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// PollInterval is how often the feeds are checked
	PollInterval = time.Second * 30
	// SettleDelay is waited once after startup so the rest of the bot
	// finishes initializing before the first fetch
	SettleDelay = time.Second * 10
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func (p *Plugin) StartFeed() {
	go p.runPoller()
}

func (p *Plugin) StopFeed(wg *sync.WaitGroup) {
	if p.Stop != nil {
		p.Stop <- wg
	} else {
		wg.Done()
	}
}

func (p *Plugin) runPoller() {
	p.loadState()

	select {
	case wg := <-p.Stop:
		wg.Done()
		return
	case <-time.After(SettleDelay):
	}

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	p.runCheck()
	for {
		select {
		case wg := <-p.Stop:
			wg.Done()
			return
		case <-ticker.C:
			p.runCheck()
		}
	}
}

// runCheck is the recurring-tick wrapper, all errors are contained here so
// the loop always survives to the next tick
func (p *Plugin) runCheck() {
	err := p.CheckVersions()
	if err == ErrCheckInProgress {
		logger.Info("version check still running, skipping tick")
		return
	}
	if err != nil {
		logger.WithError(err).Error("version check failed")
	}
}

// CheckVersions runs one full poll pass: the game version manifest first,
// then the issue tracker. Returns ErrCheckInProgress when a pass is
// already running instead of running concurrently.
func (p *Plugin) CheckVersions() error {
	p.mu.Lock()
	if p.checking {
		p.mu.Unlock()
		return ErrCheckInProgress
	}
	p.checking = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.checking = false
		p.mu.Unlock()
	}()

	if err := p.checkManifest(); err != nil {
		return errors.WithMessage(err, "manifest")
	}

	if err := p.checkJira(); err != nil {
		return errors.WithMessage(err, "jira")
	}

	return nil
}

type versionManifest struct {
	Latest   LatestVersions     `json:"latest"`
	Versions []MinecraftVersion `json:"versions"`
}

func (p *Plugin) checkManifest() error {
	manifestURL, _ := p.feedURLs()

	var manifest versionManifest
	if err := fetchJSON(manifestURL, &manifest); err != nil {
		return err
	}

	p.mu.Lock()
	cached := p.versions
	p.versions = manifest.Versions
	p.latest = manifest.Latest
	p.mu.Unlock()

	// persisted per feed as soon as the cache is replaced, a restart mid
	// pass must not reload a snapshot from before this announcement
	p.saveManifestState()

	// the very first fetch just baselines the cache
	if cached == nil {
		return nil
	}

	// newest first, the first unseen entry is the one announced, any
	// further new ones are absorbed into the cache silently
	for _, v := range manifest.Versions {
		if containsMinecraftVersion(cached, v) {
			continue
		}

		var msg string
		if v.Type == "release" {
			msg = fmt.Sprintf("A new version of Minecraft was just released: **%s**", v.ID)
		} else {
			msg = fmt.Sprintf("New snapshot out: **%s**", v.ID)
		}

		p.send(versionChannels(), "mcversion", msg)
		break
	}

	return nil
}

func (p *Plugin) checkJira() error {
	_, jiraURL := p.feedURLs()

	var fetched []JiraVersion
	if err := fetchJSON(jiraURL, &fetched); err != nil {
		return err
	}

	p.mu.Lock()
	cached := p.jiraVersions
	p.jiraVersions = fetched
	p.mu.Unlock()

	p.saveJiraState()

	if cached == nil {
		return nil
	}

	// oldest first, candidate is the first unseen entry that is not an
	// upstream "future version" placeholder
	for _, v := range fetched {
		if containsJiraVersion(cached, v) || isFutureVersion(v) {
			continue
		}

		p.send(jiraChannels(), "mojira", fmt.Sprintf("**%s** was just added to the Minecraft issue tracker", v.Name))
		break
	}

	return nil
}

func isFutureVersion(v JiraVersion) bool {
	return strings.Contains(strings.ToLower(v.Name), "future version")
}

func containsMinecraftVersion(list []MinecraftVersion, v MinecraftVersion) bool {
	for _, cur := range list {
		if cur == v {
			return true
		}
	}
	return false
}

func containsJiraVersion(list []JiraVersion, v JiraVersion) bool {
	for _, cur := range list {
		if cur == v {
			return true
		}
	}
	return false
}

func fetchJSON(url string, dst interface{}) error {
	resp, err := http.Get(url)
	if err != nil {
		return errors.WithMessage(err, "fetch")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected response status %d from %s", resp.StatusCode, url)
	}

	return errors.WithMessage(json.NewDecoder(resp.Body).Decode(dst), "decode")
}

// sendToDiscord delivers an announcement to each destination channel,
// news channels additionally get the message published to their followers
func (p *Plugin) sendToDiscord(channelIDs []string, source, content string) {
	for _, channelID := range channelIDs {
		m, err := common.BotSession.ChannelMessageSend(channelID, content)
		if err != nil {
			logger.WithError(err).WithField("channel", channelID).Error("failed sending version announcement")
			continue
		}

		feeds.MetricPostedMessages.With(prometheus.Labels{"source": source}).Inc()

		channel, err := common.BotSession.Channel(channelID)
		if err != nil {
			logger.WithError(err).WithField("channel", channelID).Error("failed looking up announcement channel")
			continue
		}

		if channel.Type == discordgo.ChannelTypeGuildNews {
			_, err = common.BotSession.ChannelMessageCrosspost(channelID, m.ID)
			if err != nil {
				logger.WithError(err).WithField("channel", channelID).Error("failed crossposting announcement")
			}
		}
	}
}

// redis keys holding the last seen feed state, loaded on startup so a
// restart does not re-baseline (or worse, re-announce)
const (
	redisKeyVersions = "mcversion_versions"
	redisKeyLatest   = "mcversion_latest"
	redisKeyJira     = "mcversion_jira"
)

func (p *Plugin) loadState() {
	var versions []MinecraftVersion
	var latest LatestVersions
	var jira []JiraVersion

	if !loadJSONKey(redisKeyVersions, &versions) || !loadJSONKey(redisKeyJira, &jira) {
		return
	}
	loadJSONKey(redisKeyLatest, &latest)

	p.mu.Lock()
	p.versions = versions
	p.latest = latest
	p.jiraVersions = jira
	p.mu.Unlock()

	logger.Infof("restored version feed state, %d game versions, %d tracker versions", len(versions), len(jira))
}

func (p *Plugin) saveManifestState() {
	p.mu.Lock()
	versions := p.versions
	latest := p.latest
	p.mu.Unlock()

	saveJSONKey(redisKeyVersions, versions)
	saveJSONKey(redisKeyLatest, latest)
}

func (p *Plugin) saveJiraState() {
	p.mu.Lock()
	jira := p.jiraVersions
	p.mu.Unlock()

	saveJSONKey(redisKeyJira, jira)
}

func loadJSONKey(key string, dst interface{}) bool {
	if common.RedisPool == nil {
		return false
	}

	var raw string
	err := common.RedisPool.Do(radix.Cmd(&raw, "GET", key))
	if err != nil || raw == "" {
		return false
	}

	err = json.UnmarshalFromString(raw, dst)
	if err != nil {
		logger.WithError(err).Error("failed decoding feed state from redis, key ", key)
		return false
	}

	return true
}

// a var so tests can observe what would be persisted without redis
var saveJSONKey = func(key string, v interface{}) {
	if common.RedisPool == nil {
		return
	}

	serialized, err := json.MarshalToString(v)
	if err != nil {
		logger.WithError(err).Error("failed encoding feed state, key ", key)
		return
	}

	err = common.RedisPool.Do(radix.FlatCmd(nil, "SET", key, serialized))
	if err != nil {
		logger.WithError(err).Error("failed persisting feed state, key ", key)
	}
}
