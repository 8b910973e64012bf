// Package mcversion watches the Minecraft version manifest and the Mojira
// issue tracker for newly published versions and announces them to the
// configured channels.
package mcversion

import (
	"strings"
	"sync"

	"emperror.dev/errors"
	"github.com/minebots-gg/minebot/common"
	"github.com/minebots-gg/minebot/common/config"
)

const (
	DefaultManifestURL = "https://launchermeta.mojang.com/mc/game/version_manifest.json"
	DefaultJiraURL     = "https://bugs.mojang.com/rest/api/2/project/MC/versions"
)

// ErrCheckInProgress is returned when a check is requested while another
// one is still running, passes never run concurrently
const ErrCheckInProgress = errors.Sentinel("a version check is already running")

var (
	confManifestURL = config.RegisterOption("minebot.mcversion.manifest_url", "Minecraft version manifest endpoint", DefaultManifestURL)
	confJiraURL     = config.RegisterOption("minebot.mcversion.jira_url", "Mojira versions endpoint", DefaultJiraURL)

	confVersionChannels = config.RegisterOption("minebot.mcversion.version_channels", "Comma separated channels game version announcements go to", "")
	confJiraChannels    = config.RegisterOption("minebot.mcversion.jira_channels", "Comma separated channels issue tracker announcements go to", "")
)

// MinecraftVersion is one entry of the game version manifest, the feed is
// ordered most recent first
type MinecraftVersion struct {
	ID   string `json:"id"`
	Type string `json:"type"` // release|snapshot
}

// LatestVersions is the manifest's distinguished latest pointer, replaced
// wholesale on every successful poll
type LatestVersions struct {
	Release  string `json:"release"`
	Snapshot string `json:"snapshot"`
}

// JiraVersion is one entry of the issue tracker version list, ordered
// oldest first
type JiraVersion struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Plugin struct {
	Stop chan *sync.WaitGroup

	// guards everything below, including the re-entrancy flag
	mu       sync.Mutex
	checking bool

	versions     []MinecraftVersion
	latest       LatestVersions
	jiraVersions []JiraVersion

	manifestURL string
	jiraURL     string

	// announcement delivery, swapped out in tests
	send func(channelIDs []string, source, content string)
}

var logger = common.GetPluginLogger(&Plugin{})

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Minecraft Versions",
		SysName:  "mcversion",
		Category: common.PluginCategoryFeeds,
	}
}

func newPlugin() *Plugin {
	// the stop channel exists before the poller goroutine starts so a
	// shutdown racing startup always has somewhere to hand its WaitGroup
	p := &Plugin{
		Stop:        make(chan *sync.WaitGroup),
		manifestURL: confManifestURL.GetString(),
		jiraURL:     confJiraURL.GetString(),
	}
	p.send = p.sendToDiscord
	return p
}

// Latest returns the cached latest release and snapshot pointers
func (p *Plugin) Latest() LatestVersions {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.latest
}

// SetFeedURLs swaps the polled endpoints at runtime, only reachable
// through the setversionfeeds command in testing environments
func (p *Plugin) SetFeedURLs(manifestURL, jiraURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.manifestURL = manifestURL
	p.jiraURL = jiraURL
}

func (p *Plugin) feedURLs() (string, string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.manifestURL, p.jiraURL
}

func versionChannels() []string {
	return splitChannels(confVersionChannels.GetString())
}

func jiraChannels() []string {
	return splitChannels(confJiraChannels.GetString())
}

func splitChannels(raw string) []string {
	if raw == "" {
		return nil
	}

	split := strings.Split(raw, ",")
	out := make([]string, 0, len(split))
	for _, v := range split {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
