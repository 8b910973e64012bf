package feeds

import (
	"sync"

	"github.com/minebots-gg/minebot/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// MetricPostedMessages tracks announcements delivered per feed source
var MetricPostedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "minebot_feeds_posted_messages_total",
	Help: "Feed announcement messages posted",
}, []string{"source"})

// Plugin is implemented by plugins running a background feed
type Plugin interface {
	common.Plugin

	StartFeed()
	StopFeed(*sync.WaitGroup)
}

var Plugins []Plugin

// RegisterPlugin registers a feed plugin alongside its core plugin registration
func RegisterPlugin(plugin Plugin) {
	Plugins = append(Plugins, plugin)
	common.RegisterPlugin(plugin)
}

// Run starts all registered feeds
func Run() {
	for _, plugin := range Plugins {
		logrus.Info("Starting feed ", plugin.PluginInfo().Name)
		go plugin.StartFeed()
	}
}

// Stop signals all feeds to stop, wg is incremented per feed and released
// as each one finishes
func Stop(wg *sync.WaitGroup) {
	for _, plugin := range Plugins {
		logrus.Info("Stopping feed ", plugin.PluginInfo().Name)
		wg.Add(1)
		go plugin.StopFeed(wg)
	}
}
