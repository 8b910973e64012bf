package common

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	Plugins []Plugin
)

type PluginCategory struct {
	Name string
}

var (
	PluginCategoryCore       = &PluginCategory{Name: "Core"}
	PluginCategoryModeration = &PluginCategory{Name: "Moderation"}
	PluginCategoryFeeds      = &PluginCategory{Name: "Feeds"}
	PluginCategoryMisc       = &PluginCategory{Name: "Misc"}
)

type PluginInfo struct {
	Name     string // Human readable name of the plugin
	SysName  string // snake_case version of the name in lower case
	Category *PluginCategory
}

// Plugin represents a plugin, all plugins needs to implement this at a bare minimum
type Plugin interface {
	PluginInfo() *PluginInfo
}

// BotInitHandler is implemented by plugins that need to hook into the
// discord session (event handlers, commands) before it connects
type BotInitHandler interface {
	BotInit()
}

// BotStopperHandler is implemented by plugins with background work to wind
// down on shutdown, call wg.Done when finished
type BotStopperHandler interface {
	StopBot(wg *sync.WaitGroup)
}

// RegisterPlugin registers a plugin, should be called when the bot is starting up
func RegisterPlugin(plugin Plugin) {
	Plugins = append(Plugins, plugin)
	logrus.Info("Registered plugin: " + plugin.PluginInfo().Name)
}

// GetPluginLogger returns a logger with the plugin name attached, so log
// lines can be traced back to their subsystem
func GetPluginLogger(plugin Plugin) *logrus.Entry {
	return logrus.WithField("p", plugin.PluginInfo().SysName)
}
