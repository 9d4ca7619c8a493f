package common

import (
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
	PluginCategoryFun        = &PluginCategory{Name: "Fun"}
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

// RegisterPlugin registers a plugin, should be called when the bot is starting up
func RegisterPlugin(plugin Plugin) {
	Plugins = append(Plugins, plugin)
	logrus.Info("Registered plugin: " + plugin.PluginInfo().Name)
}

// GuildDataRemover is implemented by plugins keeping per guild state that should go when the bot leaves
type GuildDataRemover interface {
	RemoveGuildData(guildID string) error
}

// RemoveGuildData runs every GuildDataRemover, returning the first error after trying all of them
func RemoveGuildData(guildID string) error {
	var first error
	for _, p := range Plugins {
		remover, ok := p.(GuildDataRemover)
		if !ok {
			continue
		}

		if err := remover.RemoveGuildData(guildID); err != nil {
			GetPluginLogger(p).WithError(err).WithField("guild", guildID).Error("failed removing guild data")
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func GetPluginLogger(plugin Plugin) *logrus.Entry {
	info := plugin.PluginInfo()
	return logrus.WithField("p", info.SysName)
}

func GetFixedPrefixLogger(prefix string) *logrus.Entry {
	return logrus.WithField("p", prefix)
}
