package bot

import (
	"sync"

	"github.com/yuzubot/yuzu/common"
)

// BotInitHandler runs before the gateway connection is opened, event handlers are added here
type BotInitHandler interface {
	BotInit()
}

// LateBotInitHandler runs once every plugin has had its BotInit
type LateBotInitHandler interface {
	LateBotInit()
}

// BotStopperHandler runs on shutdown. StopBot has to call wg.Done once the plugin stopped its workers.
type BotStopperHandler interface {
	StopBot(wg *sync.WaitGroup)
}

var logger = common.GetPluginLogger(&botPlugin{})

type botPlugin struct{}

func (p *botPlugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Bot Core",
		SysName:  "bot_core",
		Category: common.PluginCategoryCore,
	}
}

// InitPlugins runs BotInit on every plugin in registration order, then LateBotInit
func InitPlugins() {
	for _, p := range common.Plugins {
		if h, ok := p.(BotInitHandler); ok {
			h.BotInit()
		}
	}

	for _, p := range common.Plugins {
		if h, ok := p.(LateBotInitHandler); ok {
			h.LateBotInit()
		}
	}
}

// stopPlugins calls StopBot on every stopper concurrently and waits for all of them
func stopPlugins() {
	var wg sync.WaitGroup
	for _, p := range common.Plugins {
		stopper, ok := p.(BotStopperHandler)
		if !ok {
			continue
		}

		logger.WithField("plugin", p.PluginInfo().SysName).Debug("stopping")
		wg.Add(1)
		go stopper.StopBot(&wg)
	}
	wg.Wait()
}
