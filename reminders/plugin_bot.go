package reminders

import (
	"strconv"
	"sync"

	"github.com/yuzubot/yuzu/bot"
	"github.com/yuzubot/yuzu/commands"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/common/store"
)

var logger = common.GetPluginLogger(&Plugin{})

type Plugin struct {
	scheduler *Scheduler
}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Reminders",
		SysName:  "reminders",
		Category: common.PluginCategoryMisc,
	}
}

var plugin *Plugin

func RegisterPlugin() {
	plugin = &Plugin{}
	common.RegisterPlugin(plugin)
}

var (
	_ bot.BotInitHandler       = (*Plugin)(nil)
	_ bot.LateBotInitHandler   = (*Plugin)(nil)
	_ bot.BotStopperHandler    = (*Plugin)(nil)
	_ commands.CommandProvider = (*Plugin)(nil)
	_ common.GuildDataRemover  = (*Plugin)(nil)
)

func (p *Plugin) AddCommands() {
	commands.AddRootCommands(p, cmds...)
}

func (p *Plugin) BotInit() {
	if err := EnsureIndex(); err != nil {
		logger.WithError(err).Fatal("Failed creating reminders index")
	}
}

// LateBotInit starts delivering once the session is up
func (p *Plugin) LateBotInit() {
	p.scheduler = NewScheduler(common.BotSession)
	p.scheduler.Run()
}

// Status shows the armed timers in the bot status embed
func (p *Plugin) Status() (string, string) {
	if p.scheduler == nil {
		return "", ""
	}
	return "Queued", strconv.Itoa(p.scheduler.Queued())
}

func (p *Plugin) StopBot(wg *sync.WaitGroup) {
	if p.scheduler != nil {
		p.scheduler.Stop()
	}
	wg.Done()
}

func (p *Plugin) RemoveGuildData(guildID string) error {
	var ids []int64
	err := common.Store.Ascend(store.Key("reminders", guildID, "*"), func(key, raw string) bool {
		var r Reminder
		if err := store.Decode(raw, &r); err == nil {
			ids = append(ids, r.ID)
		}
		return true
	})
	if err != nil {
		return err
	}

	for _, id := range ids {
		cancelTimer(id)
	}

	_, err = common.Store.DeletePattern(store.Key("reminders", guildID, "*"))
	return err
}

func scheduleNew(r *Reminder) {
	if plugin != nil && plugin.scheduler != nil {
		plugin.scheduler.Add(r)
	}
}

func cancelTimer(id int64) {
	if plugin != nil && plugin.scheduler != nil {
		plugin.scheduler.Cancel(id)
	}
}
