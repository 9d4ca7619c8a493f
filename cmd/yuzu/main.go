package main

import (
	"github.com/yuzubot/yuzu/actions"
	"github.com/yuzubot/yuzu/bot/paginatedmessages"
	"github.com/yuzubot/yuzu/commands"
	"github.com/yuzubot/yuzu/common/run"
	"github.com/yuzubot/yuzu/common/scheduledevents"
	"github.com/yuzubot/yuzu/guildmanagement"
	"github.com/yuzubot/yuzu/moderation"
	"github.com/yuzubot/yuzu/reminders"
	"github.com/yuzubot/yuzu/rolecommands"
	"github.com/yuzubot/yuzu/stdcommands"
)

func main() {
	run.Init()

	// Setup plugins
	commands.RegisterPlugin()
	stdcommands.RegisterPlugin()
	scheduledevents.RegisterPlugin()
	paginatedmessages.RegisterPlugin()
	guildmanagement.RegisterPlugin()
	moderation.RegisterPlugin()
	reminders.RegisterPlugin()
	rolecommands.RegisterPlugin()
	actions.RegisterPlugin()

	run.Run()
}
