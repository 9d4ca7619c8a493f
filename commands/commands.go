package commands

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/mediocregopher/radix/v3"
	"github.com/yuzubot/yuzu/bot"
	"github.com/yuzubot/yuzu/bot/eventsystem"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/common/config"
	"github.com/yuzubot/yuzu/lib/dcmd"
)

var logger = common.GetPluginLogger(&Plugin{})

type MessageFilterFunc func(evt *eventsystem.EventData, msg *discordgo.Message) bool

var (
	confSetTyping = config.RegisterOption("yuzu.commands.typing", "Whether to set typing or not when running commands", true)

	// CommandSystem is set up by InitCommands
	CommandSystem *dcmd.System
)

// These functions are called on every message, and should return true if the message should be checked for commands, false otherwise
var MessageFilterFuncs []MessageFilterFunc

type Plugin struct{}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Commands",
		SysName:  "commands",
		Category: common.PluginCategoryCore,
	}
}

func RegisterPlugin() {
	common.RegisterPlugin(&Plugin{})
}

// CommandProvider is implemented by plugins that have commands
type CommandProvider interface {
	// Register your commands here
	AddCommands()
}

// InitCommands sets up the command system and collects the commands of every registered plugin
func InitCommands() {
	CommandSystem = &dcmd.System{
		Root: &dcmd.Container{
			HelpTitleEmoji: "🍋",
			HelpColor:      0xf7d34a,
			RunInDM:        true,
			IgnoreBots:     true,
		},

		ResponseSender: &dcmd.StdResponseSender{LogErrors: true},
		Prefix:         &Plugin{},
	}

	// Checked before argument parsing, so disallowed users never see argument errors
	CommandSystem.Root.AddMiddlewares(YuzuCommandMiddleware, dcmd.ArgParserMW)
	AddRootCommands(nil, cmdHelp)

	for _, v := range common.Plugins {
		if adder, ok := v.(CommandProvider); ok {
			adder.AddCommands()
		}
	}

	CommandSystem.Root.BuildMiddlewareChains(nil)
}

// AddRootCommands adds commands to the root container, registering p as their plugin
func AddRootCommands(p common.Plugin, cmds ...*YuzuCommand) {
	for _, v := range cmds {
		if v.Plugin == nil {
			v.Plugin = p
		}
		CommandSystem.Root.AddCommand(v, v.GetTrigger())
	}
}

// AddRootCommandsWithMiddlewares is the same as AddRootCommands but also adds mw to every trigger
func AddRootCommandsWithMiddlewares(p common.Plugin, mw []dcmd.MiddleWareFunc, cmds ...*YuzuCommand) {
	for _, v := range cmds {
		if v.Plugin == nil {
			v.Plugin = p
		}
		CommandSystem.Root.AddCommand(v, v.GetTrigger().SetMiddlewares(mw...))
	}
}

var _ bot.BotInitHandler = (*Plugin)(nil)

func (p *Plugin) BotInit() {
	if addr := common.ConfRedisAddr.GetString(); addr != "" {
		pool, err := radix.NewPool("tcp", addr, 4)
		if err != nil {
			logger.WithError(err).Error("Failed connecting to redis, keeping cooldowns local")
		} else {
			Cooldowns = NewRedisCooldowns(pool)
		}
	}

	InitCommands()
	eventsystem.AddHandlerAsyncLastLegacy(p, handleMessageCreate, eventsystem.EventMessageCreate)
}

func handleMessageCreate(evt *eventsystem.EventData) {
	m := evt.MessageCreate()
	if m.Author == nil || m.Author.Bot || strings.TrimSpace(m.Content) == "" {
		return
	}

	for _, filter := range MessageFilterFuncs {
		if !filter(evt, m.Message) {
			return
		}
	}

	if confSetTyping.GetBool() && m.GuildID != "" && startsWithPrefix(m.Message) {
		evt.Session.ChannelTyping(m.ChannelID)
	}

	CommandSystem.HandleMessageCreate(evt.Session, m)
}

func startsWithPrefix(m *discordgo.Message) bool {
	prefix, err := GetCommandPrefix(m.GuildID)
	if err != nil {
		return false
	}
	return strings.HasPrefix(m.Content, prefix)
}

var _ dcmd.PrefixProvider = (*Plugin)(nil)

func (p *Plugin) Prefix(data *dcmd.Data) string {
	if data.GuildID == "" {
		return DefaultCommandPrefix()
	}

	prefix, err := GetCommandPrefix(data.GuildID)
	if err != nil {
		logger.WithError(err).WithField("guild", data.GuildID).Error("failed retrieving command prefix")
		return DefaultCommandPrefix()
	}

	return prefix
}
