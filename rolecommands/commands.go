package rolecommands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/yuzubot/yuzu/bot"
	"github.com/yuzubot/yuzu/commands"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/common/keylock"
	"github.com/yuzubot/yuzu/lib/dcmd"
	"golang.org/x/time/rate"
)

var (
	// panelLocks allows one open panel per user
	panelLocks = keylock.NewKeyLock[string]()

	panelLimitersMu sync.Mutex
	panelLimiters   = make(map[string]*rate.Limiter)
)

// allowPanel limits how often panels can be started in a guild
func allowPanel(guildID string) bool {
	panelLimitersMu.Lock()
	defer panelLimitersMu.Unlock()

	l, ok := panelLimiters[guildID]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Minute), 5)
		panelLimiters[guildID] = l
	}
	return l.Allow()
}

func (p *Plugin) AddCommands() {
	container, _ := commands.CommandSystem.Root.Sub("rr", "rolemenu", "reactionroles")
	container.Description = "Reaction role menus"

	for _, cmd := range cmds {
		cmd.Plugin = p
		container.AddCommand(cmd, cmd.GetTrigger())
	}
}

var cmds = []*commands.YuzuCommand{
	{
		CmdCategory: commands.CategoryRoleMenu,
		Name:        "Create",
		Aliases:     []string{"new"},
		Description: "Sets up a reaction role menu, you will be led through an interactive setup",
		Arguments: []*dcmd.ArgDef{
			{Name: "Channel", Help: "Where to post the menu, defaults to this channel", Type: dcmd.Channel},
		},
		RequireDiscordPerms: []int64{discordgo.PermissionManageRoles},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			channelID := data.ChannelID
			if c := data.Args[0].Channel(); c != nil {
				channelID = c.ID
			}

			return runPanel(data, func(ctx context.Context, prompter *bot.Prompter, guild *discordgo.Guild, botMember *discordgo.Member) (string, error) {
				return RunCreatePanel(ctx, data.Session, prompter, guild, botMember, data.Author.ID, channelID)
			})
		},
	},
	{
		CmdCategory:  commands.CategoryRoleMenu,
		Name:         "Edit",
		Aliases:      []string{"update"},
		Description:  "Changes the title, mode or roles of a menu through an interactive panel",
		RequiredArgs: 1,
		Arguments: []*dcmd.ArgDef{
			{Name: "MessageID", Type: dcmd.String},
		},
		RequireDiscordPerms: []int64{discordgo.PermissionManageRoles},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			menu, resp, err := menuFromArg(data)
			if menu == nil {
				return resp, err
			}

			return runPanel(data, func(ctx context.Context, prompter *bot.Prompter, guild *discordgo.Guild, botMember *discordgo.Member) (string, error) {
				return RunEditPanel(ctx, data.Session, prompter, guild, botMember, menu)
			})
		},
	},
	{
		CmdCategory:         commands.CategoryRoleMenu,
		Name:                "List",
		Description:         "Lists the reaction role menus of this server",
		RequireDiscordPerms: []int64{discordgo.PermissionManageRoles},
		RunFunc:             cmdFuncList,
	},
	{
		CmdCategory:  commands.CategoryRoleMenu,
		Name:         "Delete",
		Aliases:      []string{"del", "rm"},
		Description:  "Deletes a menu, with -m the menu message is deleted as well",
		RequiredArgs: 1,
		Arguments: []*dcmd.ArgDef{
			{Name: "MessageID", Type: dcmd.String},
		},
		ArgSwitches: []*dcmd.ArgDef{
			{Name: "m", Help: "Also delete the message"},
		},
		RequireDiscordPerms: []int64{discordgo.PermissionManageRoles},
		RunFunc:             cmdFuncDelete,
	},
}

type panelFunc func(ctx context.Context, prompter *bot.Prompter, guild *discordgo.Guild, botMember *discordgo.Member) (string, error)

func runPanel(data *dcmd.Data, run panelFunc) (interface{}, error) {
	handle := panelLocks.TryLock(data.Author.ID, time.Minute*30)
	if handle == -1 {
		return "You already have a reaction role panel open, finish or `cancel` it first", nil
	}
	defer panelLocks.Unlock(data.Author.ID, handle)

	if !allowPanel(data.GuildID) {
		return "Too many panels were started in this server recently, try again in a minute", nil
	}

	guild, err := bot.GetGuild(data.Session, data.GuildID)
	if err != nil {
		return nil, err
	}

	botMember, err := bot.BotMember(data.Session, data.GuildID)
	if err != nil {
		return nil, err
	}

	// the panel outlives the command timeout, every step has its own
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute*30)
	defer cancel()

	prompter := &bot.Prompter{
		Waiters:   bot.Prompts,
		Sender:    data.Session,
		ChannelID: data.ChannelID,
		UserID:    data.Author.ID,
		Timeout:   panelTimeout,
	}

	return run(ctx, prompter, guild, botMember)
}

// menuFromArg loads the menu named by the first argument, resp is set when there's none
func menuFromArg(data *dcmd.Data) (menu *Menu, resp string, err error) {
	messageID := strings.TrimSpace(data.Args[0].Str())
	if _, err := strconv.ParseUint(messageID, 10, 64); err != nil {
		return nil, "That's not a message id", nil
	}

	menu, err = GetMenu(data.GuildID, messageID)
	if err != nil {
		return nil, "", err
	}
	if menu == nil {
		return nil, "There's no reaction role menu on that message", nil
	}

	stale, err := CheckStale(data.Session, menu)
	if err != nil {
		return nil, "", err
	}
	if stale {
		return nil, "That menu's message was deleted, so I removed the menu", nil
	}

	return menu, "", nil
}

func cmdFuncList(data *dcmd.Data) (interface{}, error) {
	menus, err := ListMenus(data.GuildID)
	if err != nil {
		return nil, err
	}

	var out strings.Builder
	for _, m := range menus {
		stale, err := CheckStale(data.Session, m)
		if err != nil {
			logger.WithError(err).WithField("guild", data.GuildID).Warn("Failed checking menu")
		}
		if stale {
			continue
		}

		fmt.Fprintf(&out, "`%s` **%s** in <#%s>, %s mode, %d roles: <%s>\n",
			m.MessageID, common.CutStringShort(m.Title, 50), m.ChannelID, m.Mode, len(m.Options), menuLink(m))
	}

	if out.Len() == 0 {
		return "No reaction role menus on this server, create one with `rr create`", nil
	}

	return "Reaction role menus:\n" + out.String(), nil
}

func cmdFuncDelete(data *dcmd.Data) (interface{}, error) {
	messageID := strings.TrimSpace(data.Args[0].Str())

	menu, err := GetMenu(data.GuildID, messageID)
	if err != nil {
		return nil, err
	}
	if menu == nil {
		return "There's no reaction role menu on that message", nil
	}

	if err := DeleteMenu(data.GuildID, messageID); err != nil {
		return nil, err
	}

	if !data.Switch("m").Bool() {
		return "Deleted the menu, the message stays up. Use `-m` to delete it as well", nil
	}

	err = data.Session.ChannelMessageDelete(menu.ChannelID, menu.MessageID)
	if err != nil && !common.IsDiscordErr(err, discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel) {
		return "Deleted the menu but couldn't delete its message", err
	}

	return "Deleted the menu and its message", nil
}
