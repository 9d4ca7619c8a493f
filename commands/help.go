package commands

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/yuzubot/yuzu/bot/paginatedmessages"
	"github.com/yuzubot/yuzu/lib/dcmd"
)

var cmdHelp = &YuzuCommand{
	Name:        "Help",
	Aliases:     []string{"commands", "h", "how", "command"},
	Description: "Shows help about all or one specific command",
	LongDescription: "\n**Examples:**\n`help` - Sends you the list of commands in a DM\n" +
		"`help remindme` - Shows a longer help message for remindme\n`help rr` - Lists the role menu commands",
	CmdCategory: CategoryGeneral,
	RunInDM:     true,
	Arguments: []*dcmd.ArgDef{
		{Name: "command", Type: dcmd.String},
	},

	RunFunc: cmdFuncHelp,
}

func cmdFuncHelp(data *dcmd.Data) (interface{}, error) {
	target := data.Args[0].Str()
	root := data.ContainerChain[0]

	if target != "" {
		resp := dcmd.GenerateTargettedHelp(target, data, root, &dcmd.StdHelpFormatter{})
		if len(resp) == 0 {
			return CmdNotFound(target), nil
		}

		for _, v := range resp {
			ensureEmbedLimits(v)
		}

		if len(resp) > 1 {
			return resp, nil
		}

		// add the permissions the command needs to the footer
		cmd, _ := root.AbsFindCommand(target)
		if cmd == nil {
			return resp, nil
		}

		yc, ok := cmd.Command.(*YuzuCommand)
		if !ok || (len(yc.RequireDiscordPerms) == 0 && yc.RequiredDiscordPermsHelp == "") {
			return resp, nil
		}

		embed := resp[0]
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: "Required permissions: " + yc.humanizedRequiredPerms(),
		}
		return embed, nil
	}

	resp := dcmd.GenerateHelp(data, root, &dcmd.StdHelpFormatter{})
	for _, v := range resp {
		ensureEmbedLimits(v)
	}

	// the full listing goes to DMs to keep channels clean
	channel, err := data.Session.UserChannelCreate(data.Author.ID)
	if err != nil {
		return "Something went wrong, maybe you have DMs disabled? Use `help <command>` to get help in this channel instead.", err
	}

	pages := withIndexPage(resp)
	ir := paginatedmessages.NewPaginatedResponse("", channel.ID, 1, len(pages), func(p *paginatedmessages.PaginatedMessage, page int) (*discordgo.MessageEmbed, error) {
		if page > len(pages) {
			return nil, paginatedmessages.ErrNoResults
		}
		return pages[page-1], nil
	})

	if data.Source == dcmd.TriggerSourceDM {
		return ir, nil
	}

	if _, err = ir.Send(data); err != nil {
		return "Something went wrong, maybe you have DMs disabled? Use `help <command>` to get help in this channel instead.", err
	}

	return "You've got mail!", nil
}

// withIndexPage prepends a page listing the categories to the help embeds
func withIndexPage(helpEmbeds []*discordgo.MessageEmbed) []*discordgo.MessageEmbed {
	firstPage := &discordgo.MessageEmbed{
		Title: "Yuzu Help!",
		Description: "Yuzu is a bot for roleplay actions, moderation, reminders and reaction role menus.\n" +
			"Use `help <command>` for more information about a specific command.\n\n**Use the emojis under to change pages**",
		Color: 0xf7d34a,
	}

	var pageLayout strings.Builder
	for i, v := range helpEmbeds {
		pageLayout.WriteString(fmt.Sprintf("**Page %d**: %s\n", i+2, v.Title))
	}
	firstPage.Fields = []*discordgo.MessageEmbedField{
		{Name: "Help pages", Value: pageLayout.String()},
	}

	return append([]*discordgo.MessageEmbed{firstPage}, helpEmbeds...)
}
