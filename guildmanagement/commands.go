package guildmanagement

import (
	"fmt"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/yuzubot/yuzu/bot"
	"github.com/yuzubot/yuzu/commands"
	"github.com/yuzubot/yuzu/lib/dcmd"
)

var cmds = []*commands.YuzuCommand{
	{
		CmdCategory:     commands.CategoryTool,
		Name:            "Prefix",
		Description:     "Shows the command prefix of this server, or changes it",
		LongDescription: "Changing it needs Manage Server. Mentioning the bot always works as a prefix too.",
		Arguments: []*dcmd.ArgDef{
			{Name: "New", Type: dcmd.String},
		},
		RunFunc: cmdFuncPrefix,
	},
	{
		CmdCategory: commands.CategoryGeneral,
		Name:        "ServerInfo",
		Aliases:     []string{"server", "guildinfo"},
		Description: "Shows information about this server",
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			guild, err := bot.GetGuild(data.Session, data.GuildID)
			if err != nil {
				return nil, err
			}
			return ServerInfoEmbed(guild, time.Now()), nil
		},
	},
	{
		CmdCategory: commands.CategoryGeneral,
		Name:        "UserInfo",
		Aliases:     []string{"whois", "whoami"},
		Description: "Shows information about a user",
		Arguments: []*dcmd.ArgDef{
			{Name: "User", Type: dcmd.Member},
		},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			guild, err := bot.GetGuild(data.Session, data.GuildID)
			if err != nil {
				return nil, err
			}
			return UserInfoEmbed(guild, targetMember(data, 0), time.Now()), nil
		},
	},
	{
		CmdCategory: commands.CategoryGeneral,
		Name:        "Avatar",
		Aliases:     []string{"av", "pfp"},
		Description: "Shows the avatar of a user",
		Arguments: []*dcmd.ArgDef{
			{Name: "User", Type: dcmd.Member},
		},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			return AvatarEmbed(targetMember(data, 0).User), nil
		},
	},
	{
		CmdCategory:  commands.CategoryGeneral,
		Name:         "RoleInfo",
		Description:  "Shows information about a role",
		RequiredArgs: 1,
		Arguments: []*dcmd.ArgDef{
			{Name: "Role", Type: dcmd.Role},
		},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			guild, err := bot.GetGuild(data.Session, data.GuildID)
			if err != nil {
				return nil, err
			}
			return RoleInfoEmbed(guild, data.Args[0].Role(), time.Now()), nil
		},
	},
	{
		CmdCategory:     commands.CategoryTool,
		Name:            "Slowmode",
		Description:     "Sets how many seconds members have to wait between messages in a channel",
		LongDescription: "0 turns slowmode off. Defaults to the current channel.",
		RequiredArgs:    1,
		Arguments: []*dcmd.ArgDef{
			{Name: "Seconds", Type: &dcmd.IntArg{Min: 0, Max: MaxSlowmode}},
			{Name: "Channel", Type: dcmd.Channel},
		},
		RequireDiscordPerms: []int64{discordgo.PermissionManageChannels},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			channel, err := targetChannel(data, 1)
			if err != nil {
				return nil, err
			}

			seconds := data.Args[0].Int()
			if err := SetSlowmode(data.Session, channel.ID, seconds); err != nil {
				return nil, err
			}

			if seconds == 0 {
				return fmt.Sprintf("Turned slowmode off in <#%s>", channel.ID), nil
			}
			return fmt.Sprintf("Slowmode in <#%s> set to %d seconds", channel.ID, seconds), nil
		},
	},
	{
		CmdCategory: commands.CategoryTool,
		Name:        "Lock",
		Description: "Stops @everyone from sending messages in a channel",
		Arguments: []*dcmd.ArgDef{
			{Name: "Channel", Type: dcmd.Channel},
		},
		RequireDiscordPerms: []int64{discordgo.PermissionManageChannels},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			return cmdLock(data, true)
		},
	},
	{
		CmdCategory: commands.CategoryTool,
		Name:        "Unlock",
		Description: "Lets @everyone send messages in a locked channel again",
		Arguments: []*dcmd.ArgDef{
			{Name: "Channel", Type: dcmd.Channel},
		},
		RequireDiscordPerms: []int64{discordgo.PermissionManageChannels},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			return cmdLock(data, false)
		},
	},
	{
		CmdCategory:  commands.CategoryTool,
		Name:         "AddRole",
		Aliases:      []string{"giverole"},
		Description:  "Gives a role to a member",
		RequiredArgs: 2,
		Arguments: []*dcmd.ArgDef{
			{Name: "User", Type: dcmd.Member},
			{Name: "Role", Type: dcmd.Role},
		},
		RequireDiscordPerms: []int64{discordgo.PermissionManageRoles},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			return cmdChangeRole(data, true)
		},
	},
	{
		CmdCategory:  commands.CategoryTool,
		Name:         "RemoveRole",
		Aliases:      []string{"takerole"},
		Description:  "Takes a role from a member",
		RequiredArgs: 2,
		Arguments: []*dcmd.ArgDef{
			{Name: "User", Type: dcmd.Member},
			{Name: "Role", Type: dcmd.Role},
		},
		RequireDiscordPerms: []int64{discordgo.PermissionManageRoles},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			return cmdChangeRole(data, false)
		},
	},
	{
		CmdCategory:     commands.CategoryTool,
		Name:            "SetNick",
		Aliases:         []string{"nick"},
		Description:     "Changes the nickname of a member",
		LongDescription: "Leave the nickname out to reset it.",
		RequiredArgs:    1,
		Arguments: []*dcmd.ArgDef{
			{Name: "User", Type: dcmd.Member},
			{Name: "Nick", Type: dcmd.String},
		},
		RequireDiscordPerms: []int64{discordgo.PermissionManageNicknames},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			guild, botMember, err := guildAndBot(data)
			if err != nil {
				return nil, err
			}

			target := data.Args[0].Member()
			nick := strings.TrimSpace(data.Args[1].Str())
			if err := SetNickname(data.Session, guild, data.Member, botMember, target, nick); err != nil {
				return nil, err
			}

			if nick == "" {
				return "Reset the nickname of " + target.User.Username, nil
			}
			return fmt.Sprintf("Changed the nickname of %s to **%s**", target.User.Username, nick), nil
		},
	},
}

func cmdFuncPrefix(data *dcmd.Data) (interface{}, error) {
	newPrefix := strings.TrimSpace(data.Args[0].Str())
	if newPrefix == "" {
		prefix, err := commands.GetCommandPrefix(data.GuildID)
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf("The prefix of this server is `%s`", prefix), nil
	}

	perms, err := commands.MemberPermissions(data)
	if err != nil {
		return nil, errors.WithMessage(err, "member permissions")
	}
	if !bot.HasPerm(perms, discordgo.PermissionManageServer) {
		return "You need the Manage Server permission to change the prefix", nil
	}

	if err := commands.SetCommandPrefix(data.GuildID, newPrefix); err != nil {
		return nil, err
	}

	logger.WithField("guild", data.GuildID).WithField("prefix", newPrefix).Info("Prefix changed")
	return fmt.Sprintf("Set the prefix to `%s`", newPrefix), nil
}

func cmdLock(data *dcmd.Data, locked bool) (interface{}, error) {
	channel, err := targetChannel(data, 0)
	if err != nil {
		return nil, err
	}

	if err := SetChannelLocked(data.Session, data.GuildID, channel, locked); err != nil {
		return nil, err
	}

	if locked {
		return fmt.Sprintf("🔒 Locked <#%s>", channel.ID), nil
	}
	return fmt.Sprintf("🔓 Unlocked <#%s>", channel.ID), nil
}

func cmdChangeRole(data *dcmd.Data, add bool) (interface{}, error) {
	guild, botMember, err := guildAndBot(data)
	if err != nil {
		return nil, err
	}

	target := data.Args[0].Member()
	role := data.Args[1].Role()
	if err := ChangeMemberRole(data.Session, guild, data.Member, botMember, target, role, add); err != nil {
		return nil, err
	}

	if add {
		return fmt.Sprintf("Gave **%s** to %s", role.Name, target.User.Username), nil
	}
	return fmt.Sprintf("Took **%s** from %s", role.Name, target.User.Username), nil
}

func guildAndBot(data *dcmd.Data) (*discordgo.Guild, *discordgo.Member, error) {
	guild, err := bot.GetGuild(data.Session, data.GuildID)
	if err != nil {
		return nil, nil, err
	}

	botMember, err := bot.BotMember(data.Session, data.GuildID)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "BotMember")
	}
	return guild, botMember, nil
}

// targetMember returns the member argument, or the author if it was left out
func targetMember(data *dcmd.Data, arg int) *discordgo.Member {
	if m := data.Args[arg].Member(); m != nil {
		return m
	}
	if data.Member != nil {
		return data.Member
	}
	return &discordgo.Member{User: data.Author}
}

// targetChannel returns the channel argument, or the channel the command was used in
func targetChannel(data *dcmd.Data, arg int) (*discordgo.Channel, error) {
	if c := data.Args[arg].Channel(); c != nil {
		return c, nil
	}

	if c, err := data.Session.State.Channel(data.ChannelID); err == nil {
		return c, nil
	}
	return data.Session.Channel(data.ChannelID)
}
