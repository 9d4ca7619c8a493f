package moderation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/yuzubot/yuzu/bot"
	"github.com/yuzubot/yuzu/bot/paginatedmessages"
	"github.com/yuzubot/yuzu/commands"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/common/keylock"
	"github.com/yuzubot/yuzu/lib/dcmd"
)

// MBaseCmd loads the config and guild and resolves the target.
// If the target is a member of the server the hierarchy is checked, targetMember is nil otherwise.
func MBaseCmd(data *dcmd.Data, targetID string) (config *Config, guild *discordgo.Guild, target *discordgo.User, targetMember *discordgo.Member, err error) {
	config, err = GetConfig(data.GuildID)
	if err != nil {
		return nil, nil, nil, nil, errors.WithMessage(err, "GetConfig")
	}

	guild, err = bot.GetGuild(data.Session, data.GuildID)
	if err != nil {
		return nil, nil, nil, nil, errors.WithMessage(err, "GetGuild")
	}

	if targetID == "" {
		return config, guild, nil, nil, nil
	}

	targetMember, _ = bot.GetMember(data.Session, data.GuildID, targetID)
	if targetMember != nil {
		botMember, err := bot.BotMember(data.Session, data.GuildID)
		if err != nil {
			return nil, nil, nil, nil, errors.WithMessage(err, "BotMember")
		}

		if err = CheckHierarchy(guild, data.Member, botMember, targetMember); err != nil {
			return config, guild, targetMember.User, targetMember, err
		}

		return config, guild, targetMember.User, targetMember, nil
	}

	target, err = data.Session.User(targetID)
	if err != nil {
		target = &discordgo.User{ID: targetID, Username: "unknown"}
	}

	return config, guild, target, nil, nil
}

func SafeArgString(data *dcmd.Data, arg int) string {
	if arg >= len(data.Args) || data.Args[arg].Value == nil {
		return ""
	}

	return data.Args[arg].Str()
}

func reasonOrDefault(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return "(No reason specified)"
	}
	return reason
}

func GenericCmdResp(action ModlogAction, target *discordgo.User, duration time.Duration, noDur bool) string {
	durStr := " indefinitely"
	if duration > 0 {
		durStr = " for `" + common.HumanizeDuration(common.DurationPrecisionMinutes, duration) + "`"
	}
	if noDur {
		durStr = ""
	}

	return fmt.Sprintf("%s %s `%s`%s", action.Emoji, action.Prefix, userName(target), durStr)
}

func argDuration(data *dcmd.Data, arg int) (time.Duration, bool) {
	if data.Args[arg].Value == nil {
		return 0, false
	}
	d, ok := data.Args[arg].Value.(time.Duration)
	return d, ok
}

// expungeLocks allows one expunge per moderator at a time
var expungeLocks = keylock.NewKeyLock[string]()

var ModerationCommands = []*commands.YuzuCommand{
	{
		CmdCategory:  commands.CategoryModeration,
		Name:         "Ban",
		Aliases:      []string{"banid"},
		Description:  "Bans a member, specify a duration to make it temporary",
		RequiredArgs: 1,
		Arguments: []*dcmd.ArgDef{
			{Name: "User", Type: dcmd.UserID},
			{Name: "Duration", Type: &commands.DurationArg{Max: time.Hour * 24 * 366}},
			{Name: "Reason", Type: dcmd.String},
		},
		ArgumentCombos: [][]int{{0, 1, 2}, {0, 2, 1}, {0, 1}, {0, 2}, {0}},
		ArgSwitches: []*dcmd.ArgDef{
			{Name: "ddays", Help: "Days of messages to delete", Default: 1, Type: &dcmd.IntArg{Min: 0, Max: 7}},
		},
		RequireDiscordPerms: []int64{discordgo.PermissionBanMembers},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			config, guild, target, _, err := MBaseCmd(data, data.Args[0].Str())
			if err != nil {
				return nil, err
			}

			duration, _ := argDuration(data, 1)
			reason := reasonOrDefault(SafeArgString(data, 2))
			ddays := data.Switch("ddays").Int()

			err = BanUser(data.Session, config, guild, data.Author, reason, target, duration, ddays)
			if err != nil {
				return nil, err
			}

			return GenericCmdResp(MABanned, target, duration, false), nil
		},
	},
	{
		CmdCategory:  commands.CategoryModeration,
		Name:         "Unban",
		Aliases:      []string{"unbanid"},
		Description:  "Unbans a user",
		RequiredArgs: 1,
		Arguments: []*dcmd.ArgDef{
			{Name: "User", Type: dcmd.UserID},
			{Name: "Reason", Type: dcmd.String},
		},
		RequireDiscordPerms: []int64{discordgo.PermissionBanMembers},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			config, _, target, _, err := MBaseCmd(data, "")
			if err != nil {
				return nil, err
			}

			userID := data.Args[0].Str()
			target, err = data.Session.User(userID)
			if err != nil {
				target = &discordgo.User{ID: userID, Username: "unknown"}
			}

			notBanned, err := UnbanUser(data.Session, config, data.GuildID, data.Author, reasonOrDefault(SafeArgString(data, 1)), target)
			if err != nil {
				return nil, err
			}
			if notBanned {
				return "That user isn't banned", nil
			}

			return GenericCmdResp(MAUnbanned, target, 0, true), nil
		},
	},
	{
		CmdCategory:  commands.CategoryModeration,
		Name:         "Kick",
		Description:  "Kicks a member",
		RequiredArgs: 1,
		Cooldown:     2,
		Arguments: []*dcmd.ArgDef{
			{Name: "User", Type: dcmd.UserID},
			{Name: "Reason", Type: dcmd.String},
		},
		RequireDiscordPerms: []int64{discordgo.PermissionKickMembers},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			config, guild, target, member, err := MBaseCmd(data, data.Args[0].Str())
			if err != nil {
				return nil, err
			}
			if member == nil {
				return "That user isn't on this server", nil
			}

			err = KickUser(data.Session, config, guild, data.Author, reasonOrDefault(SafeArgString(data, 1)), target)
			if err != nil {
				return nil, err
			}

			return GenericCmdResp(MAKick, target, 0, true), nil
		},
	},
	{
		CmdCategory:  commands.CategoryModeration,
		Name:         "Mute",
		Description:  "Mutes a member, the duration defaults to the one in modconfig",
		RequiredArgs: 1,
		Arguments: []*dcmd.ArgDef{
			{Name: "User", Type: dcmd.UserID},
			{Name: "Duration", Type: &commands.DurationArg{Max: time.Hour * 24 * 366}},
			{Name: "Reason", Type: dcmd.String},
		},
		ArgumentCombos:      [][]int{{0, 1, 2}, {0, 2, 1}, {0, 1}, {0, 2}, {0}},
		RequireDiscordPerms: []int64{discordgo.PermissionManageRoles},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			config, guild, target, member, err := MBaseCmd(data, data.Args[0].Str())
			if err != nil {
				return nil, err
			}
			if config.MuteRole == "" {
				return "No mute role set up, set one with `modconfig mute_role <role>`", nil
			}
			if member == nil {
				return "That user isn't on this server", nil
			}

			duration, ok := argDuration(data, 1)
			if !ok {
				duration = time.Duration(config.DefaultMuteDuration) * time.Minute
			}

			err = MuteUnmuteUser(data.Session, config, true, guild, data.Author, reasonOrDefault(SafeArgString(data, 2)), member, duration)
			if err != nil {
				return nil, err
			}

			return GenericCmdResp(MAMute, target, duration, false), nil
		},
	},
	{
		CmdCategory:  commands.CategoryModeration,
		Name:         "Unmute",
		Description:  "Unmutes a member",
		RequiredArgs: 1,
		Arguments: []*dcmd.ArgDef{
			{Name: "User", Type: dcmd.UserID},
			{Name: "Reason", Type: dcmd.String},
		},
		RequireDiscordPerms: []int64{discordgo.PermissionManageRoles},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			config, guild, target, member, err := MBaseCmd(data, data.Args[0].Str())
			if err != nil {
				return nil, err
			}
			if config.MuteRole == "" {
				return "No mute role set up, set one with `modconfig mute_role <role>`", nil
			}
			if member == nil {
				return "That user isn't on this server", nil
			}

			err = MuteUnmuteUser(data.Session, config, false, guild, data.Author, reasonOrDefault(SafeArgString(data, 1)), member, 0)
			if errors.Is(err, ErrNotMuted) {
				return "That member isn't muted", nil
			}
			if err != nil {
				return nil, err
			}

			return GenericCmdResp(MAUnmute, target, 0, true), nil
		},
	},
	{
		CmdCategory:  commands.CategoryModeration,
		Name:         "Clean",
		Aliases:      []string{"clear", "cl"},
		Description:  "Deletes the last number of messages from chat, optionally only those by a user",
		RequiredArgs: 1,
		Arguments: []*dcmd.ArgDef{
			{Name: "Num", Type: &dcmd.IntArg{Min: 1, Max: 100}},
			{Name: "User", Type: dcmd.UserID},
		},
		ArgumentCombos:      [][]int{{0}, {0, 1}, {1, 0}},
		RequireDiscordPerms: []int64{discordgo.PermissionManageMessages},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			num := data.Args[0].Int()
			filter := SafeArgString(data, 1)

			// the command message goes too
			if filter == "" || filter == data.Author.ID {
				num++
			}

			numDeleted, err := DeleteMessages(data.Session, data.ChannelID, filter, num)
			if err != nil {
				return nil, err
			}

			return dcmd.NewTemporaryResponse(time.Second*5, fmt.Sprintf("Deleted %d message(s)! :')", numDeleted), true), nil
		},
	},
	{
		CmdCategory:  commands.CategoryModeration,
		Name:         "Reason",
		Description:  "Adds a reason to a modlog entry",
		RequiredArgs: 2,
		Arguments: []*dcmd.ArgDef{
			{Name: "Message ID", Type: dcmd.String},
			{Name: "Reason", Type: dcmd.String},
		},
		RequireDiscordPerms: []int64{discordgo.PermissionKickMembers},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			config, _, _, _, err := MBaseCmd(data, "")
			if err != nil {
				return nil, err
			}

			return SetModlogReason(data.Session, config, data.Args[0].Str(), data.Author, data.Args[1].Str())
		},
	},
	{
		CmdCategory:  commands.CategoryModeration,
		Name:         "Warn",
		Description:  "Warns a user, warnings are saved and can be listed with the warnings command",
		RequiredArgs: 2,
		Arguments: []*dcmd.ArgDef{
			{Name: "User", Type: dcmd.UserID},
			{Name: "Reason", Type: dcmd.String},
		},
		RequireDiscordPerms: []int64{discordgo.PermissionManageMessages},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			config, guild, target, _, err := MBaseCmd(data, data.Args[0].Str())
			if err != nil {
				return nil, err
			}

			link := common.MessageLink(data.GuildID, data.ChannelID, data.Message.ID)
			_, err = WarnUser(data.Session, config, guild, data.Author, target, data.Args[1].Str(), link)
			if err != nil {
				return nil, err
			}

			return GenericCmdResp(MAWarned, target, 0, true), nil
		},
	},
	{
		CmdCategory:  commands.CategoryModeration,
		Name:         "Warnings",
		Aliases:      []string{"warns"},
		Description:  "Lists the warnings of a user",
		RequiredArgs: 1,
		Arguments: []*dcmd.ArgDef{
			{Name: "User", Type: dcmd.UserID},
			{Name: "Page", Type: &dcmd.IntArg{Min: 1, Max: 10000}, Default: 1},
		},
		RequireDiscordPerms: []int64{discordgo.PermissionManageMessages},
		RunFunc:             cmdWarnings,
	},
	{
		CmdCategory:  commands.CategoryModeration,
		Name:         "DelWarn",
		Aliases:      []string{"dw", "delwarning"},
		Description:  "Deletes a warning by its id",
		RequiredArgs: 1,
		Arguments: []*dcmd.ArgDef{
			{Name: "Id", Type: dcmd.Int},
		},
		RequireDiscordPerms: []int64{discordgo.PermissionManageMessages},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			config, _, _, _, err := MBaseCmd(data, "")
			if err != nil {
				return nil, err
			}

			return DelWarning(data.Session, config, data.GuildID, data.Author, data.Args[0].Int64())
		},
	},
	{
		CmdCategory:  commands.CategoryModeration,
		Name:         "ClearWarnings",
		Aliases:      []string{"clw"},
		Description:  "Removes every warning of a user",
		RequiredArgs: 1,
		Arguments: []*dcmd.ArgDef{
			{Name: "User", Type: dcmd.UserID},
			{Name: "Reason", Type: dcmd.String},
		},
		RequireDiscordPerms: []int64{discordgo.PermissionManageMessages},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			config, _, target, _, err := MBaseCmd(data, data.Args[0].Str())
			if err != nil {
				return nil, err
			}

			n, err := ClearWarnings(data.GuildID, target.ID)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				return userName(target) + " has no warnings", nil
			}

			err = CreateModlogEmbed(data.Session, config, data.Author, MAClearWarnings, target, reasonOrDefault(SafeArgString(data, 1)), "")
			if err != nil {
				logger.WithError(err).WithField("guild", data.GuildID).Error("Failed creating mod log embed")
			}

			return fmt.Sprintf("Deleted %d warning(s) of %s", n, userName(target)), nil
		},
	},
	{
		CmdCategory:  commands.CategoryModeration,
		Name:         "Expunge",
		Description:  "Walks you through removing warnings of a user",
		RequiredArgs: 1,
		Arguments: []*dcmd.ArgDef{
			{Name: "User", Type: dcmd.UserID},
		},
		RequireDiscordPerms: []int64{discordgo.PermissionManageMessages},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			config, _, target, _, err := MBaseCmd(data, data.Args[0].Str())
			if err != nil {
				return nil, err
			}

			handle := expungeLocks.TryLock(data.Author.ID, time.Minute*15)
			if handle == -1 {
				return "You're already expunging warnings, finish or cancel that first", nil
			}
			defer expungeLocks.Unlock(data.Author.ID, handle)

			// the chain can outlive the normal command timeout
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute*15)
			defer cancel()

			prompter := &bot.Prompter{
				Waiters:   bot.Prompts,
				Sender:    data.Session,
				ChannelID: data.ChannelID,
				UserID:    data.Author.ID,
				Timeout:   expungeTimeout,
			}

			return RunExpunge(ctx, prompter, data.GuildID, target, config.DeleteWarningsAfterDays)
		},
	},
	{
		CmdCategory:     commands.CategoryModeration,
		Name:            "ModConfig",
		Aliases:         []string{"modsettings"},
		Description:     "Shows or changes the moderation settings",
		LongDescription: "Without arguments all settings are shown, with just a key that setting and what it does.",
		Arguments: []*dcmd.ArgDef{
			{Name: "Key", Type: dcmd.String},
			{Name: "Value", Type: dcmd.String},
		},
		RequireDiscordPerms: []int64{discordgo.PermissionManageServer},
		RunFunc:             cmdModConfig,
	},
}

func (p *Plugin) AddCommands() {
	commands.AddRootCommands(p, ModerationCommands...)
}

func cmdWarnings(data *dcmd.Data) (interface{}, error) {
	config, _, target, _, err := MBaseCmd(data, data.Args[0].Str())
	if err != nil {
		return nil, err
	}

	warnings, err := GetWarnings(data.GuildID, target.ID, config.DeleteWarningsAfterDays)
	if err != nil {
		return nil, err
	}

	if len(warnings) == 0 {
		return userName(target) + " has no warnings", nil
	}

	return paginatedmessages.PaginatedCommand(1, func(data *dcmd.Data, p *paginatedmessages.PaginatedMessage, page int) (*discordgo.MessageEmbed, error) {
		// reloaded so page flips show deletions
		warnings, err := GetWarnings(data.GuildID, target.ID, config.DeleteWarningsAfterDays)
		if err != nil {
			return nil, err
		}

		if p != nil {
			p.MaxPage = (len(warnings) + warningsPerPage - 1) / warningsPerPage
		}

		return warningsPage(target, warnings, page)
	})(data)
}

const warningsPerPage = 10

func warningsPage(target *discordgo.User, warnings []*Warning, page int) (*discordgo.MessageEmbed, error) {
	start := (page - 1) * warningsPerPage
	if start >= len(warnings) {
		return nil, paginatedmessages.ErrNoResults
	}

	end := start + warningsPerPage
	if end > len(warnings) {
		end = len(warnings)
	}

	var b strings.Builder
	for _, w := range warnings[start:end] {
		fmt.Fprintf(&b, "`%d` %s by **%s**\n", w.ID, humanize.Time(w.CreatedAt), w.AuthorName)
		reason := common.CutStringShort(w.Reason, 500)
		if w.MessageLink != "" {
			reason += " ([Context](" + w.MessageLink + "))"
		}
		b.WriteString(reason + "\n\n")
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Warnings of %s (%d total)", userName(target), len(warnings)),
		Color:       MAWarned.Color,
		Description: b.String(),
	}, nil
}

// DelWarning deletes a warning anywhere in the guild
func DelWarning(s Session, config *Config, guildID string, author *discordgo.User, id int64) (interface{}, error) {
	userID, warning, err := FindWarning(guildID, id)
	if err != nil {
		return nil, err
	}
	if warning == nil {
		return fmt.Sprintf("No warning with the id `%d`", id), nil
	}

	if _, err = DeleteWarnings(guildID, userID, []int64{id}); err != nil {
		return nil, err
	}

	target := &discordgo.User{ID: userID, Username: "user " + userID}
	err = CreateModlogEmbed(s, config, author, MADelwarn, target, "Removed warning `"+strconv.FormatInt(id, 10)+"`: "+warning.Reason, "")
	if err != nil {
		logger.WithError(err).WithField("guild", guildID).Error("Failed creating mod log embed")
	}

	return "👌 Deleted warning `" + strconv.FormatInt(id, 10) + "`", nil
}

// SetModlogReason replaces the reason of a mod log entry the bot posted
func SetModlogReason(s Session, config *Config, messageID string, author *discordgo.User, reason string) (interface{}, error) {
	if config.ModLogChannel == "" {
		return "No mod log channel set up", nil
	}

	msg, err := s.ChannelMessage(config.ModLogChannel, messageID)
	if err != nil {
		if common.IsDiscordErr(err, discordgo.ErrCodeUnknownMessage) {
			return "Couldn't find that message in the mod log channel", nil
		}
		return nil, err
	}

	if msg.Author == nil || common.BotUser == nil || msg.Author.ID != common.BotUser.ID {
		return "I didn't make that message", nil
	}

	if len(msg.Embeds) < 1 {
		return "This entry is either too old or you're trying to mess with me...", nil
	}

	embed := msg.Embeds[0]
	if !updateEmbedReason(author, reason, embed) {
		return "That message isn't a mod log entry", nil
	}

	_, err = s.ChannelMessageEditEmbed(config.ModLogChannel, msg.ID, embed)
	if err != nil {
		return nil, err
	}

	return "👌", nil
}

func cmdModConfig(data *dcmd.Data) (interface{}, error) {
	config, guild, _, _, err := MBaseCmd(data, "")
	if err != nil {
		return nil, err
	}

	key := SafeArgString(data, 0)
	if key == "" {
		embed := &discordgo.MessageEmbed{
			Title: "Moderation settings",
			Color: 0xdb0606,
		}
		for _, f := range configFields {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:   f.Name,
				Value:  f.Get(config),
				Inline: !strings.HasSuffix(f.Name, "_message"),
			})
		}
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Change one with modconfig <key> <value>"}
		return embed, nil
	}

	field := findConfigField(key)
	if field == nil {
		names := make([]string, 0, len(configFields))
		for _, f := range configFields {
			names = append(names, "`"+f.Name+"`")
		}
		return "Unknown setting, available ones: " + strings.Join(names, ", "), nil
	}

	value := SafeArgString(data, 1)
	if value == "" {
		return fmt.Sprintf("**%s**: %s\n%s", field.Name, field.Get(config), field.Help), nil
	}

	if err = field.Set(config, value, guild); err != nil {
		return nil, err
	}

	if err = SaveConfig(config); err != nil {
		return nil, err
	}

	return fmt.Sprintf("Set **%s** to %s", field.Name, field.Get(config)), nil
}
