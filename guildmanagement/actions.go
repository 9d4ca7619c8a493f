package guildmanagement

import (
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/yuzubot/yuzu/bot"
	"github.com/yuzubot/yuzu/commands"
)

const (
	MaxSlowmode       = 21600
	MaxNicknameLength = 32
)

var (
	ErrAlreadyLocked = commands.NewPublicError("That channel is already locked")
	ErrNotLocked     = commands.NewPublicError("That channel isn't locked")
)

// SetSlowmode sets the per user message interval of the channel, 0 turns it off
func SetSlowmode(s Session, channelID string, seconds int) error {
	if seconds < 0 || seconds > MaxSlowmode {
		return commands.NewPublicErrorF("Slowmode has to be between 0 and %d seconds", MaxSlowmode)
	}

	_, err := s.ChannelEdit(channelID, &discordgo.ChannelEdit{RateLimitPerUser: &seconds})
	return err
}

func everyoneOverwrite(guildID string, channel *discordgo.Channel) *discordgo.PermissionOverwrite {
	for _, v := range channel.PermissionOverwrites {
		if v.Type == discordgo.PermissionOverwriteTypeRole && v.ID == guildID {
			return v
		}
	}
	return nil
}

// IsLocked reports whether @everyone is denied sending messages in the channel
func IsLocked(guildID string, channel *discordgo.Channel) bool {
	ow := everyoneOverwrite(guildID, channel)
	return ow != nil && ow.Deny&discordgo.PermissionSendMessages != 0
}

// SetChannelLocked denies or restores SendMessages for @everyone, other bits of the overwrite are kept
func SetChannelLocked(s Session, guildID string, channel *discordgo.Channel, locked bool) error {
	if locked == IsLocked(guildID, channel) {
		if locked {
			return ErrAlreadyLocked
		}
		return ErrNotLocked
	}

	var allow, deny int64
	if ow := everyoneOverwrite(guildID, channel); ow != nil {
		allow, deny = ow.Allow, ow.Deny
	}

	if locked {
		allow &^= discordgo.PermissionSendMessages
		deny |= discordgo.PermissionSendMessages
	} else {
		deny &^= discordgo.PermissionSendMessages
	}

	if allow == 0 && deny == 0 {
		return s.ChannelPermissionDelete(channel.ID, guildID)
	}

	return s.ChannelPermissionSet(channel.ID, guildID, discordgo.PermissionOverwriteTypeRole, allow, deny)
}

// checkRoleAssignable returns a public error if the author or the bot may not hand out role
func checkRoleAssignable(guild *discordgo.Guild, author, botMember *discordgo.Member, role *discordgo.Role) error {
	switch {
	case role.ID == guild.ID:
		return commands.NewPublicError("Everyone already has @everyone")
	case role.Managed:
		return commands.NewPublicErrorF("**%s** is managed by an integration and can't be assigned", role.Name)
	case !bot.IsMemberAboveRole(guild, botMember, role):
		return commands.NewPublicErrorF("**%s** is above my highest role", role.Name)
	case !bot.IsMemberAboveRole(guild, author, role):
		return commands.NewPublicErrorF("**%s** is above your highest role", role.Name)
	}
	return nil
}

// ChangeMemberRole gives or takes role from target after checking the role hierarchy
func ChangeMemberRole(s Session, guild *discordgo.Guild, author, botMember, target *discordgo.Member, role *discordgo.Role, add bool) error {
	if err := checkRoleAssignable(guild, author, botMember, role); err != nil {
		return err
	}

	has := false
	for _, v := range target.Roles {
		if v == role.ID {
			has = true
			break
		}
	}

	if add {
		if has {
			return commands.NewPublicErrorF("%s already has **%s**", target.User.Username, role.Name)
		}
		return s.GuildMemberRoleAdd(guild.ID, target.User.ID, role.ID)
	}

	if !has {
		return commands.NewPublicErrorF("%s doesn't have **%s**", target.User.Username, role.Name)
	}
	return s.GuildMemberRoleRemove(guild.ID, target.User.ID, role.ID)
}

// SetNickname changes the nickname of target, an empty nick resets it
func SetNickname(s Session, guild *discordgo.Guild, author, botMember, target *discordgo.Member, nick string) error {
	if utf8.RuneCountInString(nick) > MaxNicknameLength {
		return commands.NewPublicErrorF("Nicknames can be at most %d characters long", MaxNicknameLength)
	}

	if target.User.ID == botMember.User.ID {
		return s.GuildMemberNickname(guild.ID, "@me", nick)
	}

	if target.User.ID == guild.OwnerID {
		return commands.NewPublicError("Nobody can change the nickname of the server owner")
	}

	if !bot.IsMemberAbove(guild, botMember, target) {
		return commands.NewPublicErrorF("%s is above or at my highest role", target.User.Username)
	}

	if author.User.ID != target.User.ID && !bot.IsMemberAbove(guild, author, target) {
		return commands.NewPublicErrorF("%s is above or at your highest role", target.User.Username)
	}

	return s.GuildMemberNickname(guild.ID, target.User.ID, nick)
}
