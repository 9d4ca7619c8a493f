package bot

import (
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/yuzubot/yuzu/common"
)

var ErrStartingUp = errors.NewPlain("Starting up, caches are being filled...")

// SendDM sends a direct message to the user, closed dms are reported as an error
func SendDM(s *discordgo.Session, userID, msg string) error {
	channel, err := s.UserChannelCreate(userID)
	if err != nil {
		return err
	}

	_, err = s.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
		Content:         msg,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	return err
}

// GetMember returns the member from state, falling back to the api and caching the result
func GetMember(s *discordgo.Session, guildID, userID string) (*discordgo.Member, error) {
	member, err := s.State.Member(guildID, userID)
	if err == nil {
		return member, nil
	}

	member, err = s.GuildMember(guildID, userID)
	if err != nil {
		return nil, err
	}

	member.GuildID = guildID
	s.State.MemberAdd(member)
	return member, nil
}

// GetGuild returns the guild from state, falling back to the api
func GetGuild(s *discordgo.Session, guildID string) (*discordgo.Guild, error) {
	g, err := s.State.Guild(guildID)
	if err == nil {
		return g, nil
	}

	if time.Since(Started) < time.Second*30 {
		return nil, ErrStartingUp
	}

	return s.Guild(guildID)
}

// IsRoleAbove reports whether r1 sorts above r2 in the role list.
// Equal positions are broken by id, older (lower) ids sort higher.
func IsRoleAbove(r1, r2 *discordgo.Role) bool {
	if r1 == nil {
		return false
	}
	if r2 == nil {
		return true
	}

	if r1.Position != r2.Position {
		return r1.Position > r2.Position
	}

	return snowflakeLess(r1.ID, r2.ID)
}

func snowflakeLess(a, b string) bool {
	ai, errA := strconv.ParseUint(a, 10, 64)
	bi, errB := strconv.ParseUint(b, 10, 64)
	if errA != nil || errB != nil {
		return a < b
	}
	return ai < bi
}

func findRole(guild *discordgo.Guild, id string) *discordgo.Role {
	for _, r := range guild.Roles {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// MemberHighestRole returns the highest role the member has, nil if it has none
func MemberHighestRole(guild *discordgo.Guild, roleIDs []string) *discordgo.Role {
	var highest *discordgo.Role
	for _, id := range roleIDs {
		r := findRole(guild, id)
		if r == nil {
			continue
		}

		if highest == nil || IsRoleAbove(r, highest) {
			highest = r
		}
	}

	return highest
}

// IsMemberAbove returns true if m1 is strictly above m2 in the hierarchy, the owner is above everyone
func IsMemberAbove(guild *discordgo.Guild, m1, m2 *discordgo.Member) bool {
	if m2.User != nil && m2.User.ID == guild.OwnerID {
		return false
	}
	if m1.User != nil && m1.User.ID == guild.OwnerID {
		return true
	}

	h1 := MemberHighestRole(guild, m1.Roles)
	h2 := MemberHighestRole(guild, m2.Roles)
	if h2 == nil {
		return h1 != nil
	}

	return IsRoleAbove(h1, h2)
}

// IsMemberAboveRole returns true if the member can manage the role
func IsMemberAboveRole(guild *discordgo.Guild, m *discordgo.Member, role *discordgo.Role) bool {
	if m.User != nil && m.User.ID == guild.OwnerID {
		return true
	}

	return IsRoleAbove(MemberHighestRole(guild, m.Roles), role)
}

// HasPerm checks a permission bitfield, administrator implies everything
func HasPerm(perms, perm int64) bool {
	return perms&discordgo.PermissionAdministrator != 0 || perms&perm == perm
}

// AdminOrPerm returns true if the user has the permission in the channel
func AdminOrPerm(s *discordgo.Session, perm int64, userID, channelID string) (bool, error) {
	perms, err := s.State.UserChannelPermissions(userID, channelID)
	if err != nil {
		return false, err
	}

	return HasPerm(perms, perm), nil
}

// BotHasPerm returns true if the bot has the permission in the channel
func BotHasPerm(s *discordgo.Session, perm int64, channelID string) (bool, error) {
	if common.BotUser == nil {
		return false, ErrStartingUp
	}
	return AdminOrPerm(s, perm, common.BotUser.ID, channelID)
}

// BotMember returns the bots member object in the guild
func BotMember(s *discordgo.Session, guildID string) (*discordgo.Member, error) {
	if common.BotUser == nil {
		return nil, ErrStartingUp
	}
	return GetMember(s, guildID, common.BotUser.ID)
}
