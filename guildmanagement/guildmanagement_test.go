package guildmanagement

import (
	"os"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuzubot/yuzu/commands"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/lib/dcmd"
)

func TestMain(m *testing.M) {
	db, err := common.InitTestStore()
	if err != nil {
		panic(err)
	}

	code := m.Run()
	db.Close()
	os.Exit(code)
}

type permCall struct {
	channel, target string
	allow, deny     int64
}

type fakeSession struct {
	edits       []*discordgo.ChannelEdit
	permSets    []permCall
	permDeletes []string
	roleAdds    []string
	roleRemoves []string
	nicks       map[string]string
}

func (f *fakeSession) ChannelEdit(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.edits = append(f.edits, data)
	return &discordgo.Channel{ID: channelID}, nil
}

func (f *fakeSession) ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, options ...discordgo.RequestOption) error {
	f.permSets = append(f.permSets, permCall{channel: channelID, target: targetID, allow: allow, deny: deny})
	return nil
}

func (f *fakeSession) ChannelPermissionDelete(channelID, targetID string, options ...discordgo.RequestOption) error {
	f.permDeletes = append(f.permDeletes, targetID)
	return nil
}

func (f *fakeSession) GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	f.roleAdds = append(f.roleAdds, userID+"/"+roleID)
	return nil
}

func (f *fakeSession) GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	f.roleRemoves = append(f.roleRemoves, userID+"/"+roleID)
	return nil
}

func (f *fakeSession) GuildMemberNickname(guildID, userID, nickname string, options ...discordgo.RequestOption) error {
	if f.nicks == nil {
		f.nicks = make(map[string]string)
	}
	f.nicks[userID] = nickname
	return nil
}

const guildID = "175928847299117063"

func testGuild() *discordgo.Guild {
	return &discordgo.Guild{
		ID:      guildID,
		Name:    "Yuzu Grove",
		OwnerID: "owner",
		Roles: []*discordgo.Role{
			{ID: guildID, Name: "@everyone", Position: 0},
			{ID: "r1", Name: "member", Position: 1},
			{ID: "r3", Name: "mod", Position: 3, Permissions: discordgo.PermissionManageRoles | discordgo.PermissionKickMembers},
			{ID: "r5", Name: "yuzu", Position: 5, Managed: true},
			{ID: "r9", Name: "admin", Position: 9},
		},
		Channels: []*discordgo.Channel{
			{ID: "c1", Type: discordgo.ChannelTypeGuildText},
			{ID: "c2", Type: discordgo.ChannelTypeGuildText},
			{ID: "v1", Type: discordgo.ChannelTypeGuildVoice},
			{ID: "cat", Type: discordgo.ChannelTypeGuildCategory},
		},
		Members: []*discordgo.Member{
			{User: &discordgo.User{ID: "u1"}, Roles: []string{"r1"}},
			{User: &discordgo.User{ID: "u2"}, Roles: []string{"r1", "r3"}},
		},
		MemberCount: 1234,
	}
}

func newMember(id string, roles ...string) *discordgo.Member {
	return &discordgo.Member{User: &discordgo.User{ID: id, Username: "user-" + id, Discriminator: "0"}, Roles: roles}
}

var botMember = newMember("bot", "r5")

func TestSetSlowmode(t *testing.T) {
	s := &fakeSession{}

	require.NoError(t, SetSlowmode(s, "c1", 30))
	require.Len(t, s.edits, 1)
	assert.Equal(t, 30, *s.edits[0].RateLimitPerUser)

	assert.True(t, commands.IsPublicError(SetSlowmode(s, "c1", MaxSlowmode+1)))
	assert.True(t, commands.IsPublicError(SetSlowmode(s, "c1", -1)))
	assert.Len(t, s.edits, 1)
}

func TestLockChannel(t *testing.T) {
	s := &fakeSession{}
	channel := &discordgo.Channel{ID: "c1"}

	require.NoError(t, SetChannelLocked(s, guildID, channel, true))
	require.Len(t, s.permSets, 1)
	assert.Equal(t, permCall{channel: "c1", target: guildID, deny: discordgo.PermissionSendMessages}, s.permSets[0])

	// other bits of an existing overwrite survive
	channel.PermissionOverwrites = []*discordgo.PermissionOverwrite{{
		ID:    guildID,
		Type:  discordgo.PermissionOverwriteTypeRole,
		Allow: discordgo.PermissionSendMessages | discordgo.PermissionAddReactions,
		Deny:  discordgo.PermissionAttachFiles,
	}}
	require.NoError(t, SetChannelLocked(s, guildID, channel, true))
	assert.Equal(t, permCall{
		channel: "c1",
		target:  guildID,
		allow:   discordgo.PermissionAddReactions,
		deny:    discordgo.PermissionAttachFiles | discordgo.PermissionSendMessages,
	}, s.permSets[1])
}

func TestUnlockChannel(t *testing.T) {
	s := &fakeSession{}
	channel := &discordgo.Channel{ID: "c1"}

	assert.Equal(t, ErrNotLocked, SetChannelLocked(s, guildID, channel, false))

	channel.PermissionOverwrites = []*discordgo.PermissionOverwrite{{
		ID:   guildID,
		Type: discordgo.PermissionOverwriteTypeRole,
		Deny: discordgo.PermissionSendMessages,
	}}
	assert.True(t, IsLocked(guildID, channel))
	assert.Equal(t, ErrAlreadyLocked, SetChannelLocked(s, guildID, channel, true))

	// nothing left in the overwrite, it goes away
	require.NoError(t, SetChannelLocked(s, guildID, channel, false))
	assert.Equal(t, []string{guildID}, s.permDeletes)
	assert.Empty(t, s.permSets)

	channel.PermissionOverwrites[0].Deny |= discordgo.PermissionAttachFiles
	require.NoError(t, SetChannelLocked(s, guildID, channel, false))
	require.Len(t, s.permSets, 1)
	assert.Equal(t, int64(discordgo.PermissionAttachFiles), s.permSets[0].deny)
}

func TestChangeMemberRole(t *testing.T) {
	guild := testGuild()
	mod := newMember("mod", "r3")

	cases := []struct {
		name    string
		author  *discordgo.Member
		target  *discordgo.Member
		role    string
		add     bool
		wantErr string
	}{
		{name: "add", author: mod, target: newMember("u1"), role: "r1", add: true},
		{name: "remove", author: mod, target: newMember("u1", "r1"), role: "r1"},
		{name: "already has", author: mod, target: newMember("u1", "r1"), role: "r1", add: true, wantErr: "user-u1 already has **member**"},
		{name: "doesn't have", author: mod, target: newMember("u1"), role: "r1", wantErr: "user-u1 doesn't have **member**"},
		{name: "everyone", author: mod, target: newMember("u1"), role: guildID, add: true, wantErr: "Everyone already has @everyone"},
		{name: "managed", author: newMember("owner"), target: newMember("u1"), role: "r5", add: true, wantErr: "**yuzu** is managed by an integration and can't be assigned"},
		{name: "above bot", author: newMember("owner"), target: newMember("u1"), role: "r9", add: true, wantErr: "**admin** is above my highest role"},
		{name: "above author", author: mod, target: newMember("u1"), role: "r3", add: true, wantErr: "**mod** is above your highest role"},
		{name: "owner skips author check", author: newMember("owner"), target: newMember("u1"), role: "r3", add: true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := &fakeSession{}
			var role *discordgo.Role
			for _, r := range guild.Roles {
				if r.ID == c.role {
					role = r
				}
			}

			err := ChangeMemberRole(s, guild, c.author, botMember, c.target, role, c.add)
			if c.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, c.wantErr, err.Error())
				assert.Empty(t, s.roleAdds)
				assert.Empty(t, s.roleRemoves)
				return
			}

			require.NoError(t, err)
			if c.add {
				assert.Equal(t, []string{c.target.User.ID + "/" + c.role}, s.roleAdds)
			} else {
				assert.Equal(t, []string{c.target.User.ID + "/" + c.role}, s.roleRemoves)
			}
		})
	}
}

func TestSetNickname(t *testing.T) {
	guild := testGuild()
	s := &fakeSession{}
	mod := newMember("mod", "r3")

	require.NoError(t, SetNickname(s, guild, mod, botMember, newMember("u1", "r1"), "pip"))
	assert.Equal(t, "pip", s.nicks["u1"])

	require.NoError(t, SetNickname(s, guild, mod, botMember, botMember, "Yuzu"))
	assert.Equal(t, "Yuzu", s.nicks["@me"])

	// changing your own works even without being above yourself
	require.NoError(t, SetNickname(s, guild, mod, botMember, mod, ""))
	assert.Equal(t, "", s.nicks["mod"])

	err := SetNickname(s, guild, mod, botMember, newMember("u2", "r3"), "x")
	require.Error(t, err)
	assert.Equal(t, "user-u2 is above or at your highest role", err.Error())

	err = SetNickname(s, guild, mod, botMember, newMember("boss", "r9"), "x")
	require.Error(t, err)
	assert.Equal(t, "user-boss is above or at my highest role", err.Error())

	err = SetNickname(s, guild, newMember("owner"), botMember, newMember("owner"), "x")
	assert.True(t, commands.IsPublicError(err))

	err = SetNickname(s, guild, mod, botMember, newMember("u1"), "this nickname is way too long to be accepted")
	assert.True(t, commands.IsPublicError(err))
}

func fieldValue(embed *discordgo.MessageEmbed, name string) string {
	for _, f := range embed.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

func TestServerInfoEmbed(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	embed := ServerInfoEmbed(testGuild(), now)

	assert.Equal(t, "Yuzu Grove", embed.Title)
	assert.Equal(t, "<@owner>", fieldValue(embed, "Owner"))
	assert.Equal(t, "1,234", fieldValue(embed, "Members"))
	assert.Equal(t, "2 text, 1 voice, 1 categories", fieldValue(embed, "Channels"))
	assert.Equal(t, "4", fieldValue(embed, "Roles"))
	assert.Contains(t, fieldValue(embed, "Created"), "Apr 16")
	assert.Contains(t, fieldValue(embed, "Created"), "years ago")
	assert.Nil(t, embed.Thumbnail)
}

func TestUserInfoEmbed(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	member := newMember("u2", "r1", "r3")
	member.Nick = "Pip"
	member.JoinedAt = now.Add(-time.Hour * 48)

	embed := UserInfoEmbed(testGuild(), member, now)
	assert.Equal(t, "user-u2 (Pip)", embed.Title)
	assert.Equal(t, "<@&r3> <@&r1>", fieldValue(embed, "Roles (2)"))
	assert.Contains(t, fieldValue(embed, "Joined server"), "2 days ago")
	assert.Equal(t, "Unknown", fieldValue(embed, "Account created"))
}

func TestRoleInfoEmbed(t *testing.T) {
	guild := testGuild()
	embed := RoleInfoEmbed(guild, guild.Roles[2], time.Now())

	assert.Equal(t, "mod", embed.Title)
	assert.Equal(t, "1", fieldValue(embed, "Members"))
	assert.Equal(t, "KickMembers, ManageRoles", fieldValue(embed, "Permissions"))
	assert.Equal(t, "No", fieldValue(embed, "Hoisted"))

	embed = RoleInfoEmbed(guild, guild.Roles[1], time.Now())
	assert.Equal(t, "2", fieldValue(embed, "Members"))
	assert.Equal(t, "None", fieldValue(embed, "Permissions"))
}

func TestPrefixCommand(t *testing.T) {
	var perms int64
	oldPerms := commands.MemberPermissions
	commands.MemberPermissions = func(data *dcmd.Data) (int64, error) { return perms, nil }
	defer func() { commands.MemberPermissions = oldPerms }()

	run := func(arg string) string {
		data := &dcmd.Data{GuildID: "g-prefix", Author: &discordgo.User{ID: "u1"}, Args: dcmd.NewParsedArgs(cmds[0].Arguments)}
		if arg != "" {
			data.Args[0].Value = arg
		}

		resp, err := cmdFuncPrefix(data)
		require.NoError(t, err)
		return resp.(string)
	}

	assert.Equal(t, "The prefix of this server is `-`", run(""))
	assert.Equal(t, "You need the Manage Server permission to change the prefix", run("!"))

	perms = discordgo.PermissionManageServer
	assert.Equal(t, "Set the prefix to `!`", run("!"))
	assert.Equal(t, "The prefix of this server is `!`", run(""))
}
