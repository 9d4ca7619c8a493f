package rolecommands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/yuzubot/yuzu/common"
)

const DefaultTitle = "Pick your roles"

var modeHelp = map[Mode]string{
	ModeNormal: "React to get a role, remove your reaction to lose it",
	ModeUnique: "You can have one of these roles, reacting to another one swaps them",
	ModeVerify: "React to get a role, it stays when you remove your reaction",
}

func sortMenus(menus []*Menu) {
	sort.SliceStable(menus, func(i, j int) bool {
		return menus[i].CreatedAt.Before(menus[j].CreatedAt)
	})
}

// Embed renders the menu message
func (m *Menu) Embed() *discordgo.MessageEmbed {
	var desc strings.Builder
	desc.WriteString(modeHelp[m.Mode] + "\n\n")
	for _, v := range m.Options {
		fmt.Fprintf(&desc, "%s → <@&%s>\n", v.EmojiName, v.RoleID)
	}

	return &discordgo.MessageEmbed{
		Title:       m.Title,
		Description: desc.String(),
		Color:       0x9b59b6,
	}
}

// describeOptions lists the options numbered from 1 for the panels
func describeOptions(m *Menu) string {
	if len(m.Options) == 0 {
		return "(no roles yet)"
	}

	var b strings.Builder
	for i, v := range m.Options {
		fmt.Fprintf(&b, "`%d` %s → <@&%s>\n", i+1, v.EmojiName, v.RoleID)
	}
	return b.String()
}

// findRole resolves a role mention, id or name
func findRole(guild *discordgo.Guild, s string) *discordgo.Role {
	s = strings.TrimSpace(s)
	id := strings.TrimSuffix(strings.TrimPrefix(s, "<@&"), ">")

	for _, r := range guild.Roles {
		if r.ID == id {
			return r
		}
	}

	for _, r := range guild.Roles {
		if strings.EqualFold(r.Name, s) {
			return r
		}
	}
	return nil
}

func menuLink(m *Menu) string {
	return common.MessageLink(m.GuildID, m.ChannelID, m.MessageID)
}
