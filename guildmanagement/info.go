package guildmanagement

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/yuzubot/yuzu/commands"
)

const embedColor = 0x7289da

// createdField shows when the snowflake id was made
func createdField(name, id string, now time.Time) *discordgo.MessageEmbedField {
	t, err := discordgo.SnowflakeTimestamp(id)
	if err != nil {
		return inline(name, "Unknown")
	}
	return inline(name, timeValue(t, now))
}

func timeValue(t, now time.Time) string {
	return fmt.Sprintf("%s\n(%s)", t.UTC().Format(time.RFC822), humanize.RelTime(t, now, "ago", "from now"))
}

func inline(name, value string) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{Name: name, Value: value, Inline: true}
}

func ServerInfoEmbed(guild *discordgo.Guild, now time.Time) *discordgo.MessageEmbed {
	var text, voice, categories int
	for _, c := range guild.Channels {
		switch c.Type {
		case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews, discordgo.ChannelTypeGuildForum:
			text++
		case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice:
			voice++
		case discordgo.ChannelTypeGuildCategory:
			categories++
		}
	}

	members := guild.MemberCount
	if members == 0 {
		members = len(guild.Members)
	}

	embed := &discordgo.MessageEmbed{
		Title: guild.Name,
		Color: embedColor,
		Fields: []*discordgo.MessageEmbedField{
			inline("ID", guild.ID),
			inline("Owner", "<@"+guild.OwnerID+">"),
			createdField("Created", guild.ID, now),
			inline("Members", humanize.Comma(int64(members))),
			inline("Channels", fmt.Sprintf("%d text, %d voice, %d categories", text, voice, categories)),
			// @everyone is not counted
			inline("Roles", strconv.Itoa(len(guild.Roles)-1)),
			inline("Emojis", strconv.Itoa(len(guild.Emojis))),
			inline("Boosts", fmt.Sprintf("Level %d, %d boosts", guild.PremiumTier, guild.PremiumSubscriptionCount)),
		},
	}

	if guild.Icon != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: guild.IconURL("256")}
	}

	return embed
}

// sortedRoles returns the roles of the member, highest first
func sortedRoles(guild *discordgo.Guild, roleIDs []string) []*discordgo.Role {
	roles := make([]*discordgo.Role, 0, len(roleIDs))
	for _, r := range guild.Roles {
		for _, id := range roleIDs {
			if r.ID == id {
				roles = append(roles, r)
				break
			}
		}
	}

	sort.SliceStable(roles, func(i, j int) bool {
		return roles[i].Position > roles[j].Position
	})
	return roles
}

func UserInfoEmbed(guild *discordgo.Guild, member *discordgo.Member, now time.Time) *discordgo.MessageEmbed {
	user := member.User

	title := user.String()
	if member.Nick != "" {
		title += " (" + member.Nick + ")"
	}

	avatar := user.AvatarURL("256")
	embed := &discordgo.MessageEmbed{
		Title: title,
		Color: embedColor,
		Fields: []*discordgo.MessageEmbedField{
			inline("ID", user.ID),
			inline("Avatar", "[Link]("+avatar+")"),
			createdField("Account created", user.ID, now),
		},
		Thumbnail: &discordgo.MessageEmbedThumbnail{URL: avatar},
	}

	if !member.JoinedAt.IsZero() {
		embed.Fields = append(embed.Fields, inline("Joined server", timeValue(member.JoinedAt, now)))
	}

	roles := sortedRoles(guild, member.Roles)
	if len(roles) > 0 {
		mentions := make([]string, 0, len(roles))
		for _, r := range roles {
			mentions = append(mentions, r.Mention())
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("Roles (%d)", len(roles)),
			Value: strings.Join(mentions, " "),
		})
	}

	if user.Bot {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Bot account"}
	}

	return embed
}

func RoleInfoEmbed(guild *discordgo.Guild, role *discordgo.Role, now time.Time) *discordgo.MessageEmbed {
	members := 0
	for _, m := range guild.Members {
		for _, id := range m.Roles {
			if id == role.ID {
				members++
				break
			}
		}
	}

	perms := "None"
	if names := commands.HumanizePermissions(role.Permissions); len(names) > 0 {
		perms = strings.Join(names, ", ")
	}

	return &discordgo.MessageEmbed{
		Title: role.Name,
		Color: role.Color,
		Fields: []*discordgo.MessageEmbedField{
			inline("ID", role.ID),
			inline("Color", fmt.Sprintf("#%06x", role.Color)),
			inline("Position", strconv.Itoa(role.Position)),
			inline("Members", humanize.Comma(int64(members))),
			inline("Mentionable", yesNo(role.Mentionable)),
			inline("Hoisted", yesNo(role.Hoist)),
			createdField("Created", role.ID, now),
			{Name: "Permissions", Value: perms},
		},
	}
}

func AvatarEmbed(user *discordgo.User) *discordgo.MessageEmbed {
	url := user.AvatarURL("1024")
	return &discordgo.MessageEmbed{
		Title: "Avatar of " + user.String(),
		URL:   url,
		Color: embedColor,
		Image: &discordgo.MessageEmbedImage{URL: url},
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
