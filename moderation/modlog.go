package moderation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/yuzubot/yuzu/common"
)

type ModlogAction struct {
	Prefix string
	Emoji  string
	Color  int

	Footer string
}

func (m ModlogAction) String() string {
	str := m.Emoji + m.Prefix
	if m.Footer != "" {
		str += " (" + m.Footer + ")"
	}

	return str
}

var (
	MAMute          = ModlogAction{Prefix: "Muted", Emoji: "🔇", Color: 0x57728e}
	MAUnmute        = ModlogAction{Prefix: "Unmuted", Emoji: "🔊", Color: 0x62c65f}
	MAKick          = ModlogAction{Prefix: "Kicked", Emoji: "👢", Color: 0xf2a013}
	MABanned        = ModlogAction{Prefix: "Banned", Emoji: "🔨", Color: 0xd64848}
	MAUnbanned      = ModlogAction{Prefix: "Unbanned", Emoji: "🔓", Color: 0x62c65f}
	MAWarned        = ModlogAction{Prefix: "Warned", Emoji: "⚠", Color: 0xfca253}
	MADelwarn       = ModlogAction{Prefix: "Warning removed from", Emoji: "🧽", Color: 0xfca253}
	MAClearWarnings = ModlogAction{Prefix: "Cleared warnings", Emoji: "👌", Color: 0x62c65f}
)

const reasonMarker = "📄**Reason:**"

func withDurationFooter(action ModlogAction, duration time.Duration) ModlogAction {
	if duration > 0 {
		action.Footer = "Duration: " + common.HumanizeDuration(common.DurationPrecisionMinutes, duration)
	} else {
		action.Footer = "Duration: permanent"
	}
	return action
}

func userName(u *discordgo.User) string {
	if u.Discriminator != "" && u.Discriminator != "0" {
		return u.Username + "#" + u.Discriminator
	}
	return u.Username
}

func modlogAuthor(author *discordgo.User) *discordgo.MessageEmbedAuthor {
	return &discordgo.MessageEmbedAuthor{
		Name:    fmt.Sprintf("%s (ID %s)", userName(author), author.ID),
		IconURL: author.AvatarURL("64"),
	}
}

// CreateModlogEmbed posts the action in the mod log channel, if the guild has one.
// A nil author leaves a placeholder telling mods how to claim the entry.
func CreateModlogEmbed(s Session, config *Config, author *discordgo.User, action ModlogAction, target *discordgo.User, reason, link string) error {
	channelID := config.ModLogChannel
	if channelID == "" {
		return nil
	}

	emptyAuthor := author == nil
	if emptyAuthor {
		author = &discordgo.User{ID: "0", Username: "Unknown"}
	}

	if reason == "" {
		reason = "(no reason specified)"
	}

	embed := &discordgo.MessageEmbed{
		Author: modlogAuthor(author),
		Thumbnail: &discordgo.MessageEmbedThumbnail{
			URL: target.AvatarURL("256"),
		},
		Color: action.Color,
		Description: fmt.Sprintf("**%s%s** %s *(ID %s)*\n%s %s",
			action.Emoji, action.Prefix, userName(target), target.ID, reasonMarker, reason),
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if link != "" {
		embed.Description += " ([Context](" + link + "))"
	}

	if action.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: action.Footer,
		}
	}

	m, err := s.ChannelMessageSendEmbed(channelID, embed)
	if err != nil {
		if common.IsDiscordErr(err, discordgo.ErrCodeMissingAccess, discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeUnknownChannel) {
			logger.WithError(err).WithField("guild", config.GuildID).Warn("Mod log channel is unusable, disabling it")
			config.ModLogChannel = ""
			return SaveConfig(config)
		}
		return err
	}

	if emptyAuthor {
		placeholder := fmt.Sprintf("Assign an author and reason to this using **`reason %s your-reason-here`**", m.ID)
		updateEmbedReason(nil, placeholder, embed)
		_, err = s.ChannelMessageEditEmbed(channelID, m.ID, embed)
	}
	return err
}

var contextLinkRegex = regexp.MustCompile(`\(\[Context\]\(.*\)\)`)

// updateEmbedReason replaces the reason line of a modlog embed, keeping the context link
func updateEmbedReason(author *discordgo.User, reason string, embed *discordgo.MessageEmbed) bool {
	index := strings.Index(embed.Description, reasonMarker)
	if index == -1 {
		return false
	}

	withoutReason := embed.Description[:index+len(reasonMarker)]

	link := contextLinkRegex.FindString(embed.Description)
	if link != "" {
		link = " " + link
	}

	embed.Description = withoutReason + " " + reason + link

	if author != nil {
		embed.Author = modlogAuthor(author)
	}
	return true
}
