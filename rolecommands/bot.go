package rolecommands

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/yuzubot/yuzu/bot"
	"github.com/yuzubot/yuzu/bot/eventsystem"
	"github.com/yuzubot/yuzu/commands"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/common/backgroundworkers"
	"github.com/yuzubot/yuzu/common/keylock"
)

// Session is the part of the discord session menus are run through
type Session interface {
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error

	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactionRemove(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error
	MessageReactionsRemoveEmoji(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error

	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

var _ Session = (*discordgo.Session)(nil)

var (
	_ bot.BotInitHandler       = (*Plugin)(nil)
	_ commands.CommandProvider = (*Plugin)(nil)
	_ common.GuildDataRemover  = (*Plugin)(nil)
)

// memberLocks serializes reaction handling per member so quick reactions in unique mode can't both win
var memberLocks = keylock.NewKeyLock[string]()

func (p *Plugin) BotInit() {
	eventsystem.AddHandlerAsyncLastLegacy(p, handleReaction, eventsystem.EventMessageReactionAdd, eventsystem.EventMessageReactionRemove)
	eventsystem.AddHandlerAsyncLastLegacy(p, handleMessageDelete, eventsystem.EventMessageDelete)
	eventsystem.AddHandlerAsyncLastLegacy(p, handleRoleDelete, eventsystem.EventGuildRoleDelete)

	_, err := backgroundworkers.Cron.AddFunc("@daily", func() {
		n, err := SweepStale(common.BotSession)
		if err != nil {
			logger.WithError(err).Error("Failed sweeping stale menus")
			return
		}
		logger.Infof("Removed %d stale menus", n)
	})
	if err != nil {
		logger.WithError(err).Error("Failed scheduling the stale menu sweep")
	}
}

func handleReaction(evt *eventsystem.EventData) {
	var r *discordgo.MessageReaction
	add := evt.Type == eventsystem.EventMessageReactionAdd
	if add {
		r = evt.MessageReactionAdd().MessageReaction
	} else {
		r = evt.MessageReactionRemove().MessageReaction
	}

	if r.GuildID == "" || (common.BotUser != nil && r.UserID == common.BotUser.ID) {
		return
	}

	menu, err := GetMenu(r.GuildID, r.MessageID)
	if err != nil {
		logger.WithError(err).WithField("guild", r.GuildID).Error("Failed retrieving menu")
		return
	}
	if menu == nil {
		return
	}

	member, err := bot.GetMember(evt.Session, r.GuildID, r.UserID)
	if err != nil {
		if !common.IsDiscordErr(err, discordgo.ErrCodeUnknownMember) {
			logger.WithError(err).WithField("guild", r.GuildID).Error("Failed retrieving member")
		}
		return
	}

	err = ApplyReaction(evt.Session, menu, member, &r.Emoji, add)
	if err != nil && !common.IsDiscordErr(err, discordgo.ErrCodeUnknownRole, discordgo.ErrCodeMissingPermissions) {
		logger.WithError(err).WithField("guild", r.GuildID).Error("Failed applying role from menu")
	}
}

func hasRole(member *discordgo.Member, roleID string) bool {
	return common.ContainsStringSlice(member.Roles, roleID)
}

// ApplyReaction gives or takes the role of the reacted option according to the menu mode
func ApplyReaction(s Session, menu *Menu, member *discordgo.Member, emoji *discordgo.Emoji, add bool) error {
	if member.User == nil || member.User.Bot {
		return nil
	}

	opt := menu.FindOption(emoji)
	if opt == nil {
		return nil
	}

	lockKey := menu.GuildID + ":" + member.User.ID
	if handle := memberLocks.Lock(lockKey, time.Second*10, time.Second*10); handle != -1 {
		defer memberLocks.Unlock(lockKey, handle)
	}

	if !add {
		if menu.Mode == ModeVerify || !hasRole(member, opt.RoleID) {
			return nil
		}
		return s.GuildMemberRoleRemove(menu.GuildID, member.User.ID, opt.RoleID)
	}

	if !hasRole(member, opt.RoleID) {
		if err := s.GuildMemberRoleAdd(menu.GuildID, member.User.ID, opt.RoleID); err != nil {
			return err
		}
	}

	if menu.Mode != ModeUnique {
		return nil
	}

	for _, other := range menu.Options {
		if other == opt {
			continue
		}

		if hasRole(member, other.RoleID) {
			if err := s.GuildMemberRoleRemove(menu.GuildID, member.User.ID, other.RoleID); err != nil {
				return err
			}
		}

		err := s.MessageReactionRemove(menu.ChannelID, menu.MessageID, other.Emoji, member.User.ID)
		if err != nil {
			if _, stale := checkStaleErr(menu, err); stale {
				return nil
			}
			logger.WithError(err).WithField("guild", menu.GuildID).Warn("Failed clearing old reaction")
		}
	}

	return nil
}

func handleMessageDelete(evt *eventsystem.EventData) {
	m := evt.MessageDelete()
	if m.GuildID == "" {
		return
	}

	menu, err := GetMenu(m.GuildID, m.ID)
	if err != nil || menu == nil {
		return
	}

	if err := DeleteMenu(m.GuildID, m.ID); err != nil {
		logger.WithError(err).WithField("guild", m.GuildID).Error("Failed removing menu of deleted message")
	}
}

// handleRoleDelete drops options pointing at a deleted role
func handleRoleDelete(evt *eventsystem.EventData) {
	rd := evt.GuildRoleDelete()

	menus, err := ListMenus(rd.GuildID)
	if err != nil {
		logger.WithError(err).WithField("guild", rd.GuildID).Error("Failed listing menus")
		return
	}

	for _, m := range menus {
		opt := m.findRoleOption(rd.RoleID)
		if opt == nil {
			continue
		}

		m.removeOption(opt)
		if err := SaveMenu(m); err != nil {
			logger.WithError(err).WithField("guild", rd.GuildID).Error("Failed saving menu")
			continue
		}

		evt.Session.MessageReactionsRemoveEmoji(m.ChannelID, m.MessageID, opt.Emoji)
		evt.Session.ChannelMessageEditEmbed(m.ChannelID, m.MessageID, m.Embed())
	}
}
