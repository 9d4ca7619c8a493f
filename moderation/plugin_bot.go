package moderation

import (
	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/yuzubot/yuzu/bot"
	"github.com/yuzubot/yuzu/bot/eventsystem"
	"github.com/yuzubot/yuzu/commands"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/common/scheduledevents"
)

var logger = common.GetPluginLogger(&Plugin{})

// Session is the part of the discord session moderation actions go through
type Session interface {
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberDeleteWithReason(guildID, userID, reason string, options ...discordgo.RequestOption) error
	GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error
	GuildBanDelete(guildID, userID string, options ...discordgo.RequestOption) error

	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error

	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

var _ Session = (*discordgo.Session)(nil)

type Plugin struct{}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Moderation",
		SysName:  "moderation",
		Category: common.PluginCategoryModeration,
	}
}

func RegisterPlugin() {
	registerScheduledHandlers()
	common.RegisterPlugin(&Plugin{})
}

func registerScheduledHandlers() {
	scheduledevents.RegisterHandler("moderation_unmute", ScheduledUnmuteData{}, handleScheduledUnmute)
	scheduledevents.RegisterHandler("moderation_unban", ScheduledUnbanData{}, handleScheduledUnban)
}

var (
	_ bot.BotInitHandler       = (*Plugin)(nil)
	_ commands.CommandProvider = (*Plugin)(nil)
	_ common.GuildDataRemover  = (*Plugin)(nil)
)

func (p *Plugin) BotInit() {
	eventsystem.AddHandlerAsyncLastLegacy(p, handleGuildMemberAdd, eventsystem.EventGuildMemberAdd)
}

func handleGuildMemberAdd(evt *eventsystem.EventData) {
	m := evt.GuildMemberAdd()

	config, err := GetConfig(m.GuildID)
	if err != nil {
		logger.WithError(err).WithField("guild", m.GuildID).Error("Failed retrieving config")
		return
	}

	err = reapplyMute(evt.Session, config, m.GuildID, m.Member)
	if err != nil {
		logger.WithError(err).WithField("guild", m.GuildID).Error("Failed giving the mute role back to a rejoined member")
	}
}

// scheduledSession is swapped out in tests
var scheduledSession = func() Session { return common.BotSession }

func handleScheduledUnmute(evt *scheduledevents.ScheduledEvent, data interface{}) (retry bool, err error) {
	unmuteData := data.(*ScheduledUnmuteData)

	config, err := GetConfig(evt.GuildID)
	if err != nil {
		return scheduledevents.CheckDiscordErrRetry(err), err
	}

	guild, err := bot.GetGuild(common.BotSession, evt.GuildID)
	if err != nil {
		return scheduledevents.CheckDiscordErrRetry(err), err
	}

	member, err := bot.GetMember(common.BotSession, evt.GuildID, unmuteData.UserID)
	if err != nil {
		if common.IsDiscordErr(err, discordgo.ErrCodeUnknownMember) {
			// left while muted, the rejoin check looks at the record which expired by now
			return false, nil
		}
		return scheduledevents.CheckDiscordErrRetry(err), err
	}

	err = MuteUnmuteUser(scheduledSession(), config, false, guild, common.BotUser, "Mute duration expired", member, 0)
	if errors.Is(err, ErrNotMuted) || errors.Is(err, ErrNoMuteRole) {
		return false, nil
	}
	return scheduledevents.CheckDiscordErrRetry(err), err
}

func handleScheduledUnban(evt *scheduledevents.ScheduledEvent, data interface{}) (retry bool, err error) {
	unbanData := data.(*ScheduledUnbanData)

	config, err := GetConfig(evt.GuildID)
	if err != nil {
		return scheduledevents.CheckDiscordErrRetry(err), err
	}

	user := &discordgo.User{ID: unbanData.UserID, Username: "unknown"}
	if u, err := common.BotSession.User(unbanData.UserID); err == nil {
		user = u
	}

	_, err = UnbanUser(scheduledSession(), config, evt.GuildID, common.BotUser, "Ban expired", user)
	return scheduledevents.CheckDiscordErrRetry(err), err
}
