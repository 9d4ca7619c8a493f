package moderation

import (
	"bytes"
	"net/http"
	"strings"
	"text/template"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/yuzubot/yuzu/bot"
	"github.com/yuzubot/yuzu/commands"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/common/scheduledevents"
	"github.com/yuzubot/yuzu/common/store"
)

type Punishment int

const (
	PunishmentKick Punishment = iota
	PunishmentBan
)

const DefaultDMMessage = "You have been {{.ModAction}}\n**Reason:** {{.Reason}}{{if .Duration}}\n**Duration:** {{.HumanDuration}}{{end}}"

const (
	ErrNoMuteRole = errors.Sentinel("No mute role")
	ErrNotMuted   = errors.Sentinel("Not muted")
)

type ScheduledUnmuteData struct {
	UserID string `json:"user_id"`
}

type ScheduledUnbanData struct {
	UserID string `json:"user_id"`
}

// MuteRecord marks a member as muted, it expires together with the mute
type MuteRecord struct {
	UserID    string    `json:"user_id"`
	AuthorID  string    `json:"author_id"`
	Reason    string    `json:"reason"`
	ExpiresAt time.Time `json:"expires_at"`
}

func KeyMute(guildID, userID string) string { return store.Key("mutes", guildID, userID) }

// CheckHierarchy makes sure both the invoker and the bot rank above the target
func CheckHierarchy(guild *discordgo.Guild, invoker, botMember, target *discordgo.Member) error {
	if target == nil {
		return nil
	}

	if target.User != nil && invoker.User != nil && target.User.ID == invoker.User.ID {
		return commands.NewPublicError("You can't do that to yourself")
	}

	if !bot.IsMemberAbove(guild, invoker, target) {
		return commands.NewPublicError("Can't use moderation commands on users ranked the same or higher than you")
	}

	if botMember != nil && !bot.IsMemberAbove(guild, botMember, target) {
		return commands.NewPublicError("I can't do that to members ranked the same or higher than me")
	}

	return nil
}

func fullReason(author *discordgo.User, reason string) string {
	if common.BotUser != nil && author.ID == common.BotUser.ID {
		return reason
	}
	return userName(author) + ": " + reason
}

// punish kicks or bans the user, sending the punishment DM before and the modlog entry after
func punish(s Session, config *Config, p Punishment, guild *discordgo.Guild, author *discordgo.User, reason string, user *discordgo.User, duration time.Duration, banDeleteDays int) error {
	var action ModlogAction
	var msg string
	switch p {
	case PunishmentKick:
		action = MAKick
		msg = config.KickMessage
	case PunishmentBan:
		action = withDurationFooter(MABanned, duration)
		msg = config.BanMessage
	default:
		return errors.New("invalid punishment type")
	}

	sendPunishDM(s, config, msg, action, guild, author, user, duration, reason)

	var err error
	switch p {
	case PunishmentKick:
		err = s.GuildMemberDeleteWithReason(guild.ID, user.ID, fullReason(author, reason))
	case PunishmentBan:
		err = s.GuildBanCreateWithReason(guild.ID, user.ID, fullReason(author, reason), banDeleteDays)
	}
	if err != nil {
		return err
	}

	logger.WithField("guild", guild.ID).Infof("MODERATION: %s %s %s cause %q", author.Username, action.Prefix, user.Username, reason)

	err = CreateModlogEmbed(s, config, author, action, user, reason, "")
	if err != nil {
		logger.WithError(err).WithField("guild", guild.ID).Error("Failed creating mod log embed")
	}
	return nil
}

type dmTemplateData struct {
	Reason        string
	Duration      time.Duration
	HumanDuration string
	Author        string
	GuildName     string
	ModAction     ModlogAction
}

func parseDMTemplate(msg string) (*template.Template, error) {
	return template.New("dm").Option("missingkey=zero").Parse(msg)
}

// sendPunishDM tells the user what happened to them, users with closed DMs are skipped
func sendPunishDM(s Session, config *Config, msg string, action ModlogAction, guild *discordgo.Guild, author, user *discordgo.User, duration time.Duration, reason string) {
	if !config.DMOnPunish || user.Bot {
		return
	}

	if msg == "" {
		msg = DefaultDMMessage
	}

	data := &dmTemplateData{
		Reason:        reason,
		Duration:      duration,
		HumanDuration: "permanently",
		Author:        userName(author),
		GuildName:     guild.Name,
		ModAction:     action,
	}
	if duration > 0 {
		data.HumanDuration = common.HumanizeDuration(common.DurationPrecisionMinutes, duration)
	}

	executed, err := executeDMTemplate(msg, data)
	if err != nil {
		logger.WithError(err).WithField("guild", guild.ID).Warn("Failed executing punishment DM, using the default")
		executed, _ = executeDMTemplate(DefaultDMMessage, data)
	}

	if strings.TrimSpace(executed) == "" {
		return
	}

	channel, err := s.UserChannelCreate(user.ID)
	if err == nil {
		_, err = s.ChannelMessageSend(channel.ID, "**"+guild.Name+":** "+executed)
	}

	if err != nil && !common.IsDiscordErr(err, discordgo.ErrCodeCannotSendMessagesToThisUser) {
		logger.WithError(err).WithField("guild", guild.ID).Error("Failed sending punish DM")
	}
}

func executeDMTemplate(msg string, data *dmTemplateData) (string, error) {
	tmpl, err := parseDMTemplate(msg)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func KickUser(s Session, config *Config, guild *discordgo.Guild, author *discordgo.User, reason string, user *discordgo.User) error {
	return punish(s, config, PunishmentKick, guild, author, reason, user, 0, 0)
}

// BanUser bans the user, a duration above zero schedules the unban.
// Any unban scheduled earlier is dropped.
func BanUser(s Session, config *Config, guild *discordgo.Guild, author *discordgo.User, reason string, user *discordgo.User, duration time.Duration, deleteMessageDays int) error {
	if deleteMessageDays > 7 {
		deleteMessageDays = 7
	}
	if deleteMessageDays < 0 {
		deleteMessageDays = 0
	}

	err := punish(s, config, PunishmentBan, guild, author, reason, user, duration, deleteMessageDays)
	if err != nil {
		return err
	}

	clearScheduled(guild.ID, "moderation_unban", user.ID)

	if duration > 0 {
		_, err = scheduledevents.ScheduleEvent("moderation_unban", guild.ID, time.Now().Add(duration), &ScheduledUnbanData{
			UserID: user.ID,
		})
		if err != nil {
			return errors.WithMessage(err, "schedule unban")
		}
	}

	return nil
}

// UnbanUser lifts a ban, notBanned is true when the user wasn't banned in the first place
func UnbanUser(s Session, config *Config, guildID string, author *discordgo.User, reason string, user *discordgo.User) (notBanned bool, err error) {
	clearScheduled(guildID, "moderation_unban", user.ID)

	err = s.GuildBanDelete(guildID, user.ID, discordgo.WithAuditLogReason(fullReason(author, reason)))
	if err != nil {
		return isNotFound(err)
	}

	logger.WithField("guild", guildID).Infof("MODERATION: %s %s %s cause %q", author.Username, MAUnbanned.Prefix, user.Username, reason)

	err = CreateModlogEmbed(s, config, author, MAUnbanned, user, reason, "")
	return false, err
}

func isNotFound(err error) (bool, error) {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return true, nil
	}
	return false, err
}

func clearScheduled(guildID, evtName, userID string) {
	_, err := scheduledevents.DeleteEvents(guildID, evtName, func(data interface{}) bool {
		switch t := data.(type) {
		case *ScheduledUnmuteData:
			return t.UserID == userID
		case *ScheduledUnbanData:
			return t.UserID == userID
		}
		return false
	})
	if err != nil {
		logger.WithError(err).WithField("guild", guildID).Error("Failed clearing " + evtName + " events")
	}
}

// GetMute returns the active mute of the member, nil if there's none
func GetMute(guildID, userID string) (*MuteRecord, error) {
	var record MuteRecord
	err := common.Store.Get(KeyMute(guildID, userID), &record)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MuteUnmuteUser mutes or unmutes a member, duration is ignored when unmuting and zero mutes until unmuted.
// A nil author means the bot did it on its own.
func MuteUnmuteUser(s Session, config *Config, mute bool, guild *discordgo.Guild, author *discordgo.User, reason string, member *discordgo.Member, duration time.Duration) error {
	if config.MuteRole == "" {
		return ErrNoMuteRole
	}

	if author == nil {
		author = common.BotUser
	}

	unlock, err := LockMute(guild.ID, member.User.ID, time.Second*10)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := GetMute(guild.ID, member.User.ID)
	if err != nil {
		return err
	}

	// muting again replaces the old expiry, unmuting drops it
	clearScheduled(guild.ID, "moderation_unmute", member.User.ID)

	hasRole := common.ContainsStringSlice(member.Roles, config.MuteRole)
	auditReason := discordgo.WithAuditLogReason(fullReason(author, reason))

	action := MAUnmute
	if mute {
		action = withDurationFooter(MAMute, duration)
		sendPunishDM(s, config, config.MuteMessage, action, guild, author, member.User, duration, reason)

		if !hasRole {
			err = s.GuildMemberRoleAdd(guild.ID, member.User.ID, config.MuteRole, auditReason)
			if err != nil {
				return err
			}
		}

		record := &MuteRecord{
			UserID:   member.User.ID,
			AuthorID: author.ID,
			Reason:   reason,
		}
		if duration > 0 {
			record.ExpiresAt = time.Now().Add(duration)
		}

		if err = common.Store.Put(KeyMute(guild.ID, member.User.ID), record, duration); err != nil {
			return err
		}

		if duration > 0 {
			_, err = scheduledevents.ScheduleEvent("moderation_unmute", guild.ID, record.ExpiresAt, &ScheduledUnmuteData{
				UserID: member.User.ID,
			})
			if err != nil {
				return errors.WithMessage(err, "schedule unmute")
			}
		}
	} else {
		if current == nil && !hasRole {
			return ErrNotMuted
		}

		if hasRole {
			err = s.GuildMemberRoleRemove(guild.ID, member.User.ID, config.MuteRole, auditReason)
			if err != nil && !common.IsDiscordErr(err, discordgo.ErrCodeUnknownMember) {
				return err
			}
		}

		err = common.Store.Delete(KeyMute(guild.ID, member.User.ID))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}

	logger.WithField("guild", guild.ID).Infof("MODERATION: %s %s %s cause %q", author.Username, action.Prefix, member.User.Username, reason)

	err = CreateModlogEmbed(s, config, author, action, member.User, reason, "")
	if err != nil {
		logger.WithError(err).WithField("guild", guild.ID).Error("Failed creating mod log embed")
	}
	return nil
}

// WarnUser saves a warning, DMs the user about it and logs it in the mod log
func WarnUser(s Session, config *Config, guild *discordgo.Guild, author, target *discordgo.User, reason, link string) (*Warning, error) {
	warning := &Warning{
		AuthorID:   author.ID,
		AuthorName: userName(author),
		Reason:     reason,
		CreatedAt:  time.Now(),
	}
	if config.WarnIncludeChannelLogs {
		warning.MessageLink = link
	}

	err := AddWarning(guild.ID, target.ID, warning, config.DeleteWarningsAfterDays)
	if err != nil {
		return nil, err
	}

	sendPunishDM(s, config, "", MAWarned, guild, author, target, 0, reason)

	err = CreateModlogEmbed(s, config, author, MAWarned, target, reason, warning.MessageLink)
	if err != nil {
		logger.WithError(err).WithField("guild", guild.ID).Error("Failed creating mod log embed")
	}

	return warning, nil
}

// DeleteMessages bulk deletes up to num of the last 100 messages in the channel,
// only those by filterUser if it's set. Messages older than 2 weeks can't be bulk deleted and are left alone.
func DeleteMessages(s Session, channelID, filterUser string, num int) (int, error) {
	if num > 100 {
		num = 100
	}

	msgs, err := s.ChannelMessages(channelID, 100, "", "", "")
	if err != nil {
		return 0, err
	}

	toDelete := make([]string, 0, num)
	now := time.Now()
	for _, m := range msgs {
		if filterUser != "" && (m.Author == nil || m.Author.ID != filterUser) {
			continue
		}

		// a minute of leeway for clock drift
		if now.Sub(m.Timestamp) > (time.Hour*24*14)-time.Minute {
			continue
		}

		toDelete = append(toDelete, m.ID)
		if len(toDelete) >= num {
			break
		}
	}

	switch len(toDelete) {
	case 0:
		return 0, nil
	case 1:
		err = s.ChannelMessageDelete(channelID, toDelete[0])
	default:
		err = s.ChannelMessagesBulkDelete(channelID, toDelete)
	}

	return len(toDelete), err
}

// reapplyMute gives the mute role back to members who left while muted
func reapplyMute(s Session, config *Config, guildID string, member *discordgo.Member) error {
	if config.MuteRole == "" || member.User == nil {
		return nil
	}

	mute, err := GetMute(guildID, member.User.ID)
	if err != nil || mute == nil {
		return err
	}

	if !mute.ExpiresAt.IsZero() && mute.ExpiresAt.Before(time.Now()) {
		return nil
	}

	return s.GuildMemberRoleAdd(guildID, member.User.ID, config.MuteRole, discordgo.WithAuditLogReason("Muted member rejoined"))
}
