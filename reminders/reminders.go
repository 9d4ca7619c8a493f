package reminders

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/common/store"
)

const indexWhen = "reminders_when"

var metricsFired = promauto.NewCounter(prometheus.CounterOpts{
	Name: "yuzu_reminders_fired_total",
	Help: "Reminders delivered",
})

type Reminder struct {
	ID        int64  `json:"id"`
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`

	// When is a unix timestamp, the field is indexed
	When   int64         `json:"when"`
	Repeat time.Duration `json:"repeat,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (r *Reminder) Time() time.Time {
	return time.Unix(r.When, 0)
}

func KeyReminder(guildID string, id int64) string {
	return store.Key("reminders", guildID, strconv.FormatInt(id, 10))
}

// EnsureIndex creates the index both polling loops scan
func EnsureIndex() error {
	return common.Store.EnsureIndex(indexWhen, "reminders:*", "when")
}

func NewReminder(userID, guildID, channelID, message string, when time.Time, repeat time.Duration) (*Reminder, error) {
	id, err := common.Store.NextID("reminders")
	if err != nil {
		return nil, err
	}

	r := &Reminder{
		ID:        id,
		GuildID:   guildID,
		ChannelID: channelID,
		UserID:    userID,
		Message:   message,
		When:      when.Unix(),
		Repeat:    repeat,
		CreatedAt: time.Now(),
	}

	err = common.Store.Put(KeyReminder(guildID, id), r, 0)
	return r, err
}

// findReminders returns every reminder in keys matching pattern for which filter returns true, soonest first
func findReminders(pattern string, filter func(r *Reminder) bool) ([]*Reminder, error) {
	var out []*Reminder
	err := common.Store.Ascend(pattern, func(key, raw string) bool {
		var r Reminder
		if err := store.Decode(raw, &r); err != nil {
			logger.WithError(err).WithField("key", key).Error("Failed decoding reminder")
			return true
		}

		if filter == nil || filter(&r) {
			out = append(out, &r)
		}
		return true
	})

	sortReminders(out)
	return out, err
}

func sortReminders(reminders []*Reminder) {
	sort.SliceStable(reminders, func(i, j int) bool {
		return reminders[i].When < reminders[j].When
	})
}

// GetUserReminders returns the reminders of a user, limited to a guild unless guildID is empty
func GetUserReminders(userID, guildID string) ([]*Reminder, error) {
	pattern := "reminders:*"
	if guildID != "" {
		pattern = store.Key("reminders", guildID, "*")
	}

	return findReminders(pattern, func(r *Reminder) bool {
		return r.UserID == userID
	})
}

func GetChannelReminders(guildID, channelID string) ([]*Reminder, error) {
	return findReminders(store.Key("reminders", guildID, "*"), func(r *Reminder) bool {
		return r.ChannelID == channelID
	})
}

// FindReminder looks a reminder up by id in any guild, returning nil if there's none
func FindReminder(id int64) (*Reminder, error) {
	found, err := findReminders(store.Key("reminders", "*", strconv.FormatInt(id, 10)), func(r *Reminder) bool {
		return r.ID == id
	})
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

func DeleteReminder(r *Reminder) error {
	err := common.Store.Delete(KeyReminder(r.GuildID, r.ID))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// Sender is the part of the discord session reminders are delivered through
type Sender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// claim takes the reminder out of the store, or moves it to its next occurrence if it repeats.
// Only the first of concurrent claims for the same occurrence succeeds.
func claim(r *Reminder, now time.Time) (bool, error) {
	claimed := false

	var current Reminder
	err := common.Store.Mutate(KeyReminder(r.GuildID, r.ID), &current, func(found bool) error {
		if !found || current.When != r.When {
			return store.ErrSkipWrite
		}

		claimed = true
		if current.Repeat <= 0 {
			return store.ErrDelete
		}

		current.When = nextOccurrence(current.When, current.Repeat, now)
		return nil
	})

	return claimed, err
}

func nextOccurrence(when int64, repeat time.Duration, now time.Time) int64 {
	step := int64(repeat / time.Second)
	if step < 1 {
		step = 1
	}

	next := when + step
	if next <= now.Unix() {
		// skip the occurrences missed while offline
		missed := (now.Unix()-next)/step + 1
		next += missed * step
	}
	return next
}

// Fire delivers the reminder once. It's safe to call for the same reminder from several places,
// only the call that claims it sends anything.
func Fire(s Sender, r *Reminder, now time.Time) error {
	claimed, err := claim(r, now)
	if err != nil || !claimed {
		return err
	}

	l := logger.WithFields(logrus.Fields{"channel": r.ChannelID, "user": r.UserID, "id": r.ID})
	l.Info("Triggered reminder")
	metricsFired.Inc()

	msg := &discordgo.MessageSend{
		Content: "**Reminder** <@" + r.UserID + ">: " + r.Message,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Users: []string{r.UserID},
		},
	}

	_, err = s.ChannelMessageSendComplex(r.ChannelID, msg)
	if err == nil {
		return nil
	}

	if !common.IsDiscordErr(err, discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeMissingAccess, discordgo.ErrCodeMissingPermissions) {
		return err
	}

	// the channel is gone or closed to us, try the user instead
	channel, dmErr := s.UserChannelCreate(r.UserID)
	if dmErr == nil {
		msg.Content = "**Reminder** from <#" + r.ChannelID + ">: " + r.Message
		_, dmErr = s.ChannelMessageSendComplex(channel.ID, msg)
	}
	if dmErr != nil {
		l.WithError(dmErr).Warn("Channel and user unreachable, dropped reminder")
	}

	return nil
}

// CutReminderShort shortens the message for listings
func CutReminderShort(msg string) string {
	return common.CutStringShort(strings.ReplaceAll(msg, "\n", " "), 50)
}
