package reminders

import (
	"net/http"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/lib/dcmd"
)

func TestMain(m *testing.M) {
	db, err := common.InitTestStore()
	if err != nil {
		panic(err)
	}

	if err := EnsureIndex(); err != nil {
		panic(err)
	}

	code := m.Run()
	db.Close()
	os.Exit(code)
}

func restErr(status, code int) error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: status, Status: strconv.Itoa(status)},
		Message:  &discordgo.APIErrorMessage{Code: code, Message: "nope"},
	}
}

type fakeSender struct {
	mu sync.Mutex

	sent []*discordgo.MessageSend
	to   []string

	// channels that return unknown channel
	gone  map[string]bool
	noDMs bool
}

func (f *fakeSender) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.gone[channelID] {
		return nil, restErr(404, discordgo.ErrCodeUnknownChannel)
	}

	cop := *data
	f.sent = append(f.sent, &cop)
	f.to = append(f.to, channelID)
	return &discordgo.Message{ChannelID: channelID, Content: data.Content}, nil
}

func (f *fakeSender) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.noDMs {
		return nil, restErr(403, discordgo.ErrCodeCannotSendMessagesToThisUser)
	}
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestReminder(t *testing.T, userID, guildID string, when time.Time, repeat time.Duration) *Reminder {
	r, err := NewReminder(userID, guildID, "chan-"+guildID, "drink water", when, repeat)
	require.NoError(t, err)
	return r
}

func TestParseReminderTime(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	at, msg, err := parseReminderTime("1h30m", "stretch your legs", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute*90), at)
	assert.Equal(t, "stretch your legs", msg)

	at, _, err = parseReminderTime("10", "tea", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute*10), at)

	at, msg, err = parseReminderTime("in", "3 hours check the oven", now)
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(time.Hour*3), at, time.Minute)
	assert.Equal(t, "check the oven", msg)

	_, _, err = parseReminderTime("whenever", "you feel like it", now)
	assert.ErrorIs(t, err, ErrUnknownTime)
}

func TestStoreLookups(t *testing.T) {
	now := time.Now()
	a := newTestReminder(t, "u-lookup", "g-lookup-1", now.Add(time.Hour*2), 0)
	b := newTestReminder(t, "u-lookup", "g-lookup-2", now.Add(time.Hour), 0)
	newTestReminder(t, "u-other", "g-lookup-1", now.Add(time.Hour), 0)

	all, err := GetUserReminders("u-lookup", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID, "soonest first")

	inGuild, err := GetUserReminders("u-lookup", "g-lookup-1")
	require.NoError(t, err)
	require.Len(t, inGuild, 1)
	assert.Equal(t, a.ID, inGuild[0].ID)

	inChannel, err := GetChannelReminders("g-lookup-1", "chan-g-lookup-1")
	require.NoError(t, err)
	assert.Len(t, inChannel, 2)

	found, err := FindReminder(a.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "g-lookup-1", found.GuildID)

	missing, err := FindReminder(999999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	p := &Plugin{}
	require.NoError(t, p.RemoveGuildData("g-lookup-1"))
	inChannel, err = GetChannelReminders("g-lookup-1", "chan-g-lookup-1")
	require.NoError(t, err)
	assert.Empty(t, inChannel)
}

func TestFireOnce(t *testing.T) {
	sender := &fakeSender{}
	r := newTestReminder(t, "u-fire", "g-fire", time.Now().Add(-time.Second), 0)

	require.NoError(t, Fire(sender, r, time.Now()))
	require.NoError(t, Fire(sender, r, time.Now()))

	require.Equal(t, 1, sender.count())
	assert.Equal(t, "**Reminder** <@u-fire>: drink water", sender.sent[0].Content)
	assert.Equal(t, []string{"u-fire"}, sender.sent[0].AllowedMentions.Users)
	assert.Equal(t, "chan-g-fire", sender.to[0])

	found, err := FindReminder(r.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestFireRepeating(t *testing.T) {
	sender := &fakeSender{}
	now := time.Now()
	r := newTestReminder(t, "u-repeat", "g-repeat", now.Add(-time.Second), time.Hour)

	require.NoError(t, Fire(sender, r, now))
	assert.Equal(t, 1, sender.count())

	next, err := FindReminder(r.ID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, r.When+3600, next.When)

	// the old occurrence is already claimed
	require.NoError(t, Fire(sender, r, now))
	assert.Equal(t, 1, sender.count())
}

func TestNextOccurrence(t *testing.T) {
	now := time.Unix(10000, 0)
	assert.Equal(t, int64(10600), nextOccurrence(9999, time.Second*601, now))
	// missed while offline
	assert.Equal(t, int64(10500), nextOccurrence(7500, time.Second*1000, now))
}

func TestFireFallsBackToDM(t *testing.T) {
	sender := &fakeSender{gone: map[string]bool{"chan-g-dm": true}}
	r := newTestReminder(t, "u-dm", "g-dm", time.Now(), 0)

	require.NoError(t, Fire(sender, r, time.Now()))
	require.Equal(t, 1, sender.count())
	assert.Equal(t, "dm-u-dm", sender.to[0])
	assert.Contains(t, sender.sent[0].Content, "drink water")
}

func TestFireUnreachableDrops(t *testing.T) {
	sender := &fakeSender{gone: map[string]bool{"chan-g-void": true}, noDMs: true}
	r := newTestReminder(t, "u-void", "g-void", time.Now(), 0)

	require.NoError(t, Fire(sender, r, time.Now()))
	assert.Equal(t, 0, sender.count())

	found, err := FindReminder(r.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestSchedulerSweep(t *testing.T) {
	sender := &fakeSender{}
	s := NewScheduler(sender)

	overdue := newTestReminder(t, "u-sweep", "g-sweep", time.Now().Add(-time.Hour), 0)
	later := newTestReminder(t, "u-sweep", "g-sweep", time.Now().Add(time.Hour), 0)

	s.sweep(time.Now())

	require.Equal(t, 1, sender.count())
	f, _ := FindReminder(overdue.ID)
	assert.Nil(t, f)
	f, _ = FindReminder(later.ID)
	assert.NotNil(t, f)

	require.NoError(t, DeleteReminder(later))
}

func TestSchedulerQueue(t *testing.T) {
	sender := &fakeSender{}
	s := NewScheduler(sender)

	soon := newTestReminder(t, "u-queue", "g-queue", time.Now().Add(time.Millisecond*1500), 0)
	later := newTestReminder(t, "u-queue", "g-queue", time.Now().Add(time.Minute*10), 0)

	s.queueUpcoming(time.Now())
	assert.Equal(t, 1, s.Queued())

	// queueing again doesn't arm it twice
	s.queueUpcoming(time.Now())
	assert.Equal(t, 1, s.Queued())

	assert.Eventually(t, func() bool { return sender.count() == 1 }, time.Second*5, time.Millisecond*50)
	assert.Eventually(t, func() bool { return s.Queued() == 0 }, time.Second, time.Millisecond*10)

	f, _ := FindReminder(soon.ID)
	assert.Nil(t, f)

	require.NoError(t, DeleteReminder(later))
}

func TestSchedulerCancel(t *testing.T) {
	sender := &fakeSender{}
	s := NewScheduler(sender)

	r := newTestReminder(t, "u-cancel", "g-cancel", time.Now().Add(time.Second), 0)
	s.Add(r)
	assert.Equal(t, 1, s.Queued())

	s.Cancel(r.ID)
	assert.Equal(t, 0, s.Queued())

	time.Sleep(time.Millisecond * 1200)
	assert.Equal(t, 0, sender.count())

	require.NoError(t, DeleteReminder(r))
}

func TestSchedulerRunStop(t *testing.T) {
	sender := &fakeSender{}
	s := NewScheduler(sender)

	r := newTestReminder(t, "u-run", "g-run", time.Now().Add(-time.Minute), 0)
	s.Run()
	assert.Eventually(t, func() bool { return sender.count() == 1 }, time.Second*5, time.Millisecond*50)
	s.Stop()

	f, _ := FindReminder(r.ID)
	assert.Nil(t, f)
}

func TestDelReminderCommand(t *testing.T) {
	now := time.Now()
	a := newTestReminder(t, "u-del", "g-del", now.Add(time.Hour), 0)
	newTestReminder(t, "u-del", "g-del", now.Add(time.Hour*2), 0)
	newTestReminder(t, "u-del", "g-del-2", now.Add(time.Hour*3), 0)

	data := &dcmd.Data{
		Author:   &discordgo.User{ID: "u-del"},
		GuildID:  "g-del",
		Args:     []*dcmd.ParsedArg{{Value: a.ID}},
		Switches: map[string]*dcmd.ParsedArg{"a": {}},
	}

	resp, err := cmdFuncDelReminder(data)
	require.NoError(t, err)
	assert.Equal(t, "Deleted reminder **#"+strconv.FormatInt(a.ID, 10)+"**: 'drink water'", resp)

	resp, err = cmdFuncDelReminder(data)
	require.NoError(t, err)
	assert.Equal(t, "No reminder by that ID found", resp)

	data.Switches["a"] = &dcmd.ParsedArg{Value: true}
	resp, err = cmdFuncDelReminder(data)
	require.NoError(t, err)
	assert.Equal(t, "Cleared 2 reminders", resp)

	left, err := GetUserReminders("u-del", "")
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestDelReminderOthersNeedsSameGuild(t *testing.T) {
	r := newTestReminder(t, "u-owner", "g-perm", time.Now().Add(time.Hour), 0)

	data := &dcmd.Data{
		Author:   &discordgo.User{ID: "u-stranger"},
		GuildID:  "g-elsewhere",
		Args:     []*dcmd.ParsedArg{{Value: r.ID}},
		Switches: map[string]*dcmd.ParsedArg{"a": {}},
	}

	resp, err := cmdFuncDelReminder(data)
	require.NoError(t, err)
	assert.Contains(t, resp, "in the guild the reminder was originally created")

	f, _ := FindReminder(r.ID)
	assert.NotNil(t, f)
	require.NoError(t, DeleteReminder(r))
}

func TestDisplayReminders(t *testing.T) {
	r := &Reminder{ID: 7, UserID: "u1", ChannelID: "c1", Message: "water the plants", When: time.Now().Add(time.Hour * 2).Unix(), Repeat: time.Hour * 24}

	out := DisplayReminders([]*Reminder{r}, ModeDisplayUserReminders)
	assert.Contains(t, out, "**7**: <#c1>: 'water the plants'")
	assert.Contains(t, out, "repeats every 1 day")

	out = DisplayReminders([]*Reminder{r}, ModeDisplayChannelReminders)
	assert.Contains(t, out, "**7**: <@u1>:")
}
