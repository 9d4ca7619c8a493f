package rolecommands

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuzubot/yuzu/bot"
	"github.com/yuzubot/yuzu/common"
)

func TestMain(m *testing.M) {
	db, err := common.InitTestStore()
	if err != nil {
		panic(err)
	}

	common.BotUser = &discordgo.User{ID: "100", Username: "yuzu", Bot: true}

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

type fakeSession struct {
	mu     sync.Mutex
	nextID int

	sent        []string
	posted      []*discordgo.MessageEmbed
	edited      []*discordgo.MessageEmbed
	deleted     []string
	reacted     []string
	unreacted   []string
	cleared     []string
	roleAdds    []string
	roleRemoves []string

	// message ids that answer with unknown message
	missing map[string]bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{missing: make(map[string]bool)}
}

func (f *fakeSession) newID() string {
	f.nextID++
	return "m" + strconv.Itoa(f.nextID)
}

func (f *fakeSession) lastID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return "m" + strconv.Itoa(f.nextID)
}

func (f *fakeSession) unknown(messageID string) error {
	if f.missing[messageID] {
		return restErr(404, discordgo.ErrCodeUnknownMessage)
	}
	return nil
}

func (f *fakeSession) ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.unknown(messageID); err != nil {
		return nil, err
	}
	return &discordgo.Message{ID: messageID, ChannelID: channelID}, nil
}

func (f *fakeSession) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, content)
	return &discordgo.Message{ID: f.newID(), ChannelID: channelID, Content: content}, nil
}

func (f *fakeSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, embed)
	return &discordgo.Message{ID: f.newID(), ChannelID: channelID}, nil
}

func (f *fakeSession) ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.unknown(messageID); err != nil {
		return nil, err
	}
	f.edited = append(f.edited, embed)
	return &discordgo.Message{ID: messageID, ChannelID: channelID}, nil
}

func (f *fakeSession) ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeSession) MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reacted = append(f.reacted, emojiID)
	return nil
}

func (f *fakeSession) MessageReactionRemove(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.unknown(messageID); err != nil {
		return err
	}
	f.unreacted = append(f.unreacted, emojiID+"/"+userID)
	return nil
}

func (f *fakeSession) MessageReactionsRemoveEmoji(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, emojiID)
	return nil
}

func (f *fakeSession) GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roleAdds = append(f.roleAdds, roleID)
	return nil
}

func (f *fakeSession) GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roleRemoves = append(f.roleRemoves, roleID)
	return nil
}

func testGuild(id string) *discordgo.Guild {
	return &discordgo.Guild{
		ID:      id,
		OwnerID: "owner",
		Roles: []*discordgo.Role{
			{ID: id, Name: "@everyone", Position: 0},
			{ID: "r1", Name: "red", Position: 1},
			{ID: "r2", Name: "blue", Position: 2},
			{ID: "r5", Name: "yuzu", Position: 5, Managed: true},
			{ID: "r9", Name: "admin", Position: 9},
		},
	}
}

var botMember = &discordgo.Member{User: &discordgo.User{ID: "100", Bot: true}, Roles: []string{"r5"}}

func testMenu(guildID, messageID string, mode Mode) *Menu {
	return &Menu{
		GuildID:   guildID,
		ChannelID: "c1",
		MessageID: messageID,
		Title:     "Colors",
		Mode:      mode,
		Options: []*Option{
			{Emoji: "🍎", EmojiName: "🍎", RoleID: "r1"},
			{Emoji: "blob:555", EmojiName: "<:blob:555>", RoleID: "r2"},
		},
		CreatedBy: "u1",
		CreatedAt: time.Now(),
	}
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode(" Unique ")
	assert.True(t, ok)
	assert.Equal(t, ModeUnique, m)

	_, ok = ParseMode("sideways")
	assert.False(t, ok)
}

func TestFindOption(t *testing.T) {
	menu := testMenu("g", "m", ModeNormal)

	assert.Equal(t, "r1", menu.FindOption(&discordgo.Emoji{Name: "🍎"}).RoleID)
	// custom emojis match by id even if renamed
	assert.Equal(t, "r2", menu.FindOption(&discordgo.Emoji{Name: "blobby", ID: "555"}).RoleID)
	assert.Nil(t, menu.FindOption(&discordgo.Emoji{Name: "🍌"}))
	assert.Nil(t, menu.FindOption(&discordgo.Emoji{Name: "blob", ID: "556"}))
}

func TestCopyIsDeep(t *testing.T) {
	menu := testMenu("g", "m", ModeNormal)
	cop := menu.Copy()
	cop.Options[0].RoleID = "changed"
	cop.removeOption(cop.Options[1])

	assert.Equal(t, "r1", menu.Options[0].RoleID)
	assert.Len(t, menu.Options, 2)
}

func TestFindRole(t *testing.T) {
	g := testGuild("g")
	assert.Equal(t, "r1", findRole(g, "<@&r1>").ID)
	assert.Equal(t, "r2", findRole(g, "r2").ID)
	assert.Equal(t, "r9", findRole(g, "ADMIN").ID)
	assert.Nil(t, findRole(g, "nope"))
}

func TestStore(t *testing.T) {
	missing, err := GetMenu("g-store", "m1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	a := testMenu("g-store", "m1", ModeNormal)
	require.NoError(t, SaveMenu(a))

	// the cached miss is dropped on save
	got, err := GetMenu("g-store", "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Colors", got.Title)

	b := testMenu("g-store", "m2", ModeUnique)
	b.CreatedAt = a.CreatedAt.Add(time.Second)
	require.NoError(t, SaveMenu(b))

	menus, err := ListMenus("g-store")
	require.NoError(t, err)
	require.Len(t, menus, 2)
	assert.Equal(t, "m1", menus[0].MessageID)

	require.NoError(t, DeleteMenu("g-store", "m1"))
	got, err = GetMenu("g-store", "m1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, (&Plugin{}).RemoveGuildData("g-store"))
	menus, err = ListMenus("g-store")
	require.NoError(t, err)
	assert.Empty(t, menus)
}

func member(roles ...string) *discordgo.Member {
	return &discordgo.Member{User: &discordgo.User{ID: "u1"}, Roles: roles}
}

func TestApplyReactionNormal(t *testing.T) {
	s := newFakeSession()
	menu := testMenu("g-apply", "m1", ModeNormal)

	require.NoError(t, ApplyReaction(s, menu, member(), &discordgo.Emoji{Name: "🍎"}, true))
	assert.Equal(t, []string{"r1"}, s.roleAdds)

	require.NoError(t, ApplyReaction(s, menu, member("r1"), &discordgo.Emoji{Name: "🍎"}, false))
	assert.Equal(t, []string{"r1"}, s.roleRemoves)

	// not on the menu
	require.NoError(t, ApplyReaction(s, menu, member(), &discordgo.Emoji{Name: "🍌"}, true))
	assert.Len(t, s.roleAdds, 1)

	bot := &discordgo.Member{User: &discordgo.User{ID: "200", Bot: true}}
	require.NoError(t, ApplyReaction(s, menu, bot, &discordgo.Emoji{Name: "🍎"}, true))
	assert.Len(t, s.roleAdds, 1)
}

func TestApplyReactionVerify(t *testing.T) {
	s := newFakeSession()
	menu := testMenu("g-apply", "m1", ModeVerify)

	require.NoError(t, ApplyReaction(s, menu, member(), &discordgo.Emoji{Name: "🍎"}, true))
	require.NoError(t, ApplyReaction(s, menu, member("r1"), &discordgo.Emoji{Name: "🍎"}, false))

	assert.Equal(t, []string{"r1"}, s.roleAdds)
	assert.Empty(t, s.roleRemoves)
}

func TestApplyReactionUniqueSwaps(t *testing.T) {
	s := newFakeSession()
	menu := testMenu("g-apply", "m1", ModeUnique)

	require.NoError(t, ApplyReaction(s, menu, member("r2"), &discordgo.Emoji{Name: "🍎"}, true))

	assert.Equal(t, []string{"r1"}, s.roleAdds)
	assert.Equal(t, []string{"r2"}, s.roleRemoves)
	assert.Equal(t, []string{"blob:555/u1"}, s.unreacted)
}

func TestApplyReactionUniqueOnDeletedMessage(t *testing.T) {
	s := newFakeSession()
	menu := testMenu("g-gone", "m-gone", ModeUnique)
	require.NoError(t, SaveMenu(menu))
	s.missing["m-gone"] = true

	require.NoError(t, ApplyReaction(s, menu, member(), &discordgo.Emoji{Name: "🍎"}, true))

	got, err := GetMenu("g-gone", "m-gone")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSweepStale(t *testing.T) {
	s := newFakeSession()
	require.NoError(t, SaveMenu(testMenu("g-sweep", "alive", ModeNormal)))
	require.NoError(t, SaveMenu(testMenu("g-sweep", "dead", ModeNormal)))
	s.missing["dead"] = true

	stale, err := CheckStale(s, testMenu("g-sweep", "alive", ModeNormal))
	require.NoError(t, err)
	assert.False(t, stale)

	n, err := SweepStale(s)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	menus, err := ListMenus("g-sweep")
	require.NoError(t, err)
	require.Len(t, menus, 1)
	assert.Equal(t, "alive", menus[0].MessageID)
}

type step struct {
	text  string
	emoji *discordgo.Emoji
}

func say(text string) step       { return step{text: text} }
func react(name, id string) step { return step{emoji: &discordgo.Emoji{Name: name, ID: id}} }

func newPrompter(w *bot.Waiters, s *fakeSession, timeout time.Duration) *bot.Prompter {
	return &bot.Prompter{Waiters: w, Sender: s, ChannelID: "setup", UserID: "u1", Timeout: timeout}
}

// drive feeds the steps to the waiters one by one, each as soon as something takes it,
// and reports how many were taken
func drive(w *bot.Waiters, s *fakeSession, steps ...step) <-chan int {
	done := make(chan int, 1)
	go func() {
		taken := 0
		defer func() { done <- taken }()

		for _, st := range steps {
			deadline := time.Now().Add(time.Second * 5)
			for {
				n := 0
				if st.emoji != nil {
					n = w.DispatchReaction(&discordgo.MessageReaction{
						UserID:    "u1",
						ChannelID: "setup",
						MessageID: s.lastID(),
						Emoji:     *st.emoji,
					})
				} else {
					n = w.DispatchMessage(&discordgo.Message{
						ChannelID: "setup",
						Content:   st.text,
						Author:    &discordgo.User{ID: "u1"},
					})
				}

				if n > 0 {
					taken++
					break
				}
				if time.Now().After(deadline) {
					return
				}
				time.Sleep(time.Millisecond * 2)
			}
		}
	}()
	return done
}

func waitDriver(t *testing.T, done <-chan int, want int) {
	select {
	case n := <-done:
		assert.Equal(t, want, n, "steps taken")
	case <-time.After(time.Second * 10):
		t.Fatal("driver didn't finish")
	}
}

func TestCreatePanel(t *testing.T) {
	s := newFakeSession()
	w := bot.NewWaiters()
	guild := testGuild("g-create")

	steps := []step{
		say("Role Party"),
		say("sideways"),
		say("unique"),
		react("🍎", ""),
		say("nope"),
		say("admin"),
		say("<@&r1>"),
		react("🍎", ""),
		react("blob", "555"),
		say("blue"),
		say("finish"),
	}
	done := drive(w, s, steps...)

	resp, err := RunCreatePanel(context.Background(), s, newPrompter(w, s, time.Second*5), guild, botMember, "u1", "c-menus")
	require.NoError(t, err)
	waitDriver(t, done, len(steps))

	assert.Contains(t, resp, "Done! The menu is up in <#c-menus>")
	assert.Contains(t, s.sent, "That's not a mode, pick `normal`, `unique` or `verify`")
	assert.Contains(t, s.sent, "Couldn't find that role, try again")
	assert.Contains(t, s.sent, "**admin** is above my highest role so I can't give it out, pick another one")
	assert.Contains(t, s.sent, "That emoji is already used in this menu, react with another one")

	require.Len(t, s.posted, 1)
	assert.Equal(t, "Role Party", s.posted[0].Title)
	assert.Equal(t, []string{"🍎", "blob:555"}, s.reacted)

	menus, err := ListMenus("g-create")
	require.NoError(t, err)
	require.Len(t, menus, 1)

	menu := menus[0]
	assert.Equal(t, ModeUnique, menu.Mode)
	assert.Equal(t, "c-menus", menu.ChannelID)
	assert.Equal(t, "u1", menu.CreatedBy)
	require.Len(t, menu.Options, 2)
	assert.Equal(t, Option{Emoji: "🍎", EmojiName: "🍎", RoleID: "r1"}, *menu.Options[0])
	assert.Equal(t, Option{Emoji: "blob:555", EmojiName: "<:blob:555>", RoleID: "r2"}, *menu.Options[1])
}

func TestCreatePanelSkipsAndCancel(t *testing.T) {
	s := newFakeSession()
	w := bot.NewWaiters()

	steps := []step{say("skip"), say("skip"), say("finish"), say("cancel")}
	done := drive(w, s, steps...)

	resp, err := RunCreatePanel(context.Background(), s, newPrompter(w, s, time.Second*5), testGuild("g-cancel"), botMember, "u1", "c1")
	require.NoError(t, err)
	waitDriver(t, done, len(steps))

	assert.Equal(t, "Setup cancelled, no menu was created", resp)
	assert.Contains(t, s.sent, "A menu needs at least one role.\n"+questionEmoji)
	assert.Empty(t, s.posted)

	menus, err := ListMenus("g-cancel")
	require.NoError(t, err)
	assert.Empty(t, menus)
}

func TestCreatePanelTimeout(t *testing.T) {
	s := newFakeSession()
	w := bot.NewWaiters()

	resp, err := RunCreatePanel(context.Background(), s, newPrompter(w, s, time.Millisecond*50), testGuild("g-timeout"), botMember, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "Setup cancelled, no menu was created", resp)
}

func TestEditPanel(t *testing.T) {
	s := newFakeSession()
	w := bot.NewWaiters()
	guild := testGuild("g-edit")

	original := testMenu("g-edit", "menu-1", ModeNormal)
	require.NoError(t, SaveMenu(original))

	steps := []step{
		say("remove"),
		say("1"),
		say("add"),
		react("🍇", ""),
		say("red"),
		say("title"),
		say("Fruit"),
		say("mode"),
		say("verify"),
		say("finish"),
	}
	done := drive(w, s, steps...)

	resp, err := RunEditPanel(context.Background(), s, newPrompter(w, s, time.Second*5), guild, botMember, original)
	require.NoError(t, err)
	waitDriver(t, done, len(steps))

	assert.Contains(t, resp, "Saved the menu")
	require.Len(t, s.edited, 1)
	assert.Equal(t, "Fruit", s.edited[0].Title)
	assert.Equal(t, []string{"🍎"}, s.cleared)
	assert.Equal(t, []string{"🍇"}, s.reacted)

	menu, err := GetMenu("g-edit", "menu-1")
	require.NoError(t, err)
	require.NotNil(t, menu)
	assert.Equal(t, "Fruit", menu.Title)
	assert.Equal(t, ModeVerify, menu.Mode)
	require.Len(t, menu.Options, 2)
	assert.Equal(t, "r2", menu.Options[0].RoleID)
	assert.Equal(t, "🍇", menu.Options[1].Emoji)
	assert.Equal(t, "r1", menu.Options[1].RoleID)
}

func TestEditPanelCancelKeepsMenu(t *testing.T) {
	s := newFakeSession()
	w := bot.NewWaiters()

	original := testMenu("g-edit-cancel", "menu-1", ModeNormal)
	require.NoError(t, SaveMenu(original))

	steps := []step{say("title"), say("Changed"), say("remove"), say("2"), say("cancel")}
	done := drive(w, s, steps...)

	resp, err := RunEditPanel(context.Background(), s, newPrompter(w, s, time.Second*5), testGuild("g-edit-cancel"), botMember, original)
	require.NoError(t, err)
	waitDriver(t, done, len(steps))

	assert.Equal(t, "Edit cancelled, the menu wasn't changed", resp)
	assert.Empty(t, s.edited)

	menu, err := GetMenu("g-edit-cancel", "menu-1")
	require.NoError(t, err)
	assert.Equal(t, "Colors", menu.Title)
	assert.Len(t, menu.Options, 2)
	assert.Len(t, original.Options, 2)
}

func TestEmbed(t *testing.T) {
	e := testMenu("g", "m", ModeUnique).Embed()
	assert.Equal(t, "Colors", e.Title)
	assert.Contains(t, e.Description, modeHelp[ModeUnique])
	assert.Contains(t, e.Description, "🍎 → <@&r1>")
	assert.Contains(t, e.Description, "<:blob:555> → <@&r2>")
}
