package paginatedmessages

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuzubot/yuzu/lib/dcmd"
)

type fakeSession struct {
	mu       sync.Mutex
	sent     []*discordgo.MessageEmbed
	edits    []*discordgo.MessageEmbed
	removed  int
	clearedC chan struct{}
}

func newFakeSession() *fakeSession {
	return &fakeSession{clearedC: make(chan struct{}, 1)}
}

func (f *fakeSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, embed)
	return &discordgo.Message{ID: "500", ChannelID: channelID}, nil
}

func (f *fakeSession) ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, embed)
	return &discordgo.Message{ID: messageID, ChannelID: channelID}, nil
}

func (f *fakeSession) MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error {
	return nil
}

func (f *fakeSession) MessageReactionRemove(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	f.removed++
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) MessageReactionsRemoveAll(channelID, messageID string, options ...discordgo.RequestOption) error {
	f.clearedC <- struct{}{}
	return nil
}

func pager(items int) PagerFunc {
	return func(p *PaginatedMessage, page int) (*discordgo.MessageEmbed, error) {
		if page > items {
			return nil, ErrNoResults
		}
		return &discordgo.MessageEmbed{Title: "item " + strconv.Itoa(page)}, nil
	}
}

func reaction(emoji string) *discordgo.MessageReactionAdd {
	return &discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
		UserID:    "2",
		MessageID: "500",
		ChannelID: "10",
		GuildID:   "1",
		Emoji:     discordgo.Emoji{Name: emoji},
	}}
}

func TestNavigate(t *testing.T) {
	s := newFakeSession()
	pm, err := CreatePaginatedMessage(s, "1", "10", 1, 0, pager(2))
	require.NoError(t, err)
	defer pm.Stop()

	require.Len(t, s.sent, 1)
	assert.Equal(t, "item 1", s.sent[0].Title)
	assert.Equal(t, "Page 1", s.sent[0].Footer.Text)
	assert.Same(t, pm, findActive("500"))

	handleReactionAdd(reaction(EmojiNext))
	require.Len(t, s.edits, 1)
	assert.Equal(t, "item 2", s.edits[0].Title)
	assert.Equal(t, 2, pm.CurrentPage)

	// past the end, the max page is discovered and the last page is kept
	pm.HandleReactionAdd(reaction(EmojiNext))
	assert.Equal(t, 2, pm.MaxPage)
	assert.Equal(t, 2, pm.CurrentPage)
	require.Len(t, s.edits, 2)
	assert.Equal(t, "Page 2/2", s.edits[1].Footer.Text)

	pm.HandleReactionAdd(reaction(EmojiPrev))
	assert.Equal(t, 1, pm.CurrentPage)

	// can't go below the first page
	pm.HandleReactionAdd(reaction(EmojiPrev))
	assert.Equal(t, 1, pm.CurrentPage)
	assert.Len(t, s.edits, 3)

	// unrelated emojis are removed but ignored
	pm.HandleReactionAdd(reaction("👍"))
	assert.Len(t, s.edits, 3)
	assert.Equal(t, 5, s.removed)
}

func TestStopRemovesMenu(t *testing.T) {
	s := newFakeSession()
	pm, err := CreatePaginatedMessage(s, "1", "10", 1, 3, pager(3))
	require.NoError(t, err)
	assert.Equal(t, "Page 1/3", s.sent[0].Footer.Text)

	pm.Stop()
	pm.Stop()
	<-s.clearedC

	assert.Eventually(t, func() bool { return findActive("500") == nil }, time.Second, time.Millisecond*10)
}

func TestCreateFailsOnPagerError(t *testing.T) {
	s := newFakeSession()
	_, err := CreatePaginatedMessage(s, "1", "10", 5, 0, pager(2))
	assert.ErrorIs(t, err, ErrNoResults)
	assert.Empty(t, s.sent)
}

func TestPaginatedCommandWithoutPagination(t *testing.T) {
	cb := func(data *dcmd.Data, p *PaginatedMessage, page int) (*discordgo.MessageEmbed, error) {
		assert.Nil(t, p)
		return &discordgo.MessageEmbed{Title: "page " + strconv.Itoa(page)}, nil
	}

	data := &dcmd.Data{Args: []*dcmd.ParsedArg{{Value: int64(3)}}}
	data = data.WithContext(context.WithValue(context.Background(), CtxKeyNoPagination, true))

	resp, err := PaginatedCommand(0, cb)(data)
	require.NoError(t, err)
	assert.Equal(t, "page 3", resp.(*discordgo.MessageEmbed).Title)

	data.Args[0].Value = nil
	resp, err = PaginatedCommand(0, cb)(data)
	require.NoError(t, err)
	assert.Equal(t, "page 1", resp.(*discordgo.MessageEmbed).Title)

	resp, err = PaginatedCommand(-1, cb)(&dcmd.Data{ChannelID: "10"})
	require.NoError(t, err)
	assert.IsType(t, &PaginatedResponse{}, resp)
}
