package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	// called after every send, used to simulate the user answering
	onSend func(content string, msg *discordgo.Message)
}

func (f *fakeSender) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	f.sent = append(f.sent, content)
	f.mu.Unlock()

	msg := &discordgo.Message{ID: "q" + content, ChannelID: channelID, Content: content}
	if f.onSend != nil {
		go f.onSend(content, msg)
	}
	return msg, nil
}

func userMsg(channel, user, content string) *discordgo.Message {
	return &discordgo.Message{ChannelID: channel, Content: content, Author: &discordgo.User{ID: user}}
}

func TestWaitForMessage(t *testing.T) {
	w := NewWaiters()

	go func() {
		time.Sleep(time.Millisecond * 20)
		assert.Equal(t, 0, w.DispatchMessage(userMsg("c", "other", "hello")))
		assert.Equal(t, 1, w.DispatchMessage(userMsg("c", "u", "hello")))
	}()

	m, err := w.WaitForMessage(context.Background(), func(m *discordgo.Message) bool {
		return m.Author.ID == "u"
	}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello", m.Content)

	// waiter is gone after the first match
	assert.Equal(t, 0, w.DispatchMessage(userMsg("c", "u", "again")))
}

func TestWaitTimeoutAndCancel(t *testing.T) {
	w := NewWaiters()

	_, err := w.WaitForReaction(context.Background(), func(*discordgo.MessageReaction) bool { return true }, time.Millisecond*20)
	assert.Equal(t, ErrPromptTimeout, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.WaitForMessage(ctx, func(*discordgo.Message) bool { return true }, time.Minute)
	assert.Equal(t, context.Canceled, err)

	assert.Empty(t, w.pending)
}

func TestParseReply(t *testing.T) {
	r, err := ParseReply(userMsg("c", "u", "  Skip "))
	require.NoError(t, err)
	assert.Equal(t, KeywordSkip, r.Keyword)

	r, err = ParseReply(userMsg("c", "u", "FINISH"))
	require.NoError(t, err)
	assert.Equal(t, KeywordFinish, r.Keyword)

	r, err = ParseReply(userMsg("c", "u", "skipping ahead"))
	require.NoError(t, err)
	assert.Equal(t, KeywordNone, r.Keyword)
	assert.Equal(t, "skipping ahead", r.Text)

	_, err = ParseReply(userMsg("c", "u", "cancel"))
	assert.Equal(t, ErrPromptCancelled, err)
}

func TestPrompterAsk(t *testing.T) {
	w := NewWaiters()
	sender := &fakeSender{}
	sender.onSend = func(content string, msg *discordgo.Message) {
		// an answer from someone else in the same channel is ignored
		w.DispatchMessage(userMsg("c", "intruder", "nope"))
		w.DispatchMessage(userMsg("c", "u", "my title"))
	}

	p := &Prompter{Waiters: w, Sender: sender, ChannelID: "c", UserID: "u", Timeout: time.Second}
	reply, err := p.Ask(context.Background(), "What's the title?")
	require.NoError(t, err)
	assert.Equal(t, "my title", reply.Text)
	assert.Equal(t, []string{"What's the title?"}, sender.sent)
}

func TestPrompterAskReaction(t *testing.T) {
	w := NewWaiters()
	sender := &fakeSender{}
	sender.onSend = func(content string, msg *discordgo.Message) {
		time.Sleep(time.Millisecond * 10)
		w.DispatchReaction(&discordgo.MessageReaction{MessageID: msg.ID, UserID: "u", Emoji: discordgo.Emoji{Name: "🍋"}})
	}

	p := &Prompter{Waiters: w, Sender: sender, ChannelID: "c", UserID: "u", Timeout: time.Second}
	r, reply, err := p.AskReaction(context.Background(), "react")
	require.NoError(t, err)
	assert.Nil(t, reply)
	assert.Equal(t, "🍋", r.Emoji.Name)

	sender.onSend = func(content string, msg *discordgo.Message) {
		time.Sleep(time.Millisecond * 10)
		w.DispatchMessage(userMsg("c", "u", "finish"))
	}
	r, reply, err = p.AskReaction(context.Background(), "react again")
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.Equal(t, KeywordFinish, reply.Keyword)

	sender.onSend = func(content string, msg *discordgo.Message) {
		time.Sleep(time.Millisecond * 10)
		w.DispatchMessage(userMsg("c", "u", "cancel"))
	}
	_, _, err = p.AskReaction(context.Background(), "react once more")
	assert.Equal(t, ErrPromptCancelled, err)
}
