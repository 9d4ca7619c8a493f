package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/yuzubot/yuzu/bot/eventsystem"
)

var (
	ErrPromptTimeout   = errors.NewPlain("timed out waiting for a response")
	ErrPromptCancelled = errors.NewPlain("cancelled")
)

// Waiters hands incoming messages and reactions to whoever is waiting on them.
// Every waiter is one shot, it's removed as soon as it receives a match.
type Waiters struct {
	mu      sync.Mutex
	next    int64
	pending map[int64]*Pending
}

func NewWaiters() *Waiters {
	return &Waiters{pending: make(map[int64]*Pending)}
}

// Prompts is fed by the bot's event handlers
var Prompts = NewWaiters()

// Pending is a registered waiter, registering before sending the question
// makes sure a quick reply can't slip past
type Pending struct {
	id      int64
	w       *Waiters
	msgPred func(*discordgo.Message) bool
	rPred   func(*discordgo.MessageReaction) bool

	msgCh chan *discordgo.Message
	rCh   chan *discordgo.MessageReaction
}

func (w *Waiters) add(p *Pending) *Pending {
	w.mu.Lock()
	w.next++
	p.id = w.next
	p.w = w
	w.pending[p.id] = p
	w.mu.Unlock()
	return p
}

// ExpectMessage registers a waiter for the next message matching pred
func (w *Waiters) ExpectMessage(pred func(*discordgo.Message) bool) *Pending {
	return w.add(&Pending{msgPred: pred, msgCh: make(chan *discordgo.Message, 1)})
}

// ExpectReaction registers a waiter for the next reaction add matching pred
func (w *Waiters) ExpectReaction(pred func(*discordgo.MessageReaction) bool) *Pending {
	return w.add(&Pending{rPred: pred, rCh: make(chan *discordgo.MessageReaction, 1)})
}

// Cancel removes the waiter without waiting on it
func (p *Pending) Cancel() {
	p.w.mu.Lock()
	delete(p.w.pending, p.id)
	p.w.mu.Unlock()
}

func (p *Pending) wait(ctx context.Context, timeout time.Duration) (*discordgo.Message, *discordgo.MessageReaction, error) {
	defer p.Cancel()

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case m := <-p.msgCh:
		return m, nil, nil
	case r := <-p.rCh:
		return nil, r, nil
	case <-t.C:
		return nil, nil, ErrPromptTimeout
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// Message waits for the expected message
func (p *Pending) Message(ctx context.Context, timeout time.Duration) (*discordgo.Message, error) {
	m, _, err := p.wait(ctx, timeout)
	return m, err
}

// Reaction waits for the expected reaction
func (p *Pending) Reaction(ctx context.Context, timeout time.Duration) (*discordgo.MessageReaction, error) {
	_, r, err := p.wait(ctx, timeout)
	return r, err
}

// WaitForMessage blocks until a message matching pred arrives, the timeout passes or ctx is done
func (w *Waiters) WaitForMessage(ctx context.Context, pred func(*discordgo.Message) bool, timeout time.Duration) (*discordgo.Message, error) {
	return w.ExpectMessage(pred).Message(ctx, timeout)
}

// WaitForReaction blocks until a reaction matching pred arrives, the timeout passes or ctx is done
func (w *Waiters) WaitForReaction(ctx context.Context, pred func(*discordgo.MessageReaction) bool, timeout time.Duration) (*discordgo.MessageReaction, error) {
	return w.ExpectReaction(pred).Reaction(ctx, timeout)
}

// DispatchMessage delivers m to every matching waiter and returns how many took it
func (w *Waiters) DispatchMessage(m *discordgo.Message) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for id, p := range w.pending {
		if p.msgPred == nil || !p.msgPred(m) {
			continue
		}

		delete(w.pending, id)
		p.msgCh <- m
		n++
	}
	return n
}

// DispatchReaction delivers r to every matching waiter and returns how many took it
func (w *Waiters) DispatchReaction(r *discordgo.MessageReaction) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for id, p := range w.pending {
		if p.rPred == nil || !p.rPred(r) {
			continue
		}

		delete(w.pending, id)
		p.rCh <- r
		n++
	}
	return n
}

func handlePromptMessage(evt *eventsystem.EventData) {
	m := evt.MessageCreate()
	if m.Author == nil || m.Author.Bot {
		return
	}
	Prompts.DispatchMessage(m.Message)
}

func handlePromptReaction(evt *eventsystem.EventData) {
	Prompts.DispatchReaction(evt.MessageReactionAdd().MessageReaction)
}

// Keyword is a control word a user can answer a prompt with
type Keyword int

const (
	KeywordNone Keyword = iota
	KeywordSkip
	KeywordFinish
)

// Reply is a prompt answer, Keyword is set when the whole reply was "skip" or "finish"
type Reply struct {
	Message *discordgo.Message
	Text    string
	Keyword Keyword
}

// ParseReply maps the control words, "cancel" becomes ErrPromptCancelled
func ParseReply(m *discordgo.Message) (*Reply, error) {
	text := strings.TrimSpace(m.Content)
	r := &Reply{Message: m, Text: text}

	switch strings.ToLower(text) {
	case "cancel":
		return nil, ErrPromptCancelled
	case "skip":
		r.Keyword = KeywordSkip
	case "finish", "done":
		r.Keyword = KeywordFinish
	}

	return r, nil
}

// PromptSender is the part of the discord session a Prompter needs
type PromptSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Prompter runs a question/answer chain with one user in one channel
type Prompter struct {
	Waiters   *Waiters
	Sender    PromptSender
	ChannelID string
	UserID    string
	Timeout   time.Duration
}

// Ask sends the question and waits for the user's next message in the channel
func (p *Prompter) Ask(ctx context.Context, question string) (*Reply, error) {
	pending := p.Waiters.ExpectMessage(func(m *discordgo.Message) bool {
		return m.ChannelID == p.ChannelID && m.Author != nil && m.Author.ID == p.UserID
	})

	if question != "" {
		if _, err := p.Sender.ChannelMessageSend(p.ChannelID, question); err != nil {
			pending.Cancel()
			return nil, err
		}
	}

	m, err := pending.Message(ctx, p.Timeout)
	if err != nil {
		return nil, err
	}

	return ParseReply(m)
}

// AskReaction sends the question and waits for the user to react on it.
// A text reply of cancel, skip or finish also ends the wait, the Reply is then set instead.
func (p *Prompter) AskReaction(ctx context.Context, question string) (*discordgo.MessageReaction, *Reply, error) {
	msg, err := p.Sender.ChannelMessageSend(p.ChannelID, question)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pr := p.Waiters.ExpectReaction(func(r *discordgo.MessageReaction) bool {
		return r.MessageID == msg.ID && r.UserID == p.UserID
	})
	pm := p.Waiters.ExpectMessage(func(m *discordgo.Message) bool {
		if m.ChannelID != p.ChannelID || m.Author == nil || m.Author.ID != p.UserID {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(m.Content)) {
		case "cancel", "skip", "finish", "done":
			return true
		}
		return false
	})
	defer pr.Cancel()
	defer pm.Cancel()

	t := time.NewTimer(p.Timeout)
	defer t.Stop()

	select {
	case r := <-pr.rCh:
		return r, nil, nil
	case m := <-pm.msgCh:
		reply, err := ParseReply(m)
		return nil, reply, err
	case <-t.C:
		return nil, nil, ErrPromptTimeout
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}
