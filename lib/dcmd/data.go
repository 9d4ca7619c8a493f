package dcmd

import (
	"context"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
)

// Data is everything a command gets to see about its invocation
type Data struct {
	Cmd      *RegisteredCommand
	Args     []*ParsedArg
	Switches map[string]*ParsedArg

	Message *discordgo.Message
	Author  *discordgo.User
	// GuildID is empty and Member nil in DMs. Member.User is always set.
	GuildID   string
	Member    *discordgo.Member
	ChannelID string

	Source      TriggerSource
	TriggerType TriggerType
	PrefixUsed  string
	// MessageStrippedPrefix is what is left of the content once the prefix and the matched names are removed
	MessageStrippedPrefix string

	// ContainerChain holds the containers the command was routed through, root first
	ContainerChain []*Container

	System  *System
	Session *discordgo.Session
	// Sender delivers responses, Session is used when it is nil
	Sender MessageSender

	context context.Context
}

// MessageSender is the part of the discord session responses are delivered through
type MessageSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error
}

// Context is never nil
func (d *Data) Context() context.Context {
	if d.context != nil {
		return d.context
	}
	return context.Background()
}

// WithContext returns a shallow copy of d using ctx
func (d *Data) WithContext(ctx context.Context) *Data {
	cop := *d
	cop.context = ctx
	return &cop
}

func (d *Data) Switch(name string) *ParsedArg {
	return d.Switches[name]
}

func (d *Data) sender() MessageSender {
	if d.Sender == nil {
		return d.Session
	}
	return d.Sender
}

// State returns the session state, or nil without a session
func (d *Data) State() *discordgo.State {
	if d.Session != nil {
		return d.Session.State
	}
	return nil
}

// Guild looks up the guild of the invocation in state, nil in DMs or if it isn't cached
func (d *Data) Guild() *discordgo.Guild {
	state := d.State()
	if state == nil || d.GuildID == "" {
		return nil
	}

	g, _ := state.Guild(d.GuildID)
	return g
}

// SendFollowupMessage delivers reply to the channel of the invocation.
// reply is a Response, a string or error (split into several messages if too long),
// an embed, a slice of embeds (one message each) or a *discordgo.MessageSend.
func (d *Data) SendFollowupMessage(reply interface{}, allowedMentions discordgo.MessageAllowedMentions) ([]*discordgo.Message, error) {
	if r, ok := reply.(Response); ok {
		return r.Send(d)
	}

	sends, err := messageSends(reply)
	if err != nil {
		return nil, err
	}

	msgs := make([]*discordgo.Message, 0, len(sends))
	for _, send := range sends {
		if send.AllowedMentions == nil {
			send.AllowedMentions = &allowedMentions
		}

		m, err := d.sender().ChannelMessageSendComplex(d.ChannelID, send)
		if err != nil {
			return msgs, err
		}
		msgs = append(msgs, m)
	}

	return msgs, nil
}

func messageSends(reply interface{}) ([]*discordgo.MessageSend, error) {
	switch t := reply.(type) {
	case *discordgo.MessageSend:
		return []*discordgo.MessageSend{t}, nil
	case *discordgo.MessageEmbed:
		return []*discordgo.MessageSend{{Embeds: []*discordgo.MessageEmbed{t}}}, nil
	case []*discordgo.MessageEmbed:
		sends := make([]*discordgo.MessageSend, len(t))
		for i, embed := range t {
			sends[i] = &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
		}
		return sends, nil
	case error:
		return messageSends(t.Error())
	case string:
		chunks := splitMessage(t, MaxMessageLength)
		sends := make([]*discordgo.MessageSend, len(chunks))
		for i, chunk := range chunks {
			sends[i] = &discordgo.MessageSend{Content: chunk}
		}
		return sends, nil
	}

	return nil, errors.Errorf("dcmd: unsupported reply type %T", reply)
}

// TriggerSource is where the invoking message was sent
type TriggerSource int

const (
	TriggerSourceGuild TriggerSource = iota
	TriggerSourceDM
)

// TriggerType is how the command was addressed
type TriggerType int

const (
	// no prefix, used in DMs
	TriggerTypeDirect TriggerType = iota
	TriggerTypeMention
	TriggerTypePrefix
)
