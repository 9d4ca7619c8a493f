package dcmd

import (
	"fmt"
	"runtime/debug"
	"strings"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// System turns messages into command invocations: it finds the prefix, routes through Root
// and hands whatever the command returned to ResponseSender
type System struct {
	Root           *Container
	Prefix         PrefixProvider
	ResponseSender ResponseSender
}

// NewStandardSystem returns a system with argument parsing set up. An empty staticPrefix leaves Prefix unset.
func NewStandardSystem(staticPrefix string) *System {
	sys := &System{
		Root:           &Container{HelpTitleEmoji: "ℹ️", HelpColor: 0xf7d34a},
		ResponseSender: &StdResponseSender{LogErrors: true},
	}
	if staticPrefix != "" {
		sys.Prefix = NewSimplePrefixProvider(staticPrefix)
	}

	sys.Root.AddMiddlewares(ArgParserMW)
	return sys
}

// HandleMessageCreate can be added as a discordgo handler directly. Panics in commands are logged.
func (sys *System) HandleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("stack", string(debug.Stack())).Errorf("dcmd: recovered from panic in command: %v", r)
		}
	}()

	if err := sys.CheckMessage(s, m); err != nil {
		logrus.WithError(err).Error("dcmd: failed handling message")
	}
}

// CheckMessage runs the command m triggers, if any, and sends the response
func (sys *System) CheckMessage(s *discordgo.Session, m *discordgo.MessageCreate) error {
	data, err := sys.FillData(s, m.Message)
	if err != nil {
		return err
	}

	if !sys.FindPrefix(data) {
		return nil
	}

	resp, err := sys.Root.Run(data)
	return sys.ResponseSender.SendResponse(data, resp, err)
}

// FindPrefix reports whether the message addresses the bot. DMs always do, guild messages
// need a mention of the bot or the prefix. TriggerType, PrefixUsed and MessageStrippedPrefix are set on a match.
func (sys *System) FindPrefix(data *Data) bool {
	if data.Source == TriggerSourceDM {
		data.TriggerType = TriggerTypeDirect
		data.MessageStrippedPrefix = data.Message.Content
		return true
	}

	if sys.FindMentionPrefix(data) {
		return true
	}

	if sys.Prefix == nil {
		return false
	}

	prefix := sys.Prefix.Prefix(data)
	rest, ok := strings.CutPrefix(data.Message.Content, prefix)
	if prefix == "" || !ok {
		return false
	}

	data.TriggerType = TriggerTypePrefix
	data.PrefixUsed = prefix
	data.MessageStrippedPrefix = strings.TrimSpace(rest)
	return true
}

// FindMentionPrefix matches both mention forms of the bot user at the start of the message
func (sys *System) FindMentionPrefix(data *Data) bool {
	state := data.State()
	if state == nil || state.User == nil {
		return false
	}

	id := state.User.ID
	for _, mention := range [...]string{"<@" + id + ">", "<@!" + id + ">"} {
		rest, ok := strings.CutPrefix(data.Message.Content, mention)
		if !ok {
			continue
		}

		data.TriggerType = TriggerTypeMention
		data.PrefixUsed = mention
		data.MessageStrippedPrefix = strings.TrimSpace(rest)
		return true
	}

	return false
}

var ErrMemberNotAvailable = errors.NewPlain("member not provided in message")

// FillData builds the command data of m. Guild messages have to carry the member.
func (sys *System) FillData(s *discordgo.Session, m *discordgo.Message) (*Data, error) {
	data := &Data{
		Message:   m,
		Author:    m.Author,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Session:   s,
		System:    sys,
		Source:    TriggerSourceGuild,
	}

	if m.GuildID == "" {
		data.Source = TriggerSourceDM
		return data, nil
	}

	if m.Member == nil || m.Author == nil {
		return nil, ErrMemberNotAvailable
	}

	// gateway members come without the user and guild
	member := *m.Member
	member.User = m.Author
	member.GuildID = m.GuildID
	data.Member = &member

	return data, nil
}

// PrefixProvider returns the command prefix for the guild of data, "" for none
type PrefixProvider interface {
	Prefix(data *Data) string
}

// SimplePrefixProvider uses the same prefix everywhere
type SimplePrefixProvider struct {
	prefix string
}

func NewSimplePrefixProvider(prefix string) PrefixProvider {
	return &SimplePrefixProvider{prefix: prefix}
}

func (pp *SimplePrefixProvider) Prefix(d *Data) string {
	return pp.prefix
}

type ResponseSender interface {
	SendResponse(cmdData *Data, resp interface{}, err error) error
}

// StdResponseSender sends resp as is. An error without a response is shown to the user with mentions escaped.
type StdResponseSender struct {
	LogErrors bool
}

func (s *StdResponseSender) SendResponse(cmdData *Data, resp interface{}, err error) error {
	if err != nil {
		name := "unknown"
		if cmdData.Cmd != nil {
			name = cmdData.Cmd.FormatNames(false, "/")
		}

		if s.LogErrors {
			logrus.WithError(err).WithField("cmd", name).Error("dcmd: command returned an error")
		}

		if resp == nil {
			_, sendErr := SendResponseInterface(cmdData, fmt.Sprintf("%q command returned an error: %s", name, err), true)
			return sendErr
		}
	}

	if resp == nil {
		return nil
	}

	_, sendErr := SendResponseInterface(cmdData, resp, false)
	return sendErr
}
