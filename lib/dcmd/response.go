package dcmd

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// Discord rejects message contents longer than this many characters
const MaxMessageLength = 2000

// Response is a command response that knows how to deliver itself
type Response interface {
	Send(data *Data) ([]*discordgo.Message, error)
}

// SendResponseInterface sends reply. User mentions always ping, role mentions only when escapeMentions is false.
func SendResponseInterface(data *Data, reply interface{}, escapeMentions bool) ([]*discordgo.Message, error) {
	parse := []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers}
	if !escapeMentions {
		parse = append(parse, discordgo.AllowedMentionTypeRoles)
	}

	return data.SendFollowupMessage(reply, discordgo.MessageAllowedMentions{Parse: parse})
}

// TemporaryResponse deletes the messages it sent once Duration has passed
type TemporaryResponse struct {
	Response       interface{}
	Duration       time.Duration
	EscapeMentions bool
}

func NewTemporaryResponse(d time.Duration, inner interface{}, escapeMentions bool) *TemporaryResponse {
	return &TemporaryResponse{Response: inner, Duration: d, EscapeMentions: escapeMentions}
}

func (t *TemporaryResponse) Send(data *Data) ([]*discordgo.Message, error) {
	msgs, err := SendResponseInterface(data, t.Response, t.EscapeMentions)
	if err != nil || len(msgs) == 0 {
		return msgs, err
	}

	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}

	sender, channelID := data.sender(), data.ChannelID
	time.AfterFunc(t.Duration, func() {
		var err error
		if len(ids) == 1 {
			err = sender.ChannelMessageDelete(channelID, ids[0])
		} else {
			err = sender.ChannelMessagesBulkDelete(channelID, ids)
		}

		if err != nil {
			logrus.WithError(err).WithField("channel", channelID).Debug("dcmd: failed deleting temporary response")
		}
	})

	return msgs, nil
}

// splitMessage cuts s into trimmed chunks of at most max runes. A chunk ends at its last newline
// if it has one, otherwise at its last whitespace, otherwise exactly at max.
func splitMessage(s string, max int) []string {
	var chunks []string

	for {
		s = strings.TrimSpace(s)
		if s == "" {
			return chunks
		}
		if utf8.RuneCountInString(s) <= max {
			return append(chunks, s)
		}

		window := s[:runeOffset(s, max)]
		cut := strings.LastIndexByte(window, '\n')
		if cut < 0 {
			cut = strings.LastIndexFunc(window, unicode.IsSpace)
		}

		if cut <= 0 {
			chunks = append(chunks, window)
			s = s[len(window):]
			continue
		}

		chunks = append(chunks, strings.TrimSpace(window[:cut]))
		s = s[cut:]
	}
}

// runeOffset returns the byte offset of the n'th rune in s, or len(s)
func runeOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}
