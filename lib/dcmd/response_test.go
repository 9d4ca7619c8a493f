package dcmd

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessage(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want []string
	}{
		{"short", "  hello  ", 10, []string{"hello"}},
		{"empty", " \n ", 10, nil},
		{"whitespace", "aaa bbb ccc", 7, []string{"aaa", "bbb ccc"}},
		{"newline first", "line one\nline two", 12, []string{"line one", "line two"}},
		{"no whitespace", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"multibyte", "ééééé", 2, []string{"éé", "éé", "é"}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, splitMessage(c.in, c.max))
		})
	}
}

func TestSendLongMessage(t *testing.T) {
	sender := &fakeSender{}
	data := &Data{Sender: sender, ChannelID: "1"}

	long := strings.Repeat("word ", 500)
	msgs, err := data.SendFollowupMessage(long, discordgo.MessageAllowedMentions{})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	for _, m := range sender.sent {
		assert.LessOrEqual(t, len(m.Content), MaxMessageLength)
		assert.NotNil(t, m.AllowedMentions)
	}
	assert.Equal(t, strings.TrimSpace(long), sender.sent[0].Content+" "+sender.sent[1].Content)
}

func TestSendResponseEscapesRoles(t *testing.T) {
	sender := &fakeSender{}
	data := &Data{Sender: sender, ChannelID: "1"}

	_, err := SendResponseInterface(data, "hi <@&1>", true)
	require.NoError(t, err)
	_, err = SendResponseInterface(data, "hi <@&1>", false)
	require.NoError(t, err)

	require.Len(t, sender.sent, 2)
	assert.NotContains(t, sender.sent[0].AllowedMentions.Parse, discordgo.AllowedMentionTypeRoles)
	assert.Contains(t, sender.sent[1].AllowedMentions.Parse, discordgo.AllowedMentionTypeRoles)
}

func TestSendReplyTypes(t *testing.T) {
	sender := &fakeSender{}
	data := &Data{Sender: sender, ChannelID: "1"}

	msgs, err := data.SendFollowupMessage("", discordgo.MessageAllowedMentions{})
	require.NoError(t, err)
	assert.Empty(t, msgs)

	embeds := []*discordgo.MessageEmbed{{Title: "a"}, {Title: "b"}}
	msgs, err = data.SendFollowupMessage(embeds, discordgo.MessageAllowedMentions{})
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	send := &discordgo.MessageSend{Content: "x", AllowedMentions: &discordgo.MessageAllowedMentions{Users: []string{"9"}}}
	_, err = data.SendFollowupMessage(send, discordgo.MessageAllowedMentions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"9"}, sender.sent[2].AllowedMentions.Users)

	_, err = data.SendFollowupMessage(42, discordgo.MessageAllowedMentions{})
	assert.Error(t, err)
}
