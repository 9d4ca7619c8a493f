package dcmd

import (
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	TestUserID  = "105487308693757952"
	TestGuildID = "614909558585819162"
)

type TestCommand struct{}

const (
	TestResponse = "Test Response"
)

func (e *TestCommand) Descriptions(data *Data) (string, string) { return "Test Description", "" }
func (e *TestCommand) Run(data *Data) (interface{}, error) {
	return TestResponse, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []*discordgo.MessageSend
}

func (f *fakeSender) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, data)
	return &discordgo.Message{ID: fmt.Sprint(len(f.sent)), ChannelID: channelID, Content: data.Content}, nil
}

func (f *fakeSender) ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error {
	return nil
}

func (f *fakeSender) ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error {
	return nil
}

func newTestSession() *discordgo.Session {
	state := discordgo.NewState()
	state.User = &discordgo.User{ID: TestUserID, Username: "yuzu"}
	return &discordgo.Session{State: state}
}

func setupTestSystem() *System {
	sys := NewStandardSystem("!")
	sys.Root.AddCommand(&TestCommand{}, NewTrigger("test"))
	return sys
}

func TestFindPrefix(t *testing.T) {
	sys := setupTestSystem()
	session := newTestSession()

	cases := []struct {
		msgContent          string
		expectedStripped    string
		shouldBeFound       bool
		expectedSource      TriggerSource
		expectedTriggerType TriggerType
	}{
		{"!cmd", "cmd", true, TriggerSourceGuild, TriggerTypePrefix},
		{"cmd", "cmd", false, TriggerSourceGuild, TriggerTypePrefix},
		{"<@" + TestUserID + ">cmd", "cmd", true, TriggerSourceGuild, TriggerTypeMention},
		{"<@" + TestUserID + "> cmd", "cmd", true, TriggerSourceGuild, TriggerTypeMention},
		{"<@!" + TestUserID + "> cmd", "cmd", true, TriggerSourceGuild, TriggerTypeMention},
		{"<@" + TestUserID + " cmd", "", false, TriggerSourceGuild, TriggerTypeMention},
		{"cmd", "cmd", true, TriggerSourceDM, TriggerTypeDirect},
	}

	for k, v := range cases {
		t.Run(fmt.Sprintf("#%d-dm:%v-found:%v", k, v.expectedSource == TriggerSourceDM, v.shouldBeFound), func(t *testing.T) {
			testData := &Data{
				Session: session,
				Message: &discordgo.Message{Content: v.msgContent},
				Source:  v.expectedSource,
			}

			found := sys.FindPrefix(testData)
			assert.Equal(t, v.shouldBeFound, found, "Should match test case")
			if !found {
				return
			}
			assert.Equal(t, v.expectedStripped, testData.MessageStrippedPrefix, "Should be stripped off of prefix correctly")
			assert.Equal(t, v.expectedTriggerType, testData.TriggerType, "Should have the proper trigger type")
		})
	}
}

func TestFillData(t *testing.T) {
	sys := setupTestSystem()
	author := &discordgo.User{ID: "1234"}

	data, err := sys.FillData(nil, &discordgo.Message{ChannelID: "1", Author: author})
	require.NoError(t, err)
	assert.Equal(t, TriggerSourceDM, data.Source)
	assert.Nil(t, data.Member)

	data, err = sys.FillData(nil, &discordgo.Message{ChannelID: "1", GuildID: TestGuildID, Author: author, Member: &discordgo.Member{Nick: "nick"}})
	require.NoError(t, err)
	assert.Equal(t, TriggerSourceGuild, data.Source)
	require.NotNil(t, data.Member)
	assert.Equal(t, author, data.Member.User)
	assert.Equal(t, TestGuildID, data.Member.GuildID)

	_, err = sys.FillData(nil, &discordgo.Message{ChannelID: "1", GuildID: TestGuildID, Author: author})
	assert.ErrorIs(t, err, ErrMemberNotAvailable)
}

func TestRunAndRespond(t *testing.T) {
	sys := setupTestSystem()
	sender := &fakeSender{}

	data := &Data{
		Session: newTestSession(),
		Sender:  sender,
		Message: &discordgo.Message{Content: "!TEST"},
		Author:  &discordgo.User{ID: "1234"},
		Source:  TriggerSourceGuild,
	}
	require.True(t, sys.FindPrefix(data))

	resp, err := sys.Root.Run(data)
	require.NoError(t, err)
	assert.Equal(t, TestResponse, resp)

	require.NoError(t, sys.ResponseSender.SendResponse(data, resp, err))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, TestResponse, sender.sent[0].Content)
}

func TestIgnoreBots(t *testing.T) {
	c := &Container{IgnoreBots: true}
	c.AddCommand(&TestCommand{}, NewTrigger("test"))

	resp, err := c.Run(&Data{
		MessageStrippedPrefix: "test",
		Author:                &discordgo.User{Bot: true},
		TriggerType:           TriggerTypePrefix,
	})
	assert.NoError(t, err)
	assert.Nil(t, resp)
}
