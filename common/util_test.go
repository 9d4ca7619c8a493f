package common

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestHumanizeDuration(t *testing.T) {
	cases := []struct {
		precision DurationFormatPrecision
		d         time.Duration
		out       string
	}{
		{DurationPrecisionSeconds, time.Second * 5, "5 seconds"},
		{DurationPrecisionSeconds, time.Minute + time.Second, "1 minute and 1 second"},
		{DurationPrecisionMinutes, time.Hour*26 + time.Minute*3 + time.Second*9, "1 day, 2 hours and 3 minutes"},
		{DurationPrecisionMinutes, time.Second * 20, "less than 1 minute"},
		{DurationPrecisionHours, time.Hour * 24 * 8, "1 week and 1 day"},
		{DurationPrecisionDays, -time.Hour * 48, "2 days"},
	}

	for i, c := range cases {
		t.Run(fmt.Sprintf("case #%d", i), func(t *testing.T) {
			assert.Equal(t, c.out, HumanizeDuration(c.precision, c.d))
		})
	}
}

func TestEscapeSpecialMentions(t *testing.T) {
	out := EscapeSpecialMentions("hi @everyone and @here <@&123> <@456>")
	assert.NotContains(t, out, "@everyone")
	assert.NotContains(t, out, "@here")
	assert.NotContains(t, out, "<@&123>")
	assert.Contains(t, out, "<@456>")
}

func TestCutStringShort(t *testing.T) {
	assert.Equal(t, "hello", CutStringShort("hello", 5))
	assert.Equal(t, "he...", CutStringShort("hello world", 5))
	assert.Equal(t, "\U0001F34B\U0001F34B...", CutStringShort("\U0001F34B\U0001F34B\U0001F34B\U0001F34B\U0001F34B\U0001F34B", 5))
}

func TestIsDiscordErr(t *testing.T) {
	err := &discordgo.RESTError{
		Response: &http.Response{StatusCode: 404},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMessage},
	}

	assert.True(t, IsDiscordErr(err, discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownMessage))
	assert.False(t, IsDiscordErr(err, discordgo.ErrCodeUnknownMember))
	assert.False(t, IsDiscordErr(fmt.Errorf("plain"), discordgo.ErrCodeUnknownMessage))
	assert.Equal(t, discordgo.ErrCodeUnknownMessage, DiscordErrCode(fmt.Errorf("wrapped: %w", err)))
}
