package common

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
)

func ContainsStringSlice(strs []string, search string) bool {
	for _, v := range strs {
		if v == search {
			return true
		}
	}

	return false
}

func ContainsStringSliceFold(strs []string, search string) bool {
	for _, v := range strs {
		if strings.EqualFold(v, search) {
			return true
		}
	}

	return false
}

const zeroWidthSpace = "\u200b"

var (
	everyoneHereReplacer = strings.NewReplacer("@everyone", "@"+zeroWidthSpace+"everyone", "@here", "@"+zeroWidthSpace+"here")
	patternRoleMentions  = regexp.MustCompile("<@&([0-9]*)>")
)

// EscapeSpecialMentions breaks everyone, here and role mentions with a zero width space
func EscapeSpecialMentions(in string) string {
	in = everyoneHereReplacer.Replace(in)
	return patternRoleMentions.ReplaceAllString(in, "<@"+zeroWidthSpace+"&$1>")
}

// CutStringShort cuts s to at most l runes, marking the cut with "..."
func CutStringShort(s string, l int) string {
	if utf8.RuneCountInString(s) <= l {
		return s
	}

	runes := []rune(s)
	if l <= 3 {
		return string(runes[:l])
	}
	return string(runes[:l-3]) + "..."
}

type DurationFormatPrecision int

const (
	DurationPrecisionSeconds DurationFormatPrecision = iota
	DurationPrecisionMinutes
	DurationPrecisionHours
	DurationPrecisionDays
	DurationPrecisionWeeks
	DurationPrecisionYears
)

var durationUnits = []struct {
	precision DurationFormatPrecision
	name      string
	size      time.Duration
}{
	{DurationPrecisionYears, "year", time.Hour * 24 * 365},
	{DurationPrecisionWeeks, "week", time.Hour * 24 * 7},
	{DurationPrecisionDays, "day", time.Hour * 24},
	{DurationPrecisionHours, "hour", time.Hour},
	{DurationPrecisionMinutes, "minute", time.Minute},
	{DurationPrecisionSeconds, "second", time.Second},
}

// HumanizeDuration formats d as "1 day, 2 hours and 5 minutes", dropping units below precision
func HumanizeDuration(precision DurationFormatPrecision, d time.Duration) string {
	if d < 0 {
		d = -d
	}

	var parts []string
	for _, u := range durationUnits {
		if u.precision < precision {
			break
		}

		n := d / u.size
		if n < 1 {
			continue
		}
		d -= n * u.size

		part := fmt.Sprintf("%d %s", n, u.name)
		if n > 1 {
			part += "s"
		}
		parts = append(parts, part)
	}

	if len(parts) == 0 {
		for _, u := range durationUnits {
			if u.precision == precision {
				return "less than 1 " + u.name
			}
		}
	}

	if len(parts) == 1 {
		return parts[0]
	}

	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}

// DiscordErrCode returns the json error code of a discord api error, 0 if it isn't one
func DiscordErrCode(err error) int {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		return restErr.Message.Code
	}
	return 0
}

// IsDiscordErr returns true if err is a discord api error with one of the codes
func IsDiscordErr(err error, codes ...int) bool {
	code := DiscordErrCode(err)
	if code == 0 {
		return false
	}

	for _, v := range codes {
		if v == code {
			return true
		}
	}
	return false
}

// MessageLink builds a jump link to a message
func MessageLink(guildID, channelID, messageID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, messageID)
}
