package reminders

import (
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/jonas747/when"
	"github.com/jonas747/when/rules"
	whencommon "github.com/jonas747/when/rules/common"
	"github.com/jonas747/when/rules/en"
	"github.com/yuzubot/yuzu/common"
)

var ErrUnknownTime = errors.NewPlain("couldn't understand when to remind you, try something like `1h30m` or `tomorrow at 5pm`")

var dateParser *when.Parser

func init() {
	dateParser = when.New(&rules.Options{
		Distance:     10,
		MatchByOrder: true})

	dateParser.Add(en.All...)
	dateParser.Add(whencommon.All...)
}

// parseReminderTime resolves the time argument of remindme.
// Durations ("1h30m", "2 days") are tried first, otherwise natural language dates are looked for in
// timeArg followed by message and the matched text is cut out of the message.
func parseReminderTime(timeArg, message string, now time.Time) (at time.Time, rest string, err error) {
	if d, err := common.ParseDuration(timeArg); err == nil && d > 0 {
		return now.Add(d), message, nil
	}

	full := strings.TrimSpace(timeArg + " " + message)
	result, err := dateParser.Parse(full, now)
	if err != nil || result == nil {
		return time.Time{}, "", ErrUnknownTime
	}

	rest = strings.TrimSpace(full[:result.Index] + " " + full[result.Index+len(result.Text):])
	rest = strings.Join(strings.Fields(rest), " ")
	return result.Time, rest, nil
}
