package ping

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yuzubot/yuzu/bot/eventsystem"
	"github.com/yuzubot/yuzu/commands"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/lib/dcmd"
)

var Command = &commands.YuzuCommand{
	CmdCategory:     commands.CategoryGeneral,
	Name:            "Ping",
	Description:     "Shows the latency from the bot to the discord servers.",
	LongDescription: "Note that high latencies can be the fault of ratelimits and the bot itself, it's not a absolute metric.",
	RunInDM:         true,

	RunFunc: func(data *dcmd.Data) (interface{}, error) {
		return pongMessage(time.Now()), nil
	},
}

func pongMessage(t time.Time) string {
	return fmt.Sprintf(":PONG;%d", t.UnixNano())
}

// parsePong returns when the pong message was sent, ok is false for any other message
func parsePong(content string) (sent time.Time, ok bool) {
	split := strings.Split(content, ";")
	if split[0] != ":PONG" || len(split) < 2 {
		return time.Time{}, false
	}

	parsed, err := strconv.ParseInt(split[1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	return time.Unix(0, parsed), true
}

// HandleMessageCreate edits our own pong message with the measured latencies once it comes back over the gateway
func HandleMessageCreate(evt *eventsystem.EventData) {
	m := evt.MessageCreate()

	bUser := common.BotUser
	if bUser == nil || m.Author == nil || bUser.ID != m.Author.ID {
		return
	}

	sent, ok := parsePong(m.Content)
	if !ok {
		return
	}

	taken := time.Since(sent)

	started := time.Now()
	evt.Session.ChannelMessageEdit(m.ChannelID, m.ID, "Gateway (http send -> gateway receive time): "+taken.String())
	httpPing := time.Since(started)

	evt.Session.ChannelMessageEdit(m.ChannelID, m.ID, "HTTP API (Edit Msg): "+httpPing.String()+"\nGateway: "+taken.String())
}
