package botinfo

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/yuzubot/yuzu/common"
)

type statusPlugin struct {
	name, val string
}

func (p *statusPlugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{Name: "Timers", SysName: "timers"}
}

func (p *statusPlugin) Status() (string, string) { return p.name, p.val }

type quietPlugin struct{}

func (p *quietPlugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{Name: "Quiet", SysName: "quiet"}
}

func TestStatusEmbed(t *testing.T) {
	st := stats{
		botUser:    &discordgo.User{ID: "100", Username: "yuzu"},
		guilds:     1500,
		uptime:     time.Hour*26 + time.Minute,
		goroutines: 42,
	}
	st.mem.Alloc = 5 * 1000 * 1000
	st.mem.TotalAlloc = 8 * 1000 * 1000

	embed := statusEmbed(st, []common.Plugin{
		&quietPlugin{},
		&statusPlugin{name: "Queued", val: "3"},
		&statusPlugin{name: "Empty"},
	})

	values := make(map[string]string)
	for _, f := range embed.Fields {
		values[f.Name] = f.Value
	}

	assert.Equal(t, "yuzu", embed.Author.Name)
	assert.Equal(t, "1,500", values["Servers"])
	assert.Equal(t, "1 day, 2 hours and 1 minute", values["Uptime"])
	assert.Equal(t, "42", values["Goroutines"])
	assert.Equal(t, "5.0 MB, 0 B, 3.0 MB", values["Process Mem (alloc, sys, freed)"])
	assert.Equal(t, "3", values["Timers: Queued"])
	assert.NotContains(t, values, "Timers: Empty")
}
