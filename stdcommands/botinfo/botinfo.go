package botinfo

import (
	"fmt"
	"runtime"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/yuzubot/yuzu/bot"
	"github.com/yuzubot/yuzu/commands"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/lib/dcmd"
)

var Command = &commands.YuzuCommand{
	Cooldown:    5,
	CmdCategory: commands.CategoryGeneral,
	Name:        "BotInfo",
	Aliases:     []string{"status", "stats"},
	Description: "Shows the bot version, uptime, memory stats, and so on",
	RunInDM:     true,
	RunFunc:     cmdFuncBotInfo,
}

var logger = common.GetFixedPrefixLogger("botinfo_cmd")

// PluginStatus lets a plugin add a field to the status embed
type PluginStatus interface {
	Status() (string, string)
}

type stats struct {
	botUser    *discordgo.User
	guilds     int
	uptime     time.Duration
	goroutines int
	mem        runtime.MemStats
}

func cmdFuncBotInfo(data *dcmd.Data) (interface{}, error) {
	st := stats{
		botUser:    common.BotUser,
		uptime:     time.Since(bot.Started),
		goroutines: runtime.NumGoroutine(),
	}
	runtime.ReadMemStats(&st.mem)

	if state := data.State(); state != nil {
		state.RLock()
		st.guilds = len(state.Guilds)
		state.RUnlock()
	}

	return statusEmbed(st, common.Plugins), nil
}

func statusEmbed(st stats, plugins []common.Plugin) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Yuzu status, version " + common.VERSION,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Servers", Value: humanize.Comma(int64(st.guilds)), Inline: true},
			{Name: "Go Version", Value: runtime.Version(), Inline: true},
			{Name: "Uptime", Value: common.HumanizeDuration(common.DurationPrecisionSeconds, st.uptime), Inline: true},
			{Name: "Goroutines", Value: fmt.Sprint(st.goroutines), Inline: true},
			{Name: "GC Pause Fraction", Value: fmt.Sprintf("%.3f%%", st.mem.GCCPUFraction*100), Inline: true},
			{Name: "Process Mem (alloc, sys, freed)", Value: fmt.Sprintf("%s, %s, %s",
				humanize.Bytes(st.mem.Alloc), humanize.Bytes(st.mem.Sys), humanize.Bytes(st.mem.TotalAlloc-st.mem.Alloc)), Inline: true},
		},
	}

	if st.botUser != nil {
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name:    st.botUser.Username,
			IconURL: st.botUser.AvatarURL("64"),
		}
	}

	for _, v := range plugins {
		cast, ok := v.(PluginStatus)
		if !ok {
			continue
		}

		started := time.Now()
		name, val := cast.Status()
		if name == "" || val == "" {
			continue
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: v.PluginInfo().Name + ": " + name, Value: val, Inline: true})
		logger.Debugf("Took %s to gather stats from %s", time.Since(started), v.PluginInfo().Name)
	}

	return embed
}
