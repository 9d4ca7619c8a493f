package actions

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/yuzubot/yuzu/commands"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/common/backgroundworkers"
	"github.com/yuzubot/yuzu/common/config"
	"github.com/yuzubot/yuzu/lib/dcmd"
)

var (
	confTenorKey    = config.RegisterOption("yuzu.tenor.key", "Tenor api key, actions use the built in gifs without one", "")
	confActionsFile = config.RegisterOption("yuzu.actions.file", "Yaml file overriding the built in actions, reloaded on change", "")

	logger = common.GetPluginLogger(&Plugin{})

	metricsActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yuzu_actions_total",
		Help: "Roleplay actions used",
	}, []string{"action"})
)

// GIFSource finds a gif for a search query
type GIFSource interface {
	RandomGIF(ctx context.Context, query string) (string, error)
}

type Plugin struct {
	Catalog *Catalog
	GIFs    GIFSource

	watchCtx  context.Context
	stopWatch context.CancelFunc
	watchDone chan struct{}
}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Actions",
		SysName:  "actions",
		Category: common.PluginCategoryFun,
	}
}

func RegisterPlugin() {
	catalog, err := NewCatalog(confActionsFile.GetString())
	if err != nil {
		logger.WithError(err).Error("Failed loading actions file, using the built in actions")
		catalog, err = NewCatalog("")
		if err != nil {
			panic("built in actions are broken: " + err.Error())
		}
	}

	p := &Plugin{Catalog: catalog, watchDone: make(chan struct{})}
	p.watchCtx, p.stopWatch = context.WithCancel(context.Background())
	if key := confTenorKey.GetString(); key != "" {
		p.GIFs = NewTenorClient(key)
	}

	common.RegisterPlugin(p)
}

var (
	_ commands.CommandProvider                 = (*Plugin)(nil)
	_ backgroundworkers.BackgroundWorkerPlugin = (*Plugin)(nil)
	_ common.GuildDataRemover                  = (*Plugin)(nil)
)

func (p *Plugin) AddCommands() {
	names := p.Catalog.Names()
	sort.Strings(names)

	cmds := make([]*commands.YuzuCommand, 0, len(names)+1)
	for _, name := range names {
		cmds = append(cmds, p.actionCommand(p.Catalog.Get(name)))
	}

	cmds = append(cmds, &commands.YuzuCommand{
		CmdCategory: commands.CategoryFun,
		Name:        "ActionStats",
		Aliases:     []string{"astats"},
		Description: "Shows how many actions a user has given and received",
		Arguments: []*dcmd.ArgDef{
			{Name: "User", Type: dcmd.Member},
		},
		RunFunc: p.cmdActionStats,
	})

	commands.AddRootCommands(p, cmds...)
}

func (p *Plugin) actionCommand(a *Action) *commands.YuzuCommand {
	cmd := &commands.YuzuCommand{
		CmdCategory: commands.CategoryFun,
		Name:        a.Name,
		Description: a.Description,
		Cooldown:    3,
		RunFunc:     p.runAction(a.Name),
	}

	if !a.SelfOnly {
		cmd.Arguments = []*dcmd.ArgDef{
			{Name: "Target", Type: dcmd.Member},
		}
	}

	return cmd
}

func (p *Plugin) runAction(name string) dcmd.RunFunc {
	return func(data *dcmd.Data) (interface{}, error) {
		// the catalog may have been reloaded without this action
		a := p.Catalog.Get(name)
		if a == nil {
			return "This action isn't available anymore", nil
		}

		var target *discordgo.Member
		if len(data.Args) > 0 {
			target = data.Args[0].Member()
		}

		targetMention := ""
		directed := !a.SelfOnly && target != nil && target.User != nil && target.User.ID != data.Author.ID
		if directed {
			targetMention = target.User.Mention()
		}

		embed := &discordgo.MessageEmbed{
			Description: a.Text(data.Author.Mention(), targetMention),
			Color:       a.Color,
			Image:       &discordgo.MessageEmbedImage{URL: p.gif(data.Context(), a)},
		}

		if directed {
			n, err := IncrCounters(data.GuildID, data.Author.ID, target.User.ID, a.Name)
			if err != nil {
				return nil, err
			}
			embed.Footer = &discordgo.MessageEmbedFooter{
				Text: "That's their " + humanize.Ordinal(n) + " " + a.Noun,
			}
		}

		metricsActions.With(prometheus.Labels{"action": a.Name}).Inc()
		return embed, nil
	}
}

func (p *Plugin) gif(ctx context.Context, a *Action) string {
	if p.GIFs == nil || a.Query == "" {
		return a.RandomGIF()
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	url, err := p.GIFs.RandomGIF(ctx, a.Query)
	if err != nil {
		logger.WithError(err).WithField("action", a.Name).Warn("Failed fetching gif, using a built in one")
		return a.RandomGIF()
	}

	return url
}

func (p *Plugin) cmdActionStats(data *dcmd.Data) (interface{}, error) {
	user := data.Author
	if m := data.Args[0].Member(); m != nil && m.User != nil {
		user = m.User
	}

	counters, err := GetCounters(data.GuildID, user.ID)
	if err != nil {
		return nil, err
	}

	embed := &discordgo.MessageEmbed{
		Title: "Actions of " + user.Username,
		Color: 0xf7d34a,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Received", Value: formatCounts(counters.Received), Inline: true},
			{Name: "Given", Value: formatCounts(counters.Given), Inline: true},
		},
	}
	return embed, nil
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "Nothing yet"
	}

	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	// most first, ties by name
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	out := ""
	for _, name := range names {
		out += "**" + name + "**: " + strconv.Itoa(counts[name]) + "\n"
	}
	return out
}

func (p *Plugin) RemoveGuildData(guildID string) error {
	_, err := common.Store.DeletePattern(KeyCounters(guildID, "*"))
	return err
}

func (p *Plugin) RunBackgroundWorker() {
	defer close(p.watchDone)

	if err := p.Catalog.Watch(p.watchCtx); err != nil {
		logger.WithError(err).Error("Failed watching actions file, changes need a restart")
	}
}

func (p *Plugin) StopBackgroundWorker(wg *sync.WaitGroup) {
	p.stopWatch()
	<-p.watchDone
	wg.Done()
}
