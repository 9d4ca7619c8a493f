package bot

import (
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/yuzubot/yuzu/bot/eventsystem"
	"github.com/yuzubot/yuzu/common"
)

var (
	// When the bot was started
	Started = time.Now()
	Running bool // wether the bot is currently running

	readyOnce sync.Once
	readyCh   = make(chan struct{})
)

const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsGuildBans |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

func setup() {
	discordgo.Logger = common.DiscordLogger

	s := common.BotSession
	s.Identify.Intents = Intents
	s.AddHandler(eventsystem.HandleEvent)

	eventsystem.InitWorker(5000)
	eventsystem.AddHandlerFirstLegacy(&botPlugin{}, HandleReady, eventsystem.EventReady)
	eventsystem.AddHandlerFirstLegacy(&botPlugin{}, handlePromptMessage, eventsystem.EventMessageCreate)
	eventsystem.AddHandlerFirstLegacy(&botPlugin{}, handlePromptReaction, eventsystem.EventMessageReactionAdd)
	eventsystem.AddHandlerAsyncLast(&botPlugin{}, HandleGuildDelete, eventsystem.EventGuildDelete)
}

// Run initializes the plugins and connects to the gateway
func Run() error {
	setup()

	logger.Info("Running bot")

	InitPlugins()

	if err := common.BotSession.Open(); err != nil {
		return errors.WithMessage(err, "open gateway")
	}

	Running = true
	return nil
}

// WaitReady blocks until the first READY was received or the timeout passes
func WaitReady(timeout time.Duration) bool {
	select {
	case <-readyCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Stop stops plugins and closes the gateway connection, wg.Done is called when done
func Stop(wg *sync.WaitGroup) {
	defer wg.Done()

	stopPlugins()

	if err := common.BotSession.Close(); err != nil {
		logger.WithError(err).Error("failed closing gateway connection")
	}
	Running = false
}

func HandleReady(data *eventsystem.EventData) {
	r := data.Ready()
	common.BotUser = r.User

	logger.WithField("guilds", len(r.Guilds)).Infof("Ready received as %s", r.User.String())
	readyOnce.Do(func() { close(readyCh) })
}

// HandleGuildDelete clears state for guilds the bot was removed from.
// Unavailable guilds are an outage, not a removal, and are left alone.
func HandleGuildDelete(evt *eventsystem.EventData) (retry bool, err error) {
	g := evt.GuildDelete()
	if g.Unavailable {
		return false, nil
	}

	logger.WithField("guild", g.ID).Info("Left guild, removing its data")
	return false, common.RemoveGuildData(g.ID)
}
