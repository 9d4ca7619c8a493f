// Package paginatedmessages implements embeds that can be paged through with arrow reactions
package paginatedmessages

import (
	"strconv"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/yuzubot/yuzu/bot"
	"github.com/yuzubot/yuzu/bot/eventsystem"
	"github.com/yuzubot/yuzu/common"
)

var logger = common.GetPluginLogger(&Plugin{})

// ErrNoResults is returned by a PagerFunc for pages past the end
var ErrNoResults = errors.NewPlain("No results")

const (
	EmojiNext = "➡"
	EmojiPrev = "⬅"

	inactiveTimeout = 10 * time.Minute
)

// Session is the part of the discord session paginated messages use
type Session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactionRemove(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error
	MessageReactionsRemoveAll(channelID, messageID string, options ...discordgo.RequestOption) error
}

type Plugin struct{}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Paginated Messages",
		SysName:  "paginatedmessages",
		Category: common.PluginCategoryMisc,
	}
}

func RegisterPlugin() {
	common.RegisterPlugin(&Plugin{})
}

var (
	_ bot.BotInitHandler    = (*Plugin)(nil)
	_ bot.BotStopperHandler = (*Plugin)(nil)
)

func (p *Plugin) BotInit() {
	eventsystem.AddHandlerAsyncLastLegacy(p, func(evt *eventsystem.EventData) {
		handleReactionAdd(evt.MessageReactionAdd())
	}, eventsystem.EventMessageReactionAdd)
}

func (p *Plugin) StopBot(wg *sync.WaitGroup) {
	defer wg.Done()

	activeMu.Lock()
	menus := make([]*PaginatedMessage, 0, len(active))
	for _, pm := range active {
		menus = append(menus, pm)
	}
	activeMu.Unlock()

	for _, pm := range menus {
		pm.Stop()
	}
}

// live menus by message id
var (
	active   = make(map[string]*PaginatedMessage)
	activeMu sync.Mutex
)

func findActive(messageID string) *PaginatedMessage {
	activeMu.Lock()
	defer activeMu.Unlock()
	return active[messageID]
}

func handleReactionAdd(ra *discordgo.MessageReactionAdd) {
	if common.BotUser != nil && ra.UserID == common.BotUser.ID {
		return
	}

	if pm := findActive(ra.MessageID); pm != nil {
		pm.HandleReactionAdd(ra)
	}
}

// PagerFunc renders page. It returns ErrNoResults once page is past the end.
type PagerFunc func(p *PaginatedMessage, page int) (*discordgo.MessageEmbed, error)

type PaginatedMessage struct {
	MessageID string
	ChannelID string
	GuildID   string

	// guarded by mu
	CurrentPage  int
	MaxPage      int
	LastResponse *discordgo.MessageEmbed

	Navigate PagerFunc

	session Session
	mu      sync.Mutex

	touched  chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

// CreatePaginatedMessage sends the first page and starts listening for navigation reactions.
// A maxPages of 0 means the page count is unknown until the pager returns ErrNoResults.
func CreatePaginatedMessage(s Session, guildID, channelID string, initPage, maxPages int, pagerFunc PagerFunc) (*PaginatedMessage, error) {
	pm := &PaginatedMessage{
		GuildID:     guildID,
		ChannelID:   channelID,
		CurrentPage: initPage,
		MaxPage:     maxPages,
		Navigate:    pagerFunc,

		session: s,
		touched: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
	if pm.CurrentPage < 1 {
		pm.CurrentPage = 1
	}

	embed, err := pagerFunc(pm, pm.CurrentPage)
	if err != nil {
		return nil, err
	}
	pm.setFooter(embed, pm.CurrentPage)

	msg, err := s.ChannelMessageSendEmbed(channelID, embed)
	if err != nil {
		return nil, err
	}
	pm.MessageID = msg.ID
	pm.LastResponse = embed

	for _, emoji := range []string{EmojiPrev, EmojiNext} {
		if err := s.MessageReactionAdd(channelID, msg.ID, emoji); err != nil {
			return nil, err
		}
	}

	activeMu.Lock()
	active[pm.MessageID] = pm
	activeMu.Unlock()

	go pm.run()
	return pm, nil
}

func (p *PaginatedMessage) setFooter(embed *discordgo.MessageEmbed, page int) {
	text := "Page " + strconv.Itoa(page)
	if p.MaxPage > 0 {
		text += "/" + strconv.Itoa(p.MaxPage)
	}

	embed.Footer = &discordgo.MessageEmbedFooter{Text: text}
	embed.Timestamp = time.Now().Format(time.RFC3339)
}

func pageDelta(emoji string) int {
	switch emoji {
	case EmojiNext:
		return 1
	case EmojiPrev:
		return -1
	}
	return 0
}

// HandleReactionAdd removes the reaction in guilds so it can be pressed again, and turns the page for arrows
func (p *PaginatedMessage) HandleReactionAdd(ra *discordgo.MessageReactionAdd) {
	if ra.GuildID != "" {
		err := p.session.MessageReactionRemove(ra.ChannelID, ra.MessageID, ra.Emoji.APIName(), ra.UserID)
		if err != nil {
			logger.WithError(err).WithField("guild", p.GuildID).Error("failed removing reaction")
		}
	}

	delta := pageDelta(ra.Emoji.Name)
	if delta == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	embed, page, ok := p.turn(delta)
	if !ok {
		return
	}

	p.setFooter(embed, page)
	p.LastResponse = embed
	p.CurrentPage = page
	p.touch()

	_, err := p.session.ChannelMessageEditEmbed(p.ChannelID, p.MessageID, embed)
	switch {
	case err == nil:
	case common.IsDiscordErr(err, discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeMissingAccess, discordgo.ErrCodeMissingPermissions):
		p.Stop()
	default:
		logger.WithError(err).WithField("guild", p.GuildID).Error("failed updating paginated message")
	}
}

// turn renders the page delta away from the current one.
// Running past the end fixes MaxPage and renders the last known page again.
func (p *PaginatedMessage) turn(delta int) (*discordgo.MessageEmbed, int, bool) {
	page := p.CurrentPage + delta
	if page < 1 || (p.MaxPage > 0 && page > p.MaxPage) {
		return nil, 0, false
	}

	embed, err := p.Navigate(p, page)
	if errors.Is(err, ErrNoResults) {
		if delta > 0 {
			page--
		}
		if page < 1 {
			page = 1
		}
		p.MaxPage = page
		embed, err = p.LastResponse, nil
	}
	if err != nil {
		logger.WithError(err).WithField("guild", p.GuildID).Error("failed getting new page")
		return nil, 0, false
	}

	return embed, page, embed != nil
}

func (p *PaginatedMessage) touch() {
	select {
	case p.touched <- struct{}{}:
	default:
	}
}

// run keeps the menu alive until it was idle for inactiveTimeout or stopped
func (p *PaginatedMessage) run() {
	idle := time.NewTimer(inactiveTimeout)
	defer idle.Stop()

wait:
	for {
		select {
		case <-p.touched:
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(inactiveTimeout)
		case <-idle.C:
			break wait
		case <-p.stopCh:
			break wait
		}
	}

	activeMu.Lock()
	delete(active, p.MessageID)
	activeMu.Unlock()

	if err := p.session.MessageReactionsRemoveAll(p.ChannelID, p.MessageID); err != nil {
		logger.WithError(err).WithField("guild", p.GuildID).Debug("failed clearing paginated message reactions")
	}
}

// Stop ends the menu, it is safe to call more than once
func (p *PaginatedMessage) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}
