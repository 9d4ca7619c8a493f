package paginatedmessages

import (
	"github.com/bwmarrin/discordgo"
	"github.com/yuzubot/yuzu/lib/dcmd"
)

type CtxKey int

// CtxKeyNoPagination in the command context makes PaginatedCommand return the bare embed
const CtxKeyNoPagination CtxKey = 1

// PaginatedCommandFunc renders page for the command. p is nil when pagination is disabled.
type PaginatedCommandFunc func(data *dcmd.Data, p *PaginatedMessage, page int) (*discordgo.MessageEmbed, error)

// PaginatedCommand turns cb into a run func answering with a paginated message.
// pageArg is the index of the optional page argument, -1 if the command has none.
func PaginatedCommand(pageArg int, cb PaginatedCommandFunc) dcmd.RunFunc {
	return func(data *dcmd.Data) (interface{}, error) {
		page := 1
		if pageArg >= 0 && data.Args[pageArg].Value != nil {
			if n := data.Args[pageArg].Int(); n > 1 {
				page = n
			}
		}

		if data.Context().Value(CtxKeyNoPagination) != nil {
			return cb(data, nil, page)
		}

		return NewPaginatedResponse(data.GuildID, data.ChannelID, page, 0, func(p *PaginatedMessage, page int) (*discordgo.MessageEmbed, error) {
			return cb(data, p, page)
		}), nil
	}
}

// PaginatedResponse is a dcmd.Response that creates the paginated message when it is sent
type PaginatedResponse struct {
	guildID, channelID string
	initPage, maxPages int
	pager              PagerFunc
}

var _ dcmd.Response = (*PaginatedResponse)(nil)

func NewPaginatedResponse(guildID, channelID string, initPage, maxPages int, pager PagerFunc) *PaginatedResponse {
	return &PaginatedResponse{
		guildID:   guildID,
		channelID: channelID,
		initPage:  initPage,
		maxPages:  maxPages,
		pager:     pager,
	}
}

func (r *PaginatedResponse) Send(data *dcmd.Data) ([]*discordgo.Message, error) {
	pm, err := CreatePaginatedMessage(data.Session, r.guildID, r.channelID, r.initPage, r.maxPages, r.pager)
	if err != nil {
		return nil, err
	}

	return []*discordgo.Message{{ID: pm.MessageID, ChannelID: pm.ChannelID}}, nil
}
