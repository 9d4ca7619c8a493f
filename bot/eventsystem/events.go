package eventsystem

import (
	"github.com/bwmarrin/discordgo"
)

type Event int

const (
	// EventAll is only valid when adding handlers
	EventAll Event = iota
	EventAllPre
	EventAllPost
	EventReady
	EventResumed
	EventGuildCreate
	EventGuildDelete
	EventGuildMemberAdd
	EventGuildMemberRemove
	EventGuildRoleDelete
	EventChannelDelete
	EventMessageCreate
	EventMessageDelete
	EventMessageReactionAdd
	EventMessageReactionRemove
	EventMessageReactionRemoveAll
	EventGuildBanRemove

	numEvents

	eventUnknown Event = -1
)

var EventNames = [numEvents]string{
	EventAll:                      "All",
	EventAllPre:                   "AllPre",
	EventAllPost:                  "AllPost",
	EventReady:                    "Ready",
	EventResumed:                  "Resumed",
	EventGuildCreate:              "GuildCreate",
	EventGuildDelete:              "GuildDelete",
	EventGuildMemberAdd:           "GuildMemberAdd",
	EventGuildMemberRemove:        "GuildMemberRemove",
	EventGuildRoleDelete:          "GuildRoleDelete",
	EventChannelDelete:            "ChannelDelete",
	EventMessageCreate:            "MessageCreate",
	EventMessageDelete:            "MessageDelete",
	EventMessageReactionAdd:       "MessageReactionAdd",
	EventMessageReactionRemove:    "MessageReactionRemove",
	EventMessageReactionRemoveAll: "MessageReactionRemoveAll",
	EventGuildBanRemove:           "GuildBanRemove",
}

func (e Event) String() string {
	if e < 0 || e >= numEvents {
		return "Unknown"
	}
	return EventNames[e]
}

// AllDiscordEvents is every event backed by a gateway payload
var AllDiscordEvents = []Event{
	EventReady,
	EventResumed,
	EventGuildCreate,
	EventGuildDelete,
	EventGuildMemberAdd,
	EventGuildMemberRemove,
	EventGuildRoleDelete,
	EventChannelDelete,
	EventMessageCreate,
	EventMessageDelete,
	EventMessageReactionAdd,
	EventMessageReactionRemove,
	EventMessageReactionRemoveAll,
	EventGuildBanRemove,
}

// eventInfo maps a discordgo payload to its Event, and the guild it belongs to if any
func eventInfo(evt interface{}) (Event, string) {
	switch t := evt.(type) {
	case *discordgo.Ready:
		return EventReady, ""
	case *discordgo.Resumed:
		return EventResumed, ""
	case *discordgo.GuildCreate:
		return EventGuildCreate, t.ID
	case *discordgo.GuildDelete:
		return EventGuildDelete, t.ID
	case *discordgo.GuildMemberAdd:
		return EventGuildMemberAdd, t.GuildID
	case *discordgo.GuildMemberRemove:
		return EventGuildMemberRemove, t.GuildID
	case *discordgo.GuildRoleDelete:
		return EventGuildRoleDelete, t.GuildID
	case *discordgo.ChannelDelete:
		return EventChannelDelete, t.GuildID
	case *discordgo.MessageCreate:
		return EventMessageCreate, t.GuildID
	case *discordgo.MessageDelete:
		return EventMessageDelete, t.GuildID
	case *discordgo.MessageReactionAdd:
		return EventMessageReactionAdd, t.GuildID
	case *discordgo.MessageReactionRemove:
		return EventMessageReactionRemove, t.GuildID
	case *discordgo.MessageReactionRemoveAll:
		return EventMessageReactionRemoveAll, t.GuildID
	case *discordgo.GuildBanRemove:
		return EventGuildBanRemove, t.GuildID
	}
	return eventUnknown, ""
}

func eventType(evt interface{}) Event {
	t, _ := eventInfo(evt)
	return t
}

// GuildID returns the guild the event belongs to, or "" for DMs and events outside guilds
func (data *EventData) GuildID() string {
	_, guildID := eventInfo(data.EvtInterface)
	return guildID
}

func (data *EventData) Ready() *discordgo.Ready {
	return data.EvtInterface.(*discordgo.Ready)
}

func (data *EventData) GuildDelete() *discordgo.GuildDelete {
	return data.EvtInterface.(*discordgo.GuildDelete)
}

func (data *EventData) GuildMemberAdd() *discordgo.GuildMemberAdd {
	return data.EvtInterface.(*discordgo.GuildMemberAdd)
}

func (data *EventData) GuildRoleDelete() *discordgo.GuildRoleDelete {
	return data.EvtInterface.(*discordgo.GuildRoleDelete)
}

func (data *EventData) MessageCreate() *discordgo.MessageCreate {
	return data.EvtInterface.(*discordgo.MessageCreate)
}

func (data *EventData) MessageDelete() *discordgo.MessageDelete {
	return data.EvtInterface.(*discordgo.MessageDelete)
}

func (data *EventData) MessageReactionAdd() *discordgo.MessageReactionAdd {
	return data.EvtInterface.(*discordgo.MessageReactionAdd)
}

func (data *EventData) MessageReactionRemove() *discordgo.MessageReactionRemove {
	return data.EvtInterface.(*discordgo.MessageReactionRemove)
}
