package rolecommands

import (
	"github.com/bwmarrin/discordgo"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/common/store"
)

// checkStaleErr deletes the menu if err says its message or channel is gone
func checkStaleErr(menu *Menu, err error) (deleteErr error, stale bool) {
	if !common.IsDiscordErr(err, discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel) {
		return nil, false
	}

	logger.WithField("guild", menu.GuildID).WithField("message", menu.MessageID).Info("Removing menu of a deleted message")
	return DeleteMenu(menu.GuildID, menu.MessageID), true
}

// CheckStale fetches the message of the menu and deletes the menu if it's gone
func CheckStale(s Session, menu *Menu) (stale bool, err error) {
	_, err = s.ChannelMessage(menu.ChannelID, menu.MessageID)
	if err == nil {
		return false, nil
	}

	deleteErr, stale := checkStaleErr(menu, err)
	if stale {
		return true, deleteErr
	}
	return false, err
}

// SweepStale runs CheckStale over every menu and returns how many were removed
func SweepStale(s Session) (int, error) {
	var menus []*Menu
	err := common.Store.Ascend("reactionroles:*", func(key, raw string) bool {
		var m Menu
		if err := store.Decode(raw, &m); err == nil {
			menus = append(menus, &m)
		}
		return true
	})
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, m := range menus {
		stale, err := CheckStale(s, m)
		if err != nil {
			logger.WithError(err).WithField("guild", m.GuildID).Warn("Failed checking menu")
			continue
		}
		if stale {
			removed++
		}
	}

	return removed, nil
}
