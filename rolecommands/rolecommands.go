// rolecommands is a plugin which lets members give themselves roles by reacting on a menu message
package rolecommands

import (
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/karlseguin/ccache"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/common/store"
)

var logger = common.GetPluginLogger(&Plugin{})

type Plugin struct{}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Reaction Roles",
		SysName:  "rolecommands",
		Category: common.PluginCategoryMisc,
	}
}

func RegisterPlugin() {
	common.RegisterPlugin(&Plugin{})
}

type Mode string

const (
	// ModeNormal toggles each role with its reaction
	ModeNormal Mode = "normal"
	// ModeUnique allows one role of the menu at a time, reacting to another one swaps them
	ModeUnique Mode = "unique"
	// ModeVerify only ever adds roles, removing the reaction keeps the role
	ModeVerify Mode = "verify"
)

func ParseMode(s string) (Mode, bool) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeNormal, ModeUnique, ModeVerify:
		return m, true
	}
	return "", false
}

// MaxOptions is the reaction limit of a discord message
const MaxOptions = 20

type Option struct {
	// Emoji is in the api format, the plain character or name:id for custom ones
	Emoji     string `json:"emoji"`
	EmojiName string `json:"emoji_name"`
	RoleID    string `json:"role_id"`
}

type Menu struct {
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id"`
	MessageID string    `json:"message_id"`
	Title     string    `json:"title"`
	Mode      Mode      `json:"mode"`
	Options   []*Option `json:"options"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func KeyMenu(guildID, messageID string) string {
	return store.Key("reactionroles", guildID, messageID)
}

// Copy returns a deep copy, panels work on copies so nothing changes until they're saved
func (m *Menu) Copy() *Menu {
	cop := *m
	cop.Options = make([]*Option, len(m.Options))
	for i, v := range m.Options {
		o := *v
		cop.Options[i] = &o
	}
	return &cop
}

// FindOption returns the option for the reaction emoji, custom emojis are matched by id
func (m *Menu) FindOption(emoji *discordgo.Emoji) *Option {
	for _, v := range m.Options {
		if emoji.ID != "" {
			if strings.HasSuffix(v.Emoji, ":"+emoji.ID) {
				return v
			}
			continue
		}

		if v.Emoji == emoji.Name {
			return v
		}
	}
	return nil
}

func (m *Menu) findRoleOption(roleID string) *Option {
	for _, v := range m.Options {
		if v.RoleID == roleID {
			return v
		}
	}
	return nil
}

func (m *Menu) removeOption(opt *Option) {
	for i, v := range m.Options {
		if v == opt {
			m.Options = append(m.Options[:i], m.Options[i+1:]...)
			return
		}
	}
}

// menuCache holds menus by message id, messages without a menu are cached as nil
var menuCache = ccache.New(ccache.Configure().MaxSize(5000))

func fetchMenu(guildID, messageID string) (*Menu, error) {
	var menu Menu
	err := common.Store.Get(KeyMenu(guildID, messageID), &menu)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &menu, nil
}

// GetMenu returns the menu on the message, or nil if there's none
func GetMenu(guildID, messageID string) (*Menu, error) {
	item, err := menuCache.Fetch(KeyMenu(guildID, messageID), time.Minute*10, func() (interface{}, error) {
		return fetchMenu(guildID, messageID)
	})
	if err != nil {
		return nil, err
	}

	menu := item.Value().(*Menu)
	if menu == nil {
		return nil, nil
	}
	return menu.Copy(), nil
}

func SaveMenu(menu *Menu) error {
	key := KeyMenu(menu.GuildID, menu.MessageID)
	err := common.Store.Put(key, menu, 0)
	menuCache.Delete(key)
	return err
}

func DeleteMenu(guildID, messageID string) error {
	key := KeyMenu(guildID, messageID)
	menuCache.Delete(key)

	err := common.Store.Delete(key)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// ListMenus returns the menus of a guild, oldest first
func ListMenus(guildID string) ([]*Menu, error) {
	var menus []*Menu
	err := common.Store.Ascend(store.Key("reactionroles", guildID, "*"), func(key, raw string) bool {
		var m Menu
		if err := store.Decode(raw, &m); err != nil {
			logger.WithError(err).WithField("key", key).Error("Failed decoding menu")
			return true
		}
		menus = append(menus, &m)
		return true
	})

	sortMenus(menus)
	return menus, err
}

func (p *Plugin) RemoveGuildData(guildID string) error {
	menus, err := ListMenus(guildID)
	if err != nil {
		return err
	}
	for _, m := range menus {
		menuCache.Delete(KeyMenu(guildID, m.MessageID))
	}

	_, err = common.Store.DeletePattern(store.Key("reactionroles", guildID, "*"))
	return err
}
