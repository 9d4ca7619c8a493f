package moderation

import (
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/karlseguin/ccache"
	"github.com/yuzubot/yuzu/commands"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/common/store"
)

// Config is the moderation settings of a guild
type Config struct {
	GuildID string `json:"guild_id"`

	ModLogChannel           string `json:"mod_log_channel"`
	MuteRole                string `json:"mute_role"`
	DefaultMuteDuration     int    `json:"default_mute_duration_minutes"`
	DMOnPunish              bool   `json:"dm_on_punish"`
	DeleteWarningsAfterDays int    `json:"delete_warnings_after_days"`
	WarnIncludeChannelLogs  bool   `json:"warn_include_channel_logs"`

	KickMessage string `json:"kick_message"`
	BanMessage  string `json:"ban_message"`
	MuteMessage string `json:"mute_message"`
}

func DefaultConfig(guildID string) *Config {
	return &Config{
		GuildID:             guildID,
		DefaultMuteDuration: 10,
		DMOnPunish:          true,
	}
}

func KeyConfig(guildID string) string { return store.Key("config", guildID) }

var configCache = ccache.New(ccache.Configure().MaxSize(1000))

// FetchConfig reads the config from the store, a guild without one gets the defaults
func FetchConfig(guildID string) (*Config, error) {
	conf := DefaultConfig(guildID)
	err := common.Store.Get(KeyConfig(guildID), conf)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	conf.GuildID = guildID
	return conf, nil
}

// GetConfig returns a copy of the cached config
func GetConfig(guildID string) (*Config, error) {
	item, err := configCache.Fetch(KeyConfig(guildID), time.Minute*10, func() (interface{}, error) {
		return FetchConfig(guildID)
	})
	if err != nil {
		return nil, err
	}

	cop := *item.Value().(*Config)
	return &cop, nil
}

func SaveConfig(config *Config) error {
	err := common.Store.Put(KeyConfig(config.GuildID), config, 0)
	configCache.Delete(KeyConfig(config.GuildID))
	return err
}

type configField struct {
	Name string
	Help string
	Get  func(c *Config) string
	Set  func(c *Config, value string, guild *discordgo.Guild) error
}

var configFields = []*configField{
	{
		Name: "mod_log_channel",
		Help: "Channel mod actions are logged in, `none` to disable",
		Get:  func(c *Config) string { return channelOrNone(c.ModLogChannel) },
		Set: func(c *Config, value string, guild *discordgo.Guild) error {
			id, err := findChannel(guild, value)
			if err != nil {
				return err
			}
			c.ModLogChannel = id
			return nil
		},
	},
	{
		Name: "mute_role",
		Help: "Role given to muted members, `none` to disable mutes",
		Get: func(c *Config) string {
			if c.MuteRole == "" {
				return "none"
			}
			return "<@&" + c.MuteRole + ">"
		},
		Set: func(c *Config, value string, guild *discordgo.Guild) error {
			id, err := findRole(guild, value)
			if err != nil {
				return err
			}
			c.MuteRole = id
			return nil
		},
	},
	{
		Name: "default_mute_duration",
		Help: "Mute duration when none is given, 0 mutes until unmuted",
		Get: func(c *Config) string {
			if c.DefaultMuteDuration <= 0 {
				return "permanent"
			}
			return common.HumanizeDuration(common.DurationPrecisionMinutes, time.Duration(c.DefaultMuteDuration)*time.Minute)
		},
		Set: func(c *Config, value string, guild *discordgo.Guild) error {
			if value == "0" {
				c.DefaultMuteDuration = 0
				return nil
			}

			d, err := common.ParseDuration(value)
			if err != nil || d < time.Minute {
				return commands.NewPublicError("Invalid duration, use something like `30m` or `0` for permanent")
			}
			c.DefaultMuteDuration = int(d.Minutes())
			return nil
		},
	},
	{
		Name: "dm_on_punish",
		Help: "DM users before they're punished",
		Get:  func(c *Config) string { return strconv.FormatBool(c.DMOnPunish) },
		Set: func(c *Config, value string, guild *discordgo.Guild) error {
			b, err := parseBool(value)
			if err != nil {
				return err
			}
			c.DMOnPunish = b
			return nil
		},
	},
	{
		Name: "delete_warnings_after_days",
		Help: "Warnings older than this are removed, 0 keeps them forever",
		Get:  func(c *Config) string { return strconv.Itoa(c.DeleteWarningsAfterDays) },
		Set: func(c *Config, value string, guild *discordgo.Guild) error {
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 || n > 3650 {
				return commands.NewPublicError("Has to be a number of days between 0 and 3650")
			}
			c.DeleteWarningsAfterDays = n
			return nil
		},
	},
	{
		Name: "warn_include_channel_logs",
		Help: "Link the warn command message in warnings and the mod log",
		Get:  func(c *Config) string { return strconv.FormatBool(c.WarnIncludeChannelLogs) },
		Set: func(c *Config, value string, guild *discordgo.Guild) error {
			b, err := parseBool(value)
			if err != nil {
				return err
			}
			c.WarnIncludeChannelLogs = b
			return nil
		},
	},
	messageField("kick_message", "DM sent to kicked users", func(c *Config) *string { return &c.KickMessage }),
	messageField("ban_message", "DM sent to banned users", func(c *Config) *string { return &c.BanMessage }),
	messageField("mute_message", "DM sent to muted users", func(c *Config) *string { return &c.MuteMessage }),
}

func messageField(name, help string, field func(c *Config) *string) *configField {
	return &configField{
		Name: name,
		Help: help + ", `default` resets it. Supports {{.Reason}}, {{.HumanDuration}}, {{.Author}}, {{.GuildName}} and {{.ModAction}}",
		Get: func(c *Config) string {
			if *field(c) == "" {
				return "default"
			}
			return "```\n" + *field(c) + "\n```"
		},
		Set: func(c *Config, value string, guild *discordgo.Guild) error {
			if strings.EqualFold(value, "default") {
				*field(c) = ""
				return nil
			}

			if _, err := parseDMTemplate(value); err != nil {
				return commands.NewPublicError("Invalid template: ", err)
			}
			*field(c) = value
			return nil
		},
	}
}

func findConfigField(name string) *configField {
	for _, v := range configFields {
		if strings.EqualFold(v.Name, name) {
			return v
		}
	}
	return nil
}

func channelOrNone(id string) string {
	if id == "" {
		return "none"
	}
	return "<#" + id + ">"
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "true", "yes", "on", "1", "enable", "enabled":
		return true, nil
	case "false", "no", "off", "0", "disable", "disabled":
		return false, nil
	}
	return false, commands.NewPublicError("Expected true or false")
}

func trimMention(value, prefix string) string {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, prefix) && strings.HasSuffix(value, ">") {
		return value[len(prefix) : len(value)-1]
	}
	return value
}

func findChannel(guild *discordgo.Guild, value string) (string, error) {
	if strings.EqualFold(value, "none") {
		return "", nil
	}

	id := trimMention(value, "<#")
	for _, c := range guild.Channels {
		if c.ID == id || strings.EqualFold(c.Name, strings.TrimPrefix(value, "#")) {
			return c.ID, nil
		}
	}
	return "", commands.NewPublicError("Unknown channel")
}

func findRole(guild *discordgo.Guild, value string) (string, error) {
	if strings.EqualFold(value, "none") {
		return "", nil
	}

	id := trimMention(value, "<@&")
	for _, r := range guild.Roles {
		if r.ID == id || strings.EqualFold(r.Name, value) {
			return r.ID, nil
		}
	}
	return "", commands.NewPublicError("Unknown role")
}

// RemoveGuildData drops the config and warnings of a guild
func (p *Plugin) RemoveGuildData(guildID string) error {
	configCache.Delete(KeyConfig(guildID))

	err := common.Store.Delete(KeyConfig(guildID))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if _, err = common.Store.DeletePattern(KeyWarnings(guildID, "*")); err != nil {
		return err
	}

	_, err = common.Store.DeletePattern(KeyMute(guildID, "*"))
	return err
}
