package commands

import (
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/mediocregopher/radix/v3"
	"github.com/patrickmn/go-cache"
	"github.com/yuzubot/yuzu/lib/dcmd"
)

// CooldownStore keeps command cooldowns
type CooldownStore interface {
	// TTL returns how much is left of the cooldown at key, 0 if there is none
	TTL(key string) (time.Duration, error)
	Set(key string, d time.Duration) error
}

// Cooldowns is where cooldowns are kept, swapped for a redis backed one when redis is configured
var Cooldowns CooldownStore = NewMemoryCooldowns()

func KeyCommandCooldown(userID, cmd string) string { return "cmd_cd:" + userID + ":" + cmd }
func KeyCommandCooldownGuild(guildID, cmd string) string {
	return "cmd_guild_cd:" + guildID + ":" + cmd
}

type memoryCooldowns struct {
	c *cache.Cache
}

func NewMemoryCooldowns() CooldownStore {
	return &memoryCooldowns{c: cache.New(time.Minute, 5*time.Minute)}
}

func (m *memoryCooldowns) TTL(key string) (time.Duration, error) {
	_, expires, ok := m.c.GetWithExpiration(key)
	if !ok {
		return 0, nil
	}

	left := time.Until(expires)
	if left < 0 {
		return 0, nil
	}
	return left, nil
}

func (m *memoryCooldowns) Set(key string, d time.Duration) error {
	m.c.Set(key, time.Now().Unix(), d)
	return nil
}

type redisCooldowns struct {
	pool radix.Client
}

// NewRedisCooldowns shares cooldowns between bot processes through redis
func NewRedisCooldowns(pool radix.Client) CooldownStore {
	return &redisCooldowns{pool: pool}
}

func (r *redisCooldowns) TTL(key string) (time.Duration, error) {
	var ttl int
	err := r.pool.Do(radix.Cmd(&ttl, "TTL", key))
	if err != nil {
		return 0, errors.WithStackIf(err)
	}

	// -2 for missing keys, -1 for keys without an expiry
	if ttl < 0 {
		return 0, nil
	}

	return time.Duration(ttl) * time.Second, nil
}

func (r *redisCooldowns) Set(key string, d time.Duration) error {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}

	err := r.pool.Do(radix.FlatCmd(nil, "SET", key, strconv.FormatInt(time.Now().Unix(), 10), "EX", secs))
	return errors.WithStackIf(err)
}

// LongestCooldownLeft returns the longest cooldown for this command, either user scoped or guild scoped
func (yc *YuzuCommand) LongestCooldownLeft(cc []*dcmd.Container, userID, guildID string) (time.Duration, error) {
	var cdUser, cdGuild time.Duration
	var err error

	name := yc.FindNameFromContainerChain(cc)
	if yc.Cooldown > 0 {
		cdUser, err = Cooldowns.TTL(KeyCommandCooldown(userID, name))
		if err != nil {
			return 0, err
		}
	}

	if yc.GuildScopeCooldown > 0 && guildID != "" {
		cdGuild, err = Cooldowns.TTL(KeyCommandCooldownGuild(guildID, name))
		if err != nil {
			return 0, err
		}
	}

	if cdUser > cdGuild {
		return cdUser, nil
	}

	return cdGuild, nil
}

// SetCooldowns sets both the user and the guild scoped cooldowns as defined on the command
func (yc *YuzuCommand) SetCooldowns(cc []*dcmd.Container, userID, guildID string) error {
	name := yc.FindNameFromContainerChain(cc)
	if yc.Cooldown > 0 {
		if err := Cooldowns.Set(KeyCommandCooldown(userID, name), time.Duration(yc.Cooldown)*time.Second); err != nil {
			return err
		}
	}

	if yc.GuildScopeCooldown > 0 && guildID != "" {
		if err := Cooldowns.Set(KeyCommandCooldownGuild(guildID, name), time.Duration(yc.GuildScopeCooldown)*time.Second); err != nil {
			return err
		}
	}

	return nil
}
