package commands

import (
	"time"

	"emperror.dev/errors"
	"github.com/patrickmn/go-cache"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/common/store"
)

const MaxPrefixLength = 10

var prefixCache = cache.New(10*time.Minute, 15*time.Minute)

func KeyCommandPrefix(guildID string) string { return store.Key("prefix", guildID) }

type prefixDoc struct {
	Prefix string `json:"prefix"`
}

func DefaultCommandPrefix() string {
	return common.ConfDefaultPfx.GetString()
}

// GetCommandPrefix returns the prefix of the guild, falling back to the default one
func GetCommandPrefix(guildID string) (string, error) {
	if v, ok := prefixCache.Get(guildID); ok {
		return v.(string), nil
	}

	var doc prefixDoc
	err := common.Store.Get(KeyCommandPrefix(guildID), &doc)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	prefix := doc.Prefix
	if prefix == "" {
		prefix = DefaultCommandPrefix()
	}

	prefixCache.SetDefault(guildID, prefix)
	return prefix, nil
}

// SetCommandPrefix changes the prefix of the guild, setting it to the default removes the override
func SetCommandPrefix(guildID, prefix string) error {
	if prefix == "" || len(prefix) > MaxPrefixLength {
		return NewPublicErrorF("The prefix has to be between 1 and %d characters long", MaxPrefixLength)
	}

	var err error
	if prefix == DefaultCommandPrefix() {
		err = common.Store.Delete(KeyCommandPrefix(guildID))
		if errors.Is(err, store.ErrNotFound) {
			err = nil
		}
	} else {
		err = common.Store.Put(KeyCommandPrefix(guildID), &prefixDoc{Prefix: prefix}, 0)
	}

	if err != nil {
		return errors.WithMessage(err, "set prefix")
	}

	prefixCache.Delete(guildID)
	return nil
}

var _ common.GuildDataRemover = (*Plugin)(nil)

func (p *Plugin) RemoveGuildData(guildID string) error {
	prefixCache.Delete(guildID)
	err := common.Store.Delete(KeyCommandPrefix(guildID))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}
