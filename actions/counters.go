package actions

import (
	"emperror.dev/errors"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/common/store"
)

// Counters is the per guild and user tally of actions
type Counters struct {
	Received map[string]int `json:"received"`
	Given    map[string]int `json:"given"`
}

func KeyCounters(guildID, userID string) string {
	return store.Key("actions", guildID, userID)
}

// GetCounters returns the counters of the user, empty when they have none
func GetCounters(guildID, userID string) (*Counters, error) {
	c := &Counters{}
	err := common.Store.Get(KeyCounters(guildID, userID), c)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if c.Received == nil {
		c.Received = make(map[string]int)
	}
	if c.Given == nil {
		c.Given = make(map[string]int)
	}
	return c, nil
}

// IncrCounters records that author did action to target and returns the new received count of target
func IncrCounters(guildID, authorID, targetID, action string) (int, error) {
	var received int
	var target Counters
	err := common.Store.Mutate(KeyCounters(guildID, targetID), &target, func(found bool) error {
		if target.Received == nil {
			target.Received = make(map[string]int)
		}
		target.Received[action]++
		received = target.Received[action]
		return nil
	})
	if err != nil {
		return 0, err
	}

	var author Counters
	err = common.Store.Mutate(KeyCounters(guildID, authorID), &author, func(found bool) error {
		if author.Given == nil {
			author.Given = make(map[string]int)
		}
		author.Given[action]++
		return nil
	})

	return received, err
}
