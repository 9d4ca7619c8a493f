package moderation

import (
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/common/store"
)

type Warning struct {
	ID          int64     `json:"id"`
	AuthorID    string    `json:"author_id"`
	AuthorName  string    `json:"author_name"`
	Reason      string    `json:"reason"`
	MessageLink string    `json:"message_link"`
	CreatedAt   time.Time `json:"created_at"`
}

func KeyWarnings(guildID, userID string) string { return store.Key("warnings", guildID, userID) }

func pruneWarnings(warnings []*Warning, maxAgeDays int) []*Warning {
	if maxAgeDays <= 0 {
		return warnings
	}

	cutoff := time.Now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	kept := warnings[:0]
	for _, w := range warnings {
		if w.CreatedAt.After(cutoff) {
			kept = append(kept, w)
		}
	}
	return kept
}

// GetWarnings returns the warnings of a user, oldest first
func GetWarnings(guildID, userID string, maxAgeDays int) ([]*Warning, error) {
	var warnings []*Warning
	err := common.Store.Get(KeyWarnings(guildID, userID), &warnings)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	return pruneWarnings(warnings, maxAgeDays), nil
}

// AddWarning assigns the warning an id and appends it to the user's list
func AddWarning(guildID, userID string, w *Warning, maxAgeDays int) error {
	id, err := common.Store.NextID("warnings")
	if err != nil {
		return err
	}
	w.ID = id

	var warnings []*Warning
	return common.Store.Mutate(KeyWarnings(guildID, userID), &warnings, func(found bool) error {
		warnings = append(pruneWarnings(warnings, maxAgeDays), w)
		return nil
	})
}

// DeleteWarnings removes the warnings with the given ids from a user, returning how many were removed.
// The list is deleted when it ends up empty.
func DeleteWarnings(guildID, userID string, ids []int64) (int, error) {
	removed := 0
	var warnings []*Warning
	err := common.Store.Mutate(KeyWarnings(guildID, userID), &warnings, func(found bool) error {
		if !found {
			return store.ErrSkipWrite
		}

		kept := warnings[:0]
		for _, w := range warnings {
			if containsID(ids, w.ID) {
				removed++
				continue
			}
			kept = append(kept, w)
		}
		warnings = kept

		switch {
		case removed == 0:
			return store.ErrSkipWrite
		case len(warnings) == 0:
			return store.ErrDelete
		}
		return nil
	})

	return removed, err
}

// ClearWarnings removes every warning of a user
func ClearWarnings(guildID, userID string) (int, error) {
	warnings, err := GetWarnings(guildID, userID, 0)
	if err != nil || len(warnings) == 0 {
		return 0, err
	}

	err = common.Store.Delete(KeyWarnings(guildID, userID))
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	return len(warnings), err
}

// FindWarning looks up a warning by id in the whole guild
func FindWarning(guildID string, id int64) (userID string, warning *Warning, err error) {
	prefix := KeyWarnings(guildID, "")
	err = common.Store.Ascend(KeyWarnings(guildID, "*"), func(key, raw string) bool {
		var warnings []*Warning
		if store.Decode(raw, &warnings) != nil {
			return true
		}

		for _, w := range warnings {
			if w.ID == id {
				userID = strings.TrimPrefix(key, prefix)
				warning = w
				return false
			}
		}
		return true
	})

	return
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
