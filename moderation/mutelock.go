package moderation

import (
	"time"

	"github.com/yuzubot/yuzu/commands"
	"github.com/yuzubot/yuzu/common/keylock"
)

// muteLocks serializes mute changes of a single member
var muteLocks = keylock.NewKeyLock[string]()

var errMuteBusy = commands.NewPublicError("That member's mute is being changed already, try again in a bit")

func muteLockKey(guildID, userID string) string {
	return guildID + ":" + userID
}

// LockMute blocks until the mute of the member can be changed, or returns errMuteBusy after timeout
func LockMute(guildID, userID string, timeout time.Duration) (unlock func(), err error) {
	key := muteLockKey(guildID, userID)
	handle := muteLocks.Lock(key, timeout, time.Second*30)
	if handle == -1 {
		return nil, errMuteBusy
	}

	return func() { muteLocks.Unlock(key, handle) }, nil
}
