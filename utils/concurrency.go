package utils

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemberLocks hands out one mutex per guild member so the event path, the
// reconciliation loop and decision dispatch never act on the same member at once.
// TODO: entries are never evicted; prune members without records once guilds get large.
type MemberLocks struct {
	locks *xsync.MapOf[string, *sync.Mutex]
}

func NewMemberLocks() *MemberLocks {
	return &MemberLocks{locks: xsync.NewMapOf[string, *sync.Mutex]()}
}

// Lock blocks until the member's lock is held and returns its release func.
func (l *MemberLocks) Lock(guildID, userID string) func() {
	mu, _ := l.locks.LoadOrCompute(guildID+"/"+userID, func() *sync.Mutex {
		return &sync.Mutex{}
	})
	mu.Lock()
	return mu.Unlock
}
