package decision

import (
	"sync/atomic"
)

type state int32

const (
	stateOpen state = iota
	stateDispatched
	stateClosed
)

// reactionBuffer 收集器通道容量，满时丢弃多余反应
const reactionBuffer = 32

// Collector 单个审核提示的状态机：OPEN -> DISPATCHED -> CLOSED 或 OPEN -> CLOSED。
// 只有一个 goroutine 消费 reactions，因此最多派发一次。
type Collector struct {
	ID        string
	GuildID   string
	UserID    string
	Username  string
	Reason    string
	ChannelID string
	MessageID string

	reactions chan Reaction
	state     atomic.Int32
	done      chan struct{}
}

func newCollector(id, guildID, userID, username, reason, channelID string) *Collector {
	return &Collector{
		ID:        id,
		GuildID:   guildID,
		UserID:    userID,
		Username:  username,
		Reason:    reason,
		ChannelID: channelID,
		reactions: make(chan Reaction, reactionBuffer),
		done:      make(chan struct{}),
	}
}

func (c *Collector) current() state {
	return state(c.state.Load())
}

// offer 把反应交给收集器，关闭后或缓冲区满时返回 false
func (c *Collector) offer(r Reaction) bool {
	if c.current() != stateOpen {
		return false
	}
	select {
	case c.reactions <- r:
		return true
	default:
		return false
	}
}

// Done 在收集器关闭后被关闭
func (c *Collector) Done() <-chan struct{} {
	return c.done
}
