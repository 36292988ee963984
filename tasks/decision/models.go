package decision

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Action 审核提示上可选的处理动作
type Action int

const (
	ActionNone Action = iota
	ActionMute
	ActionKick
	ActionBan7
	ActionBan15
	ActionBan30
	ActionPermaban
	ActionAbort
)

func (a Action) String() string {
	switch a {
	case ActionMute:
		return "mute"
	case ActionKick:
		return "kick"
	case ActionBan7:
		return "ban_7d"
	case ActionBan15:
		return "ban_15d"
	case ActionBan30:
		return "ban_30d"
	case ActionPermaban:
		return "permaban"
	case ActionAbort:
		return "abort"
	default:
		return "none"
	}
}

// BanDays 返回封禁天数，0 表示永久封禁；非封禁动作返回 -1
func (a Action) BanDays() int {
	switch a {
	case ActionBan7:
		return 7
	case ActionBan15:
		return 15
	case ActionBan30:
		return 30
	case ActionPermaban:
		return 0
	default:
		return -1
	}
}

// option 一个表情对应一个动作，顺序即提示消息上的反应顺序
type option struct {
	Emoji  string
	Action Action
	Label  string
}

var options = []option{
	{"🔇", ActionMute, "Mute user:"},
	{"👢", ActionKick, "Kick user:"},
	{"1⃣", ActionBan7, "Tempban user for 7 days:"},
	{"2⃣", ActionBan15, "Tempban user for 15 days:"},
	{"3⃣", ActionBan30, "Tempban user for 30 days:"},
	{"🔨", ActionPermaban, "Permaban the user:"},
	{"❌", ActionAbort, "Abort action:"},
}

// Emojis 返回所有选项表情
func Emojis() []string {
	out := make([]string, 0, len(options))
	for _, o := range options {
		out = append(out, o.Emoji)
	}
	return out
}

const variationSelector = "\uFE0F"

// ActionFor 把反应表情映射为动作。客户端可能附带 U+FE0F 变体选择符，比较前去掉。
func ActionFor(emoji string) (Action, bool) {
	emoji = strings.ReplaceAll(emoji, variationSelector, "")
	for _, o := range options {
		if strings.ReplaceAll(o.Emoji, variationSelector, "") == emoji {
			return o.Action, true
		}
	}
	return ActionNone, false
}

// Reaction 收集器收到的一次反应
type Reaction struct {
	MessageID string
	UserID    string
	Emoji     string
	Member    *discordgo.Member // 反应者，私信中为 nil
}

// Decision 审核员做出的决定，交给 Dispatcher 执行
type Decision struct {
	Action   Action
	GuildID  string
	UserID   string
	Username string
	Reason   string
	Actor    *discordgo.Member
}

// Dispatcher 执行一个决定
type Dispatcher func(ctx context.Context, d Decision) error
