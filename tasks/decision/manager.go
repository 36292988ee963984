package decision

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"namewatch/model"
	"namewatch/platform"
	"namewatch/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// Manager 管理所有打开的审核收集器
type Manager struct {
	base     context.Context
	plat     platform.Platform
	cfg      model.GuardConfig
	dispatch Dispatcher

	byMessage *xsync.MapOf[string, *Collector] // key: 提示消息ID
	byMember  *xsync.MapOf[string, *Collector] // key: guildID/userID
	wg        sync.WaitGroup
}

// NewManager 创建管理器。base 结束时所有收集器关闭且不执行任何动作。
func NewManager(base context.Context, plat platform.Platform, cfg model.GuardConfig, dispatch Dispatcher) *Manager {
	return &Manager{
		base:      base,
		plat:      plat,
		cfg:       cfg,
		dispatch:  dispatch,
		byMessage: xsync.NewMapOf[string, *Collector](),
		byMember:  xsync.NewMapOf[string, *Collector](),
	}
}

func memberKey(guildID, userID string) string {
	return guildID + "/" + userID
}

// Open 为成员发布审核提示并开始收集。该成员已有打开的收集器时什么也不做。
func (m *Manager) Open(ctx context.Context, member *discordgo.Member, reason string) error {
	guildID := m.cfg.GuildID
	key := memberKey(guildID, member.User.ID)

	c, loaded := m.byMember.LoadOrCompute(key, func() *Collector {
		return newCollector(uuid.NewString(), guildID, member.User.ID, member.User.Username, reason, m.cfg.ReviewChannelID)
	})
	if loaded {
		log.Printf("[Decision] Review for user %s already open (collector %s), skipping", member.User.ID, c.ID)
		return nil
	}

	msg, err := m.plat.SendPrompt(ctx, c.ChannelID, promptEmbed(member, reason), Emojis())
	if msg == nil {
		m.byMember.Delete(key)
		return fmt.Errorf("posting review prompt for user %s: %w", member.User.ID, err)
	}
	if err != nil {
		// 提示已发出，审核员仍可手动添加反应
		log.Printf("[Decision] Review prompt %s posted with missing reactions: %v", msg.ID, err)
	}

	c.MessageID = msg.ID
	m.byMessage.Store(msg.ID, c)
	collectorsOpen.Inc()
	log.Printf("[Decision] Opened collector %s for user %s (prompt %s)", c.ID, c.UserID, c.MessageID)

	m.wg.Add(1)
	go m.run(c)
	return nil
}

// HandleReaction 把反应路由到对应的收集器，返回是否被接收（不代表会被采纳）
func (m *Manager) HandleReaction(r Reaction) bool {
	c, ok := m.byMessage.Load(r.MessageID)
	if !ok {
		return false
	}
	return c.offer(r)
}

// Active 报告成员当前是否有打开的收集器
func (m *Manager) Active(guildID, userID string) bool {
	_, ok := m.byMember.Load(memberKey(guildID, userID))
	return ok
}

// Len 返回打开的收集器数量
func (m *Manager) Len() int {
	return m.byMessage.Size()
}

// Wait 等待所有收集器结束
func (m *Manager) Wait() {
	m.wg.Wait()
}

// accept 判断反应是否有效：非机器人、授权审核员、选项表情
func (m *Manager) accept(r Reaction) (Action, bool) {
	if r.UserID == "" || r.UserID == m.plat.BotUserID() {
		return ActionNone, false
	}
	action, ok := ActionFor(r.Emoji)
	if !ok {
		return ActionNone, false
	}
	if !utils.IsModerator(r.Member, m.cfg.ModeratorRoleIDs) {
		log.Printf("[Decision] Ignoring reaction %s from unauthorized user %s", r.Emoji, r.UserID)
		return ActionNone, false
	}
	return action, true
}

func (m *Manager) run(c *Collector) {
	defer m.wg.Done()

	timer := time.NewTimer(m.cfg.DecisionWindow)
	defer timer.Stop()

	for {
		select {
		case <-m.base.Done():
			m.close(c, "shutdown")
			return
		case <-timer.C:
			log.Printf("[Decision] Collector %s for user %s timed out", c.ID, c.UserID)
			m.close(c, "timeout")
			return
		case r := <-c.reactions:
			action, ok := m.accept(r)
			if !ok {
				continue
			}
			if action == ActionAbort {
				log.Printf("[Decision] Collector %s aborted by %s", c.ID, r.UserID)
				m.close(c, "abort")
				return
			}

			c.state.Store(int32(stateDispatched))
			d := Decision{
				Action:   action,
				GuildID:  c.GuildID,
				UserID:   c.UserID,
				Username: c.Username,
				Reason:   c.Reason,
				Actor:    r.Member,
			}
			log.Printf("[Decision] Collector %s dispatching %s by %s", c.ID, action, r.UserID)
			outcome := action.String()
			if err := m.dispatch(m.base, d); err != nil {
				log.Printf("[Decision] Dispatch of %s for user %s failed: %v", action, c.UserID, err)
				outcome = "dispatch_error"
			}
			m.close(c, outcome)
			return
		}
	}
}

// close 进入 CLOSED，注销并撤回提示消息
func (m *Manager) close(c *Collector, outcome string) {
	c.state.Store(int32(stateClosed))
	m.byMessage.Delete(c.MessageID)
	m.byMember.Delete(memberKey(c.GuildID, c.UserID))
	collectorsOpen.Dec()
	collectorOutcomes.WithLabelValues(outcome).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.plat.DeleteMessage(ctx, c.ChannelID, c.MessageID); err != nil {
		log.Printf("[Decision] Failed to delete prompt %s: %v", c.MessageID, err)
	}
	close(c.done)
}
