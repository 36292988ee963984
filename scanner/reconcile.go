// Package scanner periodically audits stored punishments against the platform and
// repairs any drift between the two.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"namewatch/enforce"
	"namewatch/model"
	"namewatch/platform"
	"namewatch/utils"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	maxRecordConcurrency = 8  // 每轮同时处理的记录数
	platformCallsPerSec  = 20 // 对平台接口的调用速率上限
)

// Reconciler runs the mute and ban passes on a fixed period.
type Reconciler struct {
	guard *enforce.Guard
	store enforce.Store
	plat  platform.Platform
	cfg   model.GuardConfig

	logChannelID string
	limiter      *rate.Limiter
	now          func() time.Time

	mutedRunning  atomic.Bool
	bannedRunning atomic.Bool
	wg            sync.WaitGroup
}

func NewReconciler(guard *enforce.Guard, store enforce.Store, plat platform.Platform, cfg model.GuardConfig, logChannelID string) *Reconciler {
	return &Reconciler{
		guard:        guard,
		store:        store,
		plat:         plat,
		cfg:          cfg,
		logChannelID: logChannelID,
		limiter:      rate.NewLimiter(rate.Limit(platformCallsPerSec), platformCallsPerSec),
		now:          time.Now,
	}
}

// Start ticks until ctx is done, then waits for in-flight passes to finish.
func (r *Reconciler) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.CheckInterval)
	defer ticker.Stop()
	log.Printf("[Reconcile] Started, checking every %s", r.cfg.CheckInterval)

	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			log.Println("[Reconcile] Stopped")
			return nil
		case <-ticker.C:
			r.runPass(ctx, &r.mutedRunning, "muted", r.ReconcileMuted)
			r.runPass(ctx, &r.bannedRunning, "banned", r.ReconcileBanned)
		}
	}
}

// runPass starts pass in the background unless the previous run of it is still going.
func (r *Reconciler) runPass(ctx context.Context, running *atomic.Bool, name string, pass func(context.Context) error) {
	if !running.CompareAndSwap(false, true) {
		passSkipped.WithLabelValues(name).Inc()
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer running.Store(false)

		start := time.Now()
		if err := pass(ctx); err != nil && ctx.Err() == nil {
			utils.LogError(r.plat, r.logChannelID, "Reconcile", name+" pass", err.Error())
		}
		passDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()
}

// fanOut runs fn for every record with bounded concurrency. A failed record is
// logged and left for the next tick; it never stops the others.
func fanOut[T any](ctx context.Context, name string, records []T, id func(T) string, fn func(context.Context, T) error) {
	var g errgroup.Group
	g.SetLimit(maxRecordConcurrency)
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			if err := fn(ctx, rec); err != nil && ctx.Err() == nil {
				recordFailures.WithLabelValues(name).Inc()
				log.Printf("[Reconcile] %s record of %s failed: %v", name, id(rec), err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// ReconcileMuted audits every active mute.
func (r *Reconciler) ReconcileMuted(ctx context.Context) error {
	recs, err := r.store.ListActiveMuted(ctx, r.cfg.GuildID)
	if err != nil {
		return fmt.Errorf("listing active mutes: %w", err)
	}
	fanOut(ctx, "muted", recs, func(rec model.MutedRecord) string { return rec.UserID }, r.reconcileMuted)
	return nil
}

func (r *Reconciler) reconcileMuted(ctx context.Context, listed model.MutedRecord) error {
	unlock := r.guard.Locks().Lock(r.cfg.GuildID, listed.UserID)
	defer unlock()

	// 加锁后重新读取，记录可能已被事件处理改变
	rec, err := r.store.ActiveMuted(ctx, r.cfg.GuildID, listed.UserID)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if rec.ID != listed.ID {
		return nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	enf := r.guard.Enforcer()
	m, err := r.plat.Member(ctx, r.cfg.GuildID, rec.UserID)
	if errors.Is(err, platform.ErrNotFound) {
		log.Printf("[Reconcile] %s is no longer in the guild, closing case %s", rec.UserID, rec.CaseID)
		return enf.Retire(ctx, rec, true)
	}
	if err != nil {
		return err
	}

	switch {
	case !platform.HasRoles(m, r.cfg.MuteRoleIDs()...):
		return enf.RetireMutedExternally(ctx, m.User, rec)
	case rec.KickDue(r.now(), r.cfg.KickGrace):
		// 踢出失败时记录保持有效，下一轮重试
		if err := enf.Kick(ctx, m, rec.Reason, nil); err != nil {
			return err
		}
		return enf.Retire(ctx, rec, true)
	case platform.Username(m) != rec.Username:
		return r.guard.Evaluate(ctx, m, model.ReconciliationTick{})
	}
	return nil
}

// ReconcileBanned lifts every temporary ban whose time is up.
func (r *Reconciler) ReconcileBanned(ctx context.Context) error {
	recs, err := r.store.ListExpiredBanned(ctx, r.cfg.GuildID, r.now())
	if err != nil {
		return fmt.Errorf("listing expired bans: %w", err)
	}
	fanOut(ctx, "banned", recs, func(rec model.BannedRecord) string { return rec.UserID }, r.reconcileBanned)
	return nil
}

func (r *Reconciler) reconcileBanned(ctx context.Context, listed model.BannedRecord) error {
	unlock := r.guard.Locks().Lock(r.cfg.GuildID, listed.UserID)
	defer unlock()

	rec, err := r.store.ActiveBanned(ctx, r.cfg.GuildID, listed.UserID)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if rec.ID != listed.ID || !rec.Expired(r.now()) {
		return nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	u := &discordgo.User{ID: rec.UserID, Username: rec.Username}
	enf := r.guard.Enforcer()
	if _, err := r.plat.BanEntry(ctx, r.cfg.GuildID, rec.UserID); err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return enf.RetireBanExternally(ctx, u, rec)
		}
		return err
	}
	return enf.Unban(ctx, u, rec, true, nil)
}
