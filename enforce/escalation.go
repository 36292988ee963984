package enforce

import (
	"context"
	"errors"
	"fmt"
	"log"

	"namewatch/model"
	"namewatch/platform"
	"namewatch/utils"

	"github.com/bwmarrin/discordgo"
)

// BanDaysForStrikes is the ban length, in days, for a member with n strikes.
func BanDaysForStrikes(strikes int) int {
	return strikes * 30
}

// checkRejoin handles a member coming back after a kick-timer mute. Rejoining under the
// same offending username bans for the strikes collected so far; a different name only
// clears the timer. It reports whether the member was banned.
func (g *Guard) checkRejoin(ctx context.Context, m *discordgo.Member) (bool, error) {
	if utils.IsPrivileged(m, g.cfg.PrivilegedRoleIDs) {
		return false, nil
	}
	rec, err := g.store.LatestKickTimerMuted(ctx, g.cfg.GuildID, m.User.ID)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up kick timer for %s: %w", m.User.ID, err)
	}

	// 无论用户名是否变化，计时器都只生效一次
	if err := g.store.UpdateStrikes(ctx, rec.ID, rec.StrikeCount, false); err != nil {
		return false, err
	}
	if platform.Username(m) != rec.Username {
		log.Printf("[Escalation] %s rejoined as %q (was %q), kick timer cleared", m.User.ID, platform.Username(m), rec.Username)
		return false, nil
	}
	if rec.IsActive {
		if err := g.enf.Retire(ctx, rec, false); err != nil {
			log.Printf("[Escalation] Failed to retire case %s of %s: %v", rec.CaseID, m.User.ID, err)
		}
	}

	strikes := max(rec.StrikeCount, 1)
	days := BanDaysForStrikes(strikes)
	log.Printf("[Escalation] %s rejoined with the same username, strike %d, banning for %d days", m.User.ID, strikes, days)
	if _, err := g.enf.Ban(ctx, m.User, days, rec.Reason, nil); err != nil {
		return true, err
	}
	return true, nil
}
