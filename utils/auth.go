package utils

import (
	"slices"

	"github.com/bwmarrin/discordgo"
)

// HasAnyRole checks if the member carries at least one of roleIDs.
func HasAnyRole(m *discordgo.Member, roleIDs []string) bool {
	if m == nil {
		return false
	}
	for _, roleID := range m.Roles {
		if slices.Contains(roleIDs, roleID) {
			return true
		}
	}
	return false
}

// IsModerator reports whether the member may decide on review prompts.
func IsModerator(m *discordgo.Member, moderatorRoleIDs []string) bool {
	return HasAnyRole(m, moderatorRoleIDs)
}

// IsPrivileged reports whether the member holds a tier role whose violations
// go to moderator review instead of an automatic mute.
func IsPrivileged(m *discordgo.Member, privilegedRoleIDs []string) bool {
	return HasAnyRole(m, privilegedRoleIDs)
}
