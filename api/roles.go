package api

import (
	"github.com/bwmarrin/discordgo"
	"github.com/eclipsabot/eclipsa/api/env"
)

// IsStaff reports whether the member holds the staff or admin role.
func IsStaff(member *discordgo.Member) bool {
	return MemberHasRole(member, env.Get("staff.role"), env.Get("admin.role"))
}

// VoteWeight is the magnitude a member's vote carries: premium members
// count double. The weight is captured at cast time; the ledger stores it
// so later premium changes never skew reversals.
func VoteWeight(member *discordgo.Member) int {
	if MemberHasRole(member, env.Get("premium.role")) {
		return 2
	}
	return 1
}
