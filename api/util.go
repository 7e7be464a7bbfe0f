package api

import (
	"github.com/bwmarrin/discordgo"
	"github.com/eclipsabot/eclipsa/api/logger"
)

// GetGuild resolves a guild from the session state, falling back to the
// REST API and backfilling the state cache.
func GetGuild(ds *discordgo.Session, guildId string) *discordgo.Guild {
	g, err := ds.State.Guild(guildId)
	if err != nil {
		g, err = ds.Guild(guildId)
		if err != nil {
			logger.Err().Printf("unable to fetch guild %s: %s", guildId, err)
		} else {
			err = ds.State.GuildAdd(g)
			if err != nil {
				logger.Err().Printf("error caching guild %s: %s", guildId, err)
			}
		}
	}

	return g
}

// GetChannel resolves a channel the same way GetGuild resolves a guild.
func GetChannel(ds *discordgo.Session, channelId string) *discordgo.Channel {
	c, err := ds.State.Channel(channelId)
	if err != nil {
		c, err = ds.Channel(channelId)
		if err != nil {
			logger.Err().Printf("unable to fetch channel %s: %s", channelId, err)
		} else {
			err = ds.State.ChannelAdd(c)
			if err != nil {
				logger.Err().Printf("error caching channel %s: %s", channelId, err)
			}
		}
	}

	return c
}

// MemberHasRole reports whether the interaction member carries any of the
// given role ids. Empty role ids are skipped so unset config cannot match.
func MemberHasRole(member *discordgo.Member, roleIds ...string) bool {
	if member == nil {
		return false
	}
	for _, want := range roleIds {
		if want == "" {
			continue
		}
		for _, have := range member.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}
