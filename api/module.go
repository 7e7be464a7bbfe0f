package api

import (
	"github.com/bwmarrin/discordgo"
)

// Module is a self-contained feature of the bot. Load is called once,
// before the gateway connection is opened, and is where a module
// registers its handlers, migrates its tables and starts its jobs.
type Module interface {
	Load(ds *discordgo.Session)
	Name() string
}
