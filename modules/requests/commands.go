package requests

import "github.com/bwmarrin/discordgo"

var submitOperation = &discordgo.ApplicationCommand{
	Name:        "request",
	Description: "Propose a new emoji or meme channel for the server",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "kind",
			Description: "What you are requesting",
			Required:    true,
			Choices: []*discordgo.ApplicationCommandOptionChoice{
				{Name: "Emoji", Value: KindEmoji},
				{Name: "Meme channel", Value: KindMeme},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "name",
			Description: "Name for the emoji or channel",
			Required:    true,
		},
		{
			Type:        discordgo.ApplicationCommandOptionAttachment,
			Name:        "image",
			Description: "The image to use",
			Required:    true,
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "description",
			Description: "Why the server needs this",
		},
	},
}

var closeOperation = &discordgo.ApplicationCommand{
	Name:        "request_close",
	Description: "Close a request now and apply its outcome",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "request_id",
			Description: "ID of the request to close",
			Required:    true,
		},
	},
}

var infoOperation = &discordgo.ApplicationCommand{
	Name:        "request_info",
	Description: "Show the state of a request",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "request_id",
			Description: "ID of the request",
			Required:    true,
		},
	},
}

var operations = []*discordgo.ApplicationCommand{
	submitOperation,
	closeOperation,
	infoOperation,
}
