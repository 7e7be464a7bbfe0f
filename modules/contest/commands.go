package contest

import (
	"github.com/bwmarrin/discordgo"
)

var createOperation = &discordgo.ApplicationCommand{
	Name:        "contest_create",
	Description: "[STAFF] Create a meme contest",
	Type:        discordgo.ChatApplicationCommand,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Name:        "title",
			Description: "Title of the contest",
			Type:        discordgo.ApplicationCommandOptionString,
			Required:    true,
		},
		{
			Name:        "description",
			Description: "What the contest is about",
			Type:        discordgo.ApplicationCommandOptionString,
			Required:    true,
		},
		{
			Name:        "deadline",
			Description: "Closing date, DD/MM/YYYY",
			Type:        discordgo.ApplicationCommandOptionString,
			Required:    true,
		},
		{
			Name:        "image",
			Description: "Banner image for the contest",
			Type:        discordgo.ApplicationCommandOptionAttachment,
			Required:    true,
		},
		{
			Name:        "rewards",
			Description: "What the winner gets",
			Type:        discordgo.ApplicationCommandOptionString,
			Required:    false,
		},
	},
}

var startOperation = &discordgo.ApplicationCommand{
	Name:        "contest_start",
	Description: "[STAFF] Start a contest that is ready",
	Type:        discordgo.ChatApplicationCommand,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Name:        "contest_id",
			Description: "ID of the contest to start",
			Type:        discordgo.ApplicationCommandOptionString,
			Required:    true,
		},
	},
}

var endOperation = &discordgo.ApplicationCommand{
	Name:        "contest_end",
	Description: "[STAFF] End the running contest and publish results",
	Type:        discordgo.ChatApplicationCommand,
}

var editOperation = &discordgo.ApplicationCommand{
	Name:        "contest_edit",
	Description: "[STAFF] Edit a contest that has not ended",
	Type:        discordgo.ChatApplicationCommand,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Name:        "contest_id",
			Description: "ID of the contest",
			Type:        discordgo.ApplicationCommandOptionString,
			Required:    true,
		},
		{
			Name:        "title",
			Description: "New title",
			Type:        discordgo.ApplicationCommandOptionString,
			Required:    false,
		},
		{
			Name:        "description",
			Description: "New description",
			Type:        discordgo.ApplicationCommandOptionString,
			Required:    false,
		},
		{
			Name:        "deadline",
			Description: "New closing date, DD/MM/YYYY",
			Type:        discordgo.ApplicationCommandOptionString,
			Required:    false,
		},
		{
			Name:        "rewards",
			Description: "New rewards",
			Type:        discordgo.ApplicationCommandOptionString,
			Required:    false,
		},
	},
}

var modOperation = &discordgo.ApplicationCommand{
	Name:        "contest_mod",
	Description: "[STAFF] Moderate a participant of the running contest",
	Type:        discordgo.ChatApplicationCommand,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Name:        "user",
			Description: "The participant",
			Type:        discordgo.ApplicationCommandOptionUser,
			Required:    true,
		},
		{
			Name:        "action",
			Description: "What to do",
			Type:        discordgo.ApplicationCommandOptionString,
			Required:    true,
			Choices: []*discordgo.ApplicationCommandOptionChoice{
				{Name: "Reset votes", Value: string(ActionResetVotes)},
				{Name: "Exclude from contest", Value: string(ActionExclude)},
				{Name: "Remove participation", Value: string(ActionRemove)},
			},
		},
		{
			Name:        "reason",
			Description: "Why",
			Type:        discordgo.ApplicationCommandOptionString,
			Required:    true,
		},
	},
}

var forgiveOperation = &discordgo.ApplicationCommand{
	Name:        "contest_forgive",
	Description: "[STAFF] Lift a contest exclusion",
	Type:        discordgo.ChatApplicationCommand,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Name:        "user",
			Description: "The excluded user",
			Type:        discordgo.ApplicationCommandOptionUser,
			Required:    true,
		},
	},
}

var listOperation = &discordgo.ApplicationCommand{
	Name:        "contests",
	Description: "List contests",
	Type:        discordgo.ChatApplicationCommand,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Name:        "status",
			Description: "Only show contests in this state",
			Type:        discordgo.ApplicationCommandOptionString,
			Required:    false,
			Choices: []*discordgo.ApplicationCommandOptionChoice{
				{Name: "Ready", Value: StatusReady},
				{Name: "Running", Value: StatusRunning},
				{Name: "Ended", Value: StatusEnded},
			},
		},
	},
}

var submitOperation = &discordgo.ApplicationCommand{
	Name:        "submit",
	Description: "Submit your meme for the running contest",
	Type:        discordgo.ChatApplicationCommand,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Name:        "image",
			Description: "Your meme",
			Type:        discordgo.ApplicationCommandOptionAttachment,
			Required:    true,
		},
	},
}

var withdrawOperation = &discordgo.ApplicationCommand{
	Name:        "withdraw",
	Description: "Withdraw your entry from the running contest",
	Type:        discordgo.ChatApplicationCommand,
}

var leaderboardOperation = &discordgo.ApplicationCommand{
	Name:        "leaderboard",
	Description: "Current standings of the running contest",
	Type:        discordgo.ChatApplicationCommand,
}

var operations = []*discordgo.ApplicationCommand{
	createOperation, startOperation, endOperation, editOperation,
	modOperation, forgiveOperation, listOperation,
	submitOperation, withdrawOperation, leaderboardOperation,
}
