package contest

import (
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/eclipsabot/eclipsa/api"
	"github.com/eclipsabot/eclipsa/api/database"
	"github.com/eclipsabot/eclipsa/api/env"
	"github.com/eclipsabot/eclipsa/api/logger"
	"github.com/eclipsabot/eclipsa/assets"
	"github.com/eclipsabot/eclipsa/confirm"
	"github.com/eclipsabot/eclipsa/ledger"
	"github.com/eclipsabot/eclipsa/scheduler"
	"github.com/spf13/viper"
)

type Module struct {
	api.Module
}

var appId string
var svc *Service
var confirms = confirm.NewManager()
var deadlineZone *time.Location

func (*Module) Load(ds *discordgo.Session) {
	api.RegisterIntentNeed(discordgo.IntentsGuilds)

	appId = viper.GetString("app.id")

	var err error
	deadlineZone, err = time.LoadLocation(env.GetOr("contest.timezone", "Europe/Paris"))
	if err != nil {
		deadlineZone = time.UTC
	}

	db, err := database.Get()
	if err != nil {
		logger.Err().Println(err.Error())
		return
	}
	if err = Migrate(db); err != nil {
		logger.Err().Println(err.Error())
	}
	if err = ledger.Migrate(db); err != nil {
		logger.Err().Println(err.Error())
	}

	svc = NewService(db, &sessionTransport{ds: ds}, assets.New())

	var guilds []string
	for _, v := range env.GetStringArray("contest.guilds", ";") {
		if v != "" {
			guilds = append(guilds, v)
		}
	}

	ds.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		for _, guild := range guilds {
			for _, v := range operations {
				logger.Out().Printf("Registering %s for guild %s\n", v.Name, guild)
				_, err := s.ApplicationCommandCreate(appId, guild, v)
				if err != nil {
					logger.Err().Printf("Cannot create slash command %q: %v", v.Name, err)
				}
			}
		}
	})

	ds.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			switch i.ApplicationCommandData().Name {
			case createOperation.Name:
				runCreate(s, i)
			case startOperation.Name:
				runStart(s, i)
			case endOperation.Name:
				runEnd(s, i)
			case editOperation.Name:
				runEdit(s, i)
			case modOperation.Name:
				runMod(s, i)
			case forgiveOperation.Name:
				runForgive(s, i)
			case listOperation.Name:
				runList(s, i)
			case submitOperation.Name:
				runSubmit(s, i)
			case withdrawOperation.Name:
				runWithdraw(s, i)
			case leaderboardOperation.Name:
				runLeaderboard(s, i)
			}
		case discordgo.InteractionMessageComponent:
			id := i.MessageComponentData().CustomID
			if strings.HasPrefix(id, "cvote:") {
				runVoteButton(s, i, id)
			} else if strings.HasPrefix(id, "withdraw:") {
				runWithdrawButton(s, i, id)
			} else if strings.HasPrefix(id, "cmod:") {
				runModButton(s, i, id)
			}
		}
	})

	scheduler.Schedule("contest-deadlines", 24*time.Hour, func() error {
		return svc.CloseDue(time.Now())
	})
}

func (Module) Name() string {
	return "contest"
}

func deferEphemeral(ds *discordgo.Session, i *discordgo.InteractionCreate) {
	_ = ds.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
}

func editReply(ds *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_, _ = ds.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &msg})
}

func editReplyComponents(ds *discordgo.Session, i *discordgo.InteractionCreate, msg string, components []discordgo.MessageComponent) {
	_, _ = ds.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &msg, Components: &components})
}

// parseDeadline accepts DD/MM/YYYY in the configured zone; the deadline
// is the end of that day.
func parseDeadline(value string) (time.Time, error) {
	day, err := time.ParseInLocation("02/01/2006", value, deadlineZone)
	if err != nil {
		return time.Time{}, err
	}
	return day.AddDate(0, 0, 1).Add(-time.Second), nil
}

func slug(title string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(title)), " ", "-")
}
