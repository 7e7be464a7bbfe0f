package requests

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

func (*Module) Load(ds *discordgo.Session) {
	api.RegisterIntentNeed(discordgo.IntentsGuilds)

	appId = viper.GetString("app.id")

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

	cfg := Config{
		RequiredVotes: env.GetIntOr("requests.required", 10),
		MaxOpen:       env.GetDuration("requests.maxopen", 14*24*time.Hour),
		CooldownEvery: env.GetDuration("requests.cooldown", 7*24*time.Hour),
	}
	svc = NewService(db, &sessionTransport{ds: ds}, assets.New(), cfg)

	var guilds []string
	for _, v := range env.GetStringArray("requests.guilds", ";") {
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
			case submitOperation.Name:
				runSubmit(s, i)
			case closeOperation.Name:
				runClose(s, i)
			case infoOperation.Name:
				runInfo(s, i)
			}
		case discordgo.InteractionMessageComponent:
			id := i.MessageComponentData().CustomID
			if strings.HasPrefix(id, "rvote:") {
				runVoteButton(s, i, id)
			} else if strings.HasPrefix(id, "rclose:") {
				runCloseButton(s, i, id)
			} else if strings.HasPrefix(id, "ropen:") {
				runOpenButton(s, i, id)
			}
		}
	})

	scheduler.Schedule("request-autoclose", time.Hour, func() error {
		return svc.CloseDue(time.Now())
	})
	scheduler.Schedule("asset-expiry", time.Hour, func() error {
		return svc.SweepAssets(time.Now())
	})
}

func (Module) Name() string {
	return "requests"
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
