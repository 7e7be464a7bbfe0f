package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/eclipsabot/eclipsa/api"
	"github.com/eclipsabot/eclipsa/api/database"
	"github.com/eclipsabot/eclipsa/api/logger"
	"github.com/eclipsabot/eclipsa/modules"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var Session *discordgo.Session

func main() {
	_ = godotenv.Load()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	moduleNames := os.Args[1:]
	if len(moduleNames) == 0 {
		moduleNames = []string{"all"}
	}

	token := viper.GetString("discord_token")
	if token == "" {
		logger.Err().Print("DISCORD_TOKEN must be set in the environment to run this process")
		return
	}

	defer func() {
		err := logger.Close()
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error closing logger: %s", err.Error())
		}
	}()

	defer database.Close()

	if !strings.HasPrefix(token, "Bot ") {
		token = "Bot " + token
	}

	Session, _ = discordgo.New(token)
	defer Session.Close()

	modules.Load(Session, moduleNames)

	OpenConnection()

	// Wait for a CTRL-C
	fmt.Println(`Now running. Press CTRL-C to exit.`)
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc
	fmt.Println("Shutting down")
}

func OpenConnection() {
	Session.Identify.Intents = api.GetIntent()

	err := Session.Open()
	if err != nil {
		logger.Err().Print(err.Error())
		os.Exit(1)
	}
}
