package api

import "github.com/bwmarrin/discordgo"

var neededIntents []discordgo.Intent

// RegisterIntentNeed records gateway intents a module depends on, so the
// session is opened with the union of what every loaded module asked for.
func RegisterIntentNeed(intents ...discordgo.Intent) {
	for _, i := range intents {
		add := true
		for _, v := range neededIntents {
			if v == i {
				add = false
				break
			}
		}
		if add {
			neededIntents = append(neededIntents, i)
		}
	}
}

func GetIntent() discordgo.Intent {
	var intent discordgo.Intent

	for _, v := range neededIntents {
		intent = intent | v
	}

	return discordgo.MakeIntent(intent)
}
