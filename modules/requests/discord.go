package requests

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/eclipsabot/eclipsa/api"
	"github.com/eclipsabot/eclipsa/api/env"
	"github.com/eclipsabot/eclipsa/api/logger"
	"github.com/eclipsabot/eclipsa/assets"
)

// emojiPrefix marks emojis the bot manages so existing server emojis
// never collide with request names.
const emojiPrefix = "fm_"

type sessionTransport struct {
	ds *discordgo.Session
}

func (t *sessionTransport) PostRequest(req *Request) (string, string, error) {
	channelId := env.GetOr("requests."+req.Kind+".channel", env.GetOr("requests.channel", ""))
	if channelId == "" {
		return "", "", fmt.Errorf("no request channel configured for kind %s", req.Kind)
	}

	msg, err := t.ds.ChannelMessageSendComplex(channelId, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{requestEmbed(req, svc.cfg.RequiredVotes)},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					CustomID: "rvote:up:" + req.Id,
					Label:    "Approve",
					Style:    discordgo.SuccessButton,
				},
				discordgo.Button{
					CustomID: "rvote:down:" + req.Id,
					Label:    "Reject",
					Style:    discordgo.DangerButton,
				},
				discordgo.Button{
					CustomID: "rclose:begin:" + req.Id,
					Label:    "Close (staff)",
					Style:    discordgo.SecondaryButton,
				},
			}},
		},
	})
	if err != nil {
		return "", "", err
	}
	return channelId, msg.ID, nil
}

func (t *sessionTransport) DeleteMessage(channelId, messageId string) error {
	return t.ds.ChannelMessageDelete(channelId, messageId)
}

func (t *sessionTransport) UpdateVoteCounts(req *Request, required int) error {
	_, err := t.ds.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:      req.MessageId,
		Channel: req.ChannelId,
		Embeds:  []*discordgo.MessageEmbed{requestEmbed(req, required)},
	})
	return err
}

func (t *sessionTransport) CreateEmoji(guildId, name, assetUrl string) (bool, error) {
	emojiName := emojiPrefix + sanitizeEmojiName(name)

	guild := api.GetGuild(t.ds, guildId)
	if guild == nil {
		return false, fmt.Errorf("guild %s not reachable", guildId)
	}
	for _, e := range guild.Emojis {
		if e.Name == emojiName {
			return false, nil
		}
	}

	image, err := assets.Download(nil, assetUrl)
	if err != nil {
		return false, err
	}
	dataUri := fmt.Sprintf("data:%s;base64,%s",
		http.DetectContentType(image), base64.StdEncoding.EncodeToString(image))

	_, err = t.ds.GuildEmojiCreate(guildId, &discordgo.EmojiParams{
		Name:  emojiName,
		Image: dataUri,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *sessionTransport) CreateMemeChannel(req *Request) (string, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		{
			ID:   req.GuildId,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:    req.SubmitterId,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel,
		},
	}
	if staffRole := env.GetOr("staff.role", ""); staffRole != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    staffRole,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: discordgo.PermissionViewChannel,
		})
	}

	channel, err := t.ds.GuildChannelCreateComplex(req.GuildId, discordgo.GuildChannelCreateData{
		Name:                 slugChannel(req.Name),
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                req.Description,
		ParentID:             env.GetOr("requests.meme.category", ""),
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		return "", err
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Request accepted!",
		Description: fmt.Sprintf("<@%s>, **%s** made it. Open the channel to everyone when you are ready.", req.SubmitterId, req.Name),
		Color:       0x2ECC71,
	}
	if req.AssetUrl != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: req.AssetUrl}
	}

	_, err = t.ds.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{openButton(channel.ID, false)}},
		},
	})
	if err != nil {
		logger.Err().Printf("Failed to post acceptance notice in %s: %s", channel.ID, err.Error())
	}

	return channel.ID, nil
}

func (t *sessionTransport) AnnounceClosure(req *Request) error {
	var text string
	switch req.Outcome {
	case OutcomeAccepted:
		if req.Kind == KindEmoji {
			text = fmt.Sprintf("The emoji request **%s** by <@%s> was accepted with %d votes for and %d against.",
				req.Name, req.SubmitterId, req.Upvotes, req.Downvotes)
		} else {
			text = fmt.Sprintf("The meme request **%s** by <@%s> was accepted with %d votes for and %d against. Its channel is coming up.",
				req.Name, req.SubmitterId, req.Upvotes, req.Downvotes)
		}
	default:
		text = fmt.Sprintf("The %s request **%s** by <@%s> was rejected (%d for, %d against).",
			req.Kind, req.Name, req.SubmitterId, req.Upvotes, req.Downvotes)
	}

	_, err := t.ds.ChannelMessageSend(req.ChannelId, text)
	return err
}

func requestEmbed(req *Request, required int) *discordgo.MessageEmbed {
	title := "Emoji request: " + req.Name
	if req.Kind == KindMeme {
		title = "Meme channel request: " + req.Name
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: req.Description,
		Color:       0x3498DB,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Requested by", Value: "<@" + req.SubmitterId + ">", Inline: true},
			{Name: "For", Value: fmt.Sprintf("%d", req.Upvotes), Inline: true},
			{Name: "Against", Value: fmt.Sprintf("%d", req.Downvotes), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Accepted automatically at %d votes for. ID: %s", required, req.Id),
		},
	}
	if req.AssetUrl != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: req.AssetUrl}
	}
	return embed
}

func openButton(channelId string, disabled bool) discordgo.Button {
	return discordgo.Button{
		CustomID: "ropen:" + channelId,
		Label:    "Open to everyone",
		Style:    discordgo.PrimaryButton,
		Disabled: disabled,
	}
}

func sanitizeEmojiName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			b.WriteRune('_')
		}
	}
	return b.String()
}

func slugChannel(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}
