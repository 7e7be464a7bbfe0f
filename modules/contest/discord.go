package contest

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/eclipsabot/eclipsa/api/env"
	"github.com/eclipsabot/eclipsa/api/logger"
)

// sessionTransport is the live Discord adapter for the contest
// lifecycle.
type sessionTransport struct {
	ds *discordgo.Session
}

func (t *sessionTransport) CreateChannels(c *Contest) (string, string, error) {
	parentId := env.GetOr("contest.category", "")
	everyone := c.GuildId

	announce, err := t.ds.GuildChannelCreateComplex(c.GuildId, discordgo.GuildChannelCreateData{
		Name:     slug(c.Title) + "-announcements",
		Type:     discordgo.ChannelTypeGuildText,
		Topic:    c.Title,
		ParentID: parentId,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{{
			ID:   everyone,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionSendMessages,
		}},
	})
	if err != nil {
		return "", "", err
	}

	submissions, err := t.ds.GuildChannelCreateComplex(c.GuildId, discordgo.GuildChannelCreateData{
		Name:     slug(c.Title) + "-submissions",
		Type:     discordgo.ChannelTypeGuildText,
		Topic:    "Use /submit to enter. Vote with the buttons.",
		ParentID: parentId,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{{
			ID:   everyone,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionSendMessages,
		}},
	})
	if err != nil {
		_, _ = t.ds.ChannelDelete(announce.ID)
		return "", "", err
	}

	embed := &discordgo.MessageEmbed{
		Title:       c.Title,
		Description: c.Description,
		Color:       0xF1C40F,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Deadline", Value: c.Deadline.Format("Monday 02 January 2006"), Inline: true},
			{Name: "Rewards", Value: orDash(c.Rewards), Inline: true},
			{Name: "Organizer", Value: c.OrganizerName, Inline: true},
		},
	}
	if c.AssetUrl != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: c.AssetUrl}
	}

	_, err = t.ds.ChannelMessageSendComplex(announce.ID, &discordgo.MessageSend{
		Content: pingRole(),
		Embeds:  []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		logger.Err().Printf("Failed to post contest announcement: %s", err.Error())
	}

	return announce.ID, submissions.ID, nil
}

func (t *sessionTransport) PostSubmission(c *Contest, p *Participant) (string, error) {
	embed := &discordgo.MessageEmbed{
		Title: p.DisplayName,
		Color: 0x3498DB,
		Image: &discordgo.MessageEmbedImage{URL: p.AssetUrl},
	}

	msg, err := t.ds.ChannelMessageSendComplex(c.SubmissionChannelId, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: voteButtons(p.UserId, false)},
		},
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (t *sessionTransport) DeleteMessage(channelId, messageId string) error {
	return t.ds.ChannelMessageDelete(channelId, messageId)
}

func (t *sessionTransport) PublishResults(c *Contest, board []Participant, winnerImageUrl string) error {
	embeds := []*discordgo.MessageEmbed{{
		Title:       "Results: " + c.Title,
		Description: formatBoard(board),
		Color:       0xF1C40F,
	}}

	if len(board) > 0 {
		winner := &discordgo.MessageEmbed{
			Title:       "Winner: " + board[0].DisplayName,
			Description: orDash(c.Rewards),
			Color:       0x2ECC71,
		}
		if winnerImageUrl != "" {
			winner.Image = &discordgo.MessageEmbedImage{URL: winnerImageUrl}
		}
		embeds = append(embeds, winner)
	}

	_, err := t.ds.ChannelMessageSendComplex(c.AnnounceChannelId, &discordgo.MessageSend{
		Content: pingRole(),
		Embeds:  embeds,
	})
	return err
}

func (t *sessionTransport) DisableVoting(channelId string) error {
	messages, err := t.ds.ChannelMessages(channelId, 100, "", "", "")
	if err != nil {
		return err
	}

	for _, m := range messages {
		if len(m.Components) == 0 || !ownsButtons(m) {
			continue
		}
		var userId string
		if row, ok := m.Components[0].(*discordgo.ActionsRow); ok {
			if btn, ok := row.Components[0].(*discordgo.Button); ok {
				parts := strings.Split(btn.CustomID, ":")
				userId = parts[len(parts)-1]
			}
		}
		_, err = t.ds.ChannelMessageEditComplex(&discordgo.MessageEdit{
			ID:      m.ID,
			Channel: channelId,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: voteButtons(userId, true)},
			},
		})
		if err != nil {
			logger.Err().Printf("Failed to disable voting on message %s: %s", m.ID, err.Error())
		}
	}
	return nil
}

func ownsButtons(m *discordgo.Message) bool {
	row, ok := m.Components[0].(*discordgo.ActionsRow)
	if !ok || len(row.Components) == 0 {
		return false
	}
	btn, ok := row.Components[0].(*discordgo.Button)
	return ok && strings.HasPrefix(btn.CustomID, "cvote:")
}

func voteButtons(participantId string, disabled bool) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.Button{
			CustomID: "cvote:up:" + participantId,
			Label:    "Upvote",
			Style:    discordgo.SuccessButton,
			Disabled: disabled,
		},
		discordgo.Button{
			CustomID: "cvote:down:" + participantId,
			Label:    "Downvote",
			Style:    discordgo.DangerButton,
			Disabled: disabled,
		},
	}
}

func pingRole() string {
	role := env.GetOr("contest.ping.role", "")
	if role == "" {
		return ""
	}
	return fmt.Sprintf("<@&%s>", role)
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
