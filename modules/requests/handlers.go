package requests

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/eclipsabot/eclipsa/api"
	"github.com/eclipsabot/eclipsa/api/logger"
	"github.com/eclipsabot/eclipsa/assets"
	"github.com/eclipsabot/eclipsa/errs"
	"github.com/eclipsabot/eclipsa/ledger"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif"}

const confirmWindow = 30 * time.Second

func runSubmit(ds *discordgo.Session, i *discordgo.InteractionCreate) {
	deferEphemeral(ds, i)

	commandData := i.ApplicationCommandData()

	var kind, name, description string
	var attachment *discordgo.MessageAttachment

	for _, v := range commandData.Options {
		switch v.Name {
		case "kind":
			kind = v.StringValue()
		case "name":
			name = v.StringValue()
		case "description":
			description = v.StringValue()
		case "image":
			attachment = commandData.Resolved.Attachments[v.Value.(string)]
		}
	}

	staff := api.IsStaff(i.Member)
	if !staff {
		remaining, err := svc.CooldownRemaining(i.Member.User.ID, kind, time.Now())
		if err != nil {
			editReply(ds, i, errs.Describe(err))
			return
		}
		if remaining > 0 {
			editReply(ds, i, fmt.Sprintf("You already opened a %s request recently. Try again %s.",
				kind, humanize.Time(time.Now().Add(remaining))))
			return
		}
	}

	image, err := downloadImage(attachment)
	if err != nil {
		editReply(ds, i, err.Error())
		return
	}

	req, err := svc.Submit(kind, name, description, i.Member.User.ID, i.GuildID, image, staff)
	if err != nil {
		logger.Err().Printf("Request by %s failed: %s", i.Member.User.ID, err.Error())
		editReply(ds, i, errs.Describe(err))
		return
	}

	editReply(ds, i, fmt.Sprintf("Request opened in <#%s>. ID: `%s`", req.ChannelId, req.Id))
}

func runClose(ds *discordgo.Session, i *discordgo.InteractionCreate) {
	deferEphemeral(ds, i)
	beginClose(ds, i, i.ApplicationCommandData().Options[0].StringValue())
}

func beginClose(ds *discordgo.Session, i *discordgo.InteractionCreate, requestId string) {
	if !api.IsStaff(i.Member) {
		editReply(ds, i, "You do not have permission to do that.")
		return
	}

	req, err := svc.Get(requestId)
	if err != nil {
		editReply(ds, i, errs.Describe(err))
		return
	}
	if req.Status == StatusClosed {
		editReply(ds, i, "That request is already closed.")
		return
	}

	confirms.Begin("rclose:"+requestId, i.Member.User.ID, confirmWindow, func() {
		if err := svc.Close(requestId); err != nil {
			logger.Err().Printf("Manual close of %s failed: %s", requestId, err.Error())
		}
	}, nil)

	outcome := OutcomeRejected
	if req.Upvotes > req.Downvotes {
		outcome = OutcomeAccepted
	}
	editReplyComponents(ds, i,
		fmt.Sprintf("Close request **%s** now? Current tally %d/%d means it will be **%s**.",
			req.Name, req.Upvotes, req.Downvotes, outcome),
		confirmButtons("rclose", requestId))
}

func runInfo(ds *discordgo.Session, i *discordgo.InteractionCreate) {
	deferEphemeral(ds, i)

	requestId := i.ApplicationCommandData().Options[0].StringValue()
	req, err := svc.Get(requestId)
	if err != nil {
		editReply(ds, i, errs.Describe(err))
		return
	}

	line := fmt.Sprintf("**%s** (%s) by <@%s>: %s, %d up / %d down",
		req.Name, req.Kind, req.SubmitterId, req.Status, req.Upvotes, req.Downvotes)
	if req.Status == StatusClosed {
		line += ", outcome " + req.Outcome
	}
	editReply(ds, i, line)
}

func runVoteButton(ds *discordgo.Session, i *discordgo.InteractionCreate, customId string) {
	deferEphemeral(ds, i)

	parts := strings.Split(customId, ":")
	if len(parts) != 3 {
		editReply(ds, i, "Unknown action.")
		return
	}
	choice := ledger.Up
	if parts[1] == "down" {
		choice = ledger.Down
	}

	result, err := svc.Vote(parts[2], i.Member.User.ID, choice, api.VoteWeight(i.Member), api.IsStaff(i.Member))
	if err != nil {
		editReply(ds, i, errs.Describe(err))
		return
	}

	switch result {
	case ledger.Added:
		editReply(ds, i, "Vote recorded.")
	case ledger.Removed:
		editReply(ds, i, "Vote withdrawn.")
	case ledger.Switched:
		editReply(ds, i, "Vote switched.")
	}
}

func runCloseButton(ds *discordgo.Session, i *discordgo.InteractionCreate, customId string) {
	deferEphemeral(ds, i)

	parts := strings.Split(customId, ":")
	if len(parts) != 3 {
		editReply(ds, i, "Unknown action.")
		return
	}
	key := "rclose:" + parts[2]
	userId := i.Member.User.ID

	if parts[1] == "begin" {
		beginClose(ds, i, parts[2])
		return
	}

	var err error
	if parts[1] == "confirm" {
		err = confirms.Confirm(key, userId)
	} else {
		err = confirms.Cancel(key, userId)
	}
	if err != nil {
		editReply(ds, i, errs.Describe(err))
		return
	}

	if parts[1] == "confirm" {
		editReply(ds, i, "Request closed.")
	} else {
		editReply(ds, i, "Close cancelled.")
	}
}

// runOpenButton flips an accepted meme channel open to everyone. Pressing
// it again is harmless.
func runOpenButton(ds *discordgo.Session, i *discordgo.InteractionCreate, customId string) {
	deferEphemeral(ds, i)

	channelId := strings.TrimPrefix(customId, "ropen:")
	if api.GetChannel(ds, channelId) == nil {
		editReply(ds, i, "That channel no longer exists.")
		return
	}

	err := ds.ChannelPermissionSet(channelId, i.GuildID, discordgo.PermissionOverwriteTypeRole,
		discordgo.PermissionViewChannel, 0)
	if err != nil {
		logger.Err().Printf("Failed to open channel %s: %s", channelId, err.Error())
		editReply(ds, i, "Could not open the channel, please retry.")
		return
	}

	if i.Message != nil {
		_, err = ds.ChannelMessageEditComplex(&discordgo.MessageEdit{
			ID:      i.Message.ID,
			Channel: i.Message.ChannelID,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{openButton(channelId, true)}},
			},
		})
		if err != nil {
			logger.Err().Printf("Failed to disable open button: %s", err.Error())
		}
	}

	editReply(ds, i, "The channel is now open to everyone.")
}

func confirmButtons(prefix, token string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				CustomID: prefix + ":confirm:" + token,
				Label:    "Confirm",
				Style:    discordgo.DangerButton,
			},
			discordgo.Button{
				CustomID: prefix + ":cancel:" + token,
				Label:    "Cancel",
				Style:    discordgo.SecondaryButton,
			},
		}},
	}
}

func downloadImage(attachment *discordgo.MessageAttachment) ([]byte, error) {
	if attachment == nil {
		return nil, fmt.Errorf("an image is required")
	}

	name := strings.ToLower(attachment.Filename)
	ok := false
	for _, ext := range imageExtensions {
		if strings.HasSuffix(name, ext) {
			ok = true
			break
		}
	}
	if !ok {
		return nil, fmt.Errorf("only images are accepted (%s)", strings.Join(imageExtensions, ", "))
	}

	data, err := assets.Download(nil, attachment.URL)
	if err != nil {
		return nil, fmt.Errorf("could not fetch the attachment, please retry")
	}
	return data, nil
}
