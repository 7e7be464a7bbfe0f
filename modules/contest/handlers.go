package contest

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

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp"}

const confirmWindow = 30 * time.Second

func runCreate(ds *discordgo.Session, i *discordgo.InteractionCreate) {
	deferEphemeral(ds, i)
	if !api.IsStaff(i.Member) {
		editReply(ds, i, "You do not have permission to use this command.")
		return
	}

	commandData := i.ApplicationCommandData()

	var title, description, deadline, rewards string
	var attachment *discordgo.MessageAttachment

	for _, v := range commandData.Options {
		switch v.Name {
		case "title":
			title = v.StringValue()
		case "description":
			description = v.StringValue()
		case "deadline":
			deadline = v.StringValue()
		case "rewards":
			rewards = v.StringValue()
		case "image":
			attachment = commandData.Resolved.Attachments[v.Value.(string)]
		}
	}

	due, err := parseDeadline(deadline)
	if err != nil {
		editReply(ds, i, "Deadline must be DD/MM/YYYY.")
		return
	}
	if due.Before(time.Now()) {
		editReply(ds, i, "Deadline is already in the past.")
		return
	}

	image, err := downloadImage(attachment)
	if err != nil {
		editReply(ds, i, err.Error())
		return
	}

	c, err := svc.Create(i.GuildID, title, description, due, rewards, i.Member.User.ID, i.Member.User.Username, image)
	if err != nil {
		logger.Err().Printf("Failed to create contest: %s", err.Error())
		editReply(ds, i, errs.Describe(err))
		return
	}

	editReply(ds, i, fmt.Sprintf("Contest created in ready state. ID: `%s`", c.Id))
}

func runStart(ds *discordgo.Session, i *discordgo.InteractionCreate) {
	deferEphemeral(ds, i)
	if !api.IsStaff(i.Member) {
		editReply(ds, i, "You do not have permission to use this command.")
		return
	}

	contestId := i.ApplicationCommandData().Options[0].StringValue()
	c, err := svc.Start(contestId)
	if err != nil {
		logger.Err().Printf("Failed to start contest %s: %s", contestId, err.Error())
		editReply(ds, i, errs.Describe(err))
		return
	}

	editReply(ds, i, fmt.Sprintf("Contest **%s** is now running in <#%s>.", c.Title, c.SubmissionChannelId))
}

func runEnd(ds *discordgo.Session, i *discordgo.InteractionCreate) {
	deferEphemeral(ds, i)
	if !api.IsStaff(i.Member) {
		editReply(ds, i, "You do not have permission to use this command.")
		return
	}

	c, err := svc.Active()
	if err != nil {
		editReply(ds, i, errs.Describe(err))
		return
	}

	if err = svc.End(c.Id, TriggerManual); err != nil {
		logger.Err().Printf("Failed to end contest %s: %s", c.Id, err.Error())
		editReply(ds, i, errs.Describe(err))
		return
	}

	editReply(ds, i, "Contest ended and results published.")
}

func runEdit(ds *discordgo.Session, i *discordgo.InteractionCreate) {
	deferEphemeral(ds, i)
	if !api.IsStaff(i.Member) {
		editReply(ds, i, "You do not have permission to use this command.")
		return
	}

	var contestId string
	patch := EditPatch{}

	for _, v := range i.ApplicationCommandData().Options {
		switch v.Name {
		case "contest_id":
			contestId = v.StringValue()
		case "title":
			val := v.StringValue()
			patch.Title = &val
		case "description":
			val := v.StringValue()
			patch.Description = &val
		case "rewards":
			val := v.StringValue()
			patch.Rewards = &val
		case "deadline":
			due, err := parseDeadline(v.StringValue())
			if err != nil {
				editReply(ds, i, "Deadline must be DD/MM/YYYY.")
				return
			}
			patch.Deadline = &due
		}
	}

	if err := svc.Edit(contestId, patch); err != nil {
		editReply(ds, i, errs.Describe(err))
		return
	}
	editReply(ds, i, "Contest updated.")
}

func runMod(ds *discordgo.Session, i *discordgo.InteractionCreate) {
	deferEphemeral(ds, i)
	if !api.IsStaff(i.Member) {
		editReply(ds, i, "You do not have permission to use this command.")
		return
	}

	var targetId, reason string
	var action ModAction

	for _, v := range i.ApplicationCommandData().Options {
		switch v.Name {
		case "user":
			targetId = v.Value.(string)
		case "action":
			action = ModAction(v.StringValue())
		case "reason":
			reason = v.StringValue()
		}
	}

	c, err := svc.Active()
	if err != nil {
		editReply(ds, i, errs.Describe(err))
		return
	}

	if action == ActionResetVotes {
		if err = svc.Moderate(c.Id, targetId, action, reason); err != nil {
			editReply(ds, i, errs.Describe(err))
			return
		}
		editReply(ds, i, "Votes reset for <@"+targetId+">.")
		return
	}

	// destructive actions get a second click
	contestId := c.Id
	confirms.Begin("cmod:"+targetId, i.Member.User.ID, confirmWindow, func() {
		if err := svc.Moderate(contestId, targetId, action, reason); err != nil {
			logger.Err().Printf("Moderation %s on %s failed: %s", action, targetId, err.Error())
		}
	}, nil)

	editReplyComponents(ds, i, fmt.Sprintf("Apply **%s** to <@%s>? This cannot be undone.", action, targetId),
		confirmButtons("cmod", targetId))
}

func runForgive(ds *discordgo.Session, i *discordgo.InteractionCreate) {
	deferEphemeral(ds, i)
	if !api.IsStaff(i.Member) {
		editReply(ds, i, "You do not have permission to use this command.")
		return
	}

	var targetId string
	for _, v := range i.ApplicationCommandData().Options {
		if v.Name == "user" {
			targetId = v.Value.(string)
		}
	}

	c, err := svc.Active()
	if err != nil {
		editReply(ds, i, errs.Describe(err))
		return
	}

	if err = svc.Forgive(c.Id, targetId); err != nil {
		editReply(ds, i, errs.Describe(err))
		return
	}
	editReply(ds, i, "<@"+targetId+"> may submit again.")
}

func runList(ds *discordgo.Session, i *discordgo.InteractionCreate) {
	deferEphemeral(ds, i)

	var status string
	for _, v := range i.ApplicationCommandData().Options {
		if v.Name == "status" {
			status = v.StringValue()
		}
	}

	contests, err := svc.List(status, 25)
	if err != nil {
		editReply(ds, i, errs.Describe(err))
		return
	}
	if len(contests) == 0 {
		editReply(ds, i, "No contests found.")
		return
	}

	lines := make([]string, 0, len(contests))
	for _, c := range contests {
		lines = append(lines, fmt.Sprintf("**%s** — %s, deadline %s (`%s`)",
			c.Title, c.Status, humanize.Time(c.Deadline), c.Id))
	}
	editReply(ds, i, strings.Join(lines, "\n"))
}

func runSubmit(ds *discordgo.Session, i *discordgo.InteractionCreate) {
	deferEphemeral(ds, i)

	commandData := i.ApplicationCommandData()
	var attachment *discordgo.MessageAttachment
	for _, v := range commandData.Options {
		if v.Name == "image" {
			attachment = commandData.Resolved.Attachments[v.Value.(string)]
		}
	}

	image, err := downloadImage(attachment)
	if err != nil {
		editReply(ds, i, err.Error())
		return
	}

	c, err := svc.Active()
	if err != nil {
		editReply(ds, i, "There is no contest running right now.")
		return
	}

	_, err = svc.Submit(c.Id, i.Member.User.ID, i.Member.User.Username, image)
	if err != nil {
		logger.Err().Printf("Submission by %s failed: %s", i.Member.User.ID, err.Error())
		editReply(ds, i, errs.Describe(err))
		return
	}

	editReply(ds, i, "Your meme is in! Good luck.")
}

func runWithdraw(ds *discordgo.Session, i *discordgo.InteractionCreate) {
	deferEphemeral(ds, i)

	c, err := svc.Active()
	if err != nil {
		editReply(ds, i, "There is no contest running right now.")
		return
	}

	userId := i.Member.User.ID
	contestId := c.Id
	confirms.Begin("withdraw:"+userId, userId, confirmWindow, func() {
		if err := svc.Withdraw(contestId, userId); err != nil {
			logger.Err().Printf("Withdraw by %s failed: %s", userId, err.Error())
		}
	}, nil)

	editReplyComponents(ds, i, "Withdraw your entry? Your meme and its votes will be removed.",
		confirmButtons("withdraw", userId))
}

func runLeaderboard(ds *discordgo.Session, i *discordgo.InteractionCreate) {
	deferEphemeral(ds, i)

	c, err := svc.Active()
	if err != nil {
		editReply(ds, i, "There is no contest running right now.")
		return
	}

	board, err := svc.Standings(c.Id, 10)
	if err != nil {
		editReply(ds, i, errs.Describe(err))
		return
	}
	if len(board) == 0 {
		editReply(ds, i, "Nobody has submitted yet.")
		return
	}

	editReply(ds, i, formatBoard(board))
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
	participantId := parts[2]

	c, err := svc.Active()
	if err != nil {
		editReply(ds, i, "This contest is no longer running.")
		return
	}

	result, err := svc.Vote(c.Id, participantId, i.Member.User.ID, choice, api.VoteWeight(i.Member))
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

func runWithdrawButton(ds *discordgo.Session, i *discordgo.InteractionCreate, customId string) {
	runConfirmButton(ds, i, customId, "Entry withdrawn.", "Withdrawal cancelled.")
}

func runModButton(ds *discordgo.Session, i *discordgo.InteractionCreate, customId string) {
	runConfirmButton(ds, i, customId, "Moderation action applied.", "Moderation action cancelled.")
}

func runConfirmButton(ds *discordgo.Session, i *discordgo.InteractionCreate, customId, okMsg, cancelMsg string) {
	deferEphemeral(ds, i)

	parts := strings.Split(customId, ":")
	if len(parts) != 3 {
		editReply(ds, i, "Unknown action.")
		return
	}
	key := parts[0] + ":" + parts[2]
	userId := i.Member.User.ID

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
		editReply(ds, i, okMsg)
	} else {
		editReply(ds, i, cancelMsg)
	}
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

func formatBoard(board []Participant) string {
	medals := []string{":trophy:", ":second_place:", ":third_place:"}
	lines := make([]string, 0, len(board))
	for idx, p := range board {
		rank := fmt.Sprintf("**#%d**", idx+1)
		if idx < len(medals) {
			rank = medals[idx]
		}
		lines = append(lines, fmt.Sprintf("%s %s — %d votes", rank, p.DisplayName, p.Votes))
	}
	return strings.Join(lines, "\n")
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
