package requests

import (
	"time"
)

const (
	KindMeme  = "meme"
	KindEmoji = "emoji"
)

const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

const (
	OutcomeNone     = "none"
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// Request is one community proposal: a new guild emoji or a new "meme
// tour" channel. Upvotes/Downvotes mirror the ledger totals for the item
// and never go below zero.
type Request struct {
	Id            string `gorm:"primaryKey;size:36"`
	Kind          string `gorm:"size:8;index"`
	Name          string
	Description   string
	SubmitterId   string `gorm:"size:32"`
	GuildId       string `gorm:"size:32"`
	ChannelId     string `gorm:"size:32"`
	MessageId     string `gorm:"size:32"`
	AssetId       string
	AssetUrl      string
	Upvotes       int
	Downvotes     int
	Status        string `gorm:"size:8;index"`
	Outcome       string `gorm:"size:16"`
	MemeChannelId string `gorm:"size:32"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Cooldown throttles how often one user may submit, per request kind.
// Advisory only: it gates new submissions, never the state machine.
type Cooldown struct {
	UserId   string `gorm:"primaryKey;size:32"`
	Kind     string `gorm:"primaryKey;size:8"`
	LastUsed time.Time
}

func ledgerItem(requestId string) string {
	return "request:" + requestId
}
