package contest

import (
	"time"
)

const (
	StatusReady   = "ready"
	StatusRunning = "running"
	StatusEnded   = "ended"
)

const (
	ParticipantActive   = "active"
	ParticipantExcluded = "excluded"
)

// Contest is one meme competition. At most one contest is running per
// deployment; the singleton is held by the ActivePointer row, not by
// scanning statuses.
type Contest struct {
	Id                  string `gorm:"primaryKey;size:36"`
	GuildId             string `gorm:"size:32"`
	Title               string
	Description         string
	Deadline            time.Time
	Rewards             string
	OrganizerId         string `gorm:"size:32"`
	OrganizerName       string
	Status              string `gorm:"size:16;index"`
	AnnounceChannelId   string `gorm:"size:32"`
	SubmissionChannelId string `gorm:"size:32"`
	AssetId             string
	AssetUrl            string
	ResultsPublished    bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Participant is one member's entry in one contest. Votes is the signed
// net score and is allowed to go negative; it must always equal the sum
// the ledger recomputes for this participant.
type Participant struct {
	ContestId   string `gorm:"primaryKey;size:36"`
	UserId      string `gorm:"primaryKey;size:32"`
	DisplayName string
	AssetId     string
	AssetUrl    string
	MessageId   string `gorm:"size:32"`
	Votes       int
	Status      string `gorm:"size:16"`
	SubmittedAt time.Time
}

// Exclusion bars a user from entering the contest again for its lifetime.
type Exclusion struct {
	ContestId   string `gorm:"primaryKey;size:36"`
	UserId      string `gorm:"primaryKey;size:32"`
	DisplayName string
	Reason      string
	CreatedAt   time.Time
}

// ActivePointer is the single row naming the currently running contest.
// Claimed on start, released on end, both with conditional updates, which
// makes the one-running-contest rule hold by construction.
type ActivePointer struct {
	Id        uint   `gorm:"primaryKey"`
	ContestId string `gorm:"size:36"`
	UpdatedAt time.Time
}

// ledgerItem is the ledger key for one participant's entry.
func ledgerItem(contestId, userId string) string {
	return "contest:" + contestId + ":" + userId
}
