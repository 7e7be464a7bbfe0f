package contest

import (
	"errors"
	"fmt"
	"time"

	"github.com/eclipsabot/eclipsa/api/logger"
	"github.com/eclipsabot/eclipsa/assets"
	"github.com/eclipsabot/eclipsa/errs"
	"github.com/eclipsabot/eclipsa/ledger"
	"github.com/eclipsabot/eclipsa/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transport is what the lifecycle needs from Discord. The live adapter
// wraps a session; tests substitute a recorder.
type Transport interface {
	// CreateChannels creates the announcement and submission surfaces for
	// a starting contest and returns their ids.
	CreateChannels(c *Contest) (announceId string, submissionId string, err error)
	// PostSubmission announces a new entry with its vote buttons.
	PostSubmission(c *Contest, p *Participant) (messageId string, err error)
	DeleteMessage(channelId, messageId string) error
	// PublishResults posts the final leaderboard and the winner highlight.
	PublishResults(c *Contest, board []Participant, winnerImageUrl string) error
	// DisableVoting disables the vote buttons left in the submission
	// channel once the contest is over.
	DisableVoting(channelId string) error
}

type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
)

type ModAction string

const (
	ActionResetVotes ModAction = "reset_votes"
	ActionExclude    ModAction = "exclude"
	ActionRemove     ModAction = "remove_participation"
)

type Service struct {
	db        *gorm.DB
	transport Transport
	assets    assets.Store
}

func NewService(db *gorm.DB, transport Transport, store assets.Store) *Service {
	return &Service{db: db, transport: transport, assets: store}
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(&Contest{}, &Participant{}, &Exclusion{}, &ActivePointer{})
	if err != nil {
		return err
	}
	// the pointer row always exists; claims are conditional updates on it
	return db.FirstOrCreate(&ActivePointer{}, &ActivePointer{Id: 1}).Error
}

// EditPatch carries the staff-editable fields; nil means leave alone.
type EditPatch struct {
	Title       *string
	Description *string
	Rewards     *string
	Deadline    *time.Time
}

// Active returns the currently running contest, or ErrNotFound.
func (s *Service) Active() (*Contest, error) {
	var pointer ActivePointer
	err := s.db.First(&pointer, "id = 1").Error
	if err != nil {
		return nil, err
	}
	if pointer.ContestId == "" {
		return nil, fmt.Errorf("no contest is running: %w", errs.ErrNotFound)
	}
	return s.Get(pointer.ContestId)
}

func (s *Service) Get(id string) (*Contest, error) {
	var c Contest
	err := s.db.First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("contest %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) List(status string, limit int) ([]Contest, error) {
	if limit <= 0 {
		limit = 25
	}
	var out []Contest
	query := s.db.Order("created_at desc").Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Find(&out).Error
	return out, err
}

// Create registers a contest in ready state. Fails while another contest
// is running so the queue of upcoming contests stays unambiguous.
func (s *Service) Create(guildId, title, description string, deadline time.Time, rewards, organizerId, organizerName string, image []byte) (*Contest, error) {
	var pointer ActivePointer
	if err := s.db.First(&pointer, "id = 1").Error; err != nil {
		return nil, err
	}
	if pointer.ContestId != "" {
		return nil, fmt.Errorf("contest %s is already running: %w", pointer.ContestId, errs.ErrConflict)
	}

	asset, err := s.assets.Upload(image, "meme_contests")
	if err != nil {
		return nil, err
	}

	c := &Contest{
		Id:            uuid.NewString(),
		GuildId:       guildId,
		Title:         title,
		Description:   description,
		Deadline:      deadline,
		Rewards:       rewards,
		OrganizerId:   organizerId,
		OrganizerName: organizerName,
		Status:        StatusReady,
		AssetId:       asset.Id,
		AssetUrl:      asset.Url,
	}
	if err = s.db.Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// Start claims the active pointer, creates the contest surfaces and moves
// the contest to running. The pointer claim is the singleton gate: two
// concurrent starts race on one conditional update and only one wins.
func (s *Service) Start(id string) (*Contest, error) {
	c, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusReady {
		return nil, fmt.Errorf("contest %s is %s, not ready: %w", id, c.Status, errs.ErrState)
	}

	claim := s.db.Model(&ActivePointer{}).
		Where("id = 1 AND contest_id = ''").
		Update("contest_id", id)
	if claim.Error != nil {
		return nil, claim.Error
	}
	if claim.RowsAffected == 0 {
		return nil, fmt.Errorf("another contest is already running: %w", errs.ErrConflict)
	}

	announceId, submissionId, err := s.transport.CreateChannels(c)
	if err != nil {
		s.releasePointer(id)
		return nil, fmt.Errorf("creating contest channels: %w", errors.Join(err, errs.ErrExternal))
	}

	res := s.db.Model(&Contest{}).
		Where("id = ? AND status = ?", id, StatusReady).
		Updates(map[string]interface{}{
			"status":                StatusRunning,
			"announce_channel_id":   announceId,
			"submission_channel_id": submissionId,
		})
	if res.Error != nil {
		s.releasePointer(id)
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		s.releasePointer(id)
		return nil, fmt.Errorf("contest %s changed state during start: %w", id, errs.ErrState)
	}

	return s.Get(id)
}

func (s *Service) releasePointer(contestId string) {
	err := s.db.Model(&ActivePointer{}).
		Where("id = 1 AND contest_id = ?", contestId).
		Update("contest_id", "").Error
	if err != nil {
		logger.Err().Printf("Failed to release active contest pointer for %s: %s", contestId, err.Error())
	}
}

// Submit enters a member into a running contest: one entry per user,
// excluded users barred for the life of the contest.
func (s *Service) Submit(contestId, userId, displayName string, image []byte) (*Participant, error) {
	c, err := s.Get(contestId)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusRunning {
		return nil, fmt.Errorf("contest %s is not running: %w", contestId, errs.ErrState)
	}

	var excluded Exclusion
	err = s.db.First(&excluded, "contest_id = ? AND user_id = ?", contestId, userId).Error
	if err == nil {
		return nil, fmt.Errorf("user is excluded from this contest: %w", errs.ErrForbidden)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var existing Participant
	err = s.db.First(&existing, "contest_id = ? AND user_id = ?", contestId, userId).Error
	if err == nil {
		return nil, fmt.Errorf("meme already submitted: %w", errs.ErrConflict)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	asset, err := s.assets.Upload(image, "meme_contests")
	if err != nil {
		return nil, err
	}

	p := &Participant{
		ContestId:   contestId,
		UserId:      userId,
		DisplayName: displayName,
		AssetId:     asset.Id,
		AssetUrl:    asset.Url,
		Votes:       0,
		Status:      ParticipantActive,
		SubmittedAt: time.Now(),
	}
	if err = s.db.Create(p).Error; err != nil {
		s.deleteAsset(asset.Id)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// composite key hit: a concurrent submission by the same user won
			return nil, fmt.Errorf("meme already submitted: %w", errs.ErrConflict)
		}
		return nil, err
	}

	messageId, err := s.transport.PostSubmission(c, p)
	if err != nil {
		_ = s.db.Delete(p).Error
		s.deleteAsset(asset.Id)
		return nil, fmt.Errorf("announcing submission: %w", errors.Join(err, errs.ErrExternal))
	}

	p.MessageId = messageId
	err = s.db.Model(p).Update("message_id", messageId).Error
	return p, err
}

// Vote toggles/switches the voter's choice on a participant. There is no
// self-vote override on the contest path.
func (s *Service) Vote(contestId, participantId, voterId string, choice ledger.Choice, weight int) (ledger.Result, error) {
	c, err := s.Get(contestId)
	if err != nil {
		return "", err
	}
	if c.Status != StatusRunning {
		return "", fmt.Errorf("voting is closed for contest %s: %w", contestId, errs.ErrState)
	}

	var p Participant
	err = s.db.First(&p, "contest_id = ? AND user_id = ?", contestId, participantId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("participant not found: %w", errs.ErrNotFound)
	}
	if err != nil {
		return "", err
	}

	if voterId == participantId {
		return "", fmt.Errorf("cannot vote on your own meme: %w", errs.ErrForbidden)
	}

	result, err := ledger.Cast(s.db, ledgerItem(contestId, participantId), voterId, choice, weight, func(tx *gorm.DB, c ledger.Choice, delta int) error {
		signed := delta
		if c == ledger.Down {
			signed = -delta
		}
		return tx.Model(&Participant{}).
			Where("contest_id = ? AND user_id = ?", contestId, participantId).
			Update("votes", gorm.Expr("votes + ?", signed)).Error
	})
	if err != nil {
		return "", err
	}

	metrics.VotesCast.WithLabelValues("contest", string(result)).Inc()
	return result, nil
}

// Withdraw removes the caller's own entry, its asset and its
// announcement. The confirmation step lives in the Discord layer.
func (s *Service) Withdraw(contestId, userId string) error {
	c, err := s.Get(contestId)
	if err != nil {
		return err
	}
	if c.Status != StatusRunning {
		return fmt.Errorf("contest %s is not running: %w", contestId, errs.ErrState)
	}

	var p Participant
	err = s.db.First(&p, "contest_id = ? AND user_id = ?", contestId, userId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("no participation to withdraw: %w", errs.ErrNotFound)
	}
	if err != nil {
		return err
	}

	return s.removeParticipant(c, &p)
}

// Moderate applies a staff action to a participant.
func (s *Service) Moderate(contestId, userId string, action ModAction, reason string) error {
	c, err := s.Get(contestId)
	if err != nil {
		return err
	}
	if c.Status != StatusRunning {
		return fmt.Errorf("contest %s is not running: %w", contestId, errs.ErrState)
	}

	var p Participant
	err = s.db.First(&p, "contest_id = ? AND user_id = ?", contestId, userId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("participant not found: %w", errs.ErrNotFound)
	}
	if err != nil {
		return err
	}

	switch action {
	case ActionResetVotes:
		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := ledger.Reset(tx, ledgerItem(contestId, userId)); err != nil {
				return err
			}
			return tx.Model(&Participant{}).
				Where("contest_id = ? AND user_id = ?", contestId, userId).
				Update("votes", 0).Error
		})
	case ActionExclude:
		err = s.db.Create(&Exclusion{
			ContestId:   contestId,
			UserId:      userId,
			DisplayName: p.DisplayName,
			Reason:      reason,
		}).Error
		if err != nil {
			return err
		}
		return s.removeParticipant(c, &p)
	case ActionRemove:
		return s.removeParticipant(c, &p)
	default:
		return fmt.Errorf("unknown moderation action %q: %w", action, errs.ErrNotFound)
	}
}

// Forgive lifts an exclusion so the user can submit again.
func (s *Service) Forgive(contestId, userId string) error {
	res := s.db.Where("contest_id = ? AND user_id = ?", contestId, userId).Delete(&Exclusion{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user is not excluded: %w", errs.ErrNotFound)
	}
	return nil
}

// Edit updates the staff-editable fields while the contest has not ended.
func (s *Service) Edit(contestId string, patch EditPatch) error {
	c, err := s.Get(contestId)
	if err != nil {
		return err
	}
	if c.Status == StatusEnded {
		return fmt.Errorf("contest %s has ended: %w", contestId, errs.ErrState)
	}

	fields := map[string]interface{}{}
	if patch.Title != nil {
		fields["title"] = *patch.Title
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	if patch.Rewards != nil {
		fields["rewards"] = *patch.Rewards
	}
	if patch.Deadline != nil {
		fields["deadline"] = *patch.Deadline
	}
	if len(fields) == 0 {
		return nil
	}
	return s.db.Model(&Contest{}).Where("id = ?", contestId).Updates(fields).Error
}

// Standings ranks eligible participants: votes descending, earlier
// submission first on ties.
func (s *Service) Standings(contestId string, limit int) ([]Participant, error) {
	if limit <= 0 {
		limit = 10
	}
	var board []Participant
	err := s.db.Where("contest_id = ? AND status = ?", contestId, ParticipantActive).
		Order("votes desc, submitted_at asc").
		Limit(limit).
		Find(&board).Error
	return board, err
}

// End closes a running contest and publishes the results. The terminal
// write is a conditional update, so however many closers race (staff
// command, deadline sweep), exactly one of them publishes.
func (s *Service) End(contestId string, trigger Trigger) error {
	c, err := s.Get(contestId)
	if err != nil {
		return err
	}
	if c.Status != StatusRunning || c.ResultsPublished {
		if trigger == TriggerScheduled {
			return nil
		}
		return fmt.Errorf("contest %s is not running: %w", contestId, errs.ErrState)
	}

	var claimed int64
	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Contest{}).
			Where("id = ? AND status = ? AND results_published = ?", contestId, StatusRunning, false).
			Updates(map[string]interface{}{"status": StatusEnded, "results_published": true})
		if res.Error != nil {
			return res.Error
		}
		claimed = res.RowsAffected
		if claimed == 0 {
			return nil
		}
		return tx.Model(&ActivePointer{}).
			Where("id = 1 AND contest_id = ?", contestId).
			Update("contest_id", "").Error
	})
	if err != nil {
		return err
	}
	if claimed == 0 {
		// a concurrent closer won the race
		if trigger == TriggerScheduled {
			return nil
		}
		return fmt.Errorf("contest %s already ended: %w", contestId, errs.ErrState)
	}

	metrics.Closures.WithLabelValues("contest", StatusEnded, string(trigger)).Inc()

	if err = s.transport.DisableVoting(c.SubmissionChannelId); err != nil {
		logger.Err().Printf("Failed to disable vote buttons for contest %s: %s", contestId, err.Error())
	}

	board, err := s.Standings(contestId, 10)
	if err != nil {
		return err
	}
	if len(board) == 0 {
		logger.Out().Printf("Contest %s ended with no eligible participants", contestId)
		return nil
	}

	winnerImage := s.assets.Transform(board[0].AssetUrl, "w_2000,c_limit", "w_800,c_scale")
	if err = s.transport.PublishResults(c, board, winnerImage); err != nil {
		// terminal state stands; the gap is operator-visible, not rolled back
		logger.Err().Printf("Failed to publish results for contest %s: %s", contestId, err.Error())
		return fmt.Errorf("publishing results: %w", errors.Join(err, errs.ErrExternal))
	}

	return nil
}

// CloseDue ends the running contest once its deadline has passed. Wired
// to the daily sweep and the boot run.
func (s *Service) CloseDue(now time.Time) error {
	c, err := s.Active()
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if c.Status != StatusRunning || !now.After(c.Deadline) {
		return nil
	}
	return s.End(c.Id, TriggerScheduled)
}

func (s *Service) removeParticipant(c *Contest, p *Participant) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("contest_id = ? AND user_id = ?", p.ContestId, p.UserId).Delete(&Participant{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("participant already removed: %w", errs.ErrNotFound)
		}
		return ledger.Reset(tx, ledgerItem(p.ContestId, p.UserId))
	})
	if err != nil {
		return err
	}

	if p.MessageId != "" {
		if err := s.transport.DeleteMessage(c.SubmissionChannelId, p.MessageId); err != nil {
			logger.Err().Printf("Failed to delete submission message %s: %s", p.MessageId, err.Error())
		}
	}
	s.deleteAsset(p.AssetId)
	return nil
}

func (s *Service) deleteAsset(id string) {
	if id == "" {
		return
	}
	if err := s.assets.Delete(id); err != nil {
		logger.Err().Printf("Failed to delete asset %s: %s", id, err.Error())
	}
}
