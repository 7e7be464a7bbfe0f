package requests

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

// Transport is what the request workflow needs from Discord.
type Transport interface {
	// PostRequest announces a new request with its vote buttons.
	PostRequest(req *Request) (channelId string, messageId string, err error)
	DeleteMessage(channelId, messageId string) error
	// UpdateVoteCounts refreshes the counters shown on the announcement.
	UpdateVoteCounts(req *Request, required int) error
	// CreateEmoji registers the asset as a guild emoji. created is false
	// when an emoji with that name already exists.
	CreateEmoji(guildId, name, assetUrl string) (created bool, err error)
	// CreateMemeChannel creates the restricted channel for an accepted
	// meme and posts the acceptance notice with its open-to-public
	// control.
	CreateMemeChannel(req *Request) (channelId string, err error)
	// AnnounceClosure posts the closure notice.
	AnnounceClosure(req *Request) error
}

type Config struct {
	RequiredVotes int
	MaxOpen       time.Duration
	CooldownEvery time.Duration
}

type Service struct {
	db        *gorm.DB
	transport Transport
	assets    assets.Store
	cfg       Config
	closer    *Coordinator
}

func NewService(db *gorm.DB, transport Transport, store assets.Store, cfg Config) *Service {
	if cfg.RequiredVotes <= 0 {
		cfg.RequiredVotes = 10
	}
	if cfg.MaxOpen <= 0 {
		cfg.MaxOpen = 14 * 24 * time.Hour
	}
	if cfg.CooldownEvery <= 0 {
		cfg.CooldownEvery = 7 * 24 * time.Hour
	}
	s := &Service{db: db, transport: transport, assets: store, cfg: cfg}
	s.closer = &Coordinator{db: db, transport: transport}
	return s
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Request{}, &Cooldown{})
}

func (s *Service) Closer() *Coordinator {
	return s.closer
}

func (s *Service) Get(id string) (*Request, error) {
	var req Request
	err := s.db.First(&req, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("request %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// CooldownRemaining reports how long the user must still wait before a
// new submission of this kind. Zero means clear.
func (s *Service) CooldownRemaining(userId, kind string, now time.Time) (time.Duration, error) {
	var cd Cooldown
	err := s.db.First(&cd, "user_id = ? AND kind = ?", userId, kind).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	remaining := s.cfg.CooldownEvery - now.Sub(cd.LastUsed)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// Submit opens a new request: re-hosts the attachment, announces it with
// vote buttons and starts the clock. bypassCooldown is the staff case.
func (s *Service) Submit(kind, name, description, submitterId, guildId string, image []byte, bypassCooldown bool) (*Request, error) {
	if kind != KindMeme && kind != KindEmoji {
		return nil, fmt.Errorf("unknown request kind %q: %w", kind, errs.ErrNotFound)
	}

	now := time.Now()
	if !bypassCooldown {
		remaining, err := s.CooldownRemaining(submitterId, kind, now)
		if err != nil {
			return nil, err
		}
		if remaining > 0 {
			return nil, fmt.Errorf("submission cooldown active for %s: %w", remaining.Round(time.Minute), errs.ErrConflict)
		}
	}

	asset, err := s.assets.Upload(image, "discord_memes")
	if err != nil {
		return nil, err
	}

	req := &Request{
		Id:          uuid.NewString(),
		Kind:        kind,
		Name:        name,
		Description: description,
		SubmitterId: submitterId,
		GuildId:     guildId,
		AssetId:     asset.Id,
		AssetUrl:    asset.Url,
		Status:      StatusOpen,
		Outcome:     OutcomeNone,
	}
	if err = s.db.Create(req).Error; err != nil {
		return nil, err
	}

	channelId, messageId, err := s.transport.PostRequest(req)
	if err != nil {
		_ = s.db.Delete(req).Error
		if delErr := s.assets.Delete(asset.Id); delErr != nil {
			_ = delErr
		}
		return nil, fmt.Errorf("announcing request: %w", errors.Join(err, errs.ErrExternal))
	}
	req.ChannelId = channelId
	req.MessageId = messageId
	err = s.db.Model(req).Updates(map[string]interface{}{"channel_id": channelId, "message_id": messageId}).Error
	if err != nil {
		return nil, err
	}

	if !bypassCooldown {
		err = s.db.Save(&Cooldown{UserId: submitterId, Kind: kind, LastUsed: now}).Error
		if err != nil {
			return nil, err
		}
	}

	return req, nil
}

// Vote toggles/switches the voter's choice. Submitters cannot vote on
// their own request unless staffOverride is set. After every successful
// cast the closure condition is evaluated and, when met, the coordinator
// runs before Vote returns.
func (s *Service) Vote(id, voterId string, choice ledger.Choice, weight int, staffOverride bool) (ledger.Result, error) {
	req, err := s.Get(id)
	if err != nil {
		return "", err
	}
	if req.Status != StatusOpen {
		return "", fmt.Errorf("voting is closed for this request: %w", errs.ErrState)
	}
	if voterId == req.SubmitterId && !staffOverride {
		return "", fmt.Errorf("cannot vote on your own request: %w", errs.ErrForbidden)
	}

	result, err := ledger.Cast(s.db, ledgerItem(id), voterId, choice, weight, func(tx *gorm.DB, c ledger.Choice, delta int) error {
		column := "upvotes"
		if c == ledger.Down {
			column = "downvotes"
		}
		// floored at zero; a consistent ledger never actually hits the floor
		expr := gorm.Expr("CASE WHEN "+column+" + ? < 0 THEN 0 ELSE "+column+" + ? END", delta, delta)
		return tx.Model(&Request{}).Where("id = ?", id).Update(column, expr).Error
	})
	if err != nil {
		return "", err
	}

	metrics.VotesCast.WithLabelValues("request", string(result)).Inc()

	req, err = s.Get(id)
	if err != nil {
		return result, err
	}
	if err = s.transport.UpdateVoteCounts(req, s.cfg.RequiredVotes); err != nil {
		// counter display is best-effort; the ledger is the truth
		_ = err
	}

	if req.Upvotes >= s.cfg.RequiredVotes || req.Downvotes >= s.cfg.RequiredVotes {
		return result, s.closer.Close(id, TriggerThreshold)
	}
	return result, nil
}

// Close is the staff-initiated closure; the outcome computation is the
// same as threshold and timeout closure.
func (s *Service) Close(id string) error {
	return s.closer.Close(id, TriggerManual)
}

// CloseDue closes every open request older than the configured window.
// Wired to the hourly sweep and the boot run.
func (s *Service) CloseDue(now time.Time) error {
	var due []Request
	cutoff := now.Add(-s.cfg.MaxOpen)
	err := s.db.Where("status = ? AND created_at <= ?", StatusOpen, cutoff).Find(&due).Error
	if err != nil {
		return err
	}

	for _, req := range due {
		if err := s.closer.Close(req.Id, TriggerTimeout); err != nil {
			// one stuck request must not hold the rest open until next tick
			logger.Err().Printf("Failed to close overdue request %s: %s", req.Id, err.Error())
		}
	}
	return nil
}

// SweepAssets deletes hosted media for requests that closed more than a
// week ago, mirroring the hourly expiry sweep the media budget needs.
func (s *Service) SweepAssets(now time.Time) error {
	var stale []Request
	cutoff := now.Add(-7 * 24 * time.Hour)
	err := s.db.Where("status = ? AND asset_id <> '' AND updated_at <= ?", StatusClosed, cutoff).Find(&stale).Error
	if err != nil {
		return err
	}

	for _, req := range stale {
		if err := s.assets.Delete(req.AssetId); err != nil {
			return err
		}
		if err := s.db.Model(&Request{}).Where("id = ?", req.Id).Update("asset_id", "").Error; err != nil {
			return err
		}
	}
	return nil
}
