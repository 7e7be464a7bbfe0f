package requests

import (
	"errors"
	"fmt"

	"github.com/eclipsabot/eclipsa/api/logger"
	"github.com/eclipsabot/eclipsa/errs"
	"github.com/eclipsabot/eclipsa/metrics"
	"gorm.io/gorm"
)

type Trigger string

const (
	TriggerThreshold Trigger = "threshold"
	TriggerTimeout   Trigger = "timeout"
	TriggerManual    Trigger = "manual"
)

// Coordinator is the single choke point for terminal request transitions.
// Whether the vote threshold, the timeout sweep or a staff command fires
// first, the status flip is one conditional update that also computes the
// outcome from the counters in the same statement, so a second closer
// finds the request closed and does nothing. External side effects run
// only on the claim that won, and failures there are logged, never
// retried and never allowed to undo the terminal state.
type Coordinator struct {
	db        *gorm.DB
	transport Transport
}

// Close moves an open request to closed and performs the accepted-side
// effects at most once. Closing an already-closed request is a no-op.
func (c *Coordinator) Close(id string, trigger Trigger) error {
	var req Request
	err := c.db.First(&req, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("request %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if req.Status == StatusClosed {
		return nil
	}

	// one statement claims the closure and derives the outcome from the
	// counters as they are at that instant; ties close rejected
	res := c.db.Model(&Request{}).
		Where("id = ? AND status = ?", id, StatusOpen).
		Updates(map[string]interface{}{
			"status":  StatusClosed,
			"outcome": gorm.Expr("CASE WHEN upvotes > downvotes THEN ? ELSE ? END", OutcomeAccepted, OutcomeRejected),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// a concurrent closer claimed it first
		return nil
	}

	err = c.db.First(&req, "id = ?", id).Error
	if err != nil {
		return err
	}

	metrics.Closures.WithLabelValues(req.Kind, req.Outcome, string(trigger)).Inc()
	logger.Out().Printf("Request %s (%s) closed as %s via %s", req.Id, req.Kind, req.Outcome, trigger)

	if req.Outcome == OutcomeAccepted {
		c.applyAcceptance(&req)
	}

	if err = c.transport.AnnounceClosure(&req); err != nil {
		logger.Err().Printf("Failed to announce closure of %s: %s", req.Id, err.Error())
	}
	if req.MessageId != "" {
		if err = c.transport.DeleteMessage(req.ChannelId, req.MessageId); err != nil {
			logger.Err().Printf("Failed to remove announcement for %s: %s", req.Id, err.Error())
		}
	}
	return nil
}

func (c *Coordinator) applyAcceptance(req *Request) {
	switch req.Kind {
	case KindEmoji:
		created, err := c.transport.CreateEmoji(req.GuildId, req.Name, req.AssetUrl)
		if err != nil {
			logger.Err().Printf("Failed to create emoji for %s: %s", req.Id, err.Error())
			return
		}
		if !created {
			logger.Out().Printf("Emoji %q already exists, skipping creation for %s", req.Name, req.Id)
		}
	case KindMeme:
		channelId, err := c.transport.CreateMemeChannel(req)
		if err != nil {
			logger.Err().Printf("Failed to create meme channel for %s: %s", req.Id, err.Error())
			return
		}
		err = c.db.Model(&Request{}).Where("id = ?", req.Id).Update("meme_channel_id", channelId).Error
		if err != nil {
			logger.Err().Printf("Failed to record meme channel for %s: %s", req.Id, err.Error())
		}
		req.MemeChannelId = channelId
	}
}
