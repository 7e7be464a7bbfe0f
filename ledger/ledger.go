// Package ledger keeps the per-item vote tally: one standing choice per
// voter per item, with enough information to reverse any voter's effect
// exactly. Both the contest and the request workflows run their votes
// through it; which counters a cast moves is up to the caller's Tally.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/eclipsabot/eclipsa/errs"
	"gorm.io/gorm"
)

type Choice string

const (
	Up   Choice = "up"
	Down Choice = "down"
)

type Result string

const (
	// Added means the voter had no standing choice and one was recorded.
	Added Result = "added"
	// Removed means the voter pressed the same direction again and the
	// choice was withdrawn.
	Removed Result = "removed"
	// Switched means the voter's standing choice moved to the other
	// direction.
	Switched Result = "switched"
)

// Entry is one voter's standing choice on one item. Weight is the
// magnitude that was applied to the counters when the choice was
// recorded; reversal always uses this stored value, so a voter whose
// premium status changed since is still backed out exactly.
type Entry struct {
	Id        uint   `gorm:"primaryKey"`
	ItemId    string `gorm:"uniqueIndex:ledger_idx;size:96"`
	UserId    string `gorm:"uniqueIndex:ledger_idx;size:32"`
	Choice    Choice `gorm:"size:8"`
	Weight    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tally applies a counter delta for the item inside the same transaction
// as the entry write. delta is positive when a choice is recorded and
// negative when one is reversed.
type Tally func(tx *gorm.DB, choice Choice, delta int) error

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Entry{})
}

// Cast records, withdraws or switches a voter's choice and moves the
// caller's counters by the matching deltas, all in one transaction.
// Concurrent casts by the same voter are serialized by per-row guards: a
// cast that observes stale state fails with ErrConflict instead of
// double-counting.
func Cast(db *gorm.DB, itemId, userId string, choice Choice, weight int, tally Tally) (Result, error) {
	if weight <= 0 {
		return "", fmt.Errorf("vote weight must be positive: %w", errs.ErrConflict)
	}

	var result Result
	err := db.Transaction(func(tx *gorm.DB) error {
		var prior Entry
		err := tx.Where("item_id = ? AND user_id = ?", itemId, userId).First(&prior).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			entry := &Entry{ItemId: itemId, UserId: userId, Choice: choice, Weight: weight}
			if err = tx.Create(entry).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					// unique index hit: another handler recorded this voter first
					return fmt.Errorf("vote already recorded: %w", errs.ErrConflict)
				}
				return err
			}
			result = Added
			return tally(tx, choice, weight)
		}
		if err != nil {
			return err
		}

		if prior.Choice == choice {
			res := tx.Where("id = ? AND choice = ?", prior.Id, prior.Choice).Delete(&Entry{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("vote changed concurrently: %w", errs.ErrConflict)
			}
			result = Removed
			return tally(tx, prior.Choice, -prior.Weight)
		}

		res := tx.Model(&Entry{}).
			Where("id = ? AND choice = ?", prior.Id, prior.Choice).
			Updates(map[string]interface{}{"choice": choice, "weight": weight})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("vote changed concurrently: %w", errs.ErrConflict)
		}
		result = Switched
		if err = tally(tx, prior.Choice, -prior.Weight); err != nil {
			return err
		}
		return tally(tx, choice, weight)
	})

	if err != nil {
		return "", err
	}
	return result, nil
}

// Recount recomputes the per-direction totals from the standing entries.
// The counters a Tally maintains must always equal these sums; moderation
// and tests use this to check the invariant.
func Recount(db *gorm.DB, itemId string) (up int, down int, err error) {
	var entries []Entry
	err = db.Where("item_id = ?", itemId).Find(&entries).Error
	if err != nil {
		return 0, 0, err
	}

	for _, e := range entries {
		switch e.Choice {
		case Up:
			up += e.Weight
		case Down:
			down += e.Weight
		}
	}
	return up, down, nil
}

// Reset drops every standing entry for an item. Runs inside the caller's
// transaction so the counter zeroing lands with it.
func Reset(tx *gorm.DB, itemId string) error {
	return tx.Where("item_id = ?", itemId).Delete(&Entry{}).Error
}

// Voted reports the voter's standing choice, if any.
func Voted(db *gorm.DB, itemId, userId string) (Choice, bool, error) {
	var entry Entry
	err := db.Where("item_id = ? AND user_id = ?", itemId, userId).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Choice, true, nil
}
