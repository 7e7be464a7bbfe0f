package ledger

import (
	"errors"
	"testing"

	"github.com/eclipsabot/eclipsa/errs"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard, TranslateError: true})
	if err != nil {
		t.Fatalf("open test db: %s", err)
	}
	if err = Migrate(db); err != nil {
		t.Fatalf("migrate: %s", err)
	}
	return db
}

// counters is a minimal stand-in for the per-item totals the workflows
// maintain through Tally.
type counters struct {
	up   int
	down int
}

func (c *counters) tally(_ *gorm.DB, choice Choice, delta int) error {
	if choice == Up {
		c.up += delta
	} else {
		c.down += delta
	}
	return nil
}

func (c *counters) mustMatchRecount(t *testing.T, db *gorm.DB, itemId string) {
	t.Helper()
	up, down, err := Recount(db, itemId)
	if err != nil {
		t.Fatalf("recount: %s", err)
	}
	if up != c.up || down != c.down {
		t.Errorf("counters (%d, %d) drifted from recount (%d, %d)", c.up, c.down, up, down)
	}
}

func Test_Cast(t *testing.T) {
	t.Run("same direction twice toggles the vote off", func(t *testing.T) {
		db := newTestDB(t)
		c := &counters{}

		res, err := Cast(db, "item", "alice", Up, 1, c.tally)
		if err != nil {
			t.Fatal(err)
		}
		if res != Added {
			t.Errorf("expected added, got %s", res)
		}
		if c.up != 1 {
			t.Errorf("expected up=1, got %d", c.up)
		}

		res, err = Cast(db, "item", "alice", Up, 1, c.tally)
		if err != nil {
			t.Fatal(err)
		}
		if res != Removed {
			t.Errorf("expected removed, got %s", res)
		}
		if c.up != 0 || c.down != 0 {
			t.Errorf("expected counters back to zero, got (%d, %d)", c.up, c.down)
		}
		c.mustMatchRecount(t, db, "item")
	})

	t.Run("opposite direction switches the full weight", func(t *testing.T) {
		db := newTestDB(t)
		c := &counters{}

		_, err := Cast(db, "item", "alice", Up, 2, c.tally)
		if err != nil {
			t.Fatal(err)
		}

		res, err := Cast(db, "item", "alice", Down, 2, c.tally)
		if err != nil {
			t.Fatal(err)
		}
		if res != Switched {
			t.Errorf("expected switched, got %s", res)
		}
		if c.up != 0 || c.down != 2 {
			t.Errorf("expected (0, 2), got (%d, %d)", c.up, c.down)
		}
		c.mustMatchRecount(t, db, "item")
	})

	t.Run("reversal uses the weight that was applied", func(t *testing.T) {
		db := newTestDB(t)
		c := &counters{}

		// vote lands at weight 1, the voter later turns premium
		_, err := Cast(db, "item", "alice", Up, 1, c.tally)
		if err != nil {
			t.Fatal(err)
		}

		_, err = Cast(db, "item", "alice", Down, 2, c.tally)
		if err != nil {
			t.Fatal(err)
		}
		if c.up != 0 || c.down != 2 {
			t.Errorf("expected (0, 2), got (%d, %d)", c.up, c.down)
		}

		_, err = Cast(db, "item", "alice", Down, 2, c.tally)
		if err != nil {
			t.Fatal(err)
		}
		if c.up != 0 || c.down != 0 {
			t.Errorf("expected counters back to zero, got (%d, %d)", c.up, c.down)
		}
	})

	t.Run("duplicate entry writes surface as duplicates, not generic errors", func(t *testing.T) {
		db := newTestDB(t)

		err := db.Create(&Entry{ItemId: "item", UserId: "alice", Choice: Up, Weight: 1}).Error
		if err != nil {
			t.Fatal(err)
		}
		err = db.Create(&Entry{ItemId: "item", UserId: "alice", Choice: Down, Weight: 1}).Error
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			t.Errorf("expected duplicated key, got %v", err)
		}
	})

	t.Run("non-positive weight is rejected", func(t *testing.T) {
		db := newTestDB(t)
		c := &counters{}

		_, err := Cast(db, "item", "alice", Up, 0, c.tally)
		if !errors.Is(err, errs.ErrConflict) {
			t.Errorf("expected conflict, got %v", err)
		}
	})

	t.Run("votes by different users accumulate independently", func(t *testing.T) {
		db := newTestDB(t)
		c := &counters{}

		voters := []string{"alice", "bob", "carol", "dave"}
		for _, v := range voters {
			if _, err := Cast(db, "item", v, Up, 1, c.tally); err != nil {
				t.Fatal(err)
			}
		}
		if _, err := Cast(db, "item", "bob", Up, 1, c.tally); err != nil {
			t.Fatal(err)
		}
		if _, err := Cast(db, "item", "carol", Down, 1, c.tally); err != nil {
			t.Fatal(err)
		}

		if c.up != 2 || c.down != 1 {
			t.Errorf("expected (2, 1), got (%d, %d)", c.up, c.down)
		}
		c.mustMatchRecount(t, db, "item")
	})

	t.Run("items do not bleed into each other", func(t *testing.T) {
		db := newTestDB(t)
		a := &counters{}
		b := &counters{}

		if _, err := Cast(db, "item-a", "alice", Up, 1, a.tally); err != nil {
			t.Fatal(err)
		}
		if _, err := Cast(db, "item-b", "alice", Down, 1, b.tally); err != nil {
			t.Fatal(err)
		}

		a.mustMatchRecount(t, db, "item-a")
		b.mustMatchRecount(t, db, "item-b")
	})
}

func Test_Reset(t *testing.T) {
	db := newTestDB(t)
	c := &counters{}

	if _, err := Cast(db, "item", "alice", Up, 1, c.tally); err != nil {
		t.Fatal(err)
	}
	if _, err := Cast(db, "item", "bob", Down, 1, c.tally); err != nil {
		t.Fatal(err)
	}

	if err := Reset(db, "item"); err != nil {
		t.Fatal(err)
	}

	up, down, err := Recount(db, "item")
	if err != nil {
		t.Fatal(err)
	}
	if up != 0 || down != 0 {
		t.Errorf("expected empty ledger, got (%d, %d)", up, down)
	}

	// a reset voter can vote fresh again
	res, err := Cast(db, "item", "alice", Down, 1, c.tally)
	if err != nil {
		t.Fatal(err)
	}
	if res != Added {
		t.Errorf("expected added after reset, got %s", res)
	}
}

func Test_Voted(t *testing.T) {
	db := newTestDB(t)
	c := &counters{}

	_, ok, err := Voted(db, "item", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected no standing choice")
	}

	if _, err = Cast(db, "item", "alice", Down, 1, c.tally); err != nil {
		t.Fatal(err)
	}

	choice, ok, err := Voted(db, "item", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || choice != Down {
		t.Errorf("expected standing down vote, got %q (%v)", choice, ok)
	}
}
