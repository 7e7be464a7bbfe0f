package contest

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/eclipsabot/eclipsa/assets"
	"github.com/eclipsabot/eclipsa/errs"
	"github.com/eclipsabot/eclipsa/ledger"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeStore struct {
	mu      sync.Mutex
	uploads int
	deleted []string
}

func (f *fakeStore) Upload(data []byte, folder string) (*assets.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	return &assets.Asset{
		Id:  fmt.Sprintf("asset-%d", f.uploads),
		Url: fmt.Sprintf("https://img.test/asset-%d", f.uploads),
	}, nil
}

func (f *fakeStore) Transform(url string, ops ...string) string {
	return url + "?transformed"
}

func (f *fakeStore) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeTransport struct {
	mu           sync.Mutex
	posts        int
	published    int
	lastBoard    []Participant
	deletedMsgs  []string
	disableCalls int
}

func (f *fakeTransport) CreateChannels(c *Contest) (string, string, error) {
	return "announce", "submissions", nil
}

func (f *fakeTransport) PostSubmission(c *Contest, p *Participant) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts++
	return fmt.Sprintf("msg-%d", f.posts), nil
}

func (f *fakeTransport) DeleteMessage(channelId, messageId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedMsgs = append(f.deletedMsgs, messageId)
	return nil
}

func (f *fakeTransport) PublishResults(c *Contest, board []Participant, winnerImageUrl string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published++
	f.lastBoard = board
	return nil
}

func (f *fakeTransport) DisableVoting(channelId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disableCalls++
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeTransport, *fakeStore) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard, TranslateError: true})
	if err != nil {
		t.Fatalf("open test db: %s", err)
	}
	if err = Migrate(db); err != nil {
		t.Fatalf("migrate: %s", err)
	}
	if err = ledger.Migrate(db); err != nil {
		t.Fatalf("migrate ledger: %s", err)
	}
	transport := &fakeTransport{}
	store := &fakeStore{}
	return NewService(db, transport, store), transport, store
}

func startedContest(t *testing.T, s *Service) *Contest {
	t.Helper()
	c, err := s.Create("guild", "Spring Memes", "best meme wins", time.Now().Add(7*24*time.Hour), "nitro", "staff-1", "Staff", []byte("img"))
	if err != nil {
		t.Fatalf("create: %s", err)
	}
	c, err = s.Start(c.Id)
	if err != nil {
		t.Fatalf("start: %s", err)
	}
	return c
}

func Test_Create(t *testing.T) {
	t.Run("only one contest may run at a time", func(t *testing.T) {
		s, _, _ := newTestService(t)
		startedContest(t, s)

		_, err := s.Create("guild", "Second", "", time.Now().Add(time.Hour), "", "staff-1", "Staff", []byte("img"))
		if !errors.Is(err, errs.ErrConflict) {
			t.Errorf("expected conflict, got %v", err)
		}
	})

	t.Run("queueing is fine while nothing runs", func(t *testing.T) {
		s, _, _ := newTestService(t)
		for i := 0; i < 3; i++ {
			_, err := s.Create("guild", fmt.Sprintf("Contest %d", i), "", time.Now().Add(time.Hour), "", "staff-1", "Staff", []byte("img"))
			if err != nil {
				t.Fatalf("create %d: %s", i, err)
			}
		}
	})
}

func Test_Start(t *testing.T) {
	t.Run("running contest cannot start twice", func(t *testing.T) {
		s, _, _ := newTestService(t)
		c := startedContest(t, s)

		_, err := s.Start(c.Id)
		if !errors.Is(err, errs.ErrState) {
			t.Errorf("expected state error, got %v", err)
		}
	})

	t.Run("start records the channels", func(t *testing.T) {
		s, _, _ := newTestService(t)
		c := startedContest(t, s)

		if c.Status != StatusRunning {
			t.Errorf("expected running, got %s", c.Status)
		}
		if c.AnnounceChannelId != "announce" || c.SubmissionChannelId != "submissions" {
			t.Errorf("channels not recorded: %q %q", c.AnnounceChannelId, c.SubmissionChannelId)
		}
	})
}

func Test_Submit(t *testing.T) {
	t.Run("one entry per user", func(t *testing.T) {
		s, _, _ := newTestService(t)
		c := startedContest(t, s)

		_, err := s.Submit(c.Id, "alice", "Alice", []byte("meme"))
		if err != nil {
			t.Fatal(err)
		}
		_, err = s.Submit(c.Id, "alice", "Alice", []byte("meme2"))
		if !errors.Is(err, errs.ErrConflict) {
			t.Errorf("expected conflict, got %v", err)
		}
	})

	t.Run("ready contest takes no entries", func(t *testing.T) {
		s, _, _ := newTestService(t)
		c, err := s.Create("guild", "Pending", "", time.Now().Add(time.Hour), "", "staff-1", "Staff", []byte("img"))
		if err != nil {
			t.Fatal(err)
		}
		_, err = s.Submit(c.Id, "alice", "Alice", []byte("meme"))
		if !errors.Is(err, errs.ErrState) {
			t.Errorf("expected state error, got %v", err)
		}
	})

	t.Run("excluded user is barred until forgiven", func(t *testing.T) {
		s, _, _ := newTestService(t)
		c := startedContest(t, s)

		if _, err := s.Submit(c.Id, "alice", "Alice", []byte("meme")); err != nil {
			t.Fatal(err)
		}
		if err := s.Moderate(c.Id, "alice", ActionExclude, "reposted content"); err != nil {
			t.Fatal(err)
		}

		_, err := s.Submit(c.Id, "alice", "Alice", []byte("meme2"))
		if !errors.Is(err, errs.ErrForbidden) {
			t.Errorf("expected forbidden, got %v", err)
		}

		if err := s.Forgive(c.Id, "alice"); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Submit(c.Id, "alice", "Alice", []byte("meme3")); err != nil {
			t.Errorf("expected resubmission after forgive, got %v", err)
		}
	})
}

func Test_Vote(t *testing.T) {
	t.Run("no votes on your own meme", func(t *testing.T) {
		s, _, _ := newTestService(t)
		c := startedContest(t, s)
		if _, err := s.Submit(c.Id, "alice", "Alice", []byte("meme")); err != nil {
			t.Fatal(err)
		}

		_, err := s.Vote(c.Id, "alice", "alice", ledger.Up, 1)
		if !errors.Is(err, errs.ErrForbidden) {
			t.Errorf("expected forbidden, got %v", err)
		}
	})

	t.Run("net score follows the ledger", func(t *testing.T) {
		s, _, _ := newTestService(t)
		c := startedContest(t, s)
		if _, err := s.Submit(c.Id, "alice", "Alice", []byte("meme")); err != nil {
			t.Fatal(err)
		}

		if _, err := s.Vote(c.Id, "alice", "bob", ledger.Up, 1); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Vote(c.Id, "alice", "carol", ledger.Up, 2); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Vote(c.Id, "alice", "dave", ledger.Down, 1); err != nil {
			t.Fatal(err)
		}

		p := participant(t, s, c.Id, "alice")
		if p.Votes != 2 {
			t.Errorf("expected net score 2, got %d", p.Votes)
		}

		// bob toggles off
		if _, err := s.Vote(c.Id, "alice", "bob", ledger.Up, 1); err != nil {
			t.Fatal(err)
		}
		p = participant(t, s, c.Id, "alice")
		if p.Votes != 1 {
			t.Errorf("expected net score 1 after toggle, got %d", p.Votes)
		}

		// carol switches, moving her full weight across
		if _, err := s.Vote(c.Id, "alice", "carol", ledger.Down, 2); err != nil {
			t.Fatal(err)
		}
		p = participant(t, s, c.Id, "alice")
		if p.Votes != -3 {
			t.Errorf("expected net score -3 after switch, got %d", p.Votes)
		}
	})

	t.Run("unknown participant", func(t *testing.T) {
		s, _, _ := newTestService(t)
		c := startedContest(t, s)

		_, err := s.Vote(c.Id, "ghost", "bob", ledger.Up, 1)
		if !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func Test_Withdraw(t *testing.T) {
	s, transport, store := newTestService(t)
	c := startedContest(t, s)

	p, err := s.Submit(c.Id, "alice", "Alice", []byte("meme"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err = s.Vote(c.Id, "alice", "bob", ledger.Up, 1); err != nil {
		t.Fatal(err)
	}

	if err = s.Withdraw(c.Id, "alice"); err != nil {
		t.Fatal(err)
	}

	if len(transport.deletedMsgs) != 1 || transport.deletedMsgs[0] != p.MessageId {
		t.Errorf("expected submission message %s deleted, got %v", p.MessageId, transport.deletedMsgs)
	}
	found := false
	for _, id := range store.deleted {
		if id == p.AssetId {
			found = true
		}
	}
	if !found {
		t.Errorf("expected asset %s deleted, got %v", p.AssetId, store.deleted)
	}

	// ledger entries go with the entry, so a fresh submission starts clean
	if _, err = s.Submit(c.Id, "alice", "Alice", []byte("meme2")); err != nil {
		t.Fatal(err)
	}
	up, down, err := ledger.Recount(s.db, ledgerItem(c.Id, "alice"))
	if err != nil {
		t.Fatal(err)
	}
	if up != 0 || down != 0 {
		t.Errorf("expected clean ledger after withdraw, got (%d, %d)", up, down)
	}
}

func Test_Moderate(t *testing.T) {
	t.Run("reset votes zeroes score and ledger", func(t *testing.T) {
		s, _, _ := newTestService(t)
		c := startedContest(t, s)
		if _, err := s.Submit(c.Id, "alice", "Alice", []byte("meme")); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Vote(c.Id, "alice", "bob", ledger.Up, 2); err != nil {
			t.Fatal(err)
		}

		if err := s.Moderate(c.Id, "alice", ActionResetVotes, "vote trading"); err != nil {
			t.Fatal(err)
		}

		p := participant(t, s, c.Id, "alice")
		if p.Votes != 0 {
			t.Errorf("expected score 0, got %d", p.Votes)
		}
		up, down, err := ledger.Recount(s.db, ledgerItem(c.Id, "alice"))
		if err != nil {
			t.Fatal(err)
		}
		if up != 0 || down != 0 {
			t.Errorf("expected empty ledger, got (%d, %d)", up, down)
		}

		// same voters may vote again
		if _, err := s.Vote(c.Id, "alice", "bob", ledger.Up, 2); err != nil {
			t.Errorf("expected fresh vote after reset, got %v", err)
		}
	})

	t.Run("remove without exclusion allows resubmission", func(t *testing.T) {
		s, _, _ := newTestService(t)
		c := startedContest(t, s)
		if _, err := s.Submit(c.Id, "alice", "Alice", []byte("meme")); err != nil {
			t.Fatal(err)
		}

		if err := s.Moderate(c.Id, "alice", ActionRemove, "wrong channel"); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Submit(c.Id, "alice", "Alice", []byte("meme2")); err != nil {
			t.Errorf("expected resubmission after remove, got %v", err)
		}
	})

	t.Run("forgiving a user who is not excluded", func(t *testing.T) {
		s, _, _ := newTestService(t)
		c := startedContest(t, s)

		err := s.Forgive(c.Id, "alice")
		if !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func Test_Standings(t *testing.T) {
	s, _, _ := newTestService(t)
	c := startedContest(t, s)

	for _, u := range []string{"t1", "t2", "t3"} {
		if _, err := s.Submit(c.Id, u, u, []byte("meme")); err != nil {
			t.Fatal(err)
		}
	}

	// t1 and t2 tie at 5, t2 submitted first; t3 trails at 3
	base := time.Now().Add(-time.Hour)
	setSubmittedAt(t, s, c.Id, "t2", base)
	setSubmittedAt(t, s, c.Id, "t1", base.Add(time.Minute))
	setSubmittedAt(t, s, c.Id, "t3", base.Add(2*time.Minute))
	setVotes(t, s, c.Id, "t1", 5)
	setVotes(t, s, c.Id, "t2", 5)
	setVotes(t, s, c.Id, "t3", 3)

	board, err := s.Standings(c.Id, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(board) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(board))
	}
	expected := []string{"t2", "t1", "t3"}
	for i, want := range expected {
		if board[i].UserId != want {
			t.Errorf("rank %d: expected %s, got %s", i+1, want, board[i].UserId)
		}
	}
}

func Test_End(t *testing.T) {
	t.Run("results publish exactly once", func(t *testing.T) {
		s, transport, _ := newTestService(t)
		c := startedContest(t, s)
		if _, err := s.Submit(c.Id, "alice", "Alice", []byte("meme")); err != nil {
			t.Fatal(err)
		}

		if err := s.End(c.Id, TriggerManual); err != nil {
			t.Fatal(err)
		}
		if transport.published != 1 {
			t.Errorf("expected one publication, got %d", transport.published)
		}

		err := s.End(c.Id, TriggerManual)
		if !errors.Is(err, errs.ErrState) {
			t.Errorf("expected state error on second end, got %v", err)
		}
		if err = s.End(c.Id, TriggerScheduled); err != nil {
			t.Errorf("scheduled end of a closed contest should be quiet, got %v", err)
		}
		if transport.published != 1 {
			t.Errorf("expected still one publication, got %d", transport.published)
		}
	})

	t.Run("ending frees the slot for the next contest", func(t *testing.T) {
		s, _, _ := newTestService(t)
		c := startedContest(t, s)
		if err := s.End(c.Id, TriggerManual); err != nil {
			t.Fatal(err)
		}

		if _, err := s.Create("guild", "Next", "", time.Now().Add(time.Hour), "", "staff-1", "Staff", []byte("img")); err != nil {
			t.Errorf("expected create after end, got %v", err)
		}
	})

	t.Run("empty contest ends without publishing", func(t *testing.T) {
		s, transport, _ := newTestService(t)
		c := startedContest(t, s)

		if err := s.End(c.Id, TriggerManual); err != nil {
			t.Fatal(err)
		}
		if transport.published != 0 {
			t.Errorf("expected no publication for empty contest, got %d", transport.published)
		}
		if transport.disableCalls != 1 {
			t.Errorf("expected vote buttons disabled once, got %d", transport.disableCalls)
		}
	})
}

func Test_ConcurrentVotes(t *testing.T) {
	s, _, _ := newTestService(t)
	c := startedContest(t, s)
	if _, err := s.Submit(c.Id, "alice", "Alice", []byte("meme")); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			voter := fmt.Sprintf("voter-%d", n)
			choice := ledger.Up
			weight := 1
			if n%3 == 0 {
				choice = ledger.Down
			}
			if n%4 == 0 {
				weight = 2
			}
			if _, err := s.Vote(c.Id, "alice", voter, choice, weight); err != nil {
				t.Errorf("vote by %s: %s", voter, err)
			}
		}(i)
	}
	wg.Wait()

	up, down, err := ledger.Recount(s.db, ledgerItem(c.Id, "alice"))
	if err != nil {
		t.Fatal(err)
	}
	p := participant(t, s, c.Id, "alice")
	if p.Votes != up-down {
		t.Errorf("net score %d drifted from recount %d-%d", p.Votes, up, down)
	}
}

func Test_RacingEnders(t *testing.T) {
	s, transport, _ := newTestService(t)
	c := startedContest(t, s)
	if _, err := s.Submit(c.Id, "alice", "Alice", []byte("meme")); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// scheduled closers stay quiet when they lose the claim
			if err := s.End(c.Id, TriggerScheduled); err != nil {
				t.Errorf("end: %s", err)
			}
		}()
	}
	wg.Wait()

	if transport.published != 1 {
		t.Errorf("expected exactly one publication, got %d", transport.published)
	}
	if got, err := s.Get(c.Id); err != nil || got.Status != StatusEnded {
		t.Errorf("expected ended contest, got %v %v", got, err)
	}
}

func Test_CloseDue(t *testing.T) {
	s, transport, _ := newTestService(t)
	c := startedContest(t, s)
	if _, err := s.Submit(c.Id, "alice", "Alice", []byte("meme")); err != nil {
		t.Fatal(err)
	}

	if err := s.CloseDue(time.Now()); err != nil {
		t.Fatal(err)
	}
	if transport.published != 0 {
		t.Error("contest closed before its deadline")
	}

	if err := s.CloseDue(c.Deadline.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if transport.published != 1 {
		t.Errorf("expected publication after deadline, got %d", transport.published)
	}

	// the sweep stays quiet once everything is closed
	if err := s.CloseDue(c.Deadline.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if transport.published != 1 {
		t.Errorf("expected no second publication, got %d", transport.published)
	}
}

func participant(t *testing.T, s *Service, contestId, userId string) *Participant {
	t.Helper()
	var p Participant
	err := s.db.First(&p, "contest_id = ? AND user_id = ?", contestId, userId).Error
	if err != nil {
		t.Fatalf("load participant %s: %s", userId, err)
	}
	return &p
}

func setVotes(t *testing.T, s *Service, contestId, userId string, votes int) {
	t.Helper()
	err := s.db.Model(&Participant{}).
		Where("contest_id = ? AND user_id = ?", contestId, userId).
		Update("votes", votes).Error
	if err != nil {
		t.Fatal(err)
	}
}

func setSubmittedAt(t *testing.T, s *Service, contestId, userId string, at time.Time) {
	t.Helper()
	err := s.db.Model(&Participant{}).
		Where("contest_id = ? AND user_id = ?", contestId, userId).
		Update("submitted_at", at).Error
	if err != nil {
		t.Fatal(err)
	}
}
