package reminders

import (
	"strconv"
	"sync"
	"time"

	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/common/store"
)

const (
	queueInterval = time.Minute
	queueAhead    = time.Minute * 2
	sweepInterval = time.Minute * 5
)

type armedTimer struct {
	timer *time.Timer
	when  int64
}

// Scheduler delivers reminders. The queue loop arms timers for reminders coming up soon and
// the sweep loop catches whatever was missed, such as reminders that came due while the bot was down.
type Scheduler struct {
	sender Sender

	mu     sync.Mutex
	timers map[int64]*armedTimer

	stop    chan struct{}
	stopped sync.WaitGroup
}

func NewScheduler(sender Sender) *Scheduler {
	return &Scheduler{
		sender: sender,
		timers: make(map[int64]*armedTimer),
		stop:   make(chan struct{}),
	}
}

func (s *Scheduler) Run() {
	s.stopped.Add(2)
	go s.loop(queueInterval, s.queueUpcoming)
	go s.loop(sweepInterval, s.sweep)
}

// Stop ends both loops and disarms every pending timer
func (s *Scheduler) Stop() {
	close(s.stop)
	s.stopped.Wait()

	s.mu.Lock()
	for id, t := range s.timers {
		t.timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
}

func (s *Scheduler) loop(interval time.Duration, f func(now time.Time)) {
	defer s.stopped.Done()

	f(time.Now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			f(now)
		}
	}
}

func dueBefore(t time.Time) ([]*Reminder, error) {
	var out []*Reminder
	pivot := `{"when":` + strconv.FormatInt(t.Unix(), 10) + `}`
	err := common.Store.AscendIndexBelow(indexWhen, pivot, func(key, raw string) bool {
		var r Reminder
		if err := store.Decode(raw, &r); err != nil {
			logger.WithError(err).WithField("key", key).Error("Failed decoding reminder")
			return true
		}
		out = append(out, &r)
		return true
	})
	return out, err
}

func (s *Scheduler) queueUpcoming(now time.Time) {
	upcoming, err := dueBefore(now.Add(queueAhead))
	if err != nil {
		logger.WithError(err).Error("Failed scanning upcoming reminders")
		return
	}

	for _, r := range upcoming {
		s.arm(r, now)
	}
}

func (s *Scheduler) sweep(now time.Time) {
	overdue, err := dueBefore(now.Add(time.Second))
	if err != nil {
		logger.WithError(err).Error("Failed scanning overdue reminders")
		return
	}

	for _, r := range overdue {
		s.Cancel(r.ID)
		if err := Fire(s.sender, r, now); err != nil {
			logger.WithError(err).WithField("id", r.ID).Error("Failed firing overdue reminder")
		}
	}
}

// Add arms a timer right away for a new reminder that's due before the next queue pass
func (s *Scheduler) Add(r *Reminder) {
	now := time.Now()
	if r.Time().Before(now.Add(queueAhead)) {
		s.arm(r, now)
	}
}

func (s *Scheduler) arm(r *Reminder, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[r.ID]; ok {
		if existing.when == r.When {
			return
		}
		existing.timer.Stop()
	}

	entry := &armedTimer{when: r.When}
	entry.timer = time.AfterFunc(r.Time().Sub(now), func() {
		s.mu.Lock()
		if s.timers[r.ID] == entry {
			delete(s.timers, r.ID)
		}
		s.mu.Unlock()

		if err := Fire(s.sender, r, time.Now()); err != nil {
			logger.WithError(err).WithField("id", r.ID).Error("Failed firing reminder")
		}
	})
	s.timers[r.ID] = entry
}

// Cancel disarms the timer of a reminder, if any
func (s *Scheduler) Cancel(id int64) {
	s.mu.Lock()
	if t, ok := s.timers[id]; ok {
		t.timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
}

// Queued returns how many timers are armed
func (s *Scheduler) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
