// Package checkouttest содержит планировщик с виртуальным временем для тестов
// автомата оплаты.
package checkouttest

import (
	"sort"
	"sync"
	"time"

	"github.com/magabrotheeeer/hotspot-portal/internal/checkout"
)

// Scheduler выполняет отложенные вызовы только при Advance.
// Колбэки вызываются синхронно в горутине, вызвавшей Advance.
type Scheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*timer
}

type timer struct {
	s       *Scheduler
	when    time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

// NewScheduler создаёт планировщик с нулевым виртуальным временем.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// AfterFunc регистрирует вызов f через d виртуального времени.
func (s *Scheduler) AfterFunc(d time.Duration, f func()) checkout.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &timer{s: s, when: s.now + d, seq: s.seq, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Stop отменяет вызов. Возвращает false, если вызов уже состоялся или отменён.
func (t *timer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance сдвигает время на d и по порядку выполняет наступившие вызовы.
// Допускает повторный вход из колбэка; время никогда не идёт назад.
func (s *Scheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next := s.nextDueLocked(target)
		if next == nil {
			if s.now < target {
				s.now = target
			}
			s.mu.Unlock()
			return
		}
		next.fired = true
		if next.when > s.now {
			s.now = next.when
		}
		s.mu.Unlock()
		next.f()
	}
}

func (s *Scheduler) nextDueLocked(target time.Duration) *timer {
	live := s.timers[:0]
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	s.timers = live
	sort.Slice(s.timers, func(i, j int) bool {
		if s.timers[i].when != s.timers[j].when {
			return s.timers[i].when < s.timers[j].when
		}
		return s.timers[i].seq < s.timers[j].seq
	})
	if len(s.timers) == 0 || s.timers[0].when > target {
		return nil
	}
	return s.timers[0]
}

// Pending число запланированных и не отменённых вызовов.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Now текущее виртуальное время от создания планировщика.
func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}
