// Package retention purges expired sessions and summaries. Rooms have
// a hard lifetime regardless of activity; nothing about a group
// session should outlive its retention window.
package retention

import (
	"time"

	"github.com/sirupsen/logrus"

	"session-relay-backend/internal/store"
)

type Sweeper struct {
	store    store.SessionStore
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewSweeper(st store.SessionStore, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    st,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go s.run()
	logrus.WithField("component", "retention").
		Infof("sweeper started, interval %s", s.interval)
}

func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Sweeper) sweep() {
	log := logrus.WithField("component", "retention")

	sessions, err := s.store.DeleteExpiredSessions(time.Now())
	if err != nil {
		log.Warnf("session purge failed: %v", err)
	} else if sessions > 0 {
		log.Infof("purged %d expired sessions", sessions)
	}

	summaries, err := s.store.DeleteExpiredSummaries(time.Now())
	if err != nil {
		log.Warnf("summary purge failed: %v", err)
	} else if summaries > 0 {
		log.Infof("purged %d expired summaries", summaries)
	}
}
