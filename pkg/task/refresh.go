package task

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/small-frappuccino/ally/pkg/alliances"
	"github.com/small-frappuccino/ally/pkg/nations"
	"github.com/small-frappuccino/ally/pkg/storage"
)

const (
	taskRefreshNation   = "refresh_nation"
	taskRefreshAlliance = "refresh_alliance"
)

// NationRefresher is the nation pipeline slice the scheduler drives.
type NationRefresher interface {
	NationByID(ctx context.Context, nationID int, opts nations.RefreshOptions) (*storage.Nation, error)
}

// AllianceRefresher is the alliance pipeline slice the scheduler drives.
type AllianceRefresher interface {
	AllianceByID(ctx context.Context, allianceID int, opts alliances.RefreshOptions) (*storage.Alliance, error)
}

// ReferenceIndex enumerates the entities any guild currently references.
type ReferenceIndex interface {
	AllReferencedNationIDs() ([]int, error)
	AllReferencedAllianceIDs() ([]int, error)
}

// RefreshScheduler keeps referenced nations and alliances warm by sweeping
// the reference indexes on an interval and dispatching one refresh task per
// entity. Entities whose stored copy is still fresh are cheap no-ops in the
// pipeline, so sweeps may safely overlap the freshness window.
type RefreshScheduler struct {
	router    *Router
	nations   NationRefresher
	alliances AllianceRefresher
	index     ReferenceIndex
	interval  time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewRefreshScheduler wires a scheduler onto an existing router.
func NewRefreshScheduler(r *Router, n NationRefresher, a AllianceRefresher, idx ReferenceIndex, interval time.Duration) *RefreshScheduler {
	s := &RefreshScheduler{
		router:    r,
		nations:   n,
		alliances: a,
		index:     idx,
		interval:  interval,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	r.RegisterHandler(taskRefreshNation, s.refreshNation)
	r.RegisterHandler(taskRefreshAlliance, s.refreshAlliance)
	return s
}

// Start launches the sweep loop. The first sweep runs after one interval.
func (s *RefreshScheduler) Start() {
	go func() {
		defer close(s.done)
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-t.C:
				s.sweep()
			}
		}
	}()
}

// Stop halts the sweep loop. In-flight refresh tasks finish through the
// router's own shutdown.
func (s *RefreshScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.done
	})
}

// sweep enqueues one refresh task per referenced entity. Duplicate dispatches
// within the idempotency window are expected and skipped silently.
func (s *RefreshScheduler) sweep() {
	nationIDs, err := s.index.AllReferencedNationIDs()
	if err != nil {
		slog.Error("refresh sweep could not list nations", "error", err)
	} else {
		s.dispatchAll(taskRefreshNation, "nation:", nationIDs)
	}

	allianceIDs, err := s.index.AllReferencedAllianceIDs()
	if err != nil {
		slog.Error("refresh sweep could not list alliances", "error", err)
	} else {
		s.dispatchAll(taskRefreshAlliance, "alliance:", allianceIDs)
	}
}

func (s *RefreshScheduler) dispatchAll(taskType, keyPrefix string, ids []int) {
	for _, id := range ids {
		key := keyPrefix + strconv.Itoa(id)
		err := s.router.Dispatch(context.Background(), Task{
			Type:    taskType,
			Payload: id,
			Options: Options{GroupKey: key, IdempotencyKey: key},
		})
		if err != nil && !errors.Is(err, ErrDuplicateTask) {
			slog.Error("refresh dispatch failed", "type", taskType, "id", id, "error", err)
		}
	}
}

func (s *RefreshScheduler) refreshNation(ctx context.Context, payload any) error {
	id, ok := payload.(int)
	if !ok {
		return errors.New("refresh_nation payload is not an id")
	}
	_, err := s.nations.NationByID(ctx, id, nations.RefreshOptions{})
	return err
}

func (s *RefreshScheduler) refreshAlliance(ctx context.Context, payload any) error {
	id, ok := payload.(int)
	if !ok {
		return errors.New("refresh_alliance payload is not an id")
	}
	_, err := s.alliances.AllianceByID(ctx, id, alliances.RefreshOptions{})
	return err
}
