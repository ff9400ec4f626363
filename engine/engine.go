// Package engine runs the competition lifecycle: phase transitions, the
// attempt tracker with its cutoff sweep, and the gated result reads.
//
// Every operation on a competition first applies any clock transition that
// is due, so correctness never depends on the scheduler having ticked.
// Transitions hold the competition's write lock; participant operations
// hold its read lock plus a lock for the (competition, participant) pair.
// The phase is always re-read from the store under the lock.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"olympiad-engine/apperrors"
	"olympiad-engine/clock"
	"olympiad-engine/collab"
	"olympiad-engine/config"
	"olympiad-engine/models"
	"olympiad-engine/notify"
	"olympiad-engine/store"
	"olympiad-engine/telemetry"
	"olympiad-engine/visibility"
)

// Deps are the collaborators of an Engine. Store is required; the rest
// fall back to the real clock, free payments, no profiles, no
// notifications and the standard logger.
type Deps struct {
	Store    store.Store
	Clock    clock.Clock
	Payments collab.Payments
	Profiles collab.Profiles
	Notifier notify.Notifier
	Log      logrus.FieldLogger
}

// Engine is safe for concurrent use.
type Engine struct {
	store    store.Store
	clock    clock.Clock
	payments collab.Payments
	profiles collab.Profiles
	notifier notify.Notifier
	log      logrus.FieldLogger
	tracer   trace.Tracer
	gate     visibility.Gate

	grace        time.Duration
	archiveAfter time.Duration
	newID        func() string

	locksMu      sync.Mutex
	competitions map[string]*competitionLock
	participants map[pairKey]*pairLock

	boards *boardCache
}

type pairKey struct {
	competitionID string
	participantID string
}

// New builds an engine. cfg supplies the grace window and the retention
// period after which published results are archived.
func New(deps Deps, cfg config.Engine) *Engine {
	e := &Engine{
		store:        deps.Store,
		clock:        deps.Clock,
		payments:     deps.Payments,
		profiles:     deps.Profiles,
		notifier:     deps.Notifier,
		log:          deps.Log,
		tracer:       telemetry.Tracer("engine"),
		grace:        cfg.GraceWindow,
		archiveAfter: cfg.ArchiveAfter,
		newID:        uuid.NewString,
		competitions: make(map[string]*competitionLock),
		participants: make(map[pairKey]*pairLock),
		boards:       newBoardCache(),
	}
	if e.clock == nil {
		e.clock = clock.Real()
	}
	if e.payments == nil {
		e.payments = collab.Free{}
	}
	if e.profiles == nil {
		e.profiles = collab.NoProfiles{}
	}
	if e.notifier == nil {
		e.notifier = notify.Nop{}
	}
	if e.log == nil {
		e.log = logrus.StandardLogger()
	}
	return e
}

// GraceWindow is the tolerance past a participant's deadline.
func (e *Engine) GraceWindow() time.Duration {
	return e.grace
}

// Lock entries are reference counted and dropped once nobody holds or
// waits on them, so the maps only carry competitions and pairs in use.
type competitionLock struct {
	sync.RWMutex
	refs int
}

type pairLock struct {
	sync.Mutex
	refs int
}

func (e *Engine) acquireCompetition(id string) *competitionLock {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	l, ok := e.competitions[id]
	if !ok {
		l = &competitionLock{}
		e.competitions[id] = l
	}
	l.refs++
	return l
}

func (e *Engine) releaseCompetition(id string, l *competitionLock) {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(e.competitions, id)
	}
}

func (e *Engine) acquirePair(key pairKey) *pairLock {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	l, ok := e.participants[key]
	if !ok {
		l = &pairLock{}
		e.participants[key] = l
	}
	l.refs++
	return l
}

func (e *Engine) releasePair(key pairKey, l *pairLock) {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(e.participants, key)
	}
}

// readLock takes the competition's read lock and returns its release.
func (e *Engine) readLock(id string) func() {
	l := e.acquireCompetition(id)
	l.RLock()
	return func() {
		l.RUnlock()
		e.releaseCompetition(id, l)
	}
}

// writeLock takes the competition's write lock and returns its release.
func (e *Engine) writeLock(id string) func() {
	l := e.acquireCompetition(id)
	l.Lock()
	return func() {
		l.Unlock()
		e.releaseCompetition(id, l)
	}
}

// lockParticipant takes the competition read lock and the pair lock. The
// returned func releases both.
func (e *Engine) lockParticipant(competitionID, participantID string) func() {
	unlockCompetition := e.readLock(competitionID)
	key := pairKey{competitionID, participantID}
	pl := e.acquirePair(key)
	pl.Lock()
	return func() {
		pl.Unlock()
		e.releasePair(key, pl)
		unlockCompetition()
	}
}

// heldLocks reports how many competition and pair lock entries exist.
func (e *Engine) heldLocks() (competitions, pairs int) {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	return len(e.competitions), len(e.participants)
}

func competitionMeta(c models.Competition) map[string]string {
	return map[string]string{
		apperrors.KeyCompetitionID: c.ID,
		apperrors.KeyPhase:         string(c.Phase),
	}
}

func participantMeta(c models.Competition, participantID string) map[string]string {
	meta := competitionMeta(c)
	meta[apperrors.KeyParticipantID] = participantID
	return meta
}

// storeError translates a store failure into an engine error.
func storeError(err error, message string, meta map[string]string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperrors.WrapWithMetadata(apperrors.CodeNotFound, message+": not found", meta, err)
	case errors.Is(err, store.ErrConflict):
		return apperrors.WrapWithMetadata(apperrors.CodeConflict, message+": record changed concurrently, retry", meta, err)
	case errors.Is(err, store.ErrDuplicate):
		return apperrors.WrapWithMetadata(apperrors.CodeConflict, message+": already exists", meta, err)
	default:
		return apperrors.WrapWithMetadata(apperrors.CodePersistence, message+": write not confirmed, retry", meta, err)
	}
}

func (e *Engine) loadCompetition(ctx context.Context, id string) (models.Competition, error) {
	c, err := e.store.GetCompetition(ctx, id)
	if err != nil {
		return models.Competition{}, storeError(err, "load competition", map[string]string{
			apperrors.KeyCompetitionID: id,
		})
	}
	return c, nil
}

func (e *Engine) emit(ctx context.Context, events []notify.Event) {
	for _, ev := range events {
		if err := e.notifier.Notify(ctx, ev); err != nil {
			e.log.WithError(err).WithField("competition_id", ev.CompetitionID).Warn("notify failed")
		}
	}
}
