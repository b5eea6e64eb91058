package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/semaphore"
)

type Awaiting string

const (
	AwaitNone Awaiting = ""

	AwaitRename Awaiting = "rename"
	AwaitCut    Awaiting = "cut"
	AwaitCover  Awaiting = "cover"
)

// Session is per user. mu is held for the whole handling of one update, so a
// user's commands run one at a time while different users run in parallel.
type Session struct {
	mu    sync.Mutex
	Await Awaiting

	// Guarded by App.sessMu.
	pending  []tgbotapi.Update
	draining bool
}

func (a *App) ensureSession(userID int64) *Session {
	a.sessMu.Lock()
	defer a.sessMu.Unlock()
	return a.sessionLocked(userID)
}

func (a *App) sessionLocked(userID int64) *Session {
	s, ok := a.sess[userID]
	if !ok {
		s = &Session{}
		a.sess[userID] = s
	}
	return s
}

// lockSession returns the user's session with its lock held.
func (a *App) lockSession(userID int64) (*Session, func()) {
	s := a.ensureSession(userID)
	s.mu.Lock()
	return s, s.mu.Unlock
}

// enqueue appends upd to its user's queue and starts a drainer if none runs.
// Queued updates hold no semaphore slot, so a busy user cannot starve others.
func (a *App) enqueue(ctx context.Context, upd tgbotapi.Update, sem *semaphore.Weighted, wg *sync.WaitGroup) {
	a.sessMu.Lock()
	s := a.sessionLocked(updateUserID(upd))
	s.pending = append(s.pending, upd)
	start := !s.draining
	s.draining = true
	a.sessMu.Unlock()

	if start {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.drain(ctx, s, sem)
		}()
	}
}

// drain handles the session's queued updates in order, one slot at a time.
func (a *App) drain(ctx context.Context, s *Session, sem *semaphore.Weighted) {
	for {
		a.sessMu.Lock()
		if len(s.pending) == 0 {
			s.draining = false
			a.sessMu.Unlock()
			return
		}
		upd := s.pending[0]
		s.pending = s.pending[1:]
		a.sessMu.Unlock()

		if err := sem.Acquire(ctx, 1); err != nil {
			a.sessMu.Lock()
			s.pending = nil
			s.draining = false
			a.sessMu.Unlock()
			return
		}
		a.handleUpdate(ctx, upd)
		sem.Release(1)
	}
}

func updateUserID(upd tgbotapi.Update) int64 {
	switch {
	case upd.Message != nil && upd.Message.From != nil:
		return upd.Message.From.ID
	case upd.CallbackQuery != nil && upd.CallbackQuery.From != nil:
		return upd.CallbackQuery.From.ID
	}
	return 0
}
