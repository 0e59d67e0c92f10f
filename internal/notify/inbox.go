package notify

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Notification is one unlock toast waiting to be shown.
type Notification struct {
	AchievementID string    `json:"achievement_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Icon          string    `json:"icon"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

// Inbox holds pending unlock notifications per user. Users are kept in LRU
// order and the least recently touched user is evicted past maxUsers; each
// notification expires after ttl.
type Inbox struct {
	mu       sync.Mutex
	maxUsers int
	ttl      time.Duration
	now      func() time.Time
	users    map[string]*list.Element
	lru      *list.List
}

type entry struct {
	userID  string
	pending []pending
}

type pending struct {
	n         Notification
	expiresAt time.Time
}

func NewInbox(maxUsers int, ttl time.Duration) *Inbox {
	if maxUsers <= 0 {
		maxUsers = 1000
	}
	return &Inbox{
		maxUsers: maxUsers,
		ttl:      ttl,
		now:      time.Now,
		users:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Push appends notifications to the user's inbox.
func (b *Inbox) Push(userID string, ns ...Notification) {
	if len(ns) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	expiresAt := b.now().Add(b.ttl)
	elem, ok := b.users[userID]
	if !ok {
		elem = b.lru.PushFront(&entry{userID: userID})
		b.users[userID] = elem
	} else {
		b.lru.MoveToFront(elem)
	}
	e := elem.Value.(*entry)
	for _, n := range ns {
		e.pending = append(e.pending, pending{n: n, expiresAt: expiresAt})
	}

	for b.lru.Len() > b.maxUsers {
		b.remove(b.lru.Back())
	}
}

// Drain returns and clears the user's unexpired notifications, oldest first.
func (b *Inbox) Drain(userID string) []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	elem, ok := b.users[userID]
	if !ok {
		return nil
	}
	e := elem.Value.(*entry)
	b.remove(elem)

	now := b.now()
	out := make([]Notification, 0, len(e.pending))
	for _, p := range e.pending {
		if now.Before(p.expiresAt) {
			out = append(out, p.n)
		}
	}
	return out
}

// Clear drops every notification for userID.
func (b *Inbox) Clear(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if elem, ok := b.users[userID]; ok {
		b.remove(elem)
	}
}

func (b *Inbox) remove(elem *list.Element) {
	delete(b.users, elem.Value.(*entry).userID)
	b.lru.Remove(elem)
}

// CleanExpired removes expired notifications and returns how many were dropped.
func (b *Inbox) CleanExpired() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	removed := 0
	var empty []*list.Element
	for elem := b.lru.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*entry)
		kept := e.pending[:0]
		for _, p := range e.pending {
			if now.Before(p.expiresAt) {
				kept = append(kept, p)
			} else {
				removed++
			}
		}
		e.pending = kept
		if len(kept) == 0 {
			empty = append(empty, elem)
		}
	}
	for _, elem := range empty {
		b.remove(elem)
	}
	return removed
}

// Size returns the number of users with pending notifications.
func (b *Inbox) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.users)
}

// RunSweeper calls CleanExpired every interval until ctx is done.
func (b *Inbox) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := b.CleanExpired(); n > 0 {
				slog.Debug("Expired unlock notifications dropped", "component", "notify", "count", n)
			}
		}
	}
}
