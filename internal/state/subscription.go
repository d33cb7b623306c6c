package state

import (
	"sort"
	"sync/atomic"
)

// Subscription is a registration handle returned by Subscribe. Cancelling
// it removes the registration; the State keeps no other reference to the
// subscriber.
type Subscription struct {
	state     *State
	key       string // empty for wildcard subscriptions
	wildcard  bool
	seq       uint64
	fn        func(Change)
	cancelled atomic.Bool
}

// Subscribe registers fn for changes of key.
func (s *State) Subscribe(key string, fn Callback) *Subscription {
	return s.SubscribeChanges(key, adapt(fn))
}

// SubscribeAll registers fn for changes of every key.
func (s *State) SubscribeAll(fn Callback) *Subscription {
	return s.SubscribeAllChanges(adapt(fn))
}

// SubscribeChanges is Subscribe with the full Change, including whether the
// key was removed.
func (s *State) SubscribeChanges(key string, fn func(Change)) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.newSubscriptionLocked(key, false, fn)
	s.subs[key] = append(s.subs[key], sub)
	return sub
}

// SubscribeAllChanges is SubscribeAll with the full Change.
func (s *State) SubscribeAllChanges(fn func(Change)) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.newSubscriptionLocked("", true, fn)
	s.wildcard = append(s.wildcard, sub)
	return sub
}

func adapt(fn Callback) func(Change) {
	return func(c Change) { fn(c.Key, c.Value) }
}

func (s *State) newSubscriptionLocked(key string, wildcard bool, fn func(Change)) *Subscription {
	s.seq++
	return &Subscription{
		state:    s,
		key:      key,
		wildcard: wildcard,
		seq:      s.seq,
		fn:       fn,
	}
}

// Cancel removes the registration. It is safe to call more than once and
// from inside a callback; a subscription cancelled while a notification is
// being delivered is not called afterwards.
func (sub *Subscription) Cancel() {
	if sub.cancelled.Swap(true) {
		return
	}

	s := sub.state
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.wildcard {
		s.wildcard = remove(s.wildcard, sub)
		return
	}
	subs := remove(s.subs[sub.key], sub)
	if len(subs) == 0 {
		delete(s.subs, sub.key)
	} else {
		s.subs[sub.key] = subs
	}
}

// Active reports whether the subscription has not been cancelled.
func (sub *Subscription) Active() bool {
	return !sub.cancelled.Load()
}

// SubscriberCount returns how many subscriptions would be notified for key,
// including wildcard ones.
func (s *State) SubscriberCount(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[key]) + len(s.wildcard)
}

// targetsLocked snapshots the subscribers for key, merged with the
// wildcard subscribers in registration order.
func (s *State) targetsLocked(key string) []*Subscription {
	keyed := s.subs[key]
	out := make([]*Subscription, 0, len(keyed)+len(s.wildcard))
	out = append(out, keyed...)
	out = append(out, s.wildcard...)
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func notify(targets []*Subscription, c Change) {
	for _, sub := range targets {
		if sub.cancelled.Load() {
			continue
		}
		sub.fn(c)
	}
}

func remove(subs []*Subscription, target *Subscription) []*Subscription {
	out := subs[:0:0]
	for _, sub := range subs {
		if sub != target {
			out = append(out, sub)
		}
	}
	return out
}
