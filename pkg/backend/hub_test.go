package backend

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesSubscribers(t *testing.T) {
	hub := NewHub()

	var got []EventKind
	sub := hub.Subscribe(func(ev AuthEvent) { got = append(got, ev.Kind) })

	hub.Publish(AuthEvent{Kind: EventSignedIn, Session: &Session{User: User{ID: "u1"}}})
	hub.Publish(AuthEvent{Kind: EventSignedOut})

	assert.Equal(t, []EventKind{EventSignedIn, EventSignedOut}, got)
	assert.Equal(t, 1, hub.Len())

	sub.Unsubscribe()
	hub.Publish(AuthEvent{Kind: EventSignedIn})
	assert.Len(t, got, 2)
	assert.Equal(t, 0, hub.Len())
}

func TestHub_UnsubscribeTwice(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(func(AuthEvent) {})
	other := hub.Subscribe(func(AuthEvent) {})

	sub.Unsubscribe()
	sub.Unsubscribe()

	require.Equal(t, 1, hub.Len())
	other.Unsubscribe()
	assert.Equal(t, 0, hub.Len())

	var nilSub *Subscription
	assert.NotPanics(t, nilSub.Unsubscribe)
}

func TestHub_ListenerMayUnsubscribeDuringPublish(t *testing.T) {
	hub := NewHub()
	var sub *Subscription
	calls := 0
	sub = hub.Subscribe(func(AuthEvent) {
		calls++
		sub.Unsubscribe()
	})

	hub.Publish(AuthEvent{Kind: EventSignedIn})
	hub.Publish(AuthEvent{Kind: EventSignedIn})
	assert.Equal(t, 1, calls)
}

func TestSession_Key(t *testing.T) {
	var s *Session
	assert.Equal(t, "", s.Key())

	s = &Session{User: User{ID: "user-1"}}
	assert.Equal(t, "user-1", s.Key())

	s.ID = "session-9"
	assert.Equal(t, "session-9", s.Key())
}

func TestError_ServiceMessage(t *testing.T) {
	err := &Error{Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials"}

	msg, ok := ServiceMessage(err)
	require.True(t, ok)
	assert.Equal(t, "Invalid login credentials", msg)

	_, ok = ServiceMessage(errors.New("dial tcp: refused"))
	assert.False(t, ok)

	notFound := &Error{Status: http.StatusNotFound, Message: "missing"}
	assert.ErrorIs(t, notFound, ErrNotFound)
	assert.NotErrorIs(t, err, ErrNotFound)
}
