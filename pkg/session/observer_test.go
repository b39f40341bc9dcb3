package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-portal/pkg/backend"
)

func testSession(id string) *backend.Session {
	return &backend.Session{ID: "sess-" + id, AccessToken: "tok-" + id, User: backend.User{ID: id, Email: id + "@example.com"}}
}

func TestObserver_SeedsInitialSession(t *testing.T) {
	auth := backend.NewMockAuthClient()
	auth.GetSessionFunc = func(ctx context.Context) (*backend.Session, error) {
		return testSession("u1"), nil
	}
	mirror := NewMirror()
	obs := NewObserver(auth, mirror)
	defer obs.Close()

	assert.False(t, mirror.Snapshot().Seeded)
	require.NoError(t, obs.Start(context.Background()))

	state := mirror.Snapshot()
	assert.True(t, state.Seeded)
	require.NotNil(t, state.Session)
	assert.Equal(t, "u1", state.Session.User.ID)
	assert.True(t, state.Authenticated())
}

func TestObserver_FetchFailureMeansSignedOut(t *testing.T) {
	auth := backend.NewMockAuthClient()
	auth.GetSessionFunc = func(ctx context.Context) (*backend.Session, error) {
		return testSession("u1"), errors.New("connection refused")
	}
	mirror := NewMirror()
	obs := NewObserver(auth, mirror)
	defer obs.Close()

	require.NoError(t, obs.Start(context.Background()))

	state := mirror.Snapshot()
	assert.True(t, state.Seeded)
	assert.Nil(t, state.Session)
	assert.False(t, state.Authenticated())
}

func TestObserver_SeedDoesNotOverwriteNewerNotification(t *testing.T) {
	auth := backend.NewMockAuthClient()
	stale := testSession("old")
	fresh := testSession("new")
	auth.GetSessionFunc = func(ctx context.Context) (*backend.Session, error) {
		// A notification lands while the fetch is in flight.
		auth.Hub.Publish(backend.AuthEvent{Kind: backend.EventSignedIn, Session: fresh})
		return stale, nil
	}
	mirror := NewMirror()
	obs := NewObserver(auth, mirror)
	defer obs.Close()

	require.NoError(t, obs.Start(context.Background()))
	assert.Same(t, fresh, mirror.Session())
}

func TestObserver_NotificationsReplaceSession(t *testing.T) {
	auth := backend.NewMockAuthClient()
	mirror := NewMirror()
	obs := NewObserver(auth, mirror)
	defer obs.Close()
	require.NoError(t, obs.Start(context.Background()))

	first := testSession("u1")
	auth.Hub.Publish(backend.AuthEvent{Kind: backend.EventSignedIn, Session: first})
	assert.Same(t, first, mirror.Session())

	refreshed := testSession("u1")
	refreshed.AccessToken = "tok-refreshed"
	auth.Hub.Publish(backend.AuthEvent{Kind: backend.EventTokenRefreshed, Session: refreshed})
	assert.Same(t, refreshed, mirror.Session())
}

func TestObserver_SignedOutForcesFlagOff(t *testing.T) {
	auth := backend.NewMockAuthClient()
	mirror := NewMirror()
	obs := NewObserver(auth, mirror)
	defer obs.Close()
	require.NoError(t, obs.Start(context.Background()))

	auth.Hub.Publish(backend.AuthEvent{Kind: backend.EventSignedIn, Session: testSession("u1")})
	mirror.SetMFAInProgress(true)

	auth.Hub.Publish(backend.AuthEvent{Kind: backend.EventSignedOut})
	state := mirror.Snapshot()
	assert.Nil(t, state.Session)
	assert.False(t, state.MFAInProgress)

	// A second sign-out with the flag already off is a no-op.
	auth.Hub.Publish(backend.AuthEvent{Kind: backend.EventSignedOut})
	state = mirror.Snapshot()
	assert.Nil(t, state.Session)
	assert.False(t, state.MFAInProgress)
}

func TestObserver_IntermediateSignOutKeepsFlag(t *testing.T) {
	auth := backend.NewMockAuthClient()
	mirror := NewMirror()
	obs := NewObserver(auth, mirror)
	defer obs.Close()
	require.NoError(t, obs.Start(context.Background()))

	mirror.SetMFAInProgress(true)
	auth.Hub.Publish(backend.AuthEvent{Kind: backend.EventSignedIn, Session: testSession("u1")})

	mirror.BeginIntermediateSignOut()
	require.NoError(t, auth.SignOut(context.Background()))
	mirror.EndIntermediateSignOut()

	state := mirror.Snapshot()
	assert.Nil(t, state.Session)
	assert.True(t, state.MFAInProgress)

	// Only the announced sign-out is exempt.
	auth.Hub.Publish(backend.AuthEvent{Kind: backend.EventSignedOut})
	assert.False(t, mirror.MFAInProgress())
}

func TestObserver_CloseStopsUpdates(t *testing.T) {
	auth := backend.NewMockAuthClient()
	mirror := NewMirror()
	obs := NewObserver(auth, mirror)
	require.NoError(t, obs.Start(context.Background()))
	require.Equal(t, 1, auth.Hub.Len())

	obs.Close()
	obs.Close()
	assert.Equal(t, 0, auth.Hub.Len())

	before := mirror.Version()
	auth.Hub.Publish(backend.AuthEvent{Kind: backend.EventSignedIn, Session: testSession("u1")})
	assert.Nil(t, mirror.Session())
	assert.Equal(t, before, mirror.Version())

	assert.ErrorIs(t, obs.Start(context.Background()), ErrClosed)
}

func TestObserver_StartTwice(t *testing.T) {
	auth := backend.NewMockAuthClient()
	obs := NewObserver(auth, NewMirror())
	defer obs.Close()

	require.NoError(t, obs.Start(context.Background()))
	assert.ErrorIs(t, obs.Start(context.Background()), ErrAlreadyStarted)
	assert.Equal(t, 1, auth.Hub.Len())
}
