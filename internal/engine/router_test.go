package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouterFixture(muted bool, permission PermissionState) (*Router, *eventRecorder, *AckMachine) {
	rec := &eventRecorder{}
	store := NewStore(nil)
	ack := NewAckMachine(store, &fakeWriteback{}, rec.emit)
	router := &Router{
		ack:        ack,
		emit:       rec.emit,
		muted:      func() bool { return muted },
		permission: func() PermissionState { return permission },
	}
	return router, rec, ack
}

func TestRouteCriticalGoesOnlyToAckMachine(t *testing.T) {
	router, rec, ack := newRouterFixture(false, PermissionGranted)

	router.Route(notif("c1", PriorityCritical, 0))

	assert.Empty(t, rec.ofKind(EventToast), "no toast alongside the modal")
	assert.Empty(t, rec.ofKind(EventSound))
	assert.Empty(t, rec.ofKind(EventNative))

	current, _, ok := ack.Current()
	require.True(t, ok)
	assert.Equal(t, "c1", current.ID)
}

func TestRouteNormalToastIsBounded(t *testing.T) {
	router, rec, _ := newRouterFixture(false, PermissionGranted)

	router.Route(notif("n1", PriorityNormal, 0))

	toasts := rec.ofKind(EventToast)
	require.Len(t, toasts, 1)
	assert.Equal(t, int(DefaultToastDuration.Milliseconds()), toasts[0].DurationMS)
	assert.Len(t, rec.ofKind(EventSound), 1)
	assert.Len(t, rec.ofKind(EventNative), 1)
}

func TestRouteImportantToastIsIndefinite(t *testing.T) {
	router, rec, _ := newRouterFixture(false, PermissionDefault)

	router.Route(notif("i1", PriorityImportant, 0))

	toasts := rec.ofKind(EventToast)
	require.Len(t, toasts, 1)
	assert.Equal(t, 0, toasts[0].DurationMS, "important toasts stay until dismissed")
	assert.Empty(t, rec.ofKind(EventNative), "native channel needs granted permission")
}

func TestRouteMutedSuppressesSound(t *testing.T) {
	router, rec, _ := newRouterFixture(true, PermissionDenied)

	router.Route(notif("n1", PriorityNormal, 0))

	assert.Len(t, rec.ofKind(EventToast), 1, "mute only silences the audio cue")
	assert.Empty(t, rec.ofKind(EventSound))
	assert.Empty(t, rec.ofKind(EventNative))
}

func TestRouteSoundCueFallback(t *testing.T) {
	router, rec, _ := newRouterFixture(false, PermissionDenied)

	withCue := notif("n1", PriorityNormal, 0)
	withCue.Sound = "chime"
	router.Route(withCue)
	router.Route(notif("n2", PriorityNormal, 0))

	sounds := rec.ofKind(EventSound)
	require.Len(t, sounds, 2)
	assert.Equal(t, "chime", sounds[0].Sound)
	assert.Equal(t, "default", sounds[1].Sound)
}
