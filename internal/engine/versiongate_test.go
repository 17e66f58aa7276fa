package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionGateShowsNewRelease(t *testing.T) {
	rec := &eventRecorder{}
	prefs := &fakePrefs{prefs: Prefs{LastSeenVersion: "1.0.0"}}
	releases := &fakeReleases{release: &Release{Version: "1.1.0", Title: "Spring update"}}
	gate := NewVersionGate(prefs, releases, rec.emit)
	gate.setLastSeen("1.0.0")

	require.NoError(t, gate.Check(context.Background()))

	shows := rec.ofKind(EventWhatsNew)
	require.Len(t, shows, 1)
	assert.Equal(t, "1.1.0", shows[0].Release.Version)

	// a second check while the modal is pending stays silent
	require.NoError(t, gate.Check(context.Background()))
	assert.Len(t, rec.ofKind(EventWhatsNew), 1)
}

func TestVersionGateSilentWhenSeen(t *testing.T) {
	rec := &eventRecorder{}
	releases := &fakeReleases{release: &Release{Version: "1.1.0"}}
	gate := NewVersionGate(&fakePrefs{}, releases, rec.emit)
	gate.setLastSeen("1.1.0")

	require.NoError(t, gate.Check(context.Background()))
	assert.Empty(t, rec.all())
}

func TestVersionGateSilentWithoutRelease(t *testing.T) {
	rec := &eventRecorder{}
	gate := NewVersionGate(&fakePrefs{}, &fakeReleases{}, rec.emit)

	require.NoError(t, gate.Check(context.Background()))
	assert.Empty(t, rec.all())
}

func TestVersionGateClosePersistsBeforeDismiss(t *testing.T) {
	rec := &eventRecorder{}
	prefs := &fakePrefs{}
	releases := &fakeReleases{release: &Release{Version: "1.1.0"}}
	gate := NewVersionGate(prefs, releases, rec.emit)

	require.NoError(t, gate.Check(context.Background()))
	require.NoError(t, gate.Close(context.Background()))

	assert.Equal(t, "1.1.0", prefs.lastSeen())
	assert.Len(t, rec.ofKind(EventWhatsNewClose), 1)

	// seen release never fires again
	require.NoError(t, gate.Check(context.Background()))
	assert.Len(t, rec.ofKind(EventWhatsNew), 1)
}

func TestVersionGateFailedPersistKeepsModalPending(t *testing.T) {
	rec := &eventRecorder{}
	prefs := &fakePrefs{setVersErr: errors.New("storage unavailable")}
	releases := &fakeReleases{release: &Release{Version: "1.1.0"}}
	gate := NewVersionGate(prefs, releases, rec.emit)

	require.NoError(t, gate.Check(context.Background()))
	require.Error(t, gate.Close(context.Background()))

	assert.Empty(t, rec.ofKind(EventWhatsNewClose), "modal must not dismiss before the marker persists")
	assert.Empty(t, prefs.lastSeen())

	// retry after the failure clears
	prefs.mu.Lock()
	prefs.setVersErr = nil
	prefs.mu.Unlock()
	require.NoError(t, gate.Close(context.Background()))
	assert.Equal(t, "1.1.0", prefs.lastSeen())
	assert.Len(t, rec.ofKind(EventWhatsNewClose), 1)
}

func TestVersionGateRefiresForNextRelease(t *testing.T) {
	rec := &eventRecorder{}
	prefs := &fakePrefs{}
	releases := &fakeReleases{release: &Release{Version: "1.1.0"}}
	gate := NewVersionGate(prefs, releases, rec.emit)

	require.NoError(t, gate.Check(context.Background()))
	require.NoError(t, gate.Close(context.Background()))

	releases.mu.Lock()
	releases.release = &Release{Version: "1.2.0"}
	releases.mu.Unlock()

	require.NoError(t, gate.Check(context.Background()))
	shows := rec.ofKind(EventWhatsNew)
	require.Len(t, shows, 2)
	assert.Equal(t, "1.2.0", shows[1].Release.Version)
}
