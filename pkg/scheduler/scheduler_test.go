package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/batthud/pkg/alert"
	"github.com/charlie0129/batthud/pkg/clock"
	"github.com/charlie0129/batthud/pkg/hud"
	"github.com/charlie0129/batthud/pkg/power"
)

type fakeSound struct {
	played []alert.Sound
}

func (f *fakeSound) Play(s alert.Sound) { f.played = append(f.played, s) }

type fakePrefs struct {
	disabled map[alert.Kind]bool
	mute     bool
}

func (p fakePrefs) AlertEnabled(k alert.Kind) bool { return !p.disabled[k] }
func (p fakePrefs) SoundEnabled() bool             { return !p.mute }

type fixture struct {
	clock  *clock.Fake
	hud    *hud.Machine
	sound  *fakeSound
	sched  *Scheduler
	hidden int
}

func newFixture(prefs Preferences) *fixture {
	f := &fixture{
		clock: clock.NewFake(time.Unix(1700000000, 0)),
		sound: &fakeSound{},
	}
	f.hud = hud.New(f.clock, hud.Options{DismissAfter: 5 * time.Second, Exit: 400 * time.Millisecond}, func(fr hud.Frame) {
		if fr.State == hud.Hidden {
			f.hidden++
		}
	})
	f.sched = New(f.hud, f.sound, prefs)
	return f
}

func TestTriggerReplacesVisibleAlertWithoutHiding(t *testing.T) {
	f := newFixture(nil)

	d := f.sched.Handle(alert.Event{Kind: alert.UserInitiated})
	require.True(t, d.Shown)
	require.Equal(t, hud.Revealed, f.hud.State())

	d = f.sched.Handle(alert.Event{Kind: alert.ChargingBegan})
	assert.True(t, d.Shown)
	assert.Equal(t, ReasonReplaced, d.Reason)
	assert.Equal(t, hud.Revealed, f.hud.State())
	assert.Equal(t, alert.ChargingBegan, f.hud.Kind())
	assert.Equal(t, 0, f.hidden)
}

func TestUserInitiatedNeverAutoDismisses(t *testing.T) {
	f := newFixture(nil)

	f.sched.Handle(alert.Event{Kind: alert.UserInitiated})
	f.clock.Advance(time.Hour)
	assert.Equal(t, hud.Revealed, f.hud.State())
}

func TestLowerPriorityIsDropped(t *testing.T) {
	f := newFixture(nil)

	hot := power.Critical
	f.sched.Handle(alert.Event{Kind: alert.DeviceOverheating, Thermal: &hot})
	d := f.sched.Handle(alert.Event{Kind: alert.UserLaunched})
	assert.False(t, d.Shown)
	assert.Equal(t, ReasonOutranked, d.Reason)
	assert.Equal(t, alert.DeviceOverheating, f.hud.Kind())

	// Once the HUD is gone the same alert goes through.
	f.clock.Advance(6 * time.Second)
	d = f.sched.Handle(alert.Event{Kind: alert.UserLaunched})
	assert.True(t, d.Shown)
}

func TestHigherPriorityReplaces(t *testing.T) {
	f := newFixture(nil)

	f.sched.Handle(alert.Event{Kind: alert.UserLaunched})
	threshold := 10
	d := f.sched.Handle(alert.Event{Kind: alert.PercentThreshold, Threshold: &threshold})
	assert.True(t, d.Shown)
	assert.Equal(t, alert.PercentThreshold, f.hud.Kind())
}

func TestCooledDownIsSuppressed(t *testing.T) {
	f := newFixture(nil)

	ok := power.Optimal
	d := f.sched.Handle(alert.Event{Kind: alert.DeviceOverheating, Thermal: &ok})
	assert.False(t, d.Shown)
	assert.Equal(t, ReasonCooledDown, d.Reason)
	assert.Equal(t, hud.Hidden, f.hud.State())
}

func TestPartialCoolingIsSuppressed(t *testing.T) {
	f := newFixture(nil)

	crit, sub := power.Critical, power.Suboptimal
	d := f.sched.Handle(alert.Event{Kind: alert.DeviceOverheating, Thermal: &sub, PreviousThermal: &crit})
	assert.False(t, d.Shown)
	assert.Equal(t, ReasonCooledDown, d.Reason)

	d = f.sched.Handle(alert.Event{Kind: alert.DeviceOverheating, Thermal: &crit, PreviousThermal: &sub})
	assert.True(t, d.Shown)
}

func TestDisabledKindAndMutedSound(t *testing.T) {
	f := newFixture(fakePrefs{disabled: map[alert.Kind]bool{alert.DeviceConnected: true}, mute: true})

	d := f.sched.Handle(alert.Event{Kind: alert.DeviceConnected})
	assert.False(t, d.Shown)
	assert.Equal(t, ReasonDisabled, d.Reason)

	d = f.sched.Handle(alert.Event{Kind: alert.ChargingBegan})
	assert.True(t, d.Shown)
	assert.Equal(t, alert.SoundNone, d.Sound)
	assert.Empty(t, f.sound.played)
}

func TestSoundForwarding(t *testing.T) {
	f := newFixture(nil)

	f.sched.Handle(alert.Event{Kind: alert.UserInitiated})
	f.sched.Handle(alert.Event{Kind: alert.ChargingComplete})
	f.sched.Handle(alert.Event{Kind: alert.DeviceRemoved})

	assert.Equal(t, []alert.Sound{alert.SoundComplete, alert.SoundDisconnect}, f.sound.played)
}

func TestUnknownKind(t *testing.T) {
	f := newFixture(nil)

	d := f.sched.Handle(alert.Event{Kind: "bogus"})
	assert.False(t, d.Shown)
	assert.Equal(t, ReasonUnknown, d.Reason)
}
