package hud

import (
	"testing"
	"time"
)

func TestTimelinesCoverEveryState(t *testing.T) {
	table := Timelines()
	if len(table) != len(States()) {
		t.Fatalf("expected %d timelines, got %d", len(States()), len(table))
	}
	for _, s := range States() {
		d, ok := table[s]
		if !ok {
			t.Fatalf("missing timeline for %s", s)
		}
		if d.State != s {
			t.Fatalf("timeline for %s is labelled %s", s, d.State)
		}
		for name, tr := range map[string]Track{"mask": d.Mask, "glow": d.Glow, "progress": d.Progress, "container": d.Container} {
			if len(tr) == 0 {
				t.Fatalf("%s: empty %s track", s, name)
			}
			for _, k := range tr {
				if k.DelayMS < 0 || k.DurationMS < 0 {
					t.Fatalf("%s: negative timing in %s track", s, name)
				}
			}
		}
	}
}

func TestTimelineDurationsMatchPhases(t *testing.T) {
	if got := Timeline(Progress).Duration(); got != int(DefaultEntrance/time.Millisecond) {
		t.Fatalf("progress timeline lasts %dms, entrance is %s", got, DefaultEntrance)
	}
	if got := Timeline(Dismissed).Duration(); got != int(DefaultExit/time.Millisecond) {
		t.Fatalf("dismissed timeline lasts %dms, exit is %s", got, DefaultExit)
	}
}

func TestTimelineIsACopy(t *testing.T) {
	d := Timeline(Revealed)
	d.Mask[0].Targets["width"] = -1

	if Timeline(Revealed).Mask[0].Targets["width"] == -1 {
		t.Fatalf("timeline table was modified through a returned descriptor")
	}
	if Timeline(State("bogus")).State != Hidden {
		t.Fatalf("unknown state should map to the hidden timeline")
	}
}
