package hud

// Easing names a timing curve understood by the renderer.
type Easing string

const (
	EaseLinear Easing = "linear"
	EaseIn     Easing = "easeIn"
	EaseOut    Easing = "easeOut"
	EaseInOut  Easing = "easeInOut"
	EaseSpring Easing = "spring"
)

// Keyframe animates a set of visual properties to Targets. Property names
// and values are opaque to the daemon.
type Keyframe struct {
	DelayMS    int                `json:"delayMs"`
	DurationMS int                `json:"durationMs"`
	Easing     Easing             `json:"easing"`
	Targets    map[string]float64 `json:"targets"`
}

// Track is an ordered list of keyframes for one layer.
type Track []Keyframe

// TimelineDescriptor describes the animation the renderer plays when the
// HUD enters a state.
type TimelineDescriptor struct {
	State     State `json:"state"`
	Mask      Track `json:"mask"`
	Glow      Track `json:"glow"`
	Progress  Track `json:"progress"`
	Container Track `json:"container"`
}

// Duration returns the time until the last keyframe of any track ends.
func (d TimelineDescriptor) Duration() int {
	end := 0
	for _, tr := range []Track{d.Mask, d.Glow, d.Progress, d.Container} {
		for _, k := range tr {
			if e := k.DelayMS + k.DurationMS; e > end {
				end = e
			}
		}
	}
	return end
}

func kf(delay, duration int, easing Easing, targets map[string]float64) Keyframe {
	return Keyframe{DelayMS: delay, DurationMS: duration, Easing: easing, Targets: targets}
}

// timelineTable builds a fresh copy of the state to timeline mapping so
// callers can never modify the shared data.
func timelineTable() map[State]TimelineDescriptor {
	return map[State]TimelineDescriptor{
		Hidden: {
			State:     Hidden,
			Mask:      Track{kf(0, 0, EaseLinear, map[string]float64{"width": 0, "height": 0})},
			Glow:      Track{kf(0, 0, EaseLinear, map[string]float64{"opacity": 0})},
			Progress:  Track{kf(0, 0, EaseLinear, map[string]float64{"opacity": 0, "value": 0})},
			Container: Track{kf(0, 0, EaseLinear, map[string]float64{"opacity": 0, "scale": 0.9, "offsetY": -20})},
		},
		Progress: {
			State: Progress,
			Mask: Track{
				kf(0, 250, EaseOut, map[string]float64{"width": 36, "height": 36}),
				kf(250, 300, EaseSpring, map[string]float64{"width": 220, "height": 36}),
			},
			Glow: Track{kf(100, 400, EaseInOut, map[string]float64{"opacity": 0.6, "radius": 12})},
			Progress: Track{
				kf(150, 450, EaseOut, map[string]float64{"opacity": 1, "value": 1}),
			},
			Container: Track{kf(0, 300, EaseSpring, map[string]float64{"opacity": 1, "scale": 1, "offsetY": 0})},
		},
		Revealed: {
			State:     Revealed,
			Mask:      Track{kf(0, 300, EaseSpring, map[string]float64{"width": 220, "height": 36})},
			Glow:      Track{kf(0, 600, EaseOut, map[string]float64{"opacity": 0.25, "radius": 8})},
			Progress:  Track{kf(0, 200, EaseOut, map[string]float64{"opacity": 1, "value": 1})},
			Container: Track{kf(0, 300, EaseSpring, map[string]float64{"opacity": 1, "scale": 1, "offsetY": 0})},
		},
		Detailed: {
			State:     Detailed,
			Mask:      Track{kf(0, 350, EaseSpring, map[string]float64{"width": 340, "height": 120, "cornerRadius": 24})},
			Glow:      Track{kf(0, 350, EaseOut, map[string]float64{"opacity": 0.15, "radius": 6})},
			Progress:  Track{kf(0, 150, EaseIn, map[string]float64{"opacity": 0, "value": 1})},
			Container: Track{kf(50, 300, EaseSpring, map[string]float64{"opacity": 1, "scale": 1.02, "offsetY": 4})},
		},
		Dismissed: {
			State:     Dismissed,
			Mask:      Track{kf(0, 250, EaseIn, map[string]float64{"width": 36, "height": 36})},
			Glow:      Track{kf(0, 200, EaseIn, map[string]float64{"opacity": 0})},
			Progress:  Track{kf(0, 150, EaseIn, map[string]float64{"opacity": 0})},
			Container: Track{kf(150, 250, EaseIn, map[string]float64{"opacity": 0, "scale": 0.9, "offsetY": -20})},
		},
	}
}

// Timeline returns the descriptor for s. Unknown states get the hidden
// descriptor.
func Timeline(s State) TimelineDescriptor {
	t := timelineTable()
	if d, ok := t[s]; ok {
		return d
	}
	return t[Hidden]
}

// Timelines returns every state's descriptor.
func Timelines() map[State]TimelineDescriptor {
	return timelineTable()
}
