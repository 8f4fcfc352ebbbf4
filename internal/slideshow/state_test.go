package slideshow

import (
	"testing"
	"time"

	"github.com/xabufr/memocadre/internal/types"
)

func TestProgressClampsToUnitInterval(t *testing.T) {
	start := time.Now()
	d := 500 * time.Millisecond

	if p := progress(start, start, d); p != 0 {
		t.Errorf("progress at start = %v, want 0", p)
	}
	if p := progress(start, start.Add(250*time.Millisecond), d); p != 0.5 {
		t.Errorf("progress at midpoint = %v, want 0.5", p)
	}
	if p := progress(start, start.Add(time.Second), d); p != 1 {
		t.Errorf("progress past end = %v, want 1", p)
	}
	if p := progress(start, start.Add(-time.Second), d); p != 0 {
		t.Errorf("progress before start = %v, want 0", p)
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	start := time.Now()
	d := 500 * time.Millisecond

	last := -1.0
	for elapsed := time.Duration(0); elapsed <= d+100*time.Millisecond; elapsed += 20 * time.Millisecond {
		p := progress(start, start.Add(elapsed), d)
		if p < last {
			t.Fatalf("progress went backwards: %v after %v", p, last)
		}
		last = p
	}
}

func TestProgressZeroDurationCompletesImmediately(t *testing.T) {
	start := time.Now()
	if p := progress(start, start, 0); p != 1 {
		t.Errorf("zero duration progress = %v, want 1", p)
	}
}

func TestAdvanceDueBoundary(t *testing.T) {
	shown := time.Now()
	d := 30 * time.Second

	if advanceDue(shown, shown.Add(29*time.Second), d) {
		t.Errorf("advance before the duration elapsed")
	}
	if !advanceDue(shown, shown.Add(30*time.Second), d) {
		t.Errorf("no advance exactly at the duration")
	}
	if !advanceDue(shown, shown.Add(31*time.Second), d) {
		t.Errorf("no advance after the duration")
	}
}

func TestStateKinds(t *testing.T) {
	if (loading{}).kind() != types.StateLoading {
		t.Errorf("loading kind wrong")
	}
	if (displaying{}).kind() != types.StateDisplaying {
		t.Errorf("displaying kind wrong")
	}
	if (transitioning{}).kind() != types.StateTransitioning {
		t.Errorf("transitioning kind wrong")
	}
}

func TestFrameForTransitioningCarriesBothLayers(t *testing.T) {
	now := time.Now()
	from := &entry{photo: &types.Photo{AssetID: "a"}}
	to := &entry{photo: &types.Photo{AssetID: "b"}}

	f := frameFor(transitioning{
		from:      from,
		to:        to,
		startedAt: now.Add(-250 * time.Millisecond),
		duration:  500 * time.Millisecond,
		rotation:  90,
	}, now, 90)

	if f.Base == nil || f.Over == nil {
		t.Fatalf("transition frame missing a layer")
	}
	if f.Alpha != 0.5 {
		t.Errorf("expected alpha 0.5, got %v", f.Alpha)
	}
	if f.Rotation != 90 {
		t.Errorf("rotation not carried, got %d", f.Rotation)
	}
}

func TestFrameForTransitioningKeepsCapturedRotation(t *testing.T) {
	// The layers of an in-flight transition were composed for the rotation
	// at its start; a rotation change applies from the next frame on.
	now := time.Now()
	st := transitioning{
		from:      &entry{photo: &types.Photo{AssetID: "a"}},
		to:        &entry{photo: &types.Photo{AssetID: "b"}},
		startedAt: now,
		duration:  500 * time.Millisecond,
		rotation:  0,
	}

	f := frameFor(st, now, 90)
	if f.Rotation != 0 {
		t.Errorf("live rotation leaked into an in-flight transition, got %d", f.Rotation)
	}

	done := frameFor(displaying{cur: st.to, shownAt: now}, now, 90)
	if done.Rotation != 90 {
		t.Errorf("new rotation not applied after the transition, got %d", done.Rotation)
	}
}

func TestFrameForLoadingIsEmpty(t *testing.T) {
	f := frameFor(loading{}, time.Now(), 0)
	if f.Base != nil || f.Over != nil {
		t.Errorf("loading frame must be empty")
	}
}
