package state

import (
	"time"

	"github.com/goalsync/core/pkg/models"
)

// Regime is the classified temporal operating mode driving refresh
// cadence and cache TTLs. Exactly one regime holds at any instant.
type Regime string

const (
	RegimeLiveMatch   Regime = "live-match"
	RegimePostMatch   Regime = "post-match"
	RegimePreDeadline Regime = "pre-deadline"
	RegimeRegular     Regime = "regular"
	RegimeOffSeason   Regime = "off-season"
)

func (r Regime) String() string {
	return string(r)
}

const (
	// postMatchTrailingWindow is how long after a fixture's estimated
	// end the post-match regime persists.
	postMatchTrailingWindow = 4 * time.Hour

	// preDeadlineWindow is how far ahead of a gameweek deadline the
	// pre-deadline regime begins.
	preDeadlineWindow = 24 * time.Hour
)

// Snapshot is the fixture/gameweek state the detector classifies over.
// It is assembled from the cache or persistent store by the caller;
// the detector itself performs no I/O.
type Snapshot struct {
	Fixtures  []models.Fixture
	Gameweeks []models.Gameweek
}

// Detector derives the current regime from fixture kickoff/finish times
// and gameweek deadlines. All methods are pure functions of the snapshot
// and the injected clock.
type Detector struct {
	snapshot Snapshot
	now      func() time.Time
}

// NewDetector creates a detector over the given snapshot using wall-clock
// time.
func NewDetector(snapshot Snapshot) *Detector {
	return &Detector{snapshot: snapshot, now: time.Now}
}

// NewDetectorAt creates a detector with an injected clock, for tests and
// for re-deriving historical classifications.
func NewDetectorAt(snapshot Snapshot, now func() time.Time) *Detector {
	if now == nil {
		now = time.Now
	}
	return &Detector{snapshot: snapshot, now: now}
}

// Classify returns the single regime holding right now. Precedence:
// live-match > post-match > pre-deadline > regular > off-season.
func (d *Detector) Classify() Regime {
	switch {
	case d.IsLiveMatchActive():
		return RegimeLiveMatch
	case d.IsPostMatchWindow():
		return RegimePostMatch
	case d.IsPreDeadlineWindow():
		return RegimePreDeadline
	case d.hasCurrentOrNextGameweek():
		return RegimeRegular
	default:
		return RegimeOffSeason
	}
}

// IsLiveMatchActive reports whether any current-gameweek fixture has
// kicked off and not yet been reported finished. No upper bound is
// imposed: an unfinished fixture stays active until the upstream source
// reports completion. Over-refreshing beats silently going stale.
func (d *Detector) IsLiveMatchActive() bool {
	now := d.now()
	currentGW, ok := d.currentGameweek()
	if !ok {
		return false
	}

	for i := range d.snapshot.Fixtures {
		f := &d.snapshot.Fixtures[i]
		if f.GameweekID == nil || *f.GameweekID != currentGW.ID {
			continue
		}
		if f.HasKickedOff(now) && !f.Finished {
			return true
		}
	}
	return false
}

// IsPostMatchWindow reports whether any finished fixture's estimated end
// (kickoff + 2h) falls within the trailing 4-hour window. A fixture the
// upstream has reported finished counts from the moment the flag is
// observed, even if the heuristic end is still in the future.
func (d *Detector) IsPostMatchWindow() bool {
	now := d.now()
	windowStart := now.Add(-postMatchTrailingWindow)

	for i := range d.snapshot.Fixtures {
		f := &d.snapshot.Fixtures[i]
		if !f.Finished {
			continue
		}
		end, ok := f.EstimatedEnd()
		if !ok {
			continue
		}
		// The finished flag is authoritative: a fixture that ended
		// early still opens the window now rather than at kickoff+2h.
		if end.After(now) {
			end = now
		}
		if !end.Before(windowStart) && !end.After(now) {
			return true
		}
	}
	return false
}

// IsPreDeadlineWindow reports whether the next gameweek's deadline is
// between 0 and 24 hours in the future.
func (d *Detector) IsPreDeadlineWindow() bool {
	now := d.now()

	for i := range d.snapshot.Gameweeks {
		gw := &d.snapshot.Gameweeks[i]
		if !gw.IsNext || gw.DeadlineTime == nil {
			continue
		}
		until := gw.DeadlineTime.Sub(now)
		if until >= 0 && until <= preDeadlineWindow {
			return true
		}
	}
	return false
}

// CurrentGameweekID returns the id of the gameweek flagged current, or
// 0 when none is.
func (d *Detector) CurrentGameweekID() int {
	if gw, ok := d.currentGameweek(); ok {
		return gw.ID
	}
	return 0
}

func (d *Detector) currentGameweek() (*models.Gameweek, bool) {
	for i := range d.snapshot.Gameweeks {
		if d.snapshot.Gameweeks[i].IsCurrent {
			return &d.snapshot.Gameweeks[i], true
		}
	}
	return nil, false
}

func (d *Detector) hasCurrentOrNextGameweek() bool {
	for i := range d.snapshot.Gameweeks {
		if d.snapshot.Gameweeks[i].IsCurrent || d.snapshot.Gameweeks[i].IsNext {
			return true
		}
	}
	return false
}
