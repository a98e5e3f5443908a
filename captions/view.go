package captions

// State is the playback state of a caption session.
type State int

const (
	Idle State = iota
	Playing
	Paused
	Ended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Ended:
		return "ended"
	}
	return "unknown"
}

// Granularity selects whether a session highlights words or lines.
type Granularity int

const (
	ByLine Granularity = iota
	ByWord
)

// Op is a display instruction kind.
type Op string

const (
	OpRender     Op = "render"
	OpActivate   Op = "activate"
	OpDeactivate Op = "deactivate"
	OpScroll     Op = "scroll"
	OpControl    Op = "control"
	OpClear      Op = "clear"
)

// Instruction tells a display surface what to change.
type Instruction struct {
	Op      Op       `json:"op"`
	Index   int      `json:"index"`
	Units   []string `json:"units,omitempty"`
	Playing bool     `json:"playing"`
}

// View is the part of session state that is visible to the user.
type View struct {
	State  State
	Active int
}

func (v View) playing() bool { return v.State == Playing }

// Project returns the instructions that move a display from prev to next.
// Equal views produce no instructions, which is what keeps re-entering the
// same interval from toggling or scrolling again.
func Project(prev, next View, g Granularity) []Instruction {
	var out []Instruction
	if next.State == Ended && prev.State != Ended {
		return append(out,
			Instruction{Op: OpClear, Index: -1},
			Instruction{Op: OpControl, Index: -1, Playing: false},
		)
	}
	if next.Active != prev.Active {
		if prev.Active >= 0 {
			out = append(out, Instruction{Op: OpDeactivate, Index: prev.Active})
		}
		if next.Active >= 0 {
			out = append(out, Instruction{Op: OpActivate, Index: next.Active})
			if g == ByLine {
				out = append(out, Instruction{Op: OpScroll, Index: next.Active})
			}
		}
	}
	if next.playing() != prev.playing() {
		out = append(out, Instruction{Op: OpControl, Index: -1, Playing: next.playing()})
	}
	return out
}
