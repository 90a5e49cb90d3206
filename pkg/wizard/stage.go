package wizard

// Stage is a wizard state.
type Stage int

// Wizard stages.
const (
	StageDetails Stage = iota
	StageScope
	StageConnection
	StageAssign
	StageSubmitted
	StageCancelled
)

var stageNames = map[Stage]string{
	StageDetails:    "details",
	StageScope:      "scope",
	StageConnection: "connection",
	StageAssign:     "assign",
	StageSubmitted:  "submitted",
	StageCancelled:  "cancelled",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the wizard is finished.
func (s Stage) Terminal() bool {
	return s == StageSubmitted || s == StageCancelled
}

func (s Stage) submits() bool {
	return s == StageConnection || s == StageAssign
}

type edge struct {
	from  Stage
	valid bool
}

// forward is the only way a stage is left going forward. A failed check
// maps a stage to itself.
var forward = map[edge]Stage{
	{StageDetails, true}:     StageScope,
	{StageDetails, false}:    StageDetails,
	{StageScope, true}:       StageConnection,
	{StageScope, false}:      StageScope,
	{StageConnection, true}:  StageSubmitted,
	{StageConnection, false}: StageConnection,
	{StageAssign, true}:      StageSubmitted,
	{StageAssign, false}:     StageAssign,
}

var backward = map[Stage]Stage{
	StageScope:      StageDetails,
	StageConnection: StageScope,
}

func next(from Stage, valid bool) (Stage, bool) {
	to, ok := forward[edge{from, valid}]
	return to, ok
}

func back(from Stage) (Stage, bool) {
	to, ok := backward[from]
	return to, ok
}
