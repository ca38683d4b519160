// Package directive implements the JSON directive protocol a planner uses to
// drive remote execution. Each planner reply carries exactly one directive:
//
//	{"ExecuteCommand": "<shell command>"}
//	{"ExecuteInvokeShellCommand": "<shell command>"}
//	{"Error": {"ExecutedCommand": "...", "RaspberryPiOutput": "...", "ExpectedBehavior": "..."}}
//	{"Complete": "<summary text>"}
//
// Parse is strict. Replies that do not match one of the four shapes are
// reported as a *ProtocolError and never defaulted or repaired.
package directive

// Tag is the top-level wire key that identifies a directive variant.
type Tag string

const (
	TagExec        Tag = "ExecuteCommand"
	TagInteractive Tag = "ExecuteInvokeShellCommand"
	TagFailure     Tag = "Error"
	TagSuccess     Tag = "Complete"
)

// Wire keys of the nested Failure object.
const (
	keyExecutedCommand  = "ExecutedCommand"
	keyObservedOutput   = "RaspberryPiOutput"
	keyExpectedBehavior = "ExpectedBehavior"
)

// Directive is one structured instruction emitted by the planner. The set of
// implementations is closed: Exec, InteractiveExec, Failure and Success.
type Directive interface {
	// Tag returns the wire key of the variant.
	Tag() Tag
	// Terminal reports whether the directive ends the execution loop.
	Terminal() bool

	sealed()
}

// Exec runs a command once, non-interactively.
type Exec struct {
	Command string
}

// InteractiveExec runs a command inside the persistent interactive shell.
// Editor-like tools and multi-keystroke workflows are sequenced by the planner
// as successive InteractiveExec directives.
type InteractiveExec struct {
	Command string
}

// Failure is the planner's assertion that the task cannot proceed.
type Failure struct {
	ExecutedCommand  string
	ObservedOutput   string
	ExpectedBehavior string
}

// Success is the planner's assertion that the task is complete.
type Success struct {
	Summary string
}

func (Exec) Tag() Tag            { return TagExec }
func (InteractiveExec) Tag() Tag { return TagInteractive }
func (Failure) Tag() Tag         { return TagFailure }
func (Success) Tag() Tag         { return TagSuccess }

func (Exec) Terminal() bool            { return false }
func (InteractiveExec) Terminal() bool { return false }
func (Failure) Terminal() bool         { return true }
func (Success) Terminal() bool         { return true }

func (Exec) sealed()            {}
func (InteractiveExec) sealed() {}
func (Failure) sealed()         {}
func (Success) sealed()         {}
