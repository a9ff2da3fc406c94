package api

import "fmt"

// Effect labels produced by the mediation engine.
const (
	LabelDelete       = "delete"
	LabelMove         = "move"
	LabelRename       = "rename"
	LabelChmod        = "change permissions"
	LabelChown        = "change owner"
	LabelChgrp        = "change group"
	LabelMkdir        = "create directory"
	LabelSymlink      = "create symbolic link"
	LabelHardlink     = "create hard link"
	LabelCreateFile   = "create file"
	LabelTruncateFile = "truncate file"
	LabelMkfifo       = "create named pipe"
	LabelMkchar       = "create character special file"
	LabelMkblock      = "create block special file"
	LabelMksock       = "create socket"
	LabelWrite        = "write"
)

// Operation describes one filesystem effect a traced process attempted.
// It is the unit handed to the approval workflow: a nil Operation from the
// mediation engine means "allow silently, no confirmation needed".
type Operation struct {
	// Syscall is the registry name of the intercepted call (e.g. "openat").
	Syscall string `json:"syscall"`

	// Label names the effect; one of the Label constants above.
	Label string `json:"label"`

	// Path is the absolute path the effect applies to. For link creation it
	// is the new link path; for move/rename it is the source path.
	Path string `json:"path"`

	// Detail carries the effect-specific remainder of the description:
	// the move/rename target, the rwx permission string, the owner:group,
	// the link target, or the byte count for writes.
	Detail string `json:"detail,omitempty"`
}

func (o *Operation) String() string {
	if o.Detail == "" {
		return fmt.Sprintf("%s %s", o.Label, o.Path)
	}
	switch o.Label {
	case LabelMove, LabelRename:
		return fmt.Sprintf("%s %s to %s", o.Label, o.Path, o.Detail)
	case LabelChmod, LabelChown, LabelChgrp:
		return fmt.Sprintf("%s of %s to %s", o.Label, o.Path, o.Detail)
	case LabelSymlink, LabelHardlink:
		return fmt.Sprintf("%s from %s to %s", o.Label, o.Path, o.Detail)
	case LabelWrite:
		return fmt.Sprintf("%s %s to %s", o.Label, o.Detail, o.Path)
	default:
		return fmt.Sprintf("%s %s", o.Label, o.Path)
	}
}

// Decision is the operator's (or policy's) verdict on an Operation.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// Event pairs an operation with its decision for journals, history and
// event listeners.
type Event struct {
	Seq       int       `json:"seq"`
	PID       int       `json:"pid,omitempty"`
	Operation Operation `json:"operation"`
	Decision  Decision  `json:"decision"`
}
