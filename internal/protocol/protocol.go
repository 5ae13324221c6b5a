// Package protocol implements the line-oriented text protocol spoken by the
// rig controller: command formatting, CRC-16 checksums and response parsing.
//
// Wire format, one command per line:
//
//	COMMAND[:p1,p2,...][;CRC]\n  ->  STATUS:MESSAGE\n
package protocol

import "time"

// Name is a command keyword as sent on the wire.
type Name string

// Command set understood by the controller.
const (
	CmdPing       Name = "PING"
	CmdReset      Name = "RESET"
	CmdStatus     Name = "STATUS"
	CmdDebug      Name = "DEBUG"
	CmdEstop      Name = "ESTOP"
	CmdResetEstop Name = "RESET_ESTOP"
	CmdHome       Name = "HOME"
	CmdMove       Name = "MOVE"
	CmdStop       Name = "STOP"
	CmdVelocity   Name = "VELOCITY"
	CmdMeasure    Name = "MEASURE"
	CmdScan       Name = "SCAN"
	CmdTilt       Name = "TILT"
	CmdPan        Name = "PAN"
	CmdConfig     Name = "CONFIG"
	CmdGet        Name = "GET"
	CmdSet        Name = "SET"
	CmdSave       Name = "SAVE"
)

// Commands lists every command in the set, in protocol document order.
var Commands = []Name{
	CmdPing, CmdReset, CmdStatus, CmdDebug, CmdEstop, CmdResetEstop,
	CmdHome, CmdMove, CmdStop, CmdVelocity,
	CmdMeasure, CmdScan,
	CmdTilt, CmdPan,
	CmdConfig, CmdGet, CmdSet, CmdSave,
}

// Valid reports whether n is part of the command set.
func (n Name) Valid() bool {
	for _, c := range Commands {
		if c == n {
			return true
		}
	}
	return false
}

// Category groups commands by the subsystem they address.
type Category int

const (
	CategorySystem Category = iota
	CategoryMotion
	CategoryRangefinder
	CategoryServo
	CategoryConfig
)

func (c Category) String() string {
	switch c {
	case CategoryMotion:
		return "MOTION"
	case CategoryRangefinder:
		return "RANGEFINDER"
	case CategoryServo:
		return "SERVO"
	case CategoryConfig:
		return "CONFIG"
	default:
		return "SYSTEM"
	}
}

// Category returns the subsystem a command belongs to.
func (n Name) Category() Category {
	switch n {
	case CmdHome, CmdMove, CmdStop, CmdVelocity:
		return CategoryMotion
	case CmdMeasure, CmdScan:
		return CategoryRangefinder
	case CmdTilt, CmdPan:
		return CategoryServo
	case CmdConfig, CmdGet, CmdSet, CmdSave:
		return CategoryConfig
	default:
		return CategorySystem
	}
}

// Status is the outcome of a command.
type Status string

const (
	StatusOK      Status = "OK"
	StatusError   Status = "ERROR"
	StatusPending Status = "PENDING"
	StatusTimeout Status = "TIMEOUT"
)

// DefaultTimeout bounds how long a synchronous send waits for its reply.
const DefaultTimeout = time.Second
