package tmdef

import (
	"strings"
)

// AsicType identifies an ASIC generation.
type AsicType uint8

// AsicType values.
const (
	Tofino AsicType = iota + 1
	Tofino2
	Tofino3
)

func (asic AsicType) String() string {
	switch asic {
	case Tofino:
		return "tofino"
	case Tofino2:
		return "tofino2"
	case Tofino3:
		return "tofino3"
	}
	return "unknown"
}

// ParseAsicType parses ASIC generation name.
func ParseAsicType(s string) (asic AsicType, ok bool) {
	switch strings.ToLower(s) {
	case "tofino", "tof", "tf1":
		return Tofino, true
	case "tofino2", "tof2", "tf2":
		return Tofino2, true
	case "tofino3", "tof3", "tf3":
		return Tofino3, true
	}
	return 0, false
}

// Target indicates what kind of device the driver is attached to.
type Target uint8

// Target values.
const (
	// TargetAsic is a real ASIC; hardware read-back is meaningful.
	TargetAsic Target = iota
	// TargetModel is a software model; hardware read-back and usage checks are skipped.
	TargetModel
)

func (t Target) String() string {
	if t == TargetModel {
		return "model"
	}
	return "asic"
}

// Speed is a port speed.
type Speed uint8

// Speed values.
const (
	SpeedNone Speed = iota
	Speed1G
	Speed10G
	Speed25G
	Speed40G
	Speed50G
	Speed100G
	Speed200G
	Speed400G
)

var speedNames = [...]string{
	SpeedNone: "none",
	Speed1G:   "1G",
	Speed10G:  "10G",
	Speed25G:  "25G",
	Speed40G:  "40G",
	Speed50G:  "50G",
	Speed100G: "100G",
	Speed200G: "200G",
	Speed400G: "400G",
}

func (s Speed) String() string {
	if int(s) < len(speedNames) {
		return speedNames[s]
	}
	return "invalid"
}

// ParseSpeed parses speed name such as "100G".
func ParseSpeed(input string) (s Speed, ok bool) {
	for i, name := range speedNames {
		if strings.EqualFold(name, input) {
			return Speed(i), true
		}
	}
	return SpeedNone, false
}

// Baf is a buffer allocation factor for dynamic shared-pool usage.
type Baf uint8

// Baf values.
const (
	Baf1Point5Percent Baf = iota
	Baf3Percent
	Baf6Percent
	Baf11Percent
	Baf20Percent
	Baf33Percent
	Baf50Percent
	Baf66Percent
	Baf80Percent
	BafDisable
)

// Valid determines whether baf is known.
func (baf Baf) Valid() bool {
	return baf <= BafDisable
}

// FlowControl is a port flow-control type.
type FlowControl uint8

// FlowControl values.
const (
	FlowControlNone FlowControl = iota
	FlowControlPause
	FlowControlPfc
)

// Valid determines whether fc is known.
func (fc FlowControl) Valid() bool {
	return fc <= FlowControlPfc
}

func (fc FlowControl) String() string {
	switch fc {
	case FlowControlNone:
		return "none"
	case FlowControlPause:
		return "pause"
	case FlowControlPfc:
		return "pfc"
	}
	return "invalid"
}

// ParseFlowControl parses flow-control type name.
func ParseFlowControl(s string) (fc FlowControl, ok bool) {
	for fc = FlowControlNone; fc <= FlowControlPfc; fc++ {
		if fc.String() == s {
			return fc, true
		}
	}
	return 0, false
}

// SyncStatus indicates whether the hardware matches the software shadow state of a resource.
type SyncStatus uint8

// SyncStatus values.
const (
	InSync SyncStatus = iota
	PendingHardwareWrite
	WriteFailed
)

func (st SyncStatus) String() string {
	switch st {
	case InSync:
		return "in-sync"
	case PendingHardwareWrite:
		return "pending"
	case WriteFailed:
		return "write-failed"
	}
	return "invalid"
}

// PpgUsage contains buffer usage counters of a PPG, in cells.
type PpgUsage struct {
	Gmin   uint32 `json:"gmin"`
	Shared uint32 `json:"shared"`
	Skid   uint32 `json:"skid"`
}

// Drained determines whether the PPG holds no buffered cells.
func (u PpgUsage) Drained() bool {
	return u.Gmin == 0 && u.Shared == 0 && u.Skid == 0
}
