package tm

import (
	"fmt"

	binutils "github.com/jfoster/binary-utilities"
	"github.com/pkg/math"

	"github.com/usnistgov/tofino-tm/tm/tmdef"
	"github.com/usnistgov/tofino-tm/tm/tmhw"
)

// Limits and defaults.
const (
	MinQueueProfiles = 4
	MaxQueueProfiles = 1024
)

// Config contains Device creation arguments.
type Config struct {
	ID   tmdef.DevID    `json:"id"`
	Asic tmdef.AsicType `json:"asic"`

	// Pipes is the number of active pipes.
	// Default is the maximum of the ASIC generation.
	Pipes int `json:"pipes,omitempty"`

	Target tmdef.Target `json:"target,omitempty"`

	// WarmInit starts the device in hitless warm-init mode.
	WarmInit bool `json:"warmInit,omitempty"`

	// CounterNodes is the capacity of the cached counter node pool.
	// Default is enough for every port, PPG, queue, and pipe.
	CounterNodes int `json:"counterNodes,omitempty"`

	// QueueProfiles is the number of queue profile slots per pipe.
	// It is adjusted to a power of two.
	QueueProfiles int `json:"queueProfiles,omitempty"`

	// Chip provides register access.
	// If nil, the device has no hardware and only software state is kept.
	Chip tmhw.Chip `json:"-"`

	// PortInfo answers MAC and recirculation queries.
	// Default is an empty StaticPortInfo.
	PortInfo PortInfo `json:"-"`
}

func (cfg *Config) applyDefaults(params tmdef.Params) {
	if cfg.Pipes <= 0 {
		cfg.Pipes = params.MaxPipes
	}
	if cfg.CounterNodes <= 0 {
		perPipe := params.PortsPerPipe*2 + params.PpgsPerPipe + params.QueuesPerPipe() + 1
		cfg.CounterNodes = cfg.Pipes * perPipe
	}
	if cfg.QueueProfiles <= 0 {
		cfg.QueueProfiles = params.PortsPerPipe
	}
	cfg.QueueProfiles = math.MinInt(math.MaxInt(cfg.QueueProfiles, MinQueueProfiles), MaxQueueProfiles)
	cfg.QueueProfiles = int(binutils.NextPowerOfTwo(int64(cfg.QueueProfiles)))
	if cfg.PortInfo == nil {
		cfg.PortInfo = &StaticPortInfo{}
	}
}

func (cfg Config) validate(params tmdef.Params) error {
	if !cfg.ID.Valid() {
		return fmt.Errorf("%w: device ID %d out of range", tmdef.ErrInvalidArg, cfg.ID)
	}
	if cfg.Pipes > params.MaxPipes {
		return fmt.Errorf("%w: %s has at most %d pipes", tmdef.ErrInvalidArg, params.Asic, params.MaxPipes)
	}
	if cfg.Target > tmdef.TargetModel {
		return fmt.Errorf("%w: unknown target %d", tmdef.ErrInvalidArg, cfg.Target)
	}
	return nil
}
