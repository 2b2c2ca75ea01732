// Package tm implements the traffic manager admission-control engine.
//
// A Device holds the software shadow of buffer pools, PPGs, ports, queues, and pipes.
// Every setter updates the shadow first, then programs hardware through the tmhw backend of the ASIC generation.
// All operations on a Device are serialized by a per-device mutex.
package tm

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/usnistgov/tofino-tm/core/events"
	"github.com/usnistgov/tofino-tm/core/logging"
	"github.com/usnistgov/tofino-tm/tm/tmdef"
	"github.com/usnistgov/tofino-tm/tm/tmhw"
)

var logger = logging.New("Tm")

var (
	devicesLock sync.Mutex
	devices     [tmdef.MaxDevices]*Device
)

// Device is a traffic manager device context.
type Device struct {
	mu      sync.Mutex
	cfg     Config
	params  tmdef.Params
	logger  *zap.Logger
	emitter *events.Emitter
	queued  []queuedEvent

	gen       tmhw.Generation // hardware backend
	hw        tmhw.Generation // active backend, read-only during restore
	warm      bool
	restoring bool

	pools    [2]poolSet
	pipes    []*pipeState
	ports    [][]*port
	ppgs     [][]*ppg
	queues   [][]*queue
	profiles [][]qProfile
	counters counterPool

	cpuPort    tmdef.DevPort
	hasCpuPort bool
}

// New creates a Device.
func New(cfg Config) (dev *Device, e error) {
	params, ok := tmdef.ParamsOf(cfg.Asic)
	if !ok {
		return nil, fmt.Errorf("%w: ASIC type %d", tmdef.ErrNotSupported, cfg.Asic)
	}
	cfg.applyDefaults(params)
	if e := cfg.validate(params); e != nil {
		return nil, e
	}

	var gen tmhw.Generation
	if cfg.Chip == nil {
		gen, e = tmhw.Null(cfg.Asic)
	} else {
		gen, e = tmhw.New(cfg.Asic, cfg.Chip)
	}
	if e != nil {
		return nil, e
	}

	devicesLock.Lock()
	defer devicesLock.Unlock()
	if devices[cfg.ID] != nil {
		return nil, fmt.Errorf("%w: device %d", tmdef.ErrAlreadyExists, cfg.ID)
	}

	dev = &Device{
		cfg:      cfg,
		params:   params,
		logger:   logger.With(cfg.ID.ZapField("dev")),
		emitter:  events.NewEmitter(),
		gen:      gen,
		hw:       gen,
		warm:     cfg.WarmInit,
		counters: counterPool{capacity: cfg.CounterNodes},
	}
	if e = dev.initState(); e != nil {
		return nil, e
	}
	devices[cfg.ID] = dev

	dev.logger.Info("device created",
		zap.Stringer("asic", cfg.Asic),
		zap.Int("pipes", cfg.Pipes),
		zap.Stringer("target", cfg.Target),
		zap.Bool("warm-init", cfg.WarmInit),
		zap.Int("counter-nodes", cfg.CounterNodes),
		zap.Int("queue-profiles", cfg.QueueProfiles),
	)
	return dev, nil
}

func (dev *Device) initState() error {
	for dir := range dev.pools {
		dev.pools[dir].init(tmdef.Dir(dir))
	}

	nPipes := dev.cfg.Pipes
	dev.pipes = make([]*pipeState, nPipes)
	dev.ports = make([][]*port, nPipes)
	dev.ppgs = make([][]*ppg, nPipes)
	dev.queues = make([][]*queue, nPipes)
	dev.profiles = make([][]qProfile, nPipes)
	for pipe := 0; pipe < nPipes; pipe++ {
		ps := &pipeState{
			pipe:         pipe,
			hystProfiles: newHystTable(dev.params.HystProfiles),
		}
		ps.init("pipe", fmt.Sprint(pipe))
		node, e := dev.counters.alloc(nil)
		if e != nil {
			return e
		}
		ps.node = node
		dev.pipes[pipe] = ps

		dev.ports[pipe] = make([]*port, dev.params.PortsPerPipe)
		for local := range dev.ports[pipe] {
			p := &port{id: tmdef.MakeDevPort(pipe, local)}
			p.reset()
			p.init("port", p.id.String())
			dev.ports[pipe][local] = p
		}

		dev.ppgs[pipe] = make([]*ppg, dev.params.PpgsPerPipe+dev.params.PortsPerPipe)
		for num := range dev.ppgs[pipe] {
			g := &ppg{
				pipe:      pipe,
				num:       num,
				isDefault: num >= dev.params.PpgsPerPipe,
			}
			g.reset()
			g.init("ppg", fmt.Sprintf("%d/%d", pipe, num))
			dev.ppgs[pipe][num] = g
		}

		dev.queues[pipe] = make([]*queue, dev.params.QueuesPerPipe())
		for phys := range dev.queues[pipe] {
			q := &queue{pipe: pipe, phys: phys, channel: -1}
			q.reset()
			q.init("queue", fmt.Sprintf("%d/%d", pipe, phys))
			dev.queues[pipe][phys] = q
		}

		dev.profiles[pipe] = make([]qProfile, dev.cfg.QueueProfiles)
	}
	return nil
}

// ID returns device ID.
func (dev *Device) ID() tmdef.DevID {
	return dev.cfg.ID
}

// Config returns device configuration with defaults applied.
func (dev *Device) Config() Config {
	return dev.cfg
}

// Params returns sizing parameters of the ASIC generation.
func (dev *Device) Params() tmdef.Params {
	return dev.params
}

// Close deletes every port and unregisters the device.
func (dev *Device) Close() error {
	dev.lock()
	errs := []error{}
	for _, pipePorts := range dev.ports {
		for _, p := range pipePorts {
			if p.added {
				errs = append(errs, dev.deletePort(p))
			}
		}
	}
	dev.unlockAndFlush()

	devicesLock.Lock()
	if devices[dev.cfg.ID] == dev {
		devices[dev.cfg.ID] = nil
	}
	devicesLock.Unlock()

	e := multierr.Combine(errs...)
	if e != nil {
		dev.logger.Error("device closed", zap.Error(e))
	} else {
		dev.logger.Info("device closed")
	}
	return e
}

// Find returns a Device by ID, or nil if it does not exist.
func Find(id tmdef.DevID) *Device {
	if !id.Valid() {
		return nil
	}
	devicesLock.Lock()
	defer devicesLock.Unlock()
	return devices[id]
}

// List returns all devices.
func List() (list []*Device) {
	devicesLock.Lock()
	defer devicesLock.Unlock()
	for _, dev := range devices {
		if dev != nil {
			list = append(list, dev)
		}
	}
	return list
}

func (dev *Device) lock() {
	dev.mu.Lock()
}

// unlockAndFlush releases the device lock, then emits events queued while it was held.
func (dev *Device) unlockAndFlush() {
	queued := dev.queued
	dev.queued = nil
	dev.mu.Unlock()
	for _, evt := range queued {
		dev.emitter.EmitSync(evt.name, evt.args...)
	}
}

// WarmInit determines whether hitless warm-init is in progress.
func (dev *Device) WarmInit() bool {
	dev.lock()
	defer dev.unlockAndFlush()
	return dev.warm
}

// BeginWarmInit enters hitless warm-init.
// Setters whose value equals the cached value are skipped entirely; port add and queue carve do not touch hardware.
func (dev *Device) BeginWarmInit() {
	dev.lock()
	defer dev.unlockAndFlush()
	dev.warm = true
	dev.logger.Info("warm-init begin")
}

// RestoreFromHardware reads pool and pipe configuration from hardware into the cache.
// Until EndWarmInit, the hardware backend is read-only: field writes are deferred and structural operations are skipped.
func (dev *Device) RestoreFromHardware() error {
	dev.lock()
	defer dev.unlockAndFlush()
	if !dev.warm {
		return fmt.Errorf("%w: restore requires warm-init", tmdef.ErrInvalidArg)
	}
	dev.restoring = true
	dev.hw = tmhw.ReadOnly(dev.gen)

	errs := []error{}
	for dir := range dev.pools {
		errs = append(errs, dev.restorePools(&dev.pools[dir]))
	}
	for _, ps := range dev.pipes {
		errs = append(errs, dev.restorePipe(ps))
	}
	e := multierr.Combine(errs...)
	if e != nil {
		dev.logger.Error("restore from hardware", zap.Error(e))
	} else {
		dev.logger.Info("restore from hardware")
	}
	return e
}

// EndWarmInit leaves hitless warm-init.
// Writes deferred during restore are replayed to hardware.
func (dev *Device) EndWarmInit() error {
	dev.lock()
	defer dev.unlockAndFlush()
	dev.warm = false
	if !dev.restoring {
		dev.logger.Info("warm-init end")
		return nil
	}
	dev.restoring = false
	dev.hw = dev.gen

	errs := []error{}
	dev.eachShadow(func(s *shadow) {
		errs = append(errs, dev.flushPending(s)...)
	})
	e := multierr.Combine(errs...)
	dev.logger.Info("warm-init end", zap.Error(e))
	return e
}

func (dev *Device) eachShadow(f func(s *shadow)) {
	for dir := range dev.pools {
		for _, sp := range dev.pools[dir].spools {
			f(&sp.shadow)
		}
		f(&dev.pools[dir].gpool.shadow)
	}
	for pipe, ps := range dev.pipes {
		f(&ps.shadow)
		for _, p := range dev.ports[pipe] {
			f(&p.shadow)
		}
		for _, g := range dev.ppgs[pipe] {
			f(&g.shadow)
		}
		for _, q := range dev.queues[pipe] {
			f(&q.shadow)
		}
	}
}

// OutOfSync lists resources whose last hardware write failed.
func (dev *Device) OutOfSync() (list []Resource) {
	dev.lock()
	defer dev.unlockAndFlush()
	dev.eachShadow(func(s *shadow) {
		if s.Status() == tmdef.WriteFailed {
			list = append(list, s.res)
		}
	})
	return list
}

// SyncErrors returns the hardware write errors of a resource.
func (dev *Device) SyncErrors(r Resource) error {
	dev.lock()
	defer dev.unlockAndFlush()
	errs := []error{}
	dev.eachShadow(func(s *shadow) {
		if s.res == r {
			for _, e := range s.failed {
				errs = append(errs, e)
			}
		}
	})
	return multierr.Combine(errs...)
}

func (dev *Device) checkPipe(pipe int) error {
	if pipe < 0 || pipe >= dev.cfg.Pipes {
		return fmt.Errorf("%w: pipe %d out of range", tmdef.ErrInvalidArg, pipe)
	}
	return nil
}
