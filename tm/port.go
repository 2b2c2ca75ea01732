package tm

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/usnistgov/tofino-tm/tm/tmdef"
	"github.com/usnistgov/tofino-tm/tm/tmhw"
)

// AdminState is the administrative state of a port.
type AdminState uint8

// AdminState values.
const (
	AdminUnset AdminState = iota
	AdminUp
	AdminDown
)

func (st AdminState) String() string {
	switch st {
	case AdminUp:
		return "up"
	case AdminDown:
		return "down"
	}
	return "unset"
}

type speedDefaults struct {
	rate      uint32 // Mbps
	ucCtLimit uint32 // cells
}

var speedTable = map[tmdef.Speed]speedDefaults{
	tmdef.Speed1G:   {1000, 4},
	tmdef.Speed10G:  {10000, 4},
	tmdef.Speed25G:  {25000, 4},
	tmdef.Speed40G:  {40000, 4},
	tmdef.Speed50G:  {50000, 6},
	tmdef.Speed100G: {100000, 8},
	tmdef.Speed200G: {200000, 12},
	tmdef.Speed400G: {400000, 16},
}

type port struct {
	shadow
	id tmdef.DevPort

	added      bool
	admin      AdminState
	linkUp     bool
	hasMac     bool
	recirc     bool
	speed      tmdef.Speed
	speedOnAdd tmdef.Speed
	rate       uint32
	qacRx      bool

	wacLimit   uint32
	wacHyst    hystRef
	qacLimit   uint32
	qacHyst    hystRef
	skidLimit  uint32
	cutThrough bool
	ucCtLimit  uint32
	fcTx       tmdef.FlowControl
	fcRx       tmdef.FlowControl
	pfcCosMap  [tmdef.NIcos]int
	icosPpg    [tmdef.NIcos]*ppg // nil means default PPG

	ppgs    []*ppg
	profile int // -1 means not carved
	queues  []*queue
	node    *counterNode
}

// reset restores defaults of an unpopulated port slot.
func (p *port) reset() {
	*p = port{
		shadow:  p.shadow,
		id:      p.id,
		profile: -1,
	}
	for i := range p.pfcCosMap {
		p.pfcCosMap[i] = i
	}
}

// PortStatus describes a port.
type PortStatus struct {
	Port          tmdef.DevPort    `json:"port"`
	Added         bool             `json:"added"`
	Admin         AdminState       `json:"admin"`
	LinkUp        bool             `json:"linkUp"`
	HasMac        bool             `json:"hasMac"`
	Recirculation bool             `json:"recirculation"`
	Speed         tmdef.Speed      `json:"speed"`
	SpeedOnAdd    tmdef.Speed      `json:"speedOnAdd"`
	Rate          uint32           `json:"rate"`
	QacRx         bool             `json:"qacRx"`
	PpgCount      int              `json:"ppgCount"`
	QueueCount    int              `json:"queueCount"`
	Profile       int              `json:"profile"`
	Sync          tmdef.SyncStatus `json:"sync"`
}

// Ports provides access to ports.
type Ports struct {
	dev *Device
}

// Ports returns port accessors.
func (dev *Device) Ports() Ports {
	return Ports{dev}
}

func (dev *Device) findPort(id tmdef.DevPort) (*port, error) {
	if e := dev.checkPipe(id.Pipe()); e != nil {
		return nil, e
	}
	if id.Port() >= dev.params.PortsPerPipe {
		return nil, fmt.Errorf("%w: port %s out of range", tmdef.ErrInvalidArg, id)
	}
	return dev.ports[id.Pipe()][id.Port()], nil
}

func (dev *Device) addedPort(id tmdef.DevPort) (*port, error) {
	p, e := dev.findPort(id)
	if e != nil {
		return nil, e
	}
	if !p.added {
		return nil, fmt.Errorf("%w: port %s not added", tmdef.ErrObjectNotFound, id)
	}
	return p, nil
}

func (ps Ports) with(id tmdef.DevPort, f func(p *port) error) error {
	ps.dev.lock()
	defer ps.dev.unlockAndFlush()
	p, e := ps.dev.addedPort(id)
	if e != nil {
		return e
	}
	return f(p)
}

func portGet[T any](ps Ports, id tmdef.DevPort, hw *uint32, f tmhw.Field, index int, pick func(p *port) T) (v T, e error) {
	ps.dev.lock()
	defer ps.dev.unlockAndFlush()
	p, e := ps.dev.addedPort(id)
	if e != nil {
		return v, e
	}
	return getField(ps.dev, pick(p), hw, f, func(g tmhw.Generation) (uint32, error) {
		return g.Port().ReadPort(id, f, index)
	})
}

func (dev *Device) writePort(p *port, f tmhw.Field, index int, v uint32) writeFunc {
	id := p.id
	return func(g tmhw.Generation) error {
		return g.Port().WritePort(id, f, index, v)
	}
}

func (dev *Device) setPortU32(p *port, cache *uint32, v uint32, f tmhw.Field) error {
	return setField(dev, &p.shadow, cache, v, f, 0, dev.writePort(p, f, 0, v))
}

func (dev *Device) setPortBool(p *port, cache *bool, v bool, f tmhw.Field) error {
	return setField(dev, &p.shadow, cache, v, f, 0, dev.writePort(p, f, 0, b2u(v)))
}

// Add adds a port.
// Shaping defaults come from the speed; cut-through and flow control are disabled.
// In warm-init, only software state is populated.
func (ps Ports) Add(id tmdef.DevPort, speed tmdef.Speed) error {
	ps.dev.lock()
	defer ps.dev.unlockAndFlush()
	return ps.dev.addPort(id, speed)
}

func (dev *Device) addPort(id tmdef.DevPort, speed tmdef.Speed) error {
	p, e := dev.findPort(id)
	if e != nil {
		return e
	}
	sd, ok := speedTable[speed]
	if !ok {
		return fmt.Errorf("%w: speed %s", tmdef.ErrInvalidArg, speed)
	}
	if p.added {
		return fmt.Errorf("%w: port %s", tmdef.ErrAlreadyExists, id)
	}
	if dev.counters.available() < 2 {
		return fmt.Errorf("%w: no counter node for port %s", tmdef.ErrNoSysResources, id)
	}
	portNode, e := dev.counters.alloc(nil)
	if e != nil {
		return fmt.Errorf("port %s counter: %w", id, e)
	}
	defNode, e := dev.counters.alloc(nil)
	if e != nil {
		dev.counters.release(portNode)
		return fmt.Errorf("port %s default PPG counter: %w", id, e)
	}

	dev.releaseHyst(id.Pipe(), &p.wacHyst)
	dev.releaseHyst(id.Pipe(), &p.qacHyst)
	p.reset()
	p.added = true
	p.speed, p.speedOnAdd = speed, speed
	p.rate, p.ucCtLimit = sd.rate, sd.ucCtLimit
	p.hasMac = dev.cfg.PortInfo.HasMac(id)
	p.recirc = dev.cfg.PortInfo.Recirculation(id)
	p.node = portNode
	def := dev.defaultPpgOf(p)
	def.node = defNode
	def.inUse, def.port, def.icosMask = true, id, tmdef.AllIcos

	dev.queueEvent(evtPortAdded, id, speed)
	logEntry := dev.logger.With(id.ZapField("port"), zap.Stringer("speed", speed), zap.Bool("has-mac", p.hasMac), zap.Bool("recirc", p.recirc))
	if dev.warm {
		p.qacRx = qacRxWanted(p)
		logEntry.Info("port added in warm-init")
		return nil
	}

	errs := []error{dev.hwOp(&p.shadow, func(g tmhw.Generation) error {
		return g.Port().AddPort(id, speed)
	})}
	for _, w := range []struct {
		f tmhw.Field
		v uint32
	}{
		{tmhw.PortRate, p.rate},
		{tmhw.PortUcCtLimit, p.ucCtLimit},
		{tmhw.PortCutThrough, 0},
		{tmhw.PortFlowControlTx, uint32(tmdef.FlowControlNone)},
		{tmhw.PortFlowControlRx, uint32(tmdef.FlowControlNone)},
	} {
		errs = append(errs, dev.hwWrite(&p.shadow, w.f, 0, dev.writePort(p, w.f, 0, w.v)))
	}
	errs = append(errs, dev.writeDefaultPpg(p, def))
	errs = append(errs, dev.refreshQacRx(p))

	e = multierr.Combine(errs...)
	if e != nil {
		logEntry.Error("port added with errors", zap.Error(e))
	} else {
		logEntry.Info("port added")
	}
	return e
}

// Delete deletes a port, freeing its PPGs and queues.
func (ps Ports) Delete(id tmdef.DevPort) error {
	ps.dev.lock()
	defer ps.dev.unlockAndFlush()
	p, e := ps.dev.addedPort(id)
	if e != nil {
		return e
	}
	return ps.dev.deletePort(p)
}

func (dev *Device) deletePort(p *port) error {
	id := p.id
	errs := []error{}

	p.admin = AdminDown
	if p.qacRx {
		p.qacRx = false
		dev.queueEvent(evtQacRxChanged, id, false)
		errs = append(errs, dev.hwOp(&p.shadow, func(g tmhw.Generation) error {
			return g.Port().SetQacRx(id, false)
		}))
	}
	for len(p.ppgs) > 0 {
		errs = append(errs, dev.freePpg(p, p.ppgs[len(p.ppgs)-1]))
	}
	errs = append(errs, dev.releaseCarve(p))
	dev.unbindDefaultPpg(p)
	errs = append(errs, dev.hwOp(&p.shadow, func(g tmhw.Generation) error {
		return g.Port().RemovePort(id)
	}))

	dev.counters.release(p.node)
	dev.releaseHyst(id.Pipe(), &p.wacHyst)
	dev.releaseHyst(id.Pipe(), &p.qacHyst)
	if dev.hasCpuPort && dev.cpuPort == id {
		dev.hasCpuPort = false
	}
	p.reset()

	dev.queueEvent(evtPortDeleted, id)
	e := multierr.Combine(errs...)
	if e != nil {
		dev.logger.Error("port deleted with errors", id.ZapField("port"), zap.Error(e))
	} else {
		dev.logger.Info("port deleted", id.ZapField("port"))
	}
	return e
}

// UpdateSpeed changes the speed of an added port and the shaping defaults derived from it.
func (ps Ports) UpdateSpeed(id tmdef.DevPort, speed tmdef.Speed) error {
	ps.dev.lock()
	defer ps.dev.unlockAndFlush()
	p, e := ps.dev.addedPort(id)
	if e != nil {
		return e
	}
	sd, ok := speedTable[speed]
	if !ok {
		return fmt.Errorf("%w: speed %s", tmdef.ErrInvalidArg, speed)
	}
	p.speed = speed
	return multierr.Append(
		ps.dev.setPortU32(p, &p.rate, sd.rate, tmhw.PortRate),
		ps.dev.setPortU32(p, &p.ucCtLimit, sd.ucCtLimit, tmhw.PortUcCtLimit),
	)
}

// UpdateAdminState records an admin state transition and refreshes QAC-rx.
func (ps Ports) UpdateAdminState(id tmdef.DevPort, up bool) error {
	ps.dev.lock()
	defer ps.dev.unlockAndFlush()
	p, e := ps.dev.addedPort(id)
	if e != nil {
		return e
	}
	if up {
		p.admin = AdminUp
	} else {
		p.admin = AdminDown
	}
	return ps.dev.refreshQacRx(p)
}

// UpdateStatus records a link state change and refreshes QAC-rx.
func (ps Ports) UpdateStatus(id tmdef.DevPort, up bool) error {
	ps.dev.lock()
	defer ps.dev.unlockAndFlush()
	p, e := ps.dev.addedPort(id)
	if e != nil {
		return e
	}
	p.linkUp = up
	return ps.dev.refreshQacRx(p)
}

// refreshQacRx recomputes QAC-rx from admin state, MAC presence, and live recirculation state.
//
// A MAC port without recirculation admits traffic only after admin-up, so that nothing is enqueued before the MAC drains.
// A port without MAC or with recirculation admits traffic from add time until admin-down.
func (dev *Device) refreshQacRx(p *port) error {
	p.recirc = dev.cfg.PortInfo.Recirculation(p.id)
	want := qacRxWanted(p)
	if want == p.qacRx {
		return nil
	}

	p.qacRx = want
	dev.queueEvent(evtQacRxChanged, p.id, want)
	dev.logger.Debug("QAC-rx changed", p.id.ZapField("port"), zap.Bool("enabled", want),
		zap.Stringer("admin", p.admin), zap.Bool("recirc", p.recirc))
	id := p.id
	return dev.hwOp(&p.shadow, func(g tmhw.Generation) error {
		return g.Port().SetQacRx(id, want)
	})
}

func qacRxWanted(p *port) bool {
	if p.hasMac && !p.recirc {
		return p.admin == AdminUp
	}
	return p.admin != AdminDown
}

// QacRx returns whether QAC-rx is enabled on a port.
func (ps Ports) QacRx(id tmdef.DevPort) (bool, error) {
	ps.dev.lock()
	defer ps.dev.unlockAndFlush()
	p, e := ps.dev.findPort(id)
	if e != nil {
		return false, e
	}
	return p.qacRx, nil
}

// Info returns port status.
func (ps Ports) Info(id tmdef.DevPort) (st PortStatus, e error) {
	ps.dev.lock()
	defer ps.dev.unlockAndFlush()
	p, e := ps.dev.findPort(id)
	if e != nil {
		return st, e
	}
	return PortStatus{
		Port:          p.id,
		Added:         p.added,
		Admin:         p.admin,
		LinkUp:        p.linkUp,
		HasMac:        p.hasMac,
		Recirculation: p.recirc,
		Speed:         p.speed,
		SpeedOnAdd:    p.speedOnAdd,
		Rate:          p.rate,
		QacRx:         p.qacRx,
		PpgCount:      len(p.ppgs),
		QueueCount:    len(p.queues),
		Profile:       p.profile,
		Sync:          p.Status(),
	}, nil
}

// List returns added ports.
func (ps Ports) List() (list []tmdef.DevPort) {
	ps.dev.lock()
	defer ps.dev.unlockAndFlush()
	for _, pipePorts := range ps.dev.ports {
		for _, p := range pipePorts {
			if p.added {
				list = append(list, p.id)
			}
		}
	}
	return list
}

// SetWacDropLimit changes the WAC drop limit of a port, in cells.
func (ps Ports) SetWacDropLimit(id tmdef.DevPort, limit uint32) error {
	return ps.with(id, func(p *port) error {
		return ps.dev.setPortU32(p, &p.wacLimit, limit, tmhw.PortWacLimit)
	})
}

// WacDropLimit returns the WAC drop limit of a port.
func (ps Ports) WacDropLimit(id tmdef.DevPort, hw *uint32) (uint32, error) {
	return portGet(ps, id, hw, tmhw.PortWacLimit, 0, func(p *port) uint32 { return p.wacLimit })
}

// SetWacHyst changes the WAC hysteresis of a port, in cells.
func (ps Ports) SetWacHyst(id tmdef.DevPort, hyst uint32) error {
	return ps.with(id, func(p *port) error {
		return ps.dev.setHyst(&p.shadow, id.Pipe(), &p.wacHyst, hyst, tmhw.PortWacHystIndex, func(g tmhw.Generation, index uint32) error {
			return g.Port().WritePort(id, tmhw.PortWacHystIndex, 0, index)
		})
	})
}

// WacHyst returns the WAC hysteresis of a port.
// If hw is non-nil, the hardware hysteresis profile index is read into *hw.
func (ps Ports) WacHyst(id tmdef.DevPort, hw *uint32) (uint32, error) {
	return portGet(ps, id, hw, tmhw.PortWacHystIndex, 0, func(p *port) uint32 { return p.wacHyst.Value })
}

// SetQacDropLimit changes the QAC drop limit of a port, in cells.
func (ps Ports) SetQacDropLimit(id tmdef.DevPort, limit uint32) error {
	return ps.with(id, func(p *port) error {
		return ps.dev.setPortU32(p, &p.qacLimit, limit, tmhw.PortQacLimit)
	})
}

// QacDropLimit returns the QAC drop limit of a port.
func (ps Ports) QacDropLimit(id tmdef.DevPort, hw *uint32) (uint32, error) {
	return portGet(ps, id, hw, tmhw.PortQacLimit, 0, func(p *port) uint32 { return p.qacLimit })
}

// SetQacHyst changes the QAC hysteresis of a port, in cells.
func (ps Ports) SetQacHyst(id tmdef.DevPort, hyst uint32) error {
	return ps.with(id, func(p *port) error {
		return ps.dev.setHyst(&p.shadow, id.Pipe(), &p.qacHyst, hyst, tmhw.PortQacHystIndex, func(g tmhw.Generation, index uint32) error {
			return g.Port().WritePort(id, tmhw.PortQacHystIndex, 0, index)
		})
	})
}

// QacHyst returns the QAC hysteresis of a port.
// If hw is non-nil, the hardware hysteresis profile index is read into *hw.
func (ps Ports) QacHyst(id tmdef.DevPort, hw *uint32) (uint32, error) {
	return portGet(ps, id, hw, tmhw.PortQacHystIndex, 0, func(p *port) uint32 { return p.qacHyst.Value })
}

// SetSkidLimit changes the skid limit of a port, in cells.
func (ps Ports) SetSkidLimit(id tmdef.DevPort, limit uint32) error {
	return ps.with(id, func(p *port) error {
		return ps.dev.setPortU32(p, &p.skidLimit, limit, tmhw.PortSkidLimit)
	})
}

// SkidLimit returns the skid limit of a port.
func (ps Ports) SkidLimit(id tmdef.DevPort, hw *uint32) (uint32, error) {
	return portGet(ps, id, hw, tmhw.PortSkidLimit, 0, func(p *port) uint32 { return p.skidLimit })
}

// SetCutThrough enables or disables cut-through on a port.
func (ps Ports) SetCutThrough(id tmdef.DevPort, enable bool) error {
	return ps.with(id, func(p *port) error {
		return ps.dev.setPortBool(p, &p.cutThrough, enable, tmhw.PortCutThrough)
	})
}

// CutThrough returns whether cut-through is enabled on a port.
func (ps Ports) CutThrough(id tmdef.DevPort, hw *uint32) (bool, error) {
	return portGet(ps, id, hw, tmhw.PortCutThrough, 0, func(p *port) bool { return p.cutThrough })
}

// SetUcCutThroughLimit changes the unicast cut-through limit of a port, in cells.
func (ps Ports) SetUcCutThroughLimit(id tmdef.DevPort, limit uint32) error {
	return ps.with(id, func(p *port) error {
		return ps.dev.setPortU32(p, &p.ucCtLimit, limit, tmhw.PortUcCtLimit)
	})
}

// UcCutThroughLimit returns the unicast cut-through limit of a port.
func (ps Ports) UcCutThroughLimit(id tmdef.DevPort, hw *uint32) (uint32, error) {
	return portGet(ps, id, hw, tmhw.PortUcCtLimit, 0, func(p *port) uint32 { return p.ucCtLimit })
}

// SetFlowControl changes transmit and receive flow-control types of a port.
func (ps Ports) SetFlowControl(id tmdef.DevPort, tx, rx tmdef.FlowControl) error {
	if !tx.Valid() || !rx.Valid() {
		return fmt.Errorf("%w: flow control %d/%d", tmdef.ErrInvalidArg, tx, rx)
	}
	return ps.with(id, func(p *port) error {
		return multierr.Append(
			setField(ps.dev, &p.shadow, &p.fcTx, tx, tmhw.PortFlowControlTx, 0, ps.dev.writePort(p, tmhw.PortFlowControlTx, 0, uint32(tx))),
			setField(ps.dev, &p.shadow, &p.fcRx, rx, tmhw.PortFlowControlRx, 0, ps.dev.writePort(p, tmhw.PortFlowControlRx, 0, uint32(rx))),
		)
	})
}

// FlowControl returns transmit and receive flow-control types of a port.
func (ps Ports) FlowControl(id tmdef.DevPort) (tx, rx tmdef.FlowControl, e error) {
	e = ps.with(id, func(p *port) error {
		tx, rx = p.fcTx, p.fcRx
		return nil
	})
	return
}

// SetPfcCosMap changes the mapping from PFC CoS to iCoS of a port.
func (ps Ports) SetPfcCosMap(id tmdef.DevPort, cosToIcos [tmdef.NIcos]int) error {
	for _, icos := range cosToIcos {
		if e := checkIcos(icos); e != nil {
			return e
		}
	}
	return ps.with(id, func(p *port) error {
		errs := []error{}
		for cos, icos := range cosToIcos {
			errs = append(errs, setField(ps.dev, &p.shadow, &p.pfcCosMap[cos], icos, tmhw.PortPfcCosMap, cos,
				ps.dev.writePort(p, tmhw.PortPfcCosMap, cos, uint32(icos))))
		}
		return multierr.Combine(errs...)
	})
}

// PfcCosMap returns the mapping from PFC CoS to iCoS of a port.
func (ps Ports) PfcCosMap(id tmdef.DevPort) (m [tmdef.NIcos]int, e error) {
	e = ps.with(id, func(p *port) error {
		m = p.pfcCosMap
		return nil
	})
	return
}

// SetCpuPort designates the CPU port.
func (ps Ports) SetCpuPort(id tmdef.DevPort) error {
	return ps.with(id, func(p *port) error {
		if ps.dev.warm && ps.dev.hasCpuPort && ps.dev.cpuPort == id {
			return nil
		}
		ps.dev.cpuPort, ps.dev.hasCpuPort = id, true
		ps.dev.logger.Info("CPU port set", id.ZapField("port"))
		return ps.dev.hwOp(&p.shadow, func(g tmhw.Generation) error {
			return g.Port().SetCpuPort(id)
		})
	})
}

// CpuPort returns the CPU port.
func (ps Ports) CpuPort() (id tmdef.DevPort, ok bool) {
	ps.dev.lock()
	defer ps.dev.unlockAndFlush()
	return ps.dev.cpuPort, ps.dev.hasCpuPort
}

// DropCounts reads WAC and QAC drop counters of a port.
func (ps Ports) DropCounts(id tmdef.DevPort) (wac, qac uint64, e error) {
	ps.dev.lock()
	defer ps.dev.unlockAndFlush()
	p, e := ps.dev.addedPort(id)
	if e != nil {
		return 0, 0, e
	}
	read := func(c tmhw.Counter) (uint64, error) {
		return ps.dev.readCounter(p.node, c, 0, func(g tmhw.Generation) (uint64, error) {
			return g.Port().ReadPortCounter(id, c)
		})
	}
	wac, e0 := read(tmhw.PortWacDrop)
	qac, e1 := read(tmhw.PortQacDrop)
	return wac, qac, multierr.Append(e0, e1)
}

// ClearDropCounts clears WAC and QAC drop counters of a port.
func (ps Ports) ClearDropCounts(id tmdef.DevPort) error {
	ps.dev.lock()
	defer ps.dev.unlockAndFlush()
	p, e := ps.dev.addedPort(id)
	if e != nil {
		return e
	}
	clearOne := func(c tmhw.Counter) error {
		return ps.dev.clearCounter(&p.shadow, p.node, c, 0, func(g tmhw.Generation) error {
			return g.Port().ClearPortCounter(id, c)
		})
	}
	return multierr.Append(clearOne(tmhw.PortWacDrop), clearOne(tmhw.PortQacDrop))
}
