package tm

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/usnistgov/tofino-tm/tm/tmdef"
	"github.com/usnistgov/tofino-tm/tm/tmhw"
)

type ppg struct {
	shadow
	pipe      int
	num       int
	isDefault bool

	inUse       bool
	port        tmdef.DevPort
	minLimit    uint32
	skidLimit   uint32
	appLimit    uint32
	hyst        hystRef
	appPool     tmdef.PoolID
	dynamic     bool
	baf         tmdef.Baf
	icosMask    tmdef.IcosMask
	pfc         bool
	fastRecover bool
	node        *counterNode
}

func (g *ppg) reset() {
	*g = ppg{
		shadow:    g.shadow,
		pipe:      g.pipe,
		num:       g.num,
		isDefault: g.isDefault,
		baf:       tmdef.BafDisable,
	}
}

func (g *ppg) handle() tmdef.PpgHandle {
	return tmdef.MakePpgHandle(g.pipe, g.port.Port(), g.num)
}

// PpgStatus describes a PPG.
type PpgStatus struct {
	Handle      tmdef.PpgHandle  `json:"handle"`
	Port        tmdef.DevPort    `json:"port"`
	Default     bool             `json:"default"`
	IcosMask    tmdef.IcosMask   `json:"icosMask"`
	MinLimit    uint32           `json:"minLimit"`
	SkidLimit   uint32           `json:"skidLimit"`
	AppLimit    uint32           `json:"appLimit"`
	Hyst        uint32           `json:"hyst"`
	HystIndex   int              `json:"hystIndex"`
	AppPool     tmdef.PoolID     `json:"appPool"`
	Dynamic     bool             `json:"dynamic"`
	Baf         tmdef.Baf        `json:"baf"`
	Pfc         bool             `json:"pfc"`
	FastRecover bool             `json:"fastRecover"`
	Sync        tmdef.SyncStatus `json:"sync"`
}

// Ppgs provides access to PPGs.
type Ppgs struct {
	dev *Device
}

// Ppgs returns PPG accessors.
func (dev *Device) Ppgs() Ppgs {
	return Ppgs{dev}
}

func (dev *Device) defaultPpgOf(p *port) *ppg {
	return dev.ppgs[p.id.Pipe()][dev.params.PpgsPerPipe+p.id.Port()]
}

func (dev *Device) findPpg(h tmdef.PpgHandle) (*port, *ppg, error) {
	if h == tmdef.InvalidPpg {
		return nil, nil, fmt.Errorf("%w: invalid PPG handle", tmdef.ErrInvalidArg)
	}
	p, e := dev.addedPort(h.DevPort())
	if e != nil {
		return nil, nil, e
	}
	pipePpgs := dev.ppgs[h.Pipe()]
	if h.Ppg() >= len(pipePpgs) {
		return nil, nil, fmt.Errorf("%w: PPG %s out of range", tmdef.ErrInvalidArg, h)
	}
	g := pipePpgs[h.Ppg()]
	if g.isDefault {
		if g != dev.defaultPpgOf(p) {
			return nil, nil, fmt.Errorf("%w: PPG %s is the default PPG of another port", tmdef.ErrInvalidArg, h)
		}
	} else if !g.inUse || g.port != p.id {
		return nil, nil, fmt.Errorf("%w: PPG %s not allocated", tmdef.ErrObjectNotFound, h)
	}
	return p, g, nil
}

func (pp Ppgs) with(h tmdef.PpgHandle, f func(p *port, g *ppg) error) error {
	pp.dev.lock()
	defer pp.dev.unlockAndFlush()
	p, g, e := pp.dev.findPpg(h)
	if e != nil {
		return e
	}
	return f(p, g)
}

func ppgGet[T any](pp Ppgs, h tmdef.PpgHandle, hw *uint32, f tmhw.Field, pick func(g *ppg) T) (v T, e error) {
	pp.dev.lock()
	defer pp.dev.unlockAndFlush()
	_, g, e := pp.dev.findPpg(h)
	if e != nil {
		return v, e
	}
	pipe, num := g.pipe, g.num
	return getField(pp.dev, pick(g), hw, f, func(gen tmhw.Generation) (uint32, error) {
		return gen.Ppg().ReadPpg(pipe, num, f)
	})
}

func (dev *Device) writePpg(g *ppg, f tmhw.Field, v uint32) writeFunc {
	pipe, num := g.pipe, g.num
	return func(gen tmhw.Generation) error {
		return gen.Ppg().WritePpg(pipe, num, f, v)
	}
}

func (dev *Device) setPpgU32(g *ppg, cache *uint32, v uint32, f tmhw.Field) error {
	return setField(dev, &g.shadow, cache, v, f, 0, dev.writePpg(g, f, v))
}

func (dev *Device) setPpgBool(g *ppg, cache *bool, v bool, f tmhw.Field) error {
	return setField(dev, &g.shadow, cache, v, f, 0, dev.writePpg(g, f, b2u(v)))
}

// Alloc allocates a PPG on an added port.
//
// In warm-init, saved must be the handle the PPG had before restart; it is reclaimed without scanning.
// Otherwise saved is ignored and a free, drained PPG within the port's range is chosen.
// ErrAgain means free PPGs exist but none has drained; ErrNoSysResources means none is free.
func (pp Ppgs) Alloc(id tmdef.DevPort, saved tmdef.PpgHandle) (tmdef.PpgHandle, error) {
	pp.dev.lock()
	defer pp.dev.unlockAndFlush()
	p, e := pp.dev.addedPort(id)
	if e != nil {
		return tmdef.InvalidPpg, e
	}
	if pp.dev.warm {
		return pp.dev.restorePpg(p, saved)
	}
	return pp.dev.allocPpg(p)
}

func (dev *Device) restorePpg(p *port, saved tmdef.PpgHandle) (tmdef.PpgHandle, error) {
	if saved == tmdef.InvalidPpg || saved.DevPort() != p.id {
		return tmdef.InvalidPpg, fmt.Errorf("%w: saved PPG %s does not belong to port %s", tmdef.ErrInvalidArg, saved, p.id)
	}
	if saved.Ppg() >= dev.params.PpgsPerPipe {
		return tmdef.InvalidPpg, fmt.Errorf("%w: saved PPG %s is not allocatable", tmdef.ErrInvalidArg, saved)
	}
	g := dev.ppgs[p.id.Pipe()][saved.Ppg()]
	if g.inUse {
		if g.port == p.id {
			return saved, nil
		}
		dev.logger.Error("saved PPG is in use by another port",
			saved.ZapField("ppg"), p.id.ZapField("port"), g.port.ZapField("owner"))
		return tmdef.InvalidPpg, fmt.Errorf("%w: PPG %s owned by port %s", tmdef.ErrUnexpected, saved, g.port)
	}
	if len(p.ppgs) >= tmdef.MaxPfcLevels {
		return tmdef.InvalidPpg, fmt.Errorf("%w: port %s has %d PPGs", tmdef.ErrNoSysResources, p.id, len(p.ppgs))
	}
	node, e := dev.counters.alloc(g.node)
	if e != nil {
		return tmdef.InvalidPpg, e
	}
	g.node = node
	return dev.claimPpg(p, g)
}

func (dev *Device) allocPpg(p *port) (tmdef.PpgHandle, error) {
	if len(p.ppgs) >= tmdef.MaxPfcLevels {
		return tmdef.InvalidPpg, fmt.Errorf("%w: port %s has %d PPGs", tmdef.ErrNoSysResources, p.id, len(p.ppgs))
	}
	pipePpgs := dev.ppgs[p.id.Pipe()]
	lo, hi := dev.params.PpgRange(p.id.Port())
	sawFree := false
	for num := lo; num < hi; num++ {
		g := pipePpgs[num]
		if g.inUse {
			continue
		}
		sawFree = true
		if dev.cfg.Target == tmdef.TargetAsic && !dev.ppgDrained(g) {
			continue
		}
		node, e := dev.counters.alloc(g.node)
		if e != nil {
			return tmdef.InvalidPpg, e
		}
		g.node = node
		return dev.claimPpg(p, g)
	}
	if sawFree {
		return tmdef.InvalidPpg, fmt.Errorf("%w: free PPGs of port %s have not drained", tmdef.ErrAgain, p.id)
	}
	return tmdef.InvalidPpg, fmt.Errorf("%w: no free PPG for port %s", tmdef.ErrNoSysResources, p.id)
}

// ppgDrained determines whether a PPG holds no buffered cells.
// A PPG whose usage cannot be read is considered not drained.
func (dev *Device) ppgDrained(g *ppg) bool {
	u, e := dev.ppgUsage(g)
	if e != nil {
		dev.logger.Debug("PPG usage unavailable", zap.Int("pipe", g.pipe), zap.Int("ppg", g.num), zap.Error(e))
		return false
	}
	return u.Drained()
}

func (dev *Device) ppgUsage(g *ppg) (u tmdef.PpgUsage, e error) {
	caps := dev.hw.Ppg()
	read := func(c tmhw.Counter) (uint32, error) {
		if !caps.HasCounter(c) {
			return 0, nil
		}
		v, e := caps.ReadPpgCounter(g.pipe, g.num, c)
		return uint32(v), e
	}
	var e0, e1, e2 error
	u.Gmin, e0 = read(tmhw.PpgGminUsage)
	u.Shared, e1 = read(tmhw.PpgSharedUsage)
	u.Skid, e2 = read(tmhw.PpgSkidUsage)
	return u, multierr.Combine(e0, e1, e2)
}

// claimPpg binds a PPG to a port. Its counter node must already be allocated.
// If the hardware write fails, the PPG stays allocated and its handle is returned with the error.
func (dev *Device) claimPpg(p *port, g *ppg) (h tmdef.PpgHandle, e error) {
	g.inUse, g.port, g.icosMask = true, p.id, 0
	p.ppgs = append(p.ppgs, g)
	h = g.handle()
	dev.queueEvent(evtPpgAllocated, h)
	dev.logger.Info("PPG allocated", h.ZapField("ppg"), zap.Bool("warm-init", dev.warm))
	if !dev.warm {
		e = dev.hwWrite(&g.shadow, tmhw.PpgPort, 0, dev.writePpg(g, tmhw.PpgPort, uint32(p.id)))
	}
	return h, e
}

// Free frees an allocated PPG. Its iCoS values return to the default PPG.
func (pp Ppgs) Free(h tmdef.PpgHandle) error {
	return pp.with(h, func(p *port, g *ppg) error {
		if g.isDefault {
			return fmt.Errorf("%w: cannot free default PPG %s", tmdef.ErrInvalidArg, h)
		}
		return pp.dev.freePpg(p, g)
	})
}

func (dev *Device) freePpg(p *port, g *ppg) error {
	h := g.handle()
	var e error
	if g.icosMask != 0 {
		e = dev.setIcosMask(p, g, 0)
	}
	for i, pg := range p.ppgs {
		if pg == g {
			p.ppgs = append(p.ppgs[:i], p.ppgs[i+1:]...)
			break
		}
	}
	dev.releaseHyst(g.pipe, &g.hyst)
	dev.counters.release(g.node)
	g.reset()
	g.forget()
	dev.queueEvent(evtPpgFreed, h)
	dev.logger.Info("PPG freed", h.ZapField("ppg"))
	return e
}

// writeDefaultPpg programs the default PPG of a newly added port to cover every iCoS.
func (dev *Device) writeDefaultPpg(p *port, def *ppg) error {
	errs := []error{
		dev.hwWrite(&def.shadow, tmhw.PpgPort, 0, dev.writePpg(def, tmhw.PpgPort, uint32(p.id))),
		dev.hwWrite(&def.shadow, tmhw.PpgIcosMask, 0, dev.writePpg(def, tmhw.PpgIcosMask, uint32(def.icosMask))),
	}
	for icos := 0; icos < tmdef.NIcos; icos++ {
		errs = append(errs, dev.hwWrite(&p.shadow, tmhw.PortIcosPpg, icos, dev.writePort(p, tmhw.PortIcosPpg, icos, uint32(def.num))))
	}
	return multierr.Combine(errs...)
}

func (dev *Device) unbindDefaultPpg(p *port) {
	def := dev.defaultPpgOf(p)
	dev.releaseHyst(def.pipe, &def.hyst)
	dev.counters.release(def.node)
	def.reset()
	def.forget()
}

// DefaultPpg returns the default PPG of an added port.
func (pp Ppgs) DefaultPpg(id tmdef.DevPort) (tmdef.PpgHandle, error) {
	pp.dev.lock()
	defer pp.dev.unlockAndFlush()
	p, e := pp.dev.addedPort(id)
	if e != nil {
		return tmdef.InvalidPpg, e
	}
	return pp.dev.defaultPpgOf(p).handle(), nil
}

// List returns allocated PPGs of a port, excluding the default PPG.
func (pp Ppgs) List(id tmdef.DevPort) (list []tmdef.PpgHandle, e error) {
	pp.dev.lock()
	defer pp.dev.unlockAndFlush()
	p, e := pp.dev.addedPort(id)
	if e != nil {
		return nil, e
	}
	for _, g := range p.ppgs {
		list = append(list, g.handle())
	}
	return list, nil
}

// Info returns PPG status.
func (pp Ppgs) Info(h tmdef.PpgHandle) (st PpgStatus, e error) {
	e = pp.with(h, func(p *port, g *ppg) error {
		st = PpgStatus{
			Handle:      h,
			Port:        g.port,
			Default:     g.isDefault,
			IcosMask:    g.icosMask,
			MinLimit:    g.minLimit,
			SkidLimit:   g.skidLimit,
			AppLimit:    g.appLimit,
			Hyst:        g.hyst.Value,
			HystIndex:   g.hyst.Index,
			AppPool:     g.appPool,
			Dynamic:     g.dynamic,
			Baf:         g.baf,
			Pfc:         g.pfc,
			FastRecover: g.fastRecover,
			Sync:        g.Status(),
		}
		return nil
	})
	return
}

// SetIcosMask changes the iCoS values mapped to an allocated PPG.
// Values claimed by another allocated PPG of the port are rejected.
// Values dropped from the mask return to the default PPG; newly claimed values leave it.
func (pp Ppgs) SetIcosMask(h tmdef.PpgHandle, mask tmdef.IcosMask) error {
	return pp.with(h, func(p *port, g *ppg) error {
		if g.isDefault {
			return fmt.Errorf("%w: default PPG iCoS mask is derived", tmdef.ErrInvalidArg)
		}
		for _, other := range p.ppgs {
			if other != g && other.icosMask&mask != 0 {
				return fmt.Errorf("%w: iCoS mask %02x overlaps PPG %s", tmdef.ErrInvalidArg, uint8(other.icosMask&mask), other.handle())
			}
		}
		if pp.dev.warm && g.icosMask == mask {
			return nil
		}
		return pp.dev.setIcosMask(p, g, mask)
	})
}

func (dev *Device) setIcosMask(p *port, g *ppg, mask tmdef.IcosMask) error {
	def := dev.defaultPpgOf(p)
	dropped := g.icosMask &^ mask
	claimed := mask &^ g.icosMask
	g.icosMask = mask
	def.icosMask = (def.icosMask | dropped) &^ claimed

	errs := []error{
		dev.hwWrite(&g.shadow, tmhw.PpgIcosMask, 0, dev.writePpg(g, tmhw.PpgIcosMask, uint32(g.icosMask))),
		dev.hwWrite(&def.shadow, tmhw.PpgIcosMask, 0, dev.writePpg(def, tmhw.PpgIcosMask, uint32(def.icosMask))),
	}
	for icos := 0; icos < tmdef.NIcos; icos++ {
		var owner *ppg
		switch {
		case dropped.Has(icos):
			p.icosPpg[icos], owner = nil, def
		case claimed.Has(icos):
			p.icosPpg[icos], owner = g, g
		default:
			continue
		}
		errs = append(errs, dev.hwWrite(&p.shadow, tmhw.PortIcosPpg, icos, dev.writePort(p, tmhw.PortIcosPpg, icos, uint32(owner.num))))
	}
	return multierr.Combine(errs...)
}

// IcosMask returns the iCoS values mapped to a PPG.
func (pp Ppgs) IcosMask(h tmdef.PpgHandle, hw *uint32) (tmdef.IcosMask, error) {
	return ppgGet(pp, h, hw, tmhw.PpgIcosMask, func(g *ppg) tmdef.IcosMask { return g.icosMask })
}

// SetMinLimit changes the guaranteed minimum of a PPG, in cells.
func (pp Ppgs) SetMinLimit(h tmdef.PpgHandle, limit uint32) error {
	return pp.with(h, func(p *port, g *ppg) error {
		return pp.dev.setPpgU32(g, &g.minLimit, limit, tmhw.PpgMinLimit)
	})
}

// MinLimit returns the guaranteed minimum of a PPG.
func (pp Ppgs) MinLimit(h tmdef.PpgHandle, hw *uint32) (uint32, error) {
	return ppgGet(pp, h, hw, tmhw.PpgMinLimit, func(g *ppg) uint32 { return g.minLimit })
}

// SetSkidLimit changes the skid limit of a PPG, in cells.
func (pp Ppgs) SetSkidLimit(h tmdef.PpgHandle, limit uint32) error {
	return pp.with(h, func(p *port, g *ppg) error {
		return pp.dev.setPpgU32(g, &g.skidLimit, limit, tmhw.PpgSkidLimit)
	})
}

// SkidLimit returns the skid limit of a PPG.
func (pp Ppgs) SkidLimit(h tmdef.PpgHandle, hw *uint32) (uint32, error) {
	return ppgGet(pp, h, hw, tmhw.PpgSkidLimit, func(g *ppg) uint32 { return g.skidLimit })
}

// SetAppLimit changes the static shared pool limit of a PPG, in cells.
func (pp Ppgs) SetAppLimit(h tmdef.PpgHandle, limit uint32) error {
	return pp.with(h, func(p *port, g *ppg) error {
		return pp.dev.setPpgU32(g, &g.appLimit, limit, tmhw.PpgAppLimit)
	})
}

// AppLimit returns the static shared pool limit of a PPG.
func (pp Ppgs) AppLimit(h tmdef.PpgHandle, hw *uint32) (uint32, error) {
	return ppgGet(pp, h, hw, tmhw.PpgAppLimit, func(g *ppg) uint32 { return g.appLimit })
}

// SetHyst changes the resume hysteresis of a PPG, in cells.
func (pp Ppgs) SetHyst(h tmdef.PpgHandle, hyst uint32) error {
	return pp.with(h, func(p *port, g *ppg) error {
		pipe, num := g.pipe, g.num
		return pp.dev.setHyst(&g.shadow, pipe, &g.hyst, hyst, tmhw.PpgHystIndex, func(gen tmhw.Generation, index uint32) error {
			return gen.Ppg().WritePpg(pipe, num, tmhw.PpgHystIndex, index)
		})
	})
}

// Hyst returns the resume hysteresis of a PPG.
// If hw is non-nil, the hardware hysteresis profile index is read into *hw.
func (pp Ppgs) Hyst(h tmdef.PpgHandle, hw *uint32) (uint32, error) {
	return ppgGet(pp, h, hw, tmhw.PpgHystIndex, func(g *ppg) uint32 { return g.hyst.Value })
}

// SetAppPoolUsage binds a PPG to an application pool with static or dynamic sharing.
func (pp Ppgs) SetAppPoolUsage(h tmdef.PpgHandle, pool tmdef.PoolID, baf tmdef.Baf, dynamic bool) error {
	if !pool.Valid() || !baf.Valid() {
		return fmt.Errorf("%w: pool %d BAF %d", tmdef.ErrInvalidArg, pool, baf)
	}
	return pp.with(h, func(p *port, g *ppg) error {
		return multierr.Combine(
			setField(pp.dev, &g.shadow, &g.appPool, pool, tmhw.PpgAppPool, 0, pp.dev.writePpg(g, tmhw.PpgAppPool, uint32(pool))),
			setField(pp.dev, &g.shadow, &g.baf, baf, tmhw.PpgBaf, 0, pp.dev.writePpg(g, tmhw.PpgBaf, uint32(baf))),
			pp.dev.setPpgBool(g, &g.dynamic, dynamic, tmhw.PpgDynamic),
		)
	})
}

// AppPoolUsage returns the application pool binding of a PPG.
func (pp Ppgs) AppPoolUsage(h tmdef.PpgHandle) (pool tmdef.PoolID, baf tmdef.Baf, dynamic bool, e error) {
	e = pp.with(h, func(p *port, g *ppg) error {
		pool, baf, dynamic = g.appPool, g.baf, g.dynamic
		return nil
	})
	return
}

// SetPfc marks a PPG as lossless, generating PFC when its limits are reached.
func (pp Ppgs) SetPfc(h tmdef.PpgHandle, enable bool) error {
	return pp.with(h, func(p *port, g *ppg) error {
		return pp.dev.setPpgBool(g, &g.pfc, enable, tmhw.PpgPfc)
	})
}

// Pfc returns whether a PPG is lossless.
func (pp Ppgs) Pfc(h tmdef.PpgHandle, hw *uint32) (bool, error) {
	return ppgGet(pp, h, hw, tmhw.PpgPfc, func(g *ppg) bool { return g.pfc })
}

// SetFastRecover enables or disables fast-recover mode of a PPG.
func (pp Ppgs) SetFastRecover(h tmdef.PpgHandle, enable bool) error {
	return pp.with(h, func(p *port, g *ppg) error {
		return pp.dev.setPpgBool(g, &g.fastRecover, enable, tmhw.PpgFastRecover)
	})
}

// FastRecover returns whether fast-recover mode is enabled on a PPG.
func (pp Ppgs) FastRecover(h tmdef.PpgHandle, hw *uint32) (bool, error) {
	return ppgGet(pp, h, hw, tmhw.PpgFastRecover, func(g *ppg) bool { return g.fastRecover })
}

// Usage reads buffer usage of a PPG.
func (pp Ppgs) Usage(h tmdef.PpgHandle) (u tmdef.PpgUsage, e error) {
	e = pp.with(h, func(p *port, g *ppg) (e error) {
		u, e = pp.dev.ppgUsage(g)
		return e
	})
	return
}

// Watermark reads the usage watermark of a PPG.
func (pp Ppgs) Watermark(h tmdef.PpgHandle) (wm uint64, e error) {
	e = pp.with(h, func(p *port, g *ppg) (e error) {
		wm, e = pp.dev.readCounter(g.node, tmhw.PpgWatermark, 0, func(gen tmhw.Generation) (uint64, error) {
			return gen.Ppg().ReadPpgCounter(g.pipe, g.num, tmhw.PpgWatermark)
		})
		return e
	})
	return
}

// DropCount reads the drop counter of a PPG.
func (pp Ppgs) DropCount(h tmdef.PpgHandle) (cnt uint64, e error) {
	e = pp.with(h, func(p *port, g *ppg) (e error) {
		cnt, e = pp.dev.readCounter(g.node, tmhw.PpgDrop, 0, func(gen tmhw.Generation) (uint64, error) {
			return gen.Ppg().ReadPpgCounter(g.pipe, g.num, tmhw.PpgDrop)
		})
		return e
	})
	return
}

// ClearDropCount clears the drop counter of a PPG.
func (pp Ppgs) ClearDropCount(h tmdef.PpgHandle) error {
	return pp.with(h, func(p *port, g *ppg) error {
		return pp.dev.clearCounter(&g.shadow, g.node, tmhw.PpgDrop, 0, func(gen tmhw.Generation) error {
			return gen.Ppg().ClearPpgCounter(g.pipe, g.num, tmhw.PpgDrop)
		})
	})
}
