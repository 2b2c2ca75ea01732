package tm

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/usnistgov/tofino-tm/tm/tmdef"
	"github.com/usnistgov/tofino-tm/tm/tmhw"
)

type spoolState struct {
	shadow
	limit     [tmdef.NColors]uint32
	hyst      [tmdef.NColors]uint32
	colorDrop bool
	pfcLimit  [tmdef.NIcos]uint32
}

type gpoolState struct {
	shadow
	dod            uint32
	skidLimit      uint32
	skidHyst       uint32
	glbCellLimit   uint32
	glbCellEnabled bool
}

type poolSet struct {
	dir    tmdef.Dir
	spools [tmdef.NAppPools]*spoolState
	gpool  *gpoolState
}

func (ps *poolSet) init(dir tmdef.Dir) {
	ps.dir = dir
	for i := range ps.spools {
		sp := &spoolState{}
		sp.init("pool", fmt.Sprintf("%s.spool%d", dir, i))
		ps.spools[i] = sp
	}
	ps.gpool = &gpoolState{}
	ps.gpool.init("pool", dir.String()+".gpool")
}

// Pools provides access to shared and global buffer pools of one direction.
type Pools struct {
	dev *Device
	dir tmdef.Dir
}

// IngressPools provides access to ingress buffer pools.
type IngressPools struct {
	Pools
}

// IngressPools returns ingress buffer pools.
func (dev *Device) IngressPools() IngressPools {
	return IngressPools{Pools{dev, tmdef.Ingress}}
}

// EgressPools returns egress buffer pools.
func (dev *Device) EgressPools() Pools {
	return Pools{dev, tmdef.Egress}
}

// Dir returns the traffic direction.
func (p Pools) Dir() tmdef.Dir {
	return p.dir
}

func (p Pools) set() *poolSet {
	return &p.dev.pools[p.dir]
}

func (p Pools) spool(pool tmdef.PoolID) (*spoolState, error) {
	if !pool.Valid() {
		return nil, fmt.Errorf("%w: pool %d out of range", tmdef.ErrInvalidArg, pool)
	}
	return p.set().spools[pool], nil
}

func (p Pools) checkLimit(limit uint32) error {
	if total := uint32(p.dev.cfg.Pipes) * p.dev.params.CellsPerPipe; limit > total {
		return errLimitExceeds(limit, total)
	}
	return nil
}

func errLimitExceeds(limit, cells uint32) error {
	return fmt.Errorf("%w: limit %d exceeds %d cells", tmdef.ErrInvalidArg, limit, cells)
}

func (p Pools) writeSpool(pool tmdef.PoolID, f tmhw.Field, icos int, v uint32) writeFunc {
	ref := tmhw.PoolRef{Dir: p.dir, Pool: pool, Icos: icos}
	return func(g tmhw.Generation) error {
		return g.Pool().WritePool(ref, f, v)
	}
}

func (p Pools) readSpool(pool tmdef.PoolID, f tmhw.Field, icos int) func(g tmhw.Generation) (uint32, error) {
	ref := tmhw.PoolRef{Dir: p.dir, Pool: pool, Icos: icos}
	return func(g tmhw.Generation) (uint32, error) {
		return g.Pool().ReadPool(ref, f)
	}
}

func (p Pools) writeGpool(f tmhw.Field, v uint32) writeFunc {
	ref := tmhw.PoolRef{Dir: p.dir, Global: true}
	return func(g tmhw.Generation) error {
		return g.Pool().WritePool(ref, f, v)
	}
}

func (p Pools) readGpool(f tmhw.Field) func(g tmhw.Generation) (uint32, error) {
	ref := tmhw.PoolRef{Dir: p.dir, Global: true}
	return func(g tmhw.Generation) (uint32, error) {
		return g.Pool().ReadPool(ref, f)
	}
}

// SetLimit changes the color limit of a shared pool, in cells.
func (p Pools) SetLimit(pool tmdef.PoolID, color tmdef.Color, limit uint32) error {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	sp, e := p.spool(pool)
	if e != nil {
		return e
	}
	if !color.Valid() {
		return fmt.Errorf("%w: color %d", tmdef.ErrInvalidArg, color)
	}
	if e := p.checkLimit(limit); e != nil {
		return e
	}
	f := tmhw.PoolLimitField(color)
	return setField(p.dev, &sp.shadow, &sp.limit[color], limit, f, 0, p.writeSpool(pool, f, 0, limit))
}

// Limit returns the color limit of a shared pool.
// If hw is non-nil, the hardware value is read into *hw where available.
func (p Pools) Limit(pool tmdef.PoolID, color tmdef.Color, hw *uint32) (uint32, error) {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	sp, e := p.spool(pool)
	if e != nil {
		return 0, e
	}
	if !color.Valid() {
		return 0, fmt.Errorf("%w: color %d", tmdef.ErrInvalidArg, color)
	}
	f := tmhw.PoolLimitField(color)
	return getField(p.dev, sp.limit[color], hw, f, p.readSpool(pool, f, 0))
}

// SetHyst changes the color hysteresis of a shared pool, in cells.
func (p Pools) SetHyst(pool tmdef.PoolID, color tmdef.Color, hyst uint32) error {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	sp, e := p.spool(pool)
	if e != nil {
		return e
	}
	if !color.Valid() {
		return fmt.Errorf("%w: color %d", tmdef.ErrInvalidArg, color)
	}
	f := tmhw.PoolHystField(color)
	return setField(p.dev, &sp.shadow, &sp.hyst[color], hyst, f, 0, p.writeSpool(pool, f, 0, hyst))
}

// Hyst returns the color hysteresis of a shared pool.
func (p Pools) Hyst(pool tmdef.PoolID, color tmdef.Color, hw *uint32) (uint32, error) {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	sp, e := p.spool(pool)
	if e != nil {
		return 0, e
	}
	if !color.Valid() {
		return 0, fmt.Errorf("%w: color %d", tmdef.ErrInvalidArg, color)
	}
	f := tmhw.PoolHystField(color)
	return getField(p.dev, sp.hyst[color], hw, f, p.readSpool(pool, f, 0))
}

// SetColorDrop enables or disables color-aware drop on a shared pool.
func (p Pools) SetColorDrop(pool tmdef.PoolID, enable bool) error {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	sp, e := p.spool(pool)
	if e != nil {
		return e
	}
	return setField(p.dev, &sp.shadow, &sp.colorDrop, enable, tmhw.PoolColorDrop, 0,
		p.writeSpool(pool, tmhw.PoolColorDrop, 0, b2u(enable)))
}

// ColorDrop returns whether color-aware drop is enabled on a shared pool.
func (p Pools) ColorDrop(pool tmdef.PoolID, hw *uint32) (bool, error) {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	sp, e := p.spool(pool)
	if e != nil {
		return false, e
	}
	return getField(p.dev, sp.colorDrop, hw, tmhw.PoolColorDrop, p.readSpool(pool, tmhw.PoolColorDrop, 0))
}

// SetDodLimit changes the DoD limit of the global pool, in cells.
func (p Pools) SetDodLimit(limit uint32) error {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	if e := p.checkLimit(limit); e != nil {
		return e
	}
	gp := p.set().gpool
	return setField(p.dev, &gp.shadow, &gp.dod, limit, tmhw.PoolDodLimit, 0, p.writeGpool(tmhw.PoolDodLimit, limit))
}

// DodLimit returns the DoD limit of the global pool.
func (p Pools) DodLimit(hw *uint32) (uint32, error) {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	return getField(p.dev, p.set().gpool.dod, hw, tmhw.PoolDodLimit, p.readGpool(tmhw.PoolDodLimit))
}

func checkIcos(icos int) error {
	if icos < 0 || icos >= tmdef.NIcos {
		return fmt.Errorf("%w: iCoS %d out of range", tmdef.ErrInvalidArg, icos)
	}
	return nil
}

// SetPfcLimit changes the limit of a PFC priority in an ingress shared pool, in cells.
// A limit at or above the green limit is accepted with a warning.
func (p IngressPools) SetPfcLimit(pool tmdef.PoolID, icos int, limit uint32) error {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	sp, e := p.spool(pool)
	if e != nil {
		return e
	}
	if e := checkIcos(icos); e != nil {
		return e
	}
	if e := p.checkLimit(limit); e != nil {
		return e
	}
	if p.dev.warm && sp.pfcLimit[icos] == limit {
		return nil
	}
	if green := sp.limit[tmdef.Green]; limit >= green {
		p.dev.logger.Warn("PFC limit is not below green limit",
			zap.Int("pool", int(pool)),
			zap.Int("icos", icos),
			zap.Uint32("pfc-limit", limit),
			zap.Uint32("green-limit", green),
		)
	}
	return setField(p.dev, &sp.shadow, &sp.pfcLimit[icos], limit, tmhw.PoolPfcLimit, icos,
		p.writeSpool(pool, tmhw.PoolPfcLimit, icos, limit))
}

// PfcLimit returns the limit of a PFC priority in an ingress shared pool.
func (p IngressPools) PfcLimit(pool tmdef.PoolID, icos int, hw *uint32) (uint32, error) {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	sp, e := p.spool(pool)
	if e != nil {
		return 0, e
	}
	if e := checkIcos(icos); e != nil {
		return 0, e
	}
	return getField(p.dev, sp.pfcLimit[icos], hw, tmhw.PoolPfcLimit, p.readSpool(pool, tmhw.PoolPfcLimit, icos))
}

// SetSkidLimit changes the skid limit of the ingress global pool, in cells.
func (p IngressPools) SetSkidLimit(limit uint32) error {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	if e := p.checkLimit(limit); e != nil {
		return e
	}
	gp := p.set().gpool
	return setField(p.dev, &gp.shadow, &gp.skidLimit, limit, tmhw.PoolSkidLimit, 0, p.writeGpool(tmhw.PoolSkidLimit, limit))
}

// SkidLimit returns the skid limit of the ingress global pool.
func (p IngressPools) SkidLimit(hw *uint32) (uint32, error) {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	return getField(p.dev, p.set().gpool.skidLimit, hw, tmhw.PoolSkidLimit, p.readGpool(tmhw.PoolSkidLimit))
}

// SetSkidHyst changes the skid hysteresis of the ingress global pool, in cells.
func (p IngressPools) SetSkidHyst(hyst uint32) error {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	gp := p.set().gpool
	return setField(p.dev, &gp.shadow, &gp.skidHyst, hyst, tmhw.PoolSkidHyst, 0, p.writeGpool(tmhw.PoolSkidHyst, hyst))
}

// SkidHyst returns the skid hysteresis of the ingress global pool.
func (p IngressPools) SkidHyst(hw *uint32) (uint32, error) {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	return getField(p.dev, p.set().gpool.skidHyst, hw, tmhw.PoolSkidHyst, p.readGpool(tmhw.PoolSkidHyst))
}

// checkGlbCell rejects global cell limit changes on generations without the register.
// Unlike other setters, nothing is cached in that case.
func (p IngressPools) checkGlbCell(f tmhw.Field) error {
	if !p.dev.gen.Pool().CanWrite(f) {
		return fmt.Errorf("%w: %s on %s", tmdef.ErrNotSupported, f, p.dev.params.Asic)
	}
	return nil
}

// SetGlbCellLimit changes the global cell limit of the ingress global pool.
// Returns ErrNotSupported without caching when the hardware lacks this register.
func (p IngressPools) SetGlbCellLimit(limit uint32) error {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	if e := p.checkGlbCell(tmhw.PoolGlbCellLimit); e != nil {
		return e
	}
	if e := p.checkLimit(limit); e != nil {
		return e
	}
	gp := p.set().gpool
	return setField(p.dev, &gp.shadow, &gp.glbCellLimit, limit, tmhw.PoolGlbCellLimit, 0,
		p.writeGpool(tmhw.PoolGlbCellLimit, limit))
}

// GlbCellLimit returns the global cell limit of the ingress global pool.
func (p IngressPools) GlbCellLimit(hw *uint32) (uint32, error) {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	return getField(p.dev, p.set().gpool.glbCellLimit, hw, tmhw.PoolGlbCellLimit, p.readGpool(tmhw.PoolGlbCellLimit))
}

// SetGlbCellLimitEnabled enables or disables the global cell limit.
// Returns ErrNotSupported without caching when the hardware lacks this register.
func (p IngressPools) SetGlbCellLimitEnabled(enable bool) error {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	if e := p.checkGlbCell(tmhw.PoolGlbCellLimitEnable); e != nil {
		return e
	}
	gp := p.set().gpool
	return setField(p.dev, &gp.shadow, &gp.glbCellEnabled, enable, tmhw.PoolGlbCellLimitEnable, 0,
		p.writeGpool(tmhw.PoolGlbCellLimitEnable, b2u(enable)))
}

// GlbCellLimitEnabled returns whether the global cell limit is enabled.
func (p IngressPools) GlbCellLimitEnabled(hw *uint32) (bool, error) {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	return getField(p.dev, p.set().gpool.glbCellEnabled, hw, tmhw.PoolGlbCellLimitEnable,
		p.readGpool(tmhw.PoolGlbCellLimitEnable))
}

// restorePools reads readable pool fields from hardware into the cache.
func (dev *Device) restorePools(ps *poolSet) error {
	caps := dev.hw.Pool()
	errs := []error{}
	read := func(ref tmhw.PoolRef, f tmhw.Field) (v uint32, ok bool) {
		if !caps.CanRead(f) {
			return 0, false
		}
		v, e := caps.ReadPool(ref, f)
		if e != nil {
			errs = append(errs, e)
			return 0, false
		}
		return v, true
	}
	restore := func(cache *uint32, ref tmhw.PoolRef, f tmhw.Field) {
		if v, ok := read(ref, f); ok {
			*cache = v
		}
	}
	restoreBool := func(cache *bool, ref tmhw.PoolRef, f tmhw.Field) {
		if v, ok := read(ref, f); ok {
			*cache = v != 0
		}
	}

	for i, sp := range ps.spools {
		ref := tmhw.PoolRef{Dir: ps.dir, Pool: tmdef.PoolID(i)}
		for c := tmdef.Green; c <= tmdef.Red; c++ {
			restore(&sp.limit[c], ref, tmhw.PoolLimitField(c))
			restore(&sp.hyst[c], ref, tmhw.PoolHystField(c))
		}
		restoreBool(&sp.colorDrop, ref, tmhw.PoolColorDrop)
		if ps.dir == tmdef.Ingress {
			for icos := range sp.pfcLimit {
				ref.Icos = icos
				restore(&sp.pfcLimit[icos], ref, tmhw.PoolPfcLimit)
			}
		}
	}

	gref := tmhw.PoolRef{Dir: ps.dir, Global: true}
	gp := ps.gpool
	restore(&gp.dod, gref, tmhw.PoolDodLimit)
	if ps.dir == tmdef.Ingress {
		restore(&gp.skidLimit, gref, tmhw.PoolSkidLimit)
		restore(&gp.skidHyst, gref, tmhw.PoolSkidHyst)
		restore(&gp.glbCellLimit, gref, tmhw.PoolGlbCellLimit)
		restoreBool(&gp.glbCellEnabled, gref, tmhw.PoolGlbCellLimitEnable)
	}
	return multierr.Combine(errs...)
}
