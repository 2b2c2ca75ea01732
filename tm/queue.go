package tm

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/usnistgov/tofino-tm/tm/tmdef"
	"github.com/usnistgov/tofino-tm/tm/tmhw"
)

// qProfile maps port-relative queue IDs onto a range of a port group.
// Profiles are interned by content; ports carved identically share one slot.
type qProfile struct {
	inUse   bool
	refs    int
	count   int
	base    int
	channel int
	mapping []int
}

func (pf qProfile) matches(count, base, channel int, mapping []int) bool {
	if pf.count != count || pf.base != base || pf.channel != channel || len(pf.mapping) != len(mapping) {
		return false
	}
	for i, m := range mapping {
		if pf.mapping[i] != m {
			return false
		}
	}
	return true
}

type queue struct {
	shadow
	pipe    int
	phys    int
	channel int // channel in port group bound in hardware, -1 if never bound

	inUse   bool
	port    tmdef.DevPort
	qid     int
	hqBase  int
	hqPerVq int

	minLimit   uint32
	appLimit   uint32
	appHyst    hystRef
	redPct     uint32
	redHyst    hystRef
	yellowPct  uint32
	yellowHyst hystRef
	appPool    tmdef.PoolID
	dynamic    bool
	baf        tmdef.Baf
	tailDrop   bool
	colorDrop  bool
	visible    bool
	negMirror  NegMirrorDest
	node       *counterNode
}

// reset restores defaults. The hardware channel binding is kept.
func (q *queue) reset() {
	*q = queue{
		shadow:    q.shadow,
		pipe:      q.pipe,
		phys:      q.phys,
		channel:   q.channel,
		redPct:    100,
		yellowPct: 100,
		baf:       tmdef.BafDisable,
		tailDrop:  true,
		visible:   true,
	}
}

// NegMirrorDest is the negative-mirror destination of a queue.
type NegMirrorDest struct {
	Port  tmdef.DevPort `json:"port"`
	Queue int           `json:"queue"`
}

func (d NegMirrorDest) encode() uint32 {
	return uint32(d.Port)<<8 | uint32(d.Queue)
}

// QueueStatus describes a carved queue.
type QueueStatus struct {
	Port           tmdef.DevPort    `json:"port"`
	Qid            int              `json:"qid"`
	Pipe           int              `json:"pipe"`
	Physical       int              `json:"physical"`
	Channel        int              `json:"channel"`
	HqBase         int              `json:"hqBase"`
	HqPerVq        int              `json:"hqPerVq"`
	MinLimit       uint32           `json:"minLimit"`
	AppLimit       uint32           `json:"appLimit"`
	AppHyst        uint32           `json:"appHyst"`
	RedLimitPct    uint32           `json:"redLimitPct"`
	YellowLimitPct uint32           `json:"yellowLimitPct"`
	AppPool        tmdef.PoolID     `json:"appPool"`
	Dynamic        bool             `json:"dynamic"`
	Baf            tmdef.Baf        `json:"baf"`
	TailDrop       bool             `json:"tailDrop"`
	ColorDrop      bool             `json:"colorDrop"`
	Visible        bool             `json:"visible"`
	NegMirror      NegMirrorDest    `json:"negMirror"`
	Sync           tmdef.SyncStatus `json:"sync"`
}

// Queues provides access to egress queues.
type Queues struct {
	dev *Device
}

// Queues returns queue accessors.
func (dev *Device) Queues() Queues {
	return Queues{dev}
}

func (dev *Device) portGroup(id tmdef.DevPort) (group, channel int) {
	return id.Port() / dev.params.PortsPerGroup, id.Port() % dev.params.PortsPerGroup
}

// channelPort returns the port of a channel in a port group, or nil if it does not exist.
func (dev *Device) channelPort(pipe, group, channel int) *port {
	local := group*dev.params.PortsPerGroup + channel
	if local >= dev.params.PortsPerPipe {
		return nil
	}
	return dev.ports[pipe][local]
}

// baseQueue returns the first queue of a port within its port group.
// Channel 0 starts at queue 0; other channels follow the nearest lower carved channel.
func (dev *Device) baseQueue(p *port) int {
	pipe := p.id.Pipe()
	group, channel := dev.portGroup(p.id)
	for c := channel - 1; c >= 0; c-- {
		lower := dev.channelPort(pipe, group, c)
		if lower == nil || lower.profile < 0 {
			continue
		}
		pf := dev.profiles[pipe][lower.profile]
		return pf.base + pf.count
	}
	return 0
}

func (dev *Device) acquireProfile(pipe, count, base, channel int, mapping []int) (int, error) {
	pfs := dev.profiles[pipe]
	free := -1
	for i := range pfs {
		pf := &pfs[i]
		switch {
		case pf.inUse && pf.matches(count, base, channel, mapping):
			pf.refs++
			return i, nil
		case !pf.inUse && free < 0:
			free = i
		}
	}
	if free < 0 {
		return -1, fmt.Errorf("%w: queue profiles of pipe %d exhausted", tmdef.ErrNoSysResources, pipe)
	}
	pfs[free] = qProfile{
		inUse:   true,
		refs:    1,
		count:   count,
		base:    base,
		channel: channel,
		mapping: append([]int(nil), mapping...),
	}
	return free, nil
}

func (dev *Device) releaseProfile(pipe, index int) {
	pf := &dev.profiles[pipe][index]
	if pf.refs--; pf.refs <= 0 {
		*pf = qProfile{}
	}
}

func (dev *Device) carveOf(p *port, index int) tmhw.Carve {
	group, channel := dev.portGroup(p.id)
	pf := dev.profiles[p.id.Pipe()][index]
	return tmhw.Carve{
		Port:    p.id,
		Group:   group,
		Channel: channel,
		Base:    pf.base,
		Count:   pf.count,
		Profile: index,
	}
}

// BaseQueue returns the first queue of a port within its port group, derived from lower channels.
func (qs Queues) BaseQueue(id tmdef.DevPort) (int, error) {
	qs.dev.lock()
	defer qs.dev.unlockAndFlush()
	p, e := qs.dev.findPort(id)
	if e != nil {
		return 0, e
	}
	return qs.dev.baseQueue(p), nil
}

// Carve assigns qCount queues to a port.
// mapping translates queue ID to port-relative queue; nil means identity.
//
// Channels of a port group must be carved in increasing order: a carve that would overlap a higher channel's range is rejected.
// The profile is shared with identically carved ports of the pipe.
// When the profile changes, the old hardware range is released before the new range is carved.
func (qs Queues) Carve(id tmdef.DevPort, qCount int, mapping []int) error {
	qs.dev.lock()
	defer qs.dev.unlockAndFlush()
	p, e := qs.dev.addedPort(id)
	if e != nil {
		return e
	}
	return qs.dev.carve(p, qCount, mapping)
}

func (dev *Device) carve(p *port, qCount int, mapping []int) error {
	if qCount < 1 || qCount > dev.params.MaxPortQueues {
		return fmt.Errorf("%w: queue count %d out of range [1,%d]", tmdef.ErrInvalidArg, qCount, dev.params.MaxPortQueues)
	}
	if mapping == nil {
		mapping = make([]int, qCount)
		for i := range mapping {
			mapping[i] = i
		}
	}
	if e := checkMapping(qCount, mapping); e != nil {
		return e
	}

	pipe := p.id.Pipe()
	group, channel := dev.portGroup(p.id)
	base := dev.baseQueue(p)
	if base+qCount > dev.params.QueuesPerGroup {
		return fmt.Errorf("%w: base %d + count %d exceeds %d queues per port group",
			tmdef.ErrInvalidArg, base, qCount, dev.params.QueuesPerGroup)
	}
	for c := channel + 1; c < dev.params.PortsPerGroup; c++ {
		higher := dev.channelPort(pipe, group, c)
		if higher == nil || higher.profile < 0 {
			continue
		}
		if pf := dev.profiles[pipe][higher.profile]; pf.base < base+qCount {
			return fmt.Errorf("%w: carve would overlap channel %d of port group %d, which must be carved again after this channel",
				tmdef.ErrInvalidArg, c, group)
		}
	}

	newQueues := make([]*queue, qCount)
	need := 0
	for qid := range newQueues {
		q := dev.queues[pipe][group*dev.params.QueuesPerGroup+base+mapping[qid]]
		if q.inUse && q.port != p.id {
			return fmt.Errorf("%w: queue %d/%d is carved to port %s", tmdef.ErrInvalidArg, pipe, q.phys, q.port)
		}
		if q.node == nil {
			need++
		}
		newQueues[qid] = q
	}
	if need > dev.counters.available() {
		return fmt.Errorf("%w: no counter nodes for %d queues", tmdef.ErrNoSysResources, need)
	}

	index, e := dev.acquireProfile(pipe, qCount, base, channel, mapping)
	if e != nil {
		return e
	}
	nodes := make([]*counterNode, len(newQueues))
	for qid, q := range newQueues {
		node, e := dev.counters.alloc(q.node)
		if e != nil {
			for i, n := range nodes[:qid] {
				if newQueues[i].node == nil {
					dev.counters.release(n)
				}
			}
			dev.releaseProfile(pipe, index)
			return fmt.Errorf("port %s queue counters: %w", p.id, e)
		}
		nodes[qid] = node
	}
	oldIndex, oldQueues := p.profile, p.queues
	errs := []error{}

	reused := map[*queue]bool{}
	hqPerVq := dev.params.HqPerVq
	for qid, q := range newQueues {
		reused[q] = true
		q.node = nodes[qid]
		q.inUse, q.port, q.qid = true, p.id, qid
		q.hqBase, q.hqPerVq = q.phys*hqPerVq, hqPerVq
		if q.channel != channel {
			q.channel = channel
			if !dev.warm {
				phys := q.phys
				errs = append(errs, dev.hwOp(&q.shadow, func(g tmhw.Generation) error {
					return g.Queue().SetQueueChannel(pipe, phys, channel)
				}))
			}
		}
	}
	for _, q := range oldQueues {
		if !reused[q] {
			dev.releaseQueue(q)
		}
	}

	p.profile, p.queues = index, newQueues
	if oldIndex != index && !dev.warm {
		if oldIndex >= 0 && dev.profiles[pipe][oldIndex].inUse {
			oldCarve := dev.carveOf(p, oldIndex)
			errs = append(errs, dev.hwOp(&p.shadow, func(g tmhw.Generation) error {
				return g.Queue().ReleaseQueues(oldCarve)
			}))
		}
		newCarve := dev.carveOf(p, index)
		errs = append(errs, dev.hwOp(&p.shadow, func(g tmhw.Generation) error {
			return g.Queue().CarveQueues(newCarve)
		}))
	}
	if oldIndex >= 0 {
		dev.releaseProfile(pipe, oldIndex)
	}

	dev.queueEvent(evtQueuesCarved, p.id, index)
	e = multierr.Combine(errs...)
	dev.logger.Info("queues carved", p.id.ZapField("port"), zap.Int("count", qCount), zap.Int("base", base),
		zap.Int("profile", index), zap.Int("old-profile", oldIndex), zap.Error(e))
	return e
}

func checkMapping(qCount int, mapping []int) error {
	if len(mapping) != qCount {
		return fmt.Errorf("%w: mapping has %d entries, expecting %d", tmdef.ErrInvalidArg, len(mapping), qCount)
	}
	seen := make([]bool, qCount)
	for qid, m := range mapping {
		if m < 0 || m >= qCount || seen[m] {
			return fmt.Errorf("%w: mapping[%d]=%d is not a permutation of [0,%d)", tmdef.ErrInvalidArg, qid, m, qCount)
		}
		seen[m] = true
	}
	return nil
}

func (dev *Device) releaseQueue(q *queue) {
	dev.releaseHyst(q.pipe, &q.appHyst)
	dev.releaseHyst(q.pipe, &q.redHyst)
	dev.releaseHyst(q.pipe, &q.yellowHyst)
	dev.counters.release(q.node)
	q.reset()
	q.forget()
}

// releaseCarve releases all queues of a port.
func (dev *Device) releaseCarve(p *port) error {
	if p.profile < 0 {
		return nil
	}
	var e error
	if !dev.warm {
		carve := dev.carveOf(p, p.profile)
		e = dev.hwOp(&p.shadow, func(g tmhw.Generation) error {
			return g.Queue().ReleaseQueues(carve)
		})
	}
	for _, q := range p.queues {
		dev.releaseQueue(q)
	}
	dev.releaseProfile(p.id.Pipe(), p.profile)
	p.profile, p.queues = -1, nil
	return e
}

// ProfileIndex returns the queue profile of a carved port.
func (qs Queues) ProfileIndex(id tmdef.DevPort) (int, error) {
	qs.dev.lock()
	defer qs.dev.unlockAndFlush()
	p, e := qs.dev.findPort(id)
	if e != nil {
		return -1, e
	}
	if p.profile < 0 {
		return -1, fmt.Errorf("%w: port %s has no queues", tmdef.ErrObjectNotFound, id)
	}
	return p.profile, nil
}

// ProfileUseCount returns the number of queue profile slots in use in a pipe.
func (qs Queues) ProfileUseCount(pipe int) (n int, e error) {
	qs.dev.lock()
	defer qs.dev.unlockAndFlush()
	if e := qs.dev.checkPipe(pipe); e != nil {
		return 0, e
	}
	for _, pf := range qs.dev.profiles[pipe] {
		if pf.inUse {
			n++
		}
	}
	return n, nil
}

func (dev *Device) findQueue(id tmdef.DevPort, qid int) (*queue, error) {
	p, e := dev.addedPort(id)
	if e != nil {
		return nil, e
	}
	if qid < 0 || qid >= len(p.queues) {
		return nil, fmt.Errorf("%w: queue %d of port %s not carved", tmdef.ErrInvalidArg, qid, id)
	}
	return p.queues[qid], nil
}

func (qs Queues) with(id tmdef.DevPort, qid int, f func(q *queue) error) error {
	qs.dev.lock()
	defer qs.dev.unlockAndFlush()
	q, e := qs.dev.findQueue(id, qid)
	if e != nil {
		return e
	}
	return f(q)
}

func queueGet[T any](qs Queues, id tmdef.DevPort, qid int, hw *uint32, f tmhw.Field, pick func(q *queue) T) (v T, e error) {
	qs.dev.lock()
	defer qs.dev.unlockAndFlush()
	q, e := qs.dev.findQueue(id, qid)
	if e != nil {
		return v, e
	}
	pipe, phys := q.pipe, q.phys
	return getField(qs.dev, pick(q), hw, f, func(g tmhw.Generation) (uint32, error) {
		return g.Queue().ReadQueue(pipe, phys, f)
	})
}

func (dev *Device) writeQueue(q *queue, f tmhw.Field, v uint32) writeFunc {
	pipe, phys := q.pipe, q.phys
	return func(g tmhw.Generation) error {
		return g.Queue().WriteQueue(pipe, phys, f, v)
	}
}

func (dev *Device) setQueueU32(q *queue, cache *uint32, v uint32, f tmhw.Field) error {
	return setField(dev, &q.shadow, cache, v, f, 0, dev.writeQueue(q, f, v))
}

func (dev *Device) setQueueBool(q *queue, cache *bool, v bool, f tmhw.Field) error {
	return setField(dev, &q.shadow, cache, v, f, 0, dev.writeQueue(q, f, b2u(v)))
}

func (dev *Device) setQueueHyst(q *queue, cur *hystRef, v uint32, f tmhw.Field) error {
	pipe, phys := q.pipe, q.phys
	return dev.setHyst(&q.shadow, pipe, cur, v, f, func(g tmhw.Generation, index uint32) error {
		return g.Queue().WriteQueue(pipe, phys, f, index)
	})
}

func checkPct(pct uint32) error {
	if pct > 100 {
		return fmt.Errorf("%w: percentage %d", tmdef.ErrInvalidArg, pct)
	}
	return nil
}

// Info returns status of a carved queue.
func (qs Queues) Info(id tmdef.DevPort, qid int) (st QueueStatus, e error) {
	e = qs.with(id, qid, func(q *queue) error {
		st = QueueStatus{
			Port:           q.port,
			Qid:            q.qid,
			Pipe:           q.pipe,
			Physical:       q.phys,
			Channel:        q.channel,
			HqBase:         q.hqBase,
			HqPerVq:        q.hqPerVq,
			MinLimit:       q.minLimit,
			AppLimit:       q.appLimit,
			AppHyst:        q.appHyst.Value,
			RedLimitPct:    q.redPct,
			YellowLimitPct: q.yellowPct,
			AppPool:        q.appPool,
			Dynamic:        q.dynamic,
			Baf:            q.baf,
			TailDrop:       q.tailDrop,
			ColorDrop:      q.colorDrop,
			Visible:        q.visible,
			NegMirror:      q.negMirror,
			Sync:           q.Status(),
		}
		return nil
	})
	return
}

// SetMinLimit changes the guaranteed minimum of a queue, in cells.
func (qs Queues) SetMinLimit(id tmdef.DevPort, qid int, limit uint32) error {
	return qs.with(id, qid, func(q *queue) error {
		return qs.dev.setQueueU32(q, &q.minLimit, limit, tmhw.QueueMinLimit)
	})
}

// MinLimit returns the guaranteed minimum of a queue.
func (qs Queues) MinLimit(id tmdef.DevPort, qid int, hw *uint32) (uint32, error) {
	return queueGet(qs, id, qid, hw, tmhw.QueueMinLimit, func(q *queue) uint32 { return q.minLimit })
}

// SetAppLimit changes the static shared pool limit of a queue, in cells.
func (qs Queues) SetAppLimit(id tmdef.DevPort, qid int, limit uint32) error {
	return qs.with(id, qid, func(q *queue) error {
		return qs.dev.setQueueU32(q, &q.appLimit, limit, tmhw.QueueAppLimit)
	})
}

// AppLimit returns the static shared pool limit of a queue.
func (qs Queues) AppLimit(id tmdef.DevPort, qid int, hw *uint32) (uint32, error) {
	return queueGet(qs, id, qid, hw, tmhw.QueueAppLimit, func(q *queue) uint32 { return q.appLimit })
}

// SetAppHyst changes the shared pool hysteresis of a queue, in cells.
func (qs Queues) SetAppHyst(id tmdef.DevPort, qid int, hyst uint32) error {
	return qs.with(id, qid, func(q *queue) error {
		return qs.dev.setQueueHyst(q, &q.appHyst, hyst, tmhw.QueueAppHystIndex)
	})
}

// AppHyst returns the shared pool hysteresis of a queue.
// If hw is non-nil, the hardware hysteresis profile index is read into *hw.
func (qs Queues) AppHyst(id tmdef.DevPort, qid int, hw *uint32) (uint32, error) {
	return queueGet(qs, id, qid, hw, tmhw.QueueAppHystIndex, func(q *queue) uint32 { return q.appHyst.Value })
}

// SetRedLimitPct changes the red limit of a queue, as a percentage of its green limit.
func (qs Queues) SetRedLimitPct(id tmdef.DevPort, qid int, pct uint32) error {
	if e := checkPct(pct); e != nil {
		return e
	}
	return qs.with(id, qid, func(q *queue) error {
		return qs.dev.setQueueU32(q, &q.redPct, pct, tmhw.QueueRedLimitPct)
	})
}

// RedLimitPct returns the red limit percentage of a queue.
func (qs Queues) RedLimitPct(id tmdef.DevPort, qid int, hw *uint32) (uint32, error) {
	return queueGet(qs, id, qid, hw, tmhw.QueueRedLimitPct, func(q *queue) uint32 { return q.redPct })
}

// SetRedHyst changes the red hysteresis of a queue, in cells.
func (qs Queues) SetRedHyst(id tmdef.DevPort, qid int, hyst uint32) error {
	return qs.with(id, qid, func(q *queue) error {
		return qs.dev.setQueueHyst(q, &q.redHyst, hyst, tmhw.QueueRedHystIndex)
	})
}

// RedHyst returns the red hysteresis of a queue.
func (qs Queues) RedHyst(id tmdef.DevPort, qid int, hw *uint32) (uint32, error) {
	return queueGet(qs, id, qid, hw, tmhw.QueueRedHystIndex, func(q *queue) uint32 { return q.redHyst.Value })
}

// SetYellowLimitPct changes the yellow limit of a queue, as a percentage of its green limit.
func (qs Queues) SetYellowLimitPct(id tmdef.DevPort, qid int, pct uint32) error {
	if e := checkPct(pct); e != nil {
		return e
	}
	return qs.with(id, qid, func(q *queue) error {
		return qs.dev.setQueueU32(q, &q.yellowPct, pct, tmhw.QueueYellowLimitPct)
	})
}

// YellowLimitPct returns the yellow limit percentage of a queue.
func (qs Queues) YellowLimitPct(id tmdef.DevPort, qid int, hw *uint32) (uint32, error) {
	return queueGet(qs, id, qid, hw, tmhw.QueueYellowLimitPct, func(q *queue) uint32 { return q.yellowPct })
}

// SetYellowHyst changes the yellow hysteresis of a queue, in cells.
func (qs Queues) SetYellowHyst(id tmdef.DevPort, qid int, hyst uint32) error {
	return qs.with(id, qid, func(q *queue) error {
		return qs.dev.setQueueHyst(q, &q.yellowHyst, hyst, tmhw.QueueYellowHystIndex)
	})
}

// YellowHyst returns the yellow hysteresis of a queue.
func (qs Queues) YellowHyst(id tmdef.DevPort, qid int, hw *uint32) (uint32, error) {
	return queueGet(qs, id, qid, hw, tmhw.QueueYellowHystIndex, func(q *queue) uint32 { return q.yellowHyst.Value })
}

// SetAppPoolUsage binds a queue to an application pool with static or dynamic sharing.
func (qs Queues) SetAppPoolUsage(id tmdef.DevPort, qid int, pool tmdef.PoolID, baf tmdef.Baf, dynamic bool) error {
	if !pool.Valid() || !baf.Valid() {
		return fmt.Errorf("%w: pool %d BAF %d", tmdef.ErrInvalidArg, pool, baf)
	}
	return qs.with(id, qid, func(q *queue) error {
		return multierr.Combine(
			setField(qs.dev, &q.shadow, &q.appPool, pool, tmhw.QueueAppPool, 0, qs.dev.writeQueue(q, tmhw.QueueAppPool, uint32(pool))),
			setField(qs.dev, &q.shadow, &q.baf, baf, tmhw.QueueBaf, 0, qs.dev.writeQueue(q, tmhw.QueueBaf, uint32(baf))),
			qs.dev.setQueueBool(q, &q.dynamic, dynamic, tmhw.QueueDynamic),
		)
	})
}

// AppPoolUsage returns the application pool binding of a queue.
func (qs Queues) AppPoolUsage(id tmdef.DevPort, qid int) (pool tmdef.PoolID, baf tmdef.Baf, dynamic bool, e error) {
	e = qs.with(id, qid, func(q *queue) error {
		pool, baf, dynamic = q.appPool, q.baf, q.dynamic
		return nil
	})
	return
}

// SetTailDrop enables or disables tail drop on a queue.
func (qs Queues) SetTailDrop(id tmdef.DevPort, qid int, enable bool) error {
	return qs.with(id, qid, func(q *queue) error {
		return qs.dev.setQueueBool(q, &q.tailDrop, enable, tmhw.QueueTailDrop)
	})
}

// TailDrop returns whether tail drop is enabled on a queue.
func (qs Queues) TailDrop(id tmdef.DevPort, qid int, hw *uint32) (bool, error) {
	return queueGet(qs, id, qid, hw, tmhw.QueueTailDrop, func(q *queue) bool { return q.tailDrop })
}

// SetColorDrop enables or disables color drop on a queue.
func (qs Queues) SetColorDrop(id tmdef.DevPort, qid int, enable bool) error {
	return qs.with(id, qid, func(q *queue) error {
		return qs.dev.setQueueBool(q, &q.colorDrop, enable, tmhw.QueueColorDrop)
	})
}

// ColorDrop returns whether color drop is enabled on a queue.
func (qs Queues) ColorDrop(id tmdef.DevPort, qid int, hw *uint32) (bool, error) {
	return queueGet(qs, id, qid, hw, tmhw.QueueColorDrop, func(q *queue) bool { return q.colorDrop })
}

// SetVisible changes whether a queue is visible to the ingress pipeline for queue depth reporting.
func (qs Queues) SetVisible(id tmdef.DevPort, qid int, visible bool) error {
	return qs.with(id, qid, func(q *queue) error {
		return qs.dev.setQueueBool(q, &q.visible, visible, tmhw.QueueVisible)
	})
}

// Visible returns whether a queue is visible.
func (qs Queues) Visible(id tmdef.DevPort, qid int, hw *uint32) (bool, error) {
	return queueGet(qs, id, qid, hw, tmhw.QueueVisible, func(q *queue) bool { return q.visible })
}

// SetNegMirrorDest changes where packets dropped from a queue are mirrored.
func (qs Queues) SetNegMirrorDest(id tmdef.DevPort, qid int, dest NegMirrorDest) error {
	qs.dev.lock()
	defer qs.dev.unlockAndFlush()
	q, e := qs.dev.findQueue(id, qid)
	if e != nil {
		return e
	}
	if _, e := qs.dev.findPort(dest.Port); e != nil {
		return e
	}
	if dest.Queue < 0 || dest.Queue >= qs.dev.params.MaxPortQueues {
		return fmt.Errorf("%w: negative mirror queue %d", tmdef.ErrInvalidArg, dest.Queue)
	}
	return setField(qs.dev, &q.shadow, &q.negMirror, dest, tmhw.QueueNegMirrorDest, 0,
		qs.dev.writeQueue(q, tmhw.QueueNegMirrorDest, dest.encode()))
}

// NegMirrorDest returns the negative-mirror destination of a queue.
func (qs Queues) NegMirrorDest(id tmdef.DevPort, qid int, hw *uint32) (NegMirrorDest, error) {
	return queueGet(qs, id, qid, hw, tmhw.QueueNegMirrorDest, func(q *queue) NegMirrorDest { return q.negMirror })
}

// DropCount reads the drop counter of a queue.
func (qs Queues) DropCount(id tmdef.DevPort, qid int) (cnt uint64, e error) {
	e = qs.with(id, qid, func(q *queue) (e error) {
		cnt, e = qs.dev.readCounter(q.node, tmhw.QueueDrop, 0, func(g tmhw.Generation) (uint64, error) {
			return g.Queue().ReadQueueCounter(q.pipe, q.phys, tmhw.QueueDrop)
		})
		return e
	})
	return
}

// ClearDropCount clears the drop counter of a queue.
func (qs Queues) ClearDropCount(id tmdef.DevPort, qid int) error {
	return qs.with(id, qid, func(q *queue) error {
		return qs.dev.clearCounter(&q.shadow, q.node, tmhw.QueueDrop, 0, func(g tmhw.Generation) error {
			return g.Queue().ClearQueueCounter(q.pipe, q.phys, tmhw.QueueDrop)
		})
	})
}

// Usage reads current buffer usage and watermark of a queue, in cells.
func (qs Queues) Usage(id tmdef.DevPort, qid int) (usage, watermark uint64, e error) {
	e = qs.with(id, qid, func(q *queue) error {
		read := func(c tmhw.Counter) (uint64, error) {
			return qs.dev.readCounter(q.node, c, 0, func(g tmhw.Generation) (uint64, error) {
				return g.Queue().ReadQueueCounter(q.pipe, q.phys, c)
			})
		}
		var e0, e1 error
		usage, e0 = read(tmhw.QueueUsage)
		watermark, e1 = read(tmhw.QueueWatermark)
		return multierr.Append(e0, e1)
	})
	return
}
