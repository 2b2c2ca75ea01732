package tm

import (
	"fmt"

	"github.com/usnistgov/tofino-tm/tm/tmdef"
	"github.com/usnistgov/tofino-tm/tm/tmhw"
)

type counterKey struct {
	c     tmhw.Counter
	index int
}

type counterAcc struct {
	last  uint64
	total uint64
}

// counterNode composes narrow hardware counters of one resource into 64-bit totals.
type counterNode struct {
	acc map[counterKey]*counterAcc
}

func (n *counterNode) reset() {
	n.acc = map[counterKey]*counterAcc{}
}

// update folds a raw hardware reading into the total.
// The increment is taken modulo the counter width, so at most one wrap between reads is tolerated.
func (n *counterNode) update(key counterKey, raw uint64, width uint) uint64 {
	a := n.acc[key]
	if a == nil {
		a = &counterAcc{}
		n.acc[key] = a
	}
	delta := raw - a.last
	if width < 64 {
		delta &= 1<<width - 1
	}
	a.total += delta
	a.last = raw
	return a.total
}

func (n *counterNode) clear(key counterKey) {
	delete(n.acc, key)
}

// counterPool is a fixed capacity pool of counter nodes.
type counterPool struct {
	capacity int
	used     int
}

func (p *counterPool) available() int {
	return p.capacity - p.used
}

// alloc returns a cleared node.
// An existing node is reused without consuming capacity.
func (p *counterPool) alloc(prev *counterNode) (*counterNode, error) {
	if prev != nil {
		prev.reset()
		return prev, nil
	}
	if p.used >= p.capacity {
		return nil, fmt.Errorf("%w: counter node pool exhausted (capacity %d)", tmdef.ErrNoSysResources, p.capacity)
	}
	p.used++
	n := &counterNode{}
	n.reset()
	return n, nil
}

func (p *counterPool) release(n *counterNode) {
	if n != nil {
		p.used--
	}
}

// readCounter reads a counter through the cached node.
// Drop counters are returned as wrap-composed totals; gauges are returned as read.
func (dev *Device) readCounter(n *counterNode, c tmhw.Counter, index int, read func(g tmhw.Generation) (uint64, error)) (uint64, error) {
	if n == nil {
		return 0, fmt.Errorf("%w: no counter node", tmdef.ErrObjectNotFound)
	}
	if !capsOf(dev.hw, c.Concern()).HasCounter(c) {
		return 0, fmt.Errorf("%w: counter %s", tmdef.ErrNotSupported, c)
	}
	raw, e := read(dev.hw)
	if e != nil {
		return 0, e
	}
	if c.IsGauge() {
		return raw, nil
	}
	return n.update(counterKey{c, index}, raw, dev.gen.CounterWidth(c)), nil
}

func (dev *Device) clearCounter(s *shadow, n *counterNode, c tmhw.Counter, index int, clear func(g tmhw.Generation) error) error {
	if n != nil {
		n.clear(counterKey{c, index})
	}
	if !capsOf(dev.hw, c.Concern()).HasCounter(c) {
		return nil
	}
	return dev.hwOp(s, clear)
}
