package tmhw

import (
	"fmt"
	"strings"
	"sync"
)

// AllPipes is the Addr.Pipe value of a register replicated in every pipe.
const AllPipes = -1

// Addr is a symbolic register address.
type Addr struct {
	Block string
	Pipe  int
	Index int
}

func (a Addr) String() string {
	if a.Pipe == AllPipes {
		return fmt.Sprintf("%s[*][%d]", a.Block, a.Index)
	}
	return fmt.Sprintf("%s[%d][%d]", a.Block, a.Pipe, a.Index)
}

// Chip provides register access to a device.
type Chip interface {
	WriteReg(a Addr, v uint64) error
	ReadReg(a Addr) (uint64, error)
}

// Write records a register write.
type Write struct {
	Addr  Addr
	Value uint64
}

// MemChip is a Chip backed by memory.
// It keeps a log of writes and can inject write failures.
type MemChip struct {
	mu    sync.Mutex
	regs  map[Addr]uint64
	log   []Write
	fails map[string]error
}

var _ Chip = (*MemChip)(nil)

// NewMemChip creates MemChip.
func NewMemChip() *MemChip {
	return &MemChip{
		regs:  map[Addr]uint64{},
		fails: map[string]error{},
	}
}

// WriteReg implements Chip.
func (c *MemChip) WriteReg(a Addr, v uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for pattern, e := range c.fails {
		if strings.Contains(a.Block, pattern) {
			return fmt.Errorf("write %s: %w", a, e)
		}
	}
	c.regs[a] = v
	c.log = append(c.log, Write{a, v})
	return nil
}

// ReadReg implements Chip.
// A per-pipe read falls back to the replicated register when the per-pipe register was never written.
func (c *MemChip) ReadReg(a Addr) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.regs[a]; ok {
		return v, nil
	}
	if a.Pipe != AllPipes {
		a.Pipe = AllPipes
		return c.regs[a], nil
	}
	return 0, nil
}

// Poke changes a register without logging, emulating hardware activity or out-of-band changes.
func (c *MemChip) Poke(a Addr, v uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs[a] = v
}

// FailWrites causes writes to blocks containing pattern to fail with e.
// Passing nil e removes the failure.
func (c *MemChip) FailWrites(pattern string, e error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e == nil {
		delete(c.fails, pattern)
	} else {
		c.fails[pattern] = e
	}
}

// Writes returns logged writes to blocks containing pattern.
// Empty pattern matches every write.
func (c *MemChip) Writes(pattern string) (list []Write) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.log {
		if strings.Contains(w.Addr.Block, pattern) {
			list = append(list, w)
		}
	}
	return list
}

// ClearLog deletes logged writes.
func (c *MemChip) ClearLog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = nil
}
