package tm

import (
	"fmt"

	"github.com/usnistgov/tofino-tm/tm/tmdef"
	"github.com/usnistgov/tofino-tm/tm/tmhw"
)

// hystRef is a hysteresis value and its profile index.
type hystRef struct {
	Value uint32
	Index int
}

// hystTable interns hysteresis values of a pipe.
// Entry 0 always holds zero.
type hystTable struct {
	values []uint32
	refs   []int
}

func newHystTable(size int) *hystTable {
	return &hystTable{
		values: make([]uint32, size),
		refs:   make([]int, size),
	}
}

// acquire returns the entry holding v, allocating one if necessary.
// created indicates the entry must be programmed.
func (t *hystTable) acquire(v uint32) (index int, created bool, e error) {
	if v == 0 {
		return 0, false, nil
	}
	free := -1
	for i := 1; i < len(t.values); i++ {
		switch {
		case t.refs[i] > 0 && t.values[i] == v:
			t.refs[i]++
			return i, false, nil
		case t.refs[i] == 0 && free < 0:
			free = i
		}
	}
	if free < 0 {
		return 0, false, fmt.Errorf("%w: hysteresis profiles exhausted", tmdef.ErrNoSysResources)
	}
	t.values[free], t.refs[free] = v, 1
	return free, true, nil
}

func (t *hystTable) release(index int) {
	if index > 0 && t.refs[index] > 0 {
		t.refs[index]--
	}
}

func (t *hystTable) inUse() (n int) {
	for _, r := range t.refs {
		if r > 0 {
			n++
		}
	}
	return n
}

// setHyst changes a hysteresis that is referenced by profile index.
// write programs the resource's index field.
func (dev *Device) setHyst(s *shadow, pipe int, cur *hystRef, v uint32, f tmhw.Field, write func(g tmhw.Generation, index uint32) error) error {
	if dev.warm && cur.Value == v {
		return nil
	}
	ps := dev.pipes[pipe]
	index, created, e := ps.hystProfiles.acquire(v)
	if e != nil {
		return e
	}
	var errProfile error
	if created {
		errProfile = dev.hwWrite(&ps.shadow, tmhw.PipeHystProfile, index, func(g tmhw.Generation) error {
			return g.Pipe().WritePipe(pipe, tmhw.PipeHystProfile, index, v)
		})
	}
	ps.hystProfiles.release(cur.Index)
	*cur = hystRef{Value: v, Index: index}
	if errProfile != nil {
		return errProfile
	}
	return dev.hwWrite(s, f, 0, func(g tmhw.Generation) error {
		return write(g, uint32(index))
	})
}

// releaseHyst returns a hysteresis reference to the table.
func (dev *Device) releaseHyst(pipe int, cur *hystRef) {
	dev.pipes[pipe].hystProfiles.release(cur.Index)
	*cur = hystRef{}
}
