package tm

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/usnistgov/tofino-tm/tm/tmdef"
	"github.com/usnistgov/tofino-tm/tm/tmhw"
)

// Resource identifies a TM resource in sync reports and events.
type Resource struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

func (r Resource) String() string {
	return r.Kind + " " + r.Name
}

// ZapField returns a zap.Field for logging.
func (r Resource) ZapField(key string) zap.Field {
	return zap.Stringer(key, r)
}

type writeFunc func(g tmhw.Generation) error

type fieldKey struct {
	f     tmhw.Field
	index int
}

// structuralKey records failures of operations that are not field writes, such as port add or queue carve.
var structuralKey = fieldKey{tmhw.FieldInvalid, 0}

// shadow tracks hardware divergence of one resource.
type shadow struct {
	res     Resource
	pending map[fieldKey]writeFunc
	failed  map[fieldKey]error
}

func (s *shadow) init(kind, name string) {
	s.res = Resource{Kind: kind, Name: name}
	s.pending = map[fieldKey]writeFunc{}
	s.failed = map[fieldKey]error{}
}

// Status returns the sync status.
func (s *shadow) Status() tmdef.SyncStatus {
	switch {
	case len(s.failed) > 0:
		return tmdef.WriteFailed
	case len(s.pending) > 0:
		return tmdef.PendingHardwareWrite
	}
	return tmdef.InSync
}

func (s *shadow) forget() {
	for k := range s.pending {
		delete(s.pending, k)
	}
	for k := range s.failed {
		delete(s.failed, k)
	}
}

func capsOf(g tmhw.Generation, concern tmhw.Concern) tmhw.Caps {
	switch concern {
	case tmhw.ConcernPool:
		return g.Pool()
	case tmhw.ConcernPpg:
		return g.Ppg()
	case tmhw.ConcernPort:
		return g.Port()
	case tmhw.ConcernQueue:
		return g.Queue()
	case tmhw.ConcernPipe:
		return g.Pipe()
	}
	panic(concern)
}

// hwWrite writes a field to hardware after the software cache has been updated.
// Fields without hardware support are skipped.
// During configuration restore, the write is deferred until warm-init ends.
func (dev *Device) hwWrite(s *shadow, f tmhw.Field, index int, write writeFunc) error {
	if !capsOf(dev.gen, f.Concern()).CanWrite(f) {
		return nil
	}
	key := fieldKey{f, index}
	if dev.restoring {
		s.pending[key] = write
		return nil
	}
	delete(s.pending, key)
	return dev.track(s, key, write(dev.gen))
}

// hwOp invokes a structural hardware operation through the active backend.
func (dev *Device) hwOp(s *shadow, op func(g tmhw.Generation) error) error {
	return dev.track(s, structuralKey, op(dev.hw))
}

func (dev *Device) track(s *shadow, key fieldKey, e error) error {
	if e == nil {
		delete(s.failed, key)
		return nil
	}
	s.failed[key] = e
	dev.logger.Error("hardware write failed",
		s.res.ZapField("resource"),
		zap.Stringer("field", key.f),
		zap.Int("index", key.index),
		zap.Error(e),
	)
	dev.queueEvent(evtWriteFailed, s.res, e)
	return fmt.Errorf("%s %s: %w", s.res, key.f, e)
}

// flushPending replays deferred writes in field order.
func (dev *Device) flushPending(s *shadow) (errs []error) {
	keys := make([]fieldKey, 0, len(s.pending))
	for k := range s.pending {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].f != keys[j].f {
			return keys[i].f < keys[j].f
		}
		return keys[i].index < keys[j].index
	})
	for _, k := range keys {
		write := s.pending[k]
		delete(s.pending, k)
		if e := dev.track(s, k, write(dev.gen)); e != nil {
			errs = append(errs, e)
		}
	}
	return errs
}

// setField applies the setter contract.
// In warm-init, a value equal to the cache is a hitless match and nothing happens.
// Otherwise the cache is updated, then hardware is written.
func setField[T comparable](dev *Device, s *shadow, cache *T, v T, f tmhw.Field, index int, write writeFunc) error {
	if dev.warm && *cache == v {
		return nil
	}
	*cache = v
	return dev.hwWrite(s, f, index, write)
}

// getField applies the getter contract.
// The cached value is always returned.
// If hw is non-nil, the field is readable, and the target is an ASIC, hardware is read into *hw.
func getField[T any](dev *Device, cached T, hw *uint32, f tmhw.Field, read func(g tmhw.Generation) (uint32, error)) (T, error) {
	if hw == nil || dev.cfg.Target != tmdef.TargetAsic || !capsOf(dev.hw, f.Concern()).CanRead(f) {
		return cached, nil
	}
	v, e := read(dev.hw)
	if e != nil {
		return cached, e
	}
	*hw = v
	return cached, nil
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
