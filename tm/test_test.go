package tm_test

import (
	"testing"

	"github.com/usnistgov/tofino-tm/core/testenv"
	"github.com/usnistgov/tofino-tm/tm"
	"github.com/usnistgov/tofino-tm/tm/tmdef"
	"github.com/usnistgov/tofino-tm/tm/tmhw"
	"go4.org/must"
)

var makeAR = testenv.MakeAR

type Fixture struct {
	t testing.TB

	Dev      *tm.Device
	Chip     *tmhw.MemChip
	PortInfo *tm.StaticPortInfo
}

// NewFixture creates a device backed by MemChip.
// modify may change the Config before creation; setting cfg.Chip to nil selects the null backend.
func NewFixture(t testing.TB, asic tmdef.AsicType, modify ...func(cfg *tm.Config)) (f *Fixture) {
	f = &Fixture{
		t:        t,
		Chip:     tmhw.NewMemChip(),
		PortInfo: &tm.StaticPortInfo{},
	}
	cfg := tm.Config{
		ID:       0,
		Asic:     asic,
		Pipes:    2,
		Chip:     f.Chip,
		PortInfo: f.PortInfo,
	}
	for _, m := range modify {
		m(&cfg)
	}

	var e error
	f.Dev, e = tm.New(cfg)
	if e != nil {
		t.Fatal(e)
	}
	t.Cleanup(func() {
		must.Close(f.Dev)
	})
	return f
}

// AddPort adds a port or fails the test.
func (f *Fixture) AddPort(port tmdef.DevPort, speed tmdef.Speed) {
	if e := f.Dev.Ports().Add(port, speed); e != nil {
		f.t.Fatal(e)
	}
}

// Blocks returns the register block suffix of each logged write matching pattern.
func (f *Fixture) Blocks(pattern string) (list []string) {
	for _, w := range f.Chip.Writes(pattern) {
		list = append(list, w.Addr.Block)
	}
	return list
}
