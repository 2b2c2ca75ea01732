package tmscript_test

import (
	"bytes"
	"strings"
	"testing"

	"go4.org/must"

	"github.com/usnistgov/tofino-tm/core/testenv"
	"github.com/usnistgov/tofino-tm/tm"
	"github.com/usnistgov/tofino-tm/tm/tmdef"
	"github.com/usnistgov/tofino-tm/tm/tmhw"
	"github.com/usnistgov/tofino-tm/tm/tmscript"
)

var makeAR = testenv.MakeAR

type Fixture struct {
	Dev    *tm.Device
	Chip   *tmhw.MemChip
	Interp *tmscript.Interpreter
	Out    bytes.Buffer
}

func NewFixture(t testing.TB, asic tmdef.AsicType) (f *Fixture) {
	f = &Fixture{Chip: tmhw.NewMemChip()}
	var e error
	f.Dev, e = tm.New(tm.Config{
		Asic:     asic,
		Pipes:    2,
		Chip:     f.Chip,
		PortInfo: &tm.StaticPortInfo{},
	})
	if e != nil {
		t.Fatal(e)
	}
	t.Cleanup(func() { must.Close(f.Dev) })
	f.Interp = tmscript.New(f.Dev, &f.Out)
	return f
}

// Run executes a script.
func (f *Fixture) Run(script string) error {
	return f.Interp.Run(strings.NewReader(script))
}

// Lines returns output lines and resets the output buffer.
func (f *Fixture) Lines() (lines []string) {
	defer f.Out.Reset()
	text := strings.TrimSpace(f.Out.String())
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
