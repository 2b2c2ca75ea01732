package tmdef_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/usnistgov/tofino-tm/tm/tmdef"
)

func TestDevPort(t *testing.T) {
	assert, require := makeAR(t)

	p := tmdef.MakeDevPort(3, 68)
	assert.Equal(3, p.Pipe())
	assert.Equal(68, p.Port())
	assert.Equal("3/68", p.String())
	assert.EqualValues(3<<7|68, p)

	parsed, e := tmdef.ParseDevPort("3/68")
	require.NoError(e)
	assert.Equal(p, parsed)

	parsed, e = tmdef.ParseDevPort("452")
	require.NoError(e)
	assert.Equal(p, parsed)

	_, e = tmdef.ParseDevPort("3/x")
	assert.Error(e)
	_, e = tmdef.ParseDevPort("3/200")
	assert.Error(e)
}

func TestPpgHandle(t *testing.T) {
	assert, require := makeAR(t)

	h := tmdef.MakePpgHandle(2, 17, 140)
	assert.Equal(2, h.Pipe())
	assert.Equal(17, h.Port())
	assert.Equal(140, h.Ppg())
	assert.Equal(tmdef.MakeDevPort(2, 17), h.DevPort())
	assert.Equal("2/17/140", h.String())

	parsed, e := tmdef.ParsePpgHandle("2/17/140")
	require.NoError(e)
	assert.Equal(h, parsed)

	parsed, e = tmdef.ParsePpgHandle(fmt.Sprintf("%#x", uint32(h)))
	require.NoError(e)
	assert.Equal(h, parsed)

	_, e = tmdef.ParsePpgHandle("1/2")
	assert.Error(e)
	assert.Equal("invalid", tmdef.InvalidPpg.String())
}

func TestPpgRange(t *testing.T) {
	assert, _ := makeAR(t)

	tof, _ := tmdef.ParamsOf(tmdef.Tofino)
	lo, hi := tof.PpgRange(60)
	assert.Equal(0, lo)
	assert.Equal(128, hi)

	tof2, _ := tmdef.ParamsOf(tmdef.Tofino2)
	lo, hi = tof2.PpgRange(31)
	assert.Equal(0, lo)
	assert.Equal(64, hi)
	lo, hi = tof2.PpgRange(32)
	assert.Equal(64, lo)
	assert.Equal(128, hi)

	assert.Equal(9, tof2.NPortGroups())
	assert.Equal(9*128, tof2.QueuesPerPipe())

	_, ok := tmdef.ParamsOf(0)
	assert.False(ok)
}

func TestStatus(t *testing.T) {
	assert, _ := makeAR(t)

	e := fmt.Errorf("ppg 1/2/3: %w", tmdef.ErrAgain)
	assert.True(errors.Is(e, tmdef.ErrAgain))
	assert.False(errors.Is(e, tmdef.ErrNoSysResources))
	assert.Equal(tmdef.Again, tmdef.StatusOf(e))
	assert.Equal(tmdef.Success, tmdef.StatusOf(nil))
	assert.Equal(tmdef.Unexpected, tmdef.StatusOf(errors.New("x")))
	assert.EqualValues(4, tmdef.StatusOf(tmdef.ErrInvalidArg))
	assert.Equal("not supported", tmdef.ErrNotSupported.Error())
}

func TestParseEnums(t *testing.T) {
	assert, _ := makeAR(t)

	asic, ok := tmdef.ParseAsicType("TF2")
	assert.True(ok)
	assert.Equal(tmdef.Tofino2, asic)

	speed, ok := tmdef.ParseSpeed("100g")
	assert.True(ok)
	assert.Equal(tmdef.Speed100G, speed)

	color, ok := tmdef.ParseColor("yellow")
	assert.True(ok)
	assert.Equal(tmdef.Yellow, color)

	fc, ok := tmdef.ParseFlowControl("pfc")
	assert.True(ok)
	assert.Equal(tmdef.FlowControlPfc, fc)

	assert.True(tmdef.IcosMask(0x81).Has(7))
	assert.False(tmdef.IcosMask(0x81).Has(8))
	assert.True(tmdef.PpgUsage{}.Drained())
	assert.False(tmdef.PpgUsage{Skid: 1}.Drained())
}
