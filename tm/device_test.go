package tm_test

import (
	"testing"

	"github.com/usnistgov/tofino-tm/tm"
	"github.com/usnistgov/tofino-tm/tm/tmdef"
	"github.com/usnistgov/tofino-tm/tm/tmhw"
)

func TestDeviceRegistry(t *testing.T) {
	assert, require := makeAR(t)

	_, e := tm.New(tm.Config{ID: tmdef.MaxDevices, Asic: tmdef.Tofino})
	assert.ErrorIs(e, tmdef.ErrInvalidArg)
	_, e = tm.New(tm.Config{ID: 1, Asic: tmdef.AsicType(0)})
	assert.ErrorIs(e, tmdef.ErrNotSupported)
	_, e = tm.New(tm.Config{ID: 1, Asic: tmdef.Tofino, Pipes: 5})
	assert.ErrorIs(e, tmdef.ErrInvalidArg)

	dev, e := tm.New(tm.Config{ID: 3, Asic: tmdef.Tofino3})
	require.NoError(e)
	cfg := dev.Config()
	assert.Equal(8, cfg.Pipes)
	assert.Equal(128, cfg.QueueProfiles)
	assert.Positive(cfg.CounterNodes)
	assert.Same(dev, tm.Find(3))
	assert.Nil(tm.Find(4))
	assert.Nil(tm.Find(-1))
	assert.Len(tm.List(), 1)

	_, e = tm.New(tm.Config{ID: 3, Asic: tmdef.Tofino})
	assert.ErrorIs(e, tmdef.ErrAlreadyExists)

	require.NoError(dev.Close())
	assert.Nil(tm.Find(3))
	assert.Empty(tm.List())

	dev2, e := tm.New(tm.Config{ID: 3, Asic: tmdef.Tofino})
	require.NoError(e)
	require.NoError(dev.Close())
	assert.Same(dev2, tm.Find(3))
	require.NoError(dev2.Close())
	assert.Nil(tm.Find(3))
}

func TestDeviceCounterNodes(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino2, func(cfg *tm.Config) { cfg.CounterNodes = 2 + 2 + 3 })
	portA, portB := tmdef.MakeDevPort(0, 0), tmdef.MakeDevPort(0, 1)

	fixture.AddPort(portA, tmdef.Speed100G)
	assert.ErrorIs(fixture.Dev.Queues().Carve(portA, 4, nil), tmdef.ErrNoSysResources)
	n, e := fixture.Dev.Queues().ProfileUseCount(0)
	require.NoError(e)
	assert.Equal(0, n)
	require.NoError(fixture.Dev.Queues().Carve(portA, 3, nil))
	assert.ErrorIs(fixture.Dev.Ports().Add(portB, tmdef.Speed100G), tmdef.ErrNoSysResources)

	require.NoError(fixture.Dev.Ports().Delete(portA))
	fixture.AddPort(portB, tmdef.Speed100G)
	_, e = fixture.Dev.Ppgs().Alloc(portB, tmdef.InvalidPpg)
	require.NoError(e)
	_, e = fixture.Dev.Ppgs().Alloc(portB, tmdef.InvalidPpg)
	require.NoError(e)
	_, e = fixture.Dev.Ppgs().Alloc(portB, tmdef.InvalidPpg)
	require.NoError(e)
	_, e = fixture.Dev.Ppgs().Alloc(portB, tmdef.InvalidPpg)
	assert.ErrorIs(e, tmdef.ErrNoSysResources)
}

func TestDeviceRestore(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino2)
	assert.ErrorIs(fixture.Dev.RestoreFromHardware(), tmdef.ErrInvalidArg)

	chip := fixture.Chip
	chip.Poke(tmhw.Addr{Block: "tof2.pool.ig.green_limit", Pipe: tmhw.AllPipes, Index: 1 * tmdef.NIcos}, 4000)
	chip.Poke(tmhw.Addr{Block: "tof2.pool.ig.pfc_limit", Pipe: tmhw.AllPipes, Index: 1*tmdef.NIcos + 3}, 3000)
	chip.Poke(tmhw.Addr{Block: "tof2.pool.eg.color_drop", Pipe: tmhw.AllPipes, Index: 2 * tmdef.NIcos}, 1)
	chip.Poke(tmhw.Addr{Block: "tof2.pool.ig.glb_cell_limit_en", Pipe: tmhw.AllPipes, Index: 0}, 1)
	chip.Poke(tmhw.Addr{Block: "tof2.pipe.limit", Pipe: 1, Index: 0}, 20000)

	fixture.Dev.BeginWarmInit()
	require.NoError(fixture.Dev.RestoreFromHardware())

	ig, eg, pipes := fixture.Dev.IngressPools(), fixture.Dev.EgressPools(), fixture.Dev.Pipes()
	limit, e := ig.Limit(1, tmdef.Green, nil)
	require.NoError(e)
	assert.EqualValues(4000, limit)
	limit, e = ig.PfcLimit(1, 3, nil)
	require.NoError(e)
	assert.EqualValues(3000, limit)
	colorDrop, e := eg.ColorDrop(2, nil)
	require.NoError(e)
	assert.True(colorDrop)
	enabled, e := ig.GlbCellLimitEnabled(nil)
	require.NoError(e)
	assert.True(enabled)
	limit, e = pipes.Limit(1, nil)
	require.NoError(e)
	assert.EqualValues(20000, limit)

	var hw uint32
	limit, e = ig.Limit(1, tmdef.Green, &hw)
	require.NoError(e)
	assert.EqualValues(4000, hw)

	port := tmdef.MakeDevPort(0, 0)
	fixture.AddPort(port, tmdef.Speed100G)
	require.NoError(ig.SetLimit(1, tmdef.Green, 4000))
	require.NoError(ig.SetLimit(1, tmdef.Yellow, 3500))
	require.NoError(ig.SetLimit(1, tmdef.Red, 3000))
	require.NoError(pipes.SetLimit(1, 20000))
	require.NoError(fixture.Dev.Ports().SetQacDropLimit(port, 900))
	assert.Empty(chip.Writes(""))

	info, e := fixture.Dev.Ports().Info(port)
	require.NoError(e)
	assert.Equal(tmdef.PendingHardwareWrite, info.Sync)
	assert.Empty(fixture.Dev.OutOfSync())

	require.NoError(fixture.Dev.EndWarmInit())
	assert.Equal([]string{"tof2.pool.ig.yellow_limit", "tof2.pool.ig.red_limit"}, fixture.Blocks("pool"))
	assert.Equal([]string{"tof2.port.qac_limit"}, fixture.Blocks("port"))
	assert.Empty(chip.Writes("pipe"))

	info, e = fixture.Dev.Ports().Info(port)
	require.NoError(e)
	assert.Equal(tmdef.InSync, info.Sync)

	fixture.Chip.ClearLog()
	require.NoError(ig.SetLimit(1, tmdef.Green, 4000))
	assert.Len(chip.Writes("green_limit"), 1)
}

func TestDeviceRestoreWriteFailed(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino, func(cfg *tm.Config) { cfg.WarmInit = true })
	require.NoError(fixture.Dev.RestoreFromHardware())

	require.NoError(fixture.Dev.EgressPools().SetDodLimit(10))
	fixture.Chip.FailWrites("dod_limit", tmdef.ErrHwCommFail)
	e := fixture.Dev.EndWarmInit()
	assert.ErrorIs(e, tmdef.ErrHwCommFail)
	assert.Equal([]tm.Resource{{Kind: "pool", Name: "eg.gpool"}}, fixture.Dev.OutOfSync())
	fixture.Chip.FailWrites("dod_limit", nil)
}

func TestPipeLimits(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino)
	pipes := fixture.Dev.Pipes()
	cells := fixture.Dev.Params().CellsPerPipe

	assert.ErrorIs(pipes.SetLimit(2, 10), tmdef.ErrInvalidArg)
	assert.ErrorIs(pipes.SetLimit(0, cells+1), tmdef.ErrInvalidArg)
	require.NoError(pipes.SetLimit(0, cells))
	require.NoError(pipes.SetHyst(1, 128))

	var hw uint32
	limit, e := pipes.Limit(0, &hw)
	require.NoError(e)
	assert.Equal(cells, limit)
	assert.Equal(cells, hw)
	hyst, e := pipes.Hyst(1, nil)
	require.NoError(e)
	assert.EqualValues(128, hyst)
	assert.Equal([]string{"tof.pipe.limit", "tof.pipe.hyst"}, fixture.Blocks("pipe"))
}

func TestPipeCounters(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino3)
	pipes := fixture.Dev.Pipes()

	fixture.Chip.Poke(tmhw.Addr{Block: "tof3.cnt.pipe_wac_drop", Pipe: 1, Index: 0}, 100)
	fixture.Chip.Poke(tmhw.Addr{Block: "tof3.cnt.pre_fifo_drop", Pipe: 1, Index: 2}, 1<<36|9)
	cnt, e := pipes.Counters(1)
	require.NoError(e)
	assert.EqualValues(100, cnt.WacDrop)
	assert.EqualValues(0, cnt.QacDrop)
	assert.EqualValues(9, cnt.PreFifoDrop[2])

	fixture.Chip.Poke(tmhw.Addr{Block: "tof3.cnt.pre_fifo_drop", Pipe: 1, Index: 2}, 1)
	cnt, e = pipes.Counters(1)
	require.NoError(e)
	assert.EqualValues(1<<36+1, cnt.PreFifoDrop[2])

	require.NoError(pipes.ClearCounters(1))
	cnt, e = pipes.Counters(1)
	require.NoError(e)
	assert.Equal(tm.PipeCounters{}, cnt)

	_, e = pipes.Counters(2)
	assert.ErrorIs(e, tmdef.ErrInvalidArg)
}

func TestHystProfilesExhausted(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino2)
	ports := fixture.Dev.Ports()
	nProfiles := fixture.Dev.Params().HystProfiles

	for i := 1; i < nProfiles; i++ {
		require.NoError(ports.SetWacHyst(tmdef.MakeDevPort(0, i), uint32(i)))
	}
	inUse, e := fixture.Dev.Pipes().HystProfilesInUse(0)
	require.NoError(e)
	assert.Equal(nProfiles-1, inUse)

	last := tmdef.MakeDevPort(0, nProfiles)
	assert.ErrorIs(ports.SetWacHyst(last, 9999), tmdef.ErrNoSysResources)
	require.NoError(ports.SetWacHyst(last, 5))
	require.NoError(ports.SetWacHyst(last, 0))
	require.NoError(ports.SetWacHyst(tmdef.MakeDevPort(0, 7), 0))
	require.NoError(ports.SetWacHyst(last, 9999))

	var hw uint32
	hyst, e := ports.WacHyst(last, &hw)
	require.NoError(e)
	assert.EqualValues(9999, hyst)
	assert.EqualValues(7, hw)

	inUse, e = fixture.Dev.Pipes().HystProfilesInUse(1)
	require.NoError(e)
	assert.Equal(0, inUse)
}
