package tm_test

import (
	"testing"

	"github.com/usnistgov/tofino-tm/tm"
	"github.com/usnistgov/tofino-tm/tm/tmdef"
	"github.com/usnistgov/tofino-tm/tm/tmhw"
)

func TestQueueProfileSharing(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino2)
	queues := fixture.Dev.Queues()
	portA, portB := tmdef.MakeDevPort(0, 0), tmdef.MakeDevPort(0, 8)
	fixture.AddPort(portA, tmdef.Speed100G)
	fixture.AddPort(portB, tmdef.Speed100G)

	carved := map[tmdef.DevPort]int{}
	cancel := fixture.Dev.OnQueuesCarved(func(port tmdef.DevPort, profile int) { carved[port] = profile })
	defer cancel()

	require.NoError(queues.Carve(portA, 4, nil))
	profileA, e := queues.ProfileIndex(portA)
	require.NoError(e)
	count, e := queues.ProfileUseCount(0)
	require.NoError(e)
	assert.Equal(1, count)

	require.NoError(queues.Carve(portB, 4, []int{0, 1, 2, 3}))
	profileB, e := queues.ProfileIndex(portB)
	require.NoError(e)
	assert.Equal(profileA, profileB)
	count, e = queues.ProfileUseCount(0)
	require.NoError(e)
	assert.Equal(1, count)
	assert.Equal(map[tmdef.DevPort]int{portA: profileA, portB: profileA}, carved)

	stA, e := queues.Info(portA, 3)
	require.NoError(e)
	assert.Equal(3, stA.Physical)
	stB, e := queues.Info(portB, 3)
	require.NoError(e)
	assert.Equal(128+3, stB.Physical)

	portC := tmdef.MakeDevPort(0, 16)
	fixture.AddPort(portC, tmdef.Speed100G)
	require.NoError(queues.Carve(portC, 4, []int{1, 0, 2, 3}))
	profileC, e := queues.ProfileIndex(portC)
	require.NoError(e)
	assert.NotEqual(profileA, profileC)
	count, e = queues.ProfileUseCount(0)
	require.NoError(e)
	assert.Equal(2, count)

	require.NoError(fixture.Dev.Ports().Delete(portA))
	count, e = queues.ProfileUseCount(0)
	require.NoError(e)
	assert.Equal(2, count)
	require.NoError(fixture.Dev.Ports().Delete(portB))
	count, e = queues.ProfileUseCount(0)
	require.NoError(e)
	assert.Equal(1, count)
}

func TestQueueBase(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino2)
	queues := fixture.Dev.Queues()
	ports := make([]tmdef.DevPort, 4)
	for i := range ports {
		ports[i] = tmdef.MakeDevPort(1, 8+i)
		fixture.AddPort(ports[i], tmdef.Speed50G)
	}
	base := func(port tmdef.DevPort) int {
		b, e := queues.BaseQueue(port)
		require.NoError(e)
		return b
	}

	assert.Equal(0, base(ports[0]))
	assert.Equal(0, base(ports[2]))
	require.NoError(queues.Carve(ports[0], 8, nil))
	assert.Equal(8, base(ports[1]))
	assert.Equal(8, base(ports[2]))

	require.NoError(queues.Carve(ports[2], 16, nil))
	assert.Equal(8, base(ports[1]))
	assert.Equal(24, base(ports[3]))

	assert.ErrorIs(queues.Carve(ports[1], 17, nil), tmdef.ErrInvalidArg)
	assert.ErrorIs(queues.Carve(ports[0], 9, nil), tmdef.ErrInvalidArg)
	assert.ErrorIs(queues.Carve(ports[3], 105, nil), tmdef.ErrInvalidArg)
	require.NoError(queues.Carve(ports[3], 104, nil))
	assert.ErrorIs(queues.Carve(ports[1], 0, nil), tmdef.ErrInvalidArg)
	assert.ErrorIs(queues.Carve(ports[1], 129, nil), tmdef.ErrInvalidArg)

	st, e := queues.Info(ports[2], 15)
	require.NoError(e)
	assert.Equal(128+8+15, st.Physical)
	assert.Equal(2, st.Channel)
	assert.Equal(ports[2], st.Port)

	ws := fixture.Chip.Writes("q.carve")
	require.Len(ws, 3)
	assert.Equal(1, ws[1].Addr.Pipe)
	assert.Equal(8+2, ws[1].Addr.Index)
	assert.Equal(uint64(8|16<<16|1<<63), ws[1].Value&^(0xFFFF<<32))
}

func TestQueueMapping(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino3)
	queues := fixture.Dev.Queues()
	port := tmdef.MakeDevPort(1, 0)
	fixture.AddPort(port, tmdef.Speed400G)

	assert.ErrorIs(queues.Carve(port, 4, []int{0, 1, 2}), tmdef.ErrInvalidArg)
	assert.ErrorIs(queues.Carve(port, 4, []int{0, 1, 1, 3}), tmdef.ErrInvalidArg)
	assert.ErrorIs(queues.Carve(port, 4, []int{0, 1, 2, 4}), tmdef.ErrInvalidArg)
	_, e := queues.ProfileIndex(port)
	assert.ErrorIs(e, tmdef.ErrObjectNotFound)

	require.NoError(queues.Carve(port, 4, []int{3, 2, 1, 0}))
	st, e := queues.Info(port, 0)
	require.NoError(e)
	assert.Equal(3, st.Physical)
	assert.Equal(6, st.HqBase)
	assert.Equal(2, st.HqPerVq)
	_, e = queues.Info(port, 4)
	assert.ErrorIs(e, tmdef.ErrInvalidArg)

	ws := fixture.Chip.Writes("q.carve")
	require.Len(ws, 1)
	assert.Equal(uint64(8<<16|1<<63), ws[0].Value&^(0xFFFF<<32))
	assert.Len(fixture.Chip.Writes("q.channel"), 4)
}

func TestQueueRecarve(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino)
	queues := fixture.Dev.Queues()
	port := tmdef.MakeDevPort(0, 4)
	fixture.AddPort(port, tmdef.Speed40G)

	require.NoError(queues.Carve(port, 4, nil))
	require.NoError(queues.SetMinLimit(port, 3, 77))
	profile4, e := queues.ProfileIndex(port)
	require.NoError(e)

	require.NoError(queues.Carve(port, 8, nil))
	profile8, e := queues.ProfileIndex(port)
	require.NoError(e)
	assert.NotEqual(profile4, profile8)
	count, e := queues.ProfileUseCount(0)
	require.NoError(e)
	assert.Equal(1, count)

	ws := fixture.Chip.Writes("q.carve")
	require.Len(ws, 3)
	assert.NotZero(ws[0].Value)
	assert.Zero(ws[1].Value)
	assert.EqualValues(8<<16, ws[2].Value&0xFFFF0000)
	assert.Len(fixture.Chip.Writes("q.channel"), 8)

	limit, e := queues.MinLimit(port, 3, nil)
	require.NoError(e)
	assert.EqualValues(77, limit)

	require.NoError(queues.Carve(port, 2, nil))
	_, e = queues.MinLimit(port, 3, nil)
	assert.ErrorIs(e, tmdef.ErrInvalidArg)
	require.NoError(queues.Carve(port, 4, nil))
	limit, e = queues.MinLimit(port, 3, nil)
	require.NoError(e)
	assert.EqualValues(0, limit)

	fixture.Chip.ClearLog()
	require.NoError(queues.Carve(port, 4, nil))
	assert.Empty(fixture.Chip.Writes("q.carve"))
}

func TestQueueProfileExhausted(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino2, func(cfg *tm.Config) { cfg.QueueProfiles = 3 })
	assert.Equal(tm.MinQueueProfiles, fixture.Dev.Config().QueueProfiles)
	queues := fixture.Dev.Queues()

	for i := 0; i < tm.MinQueueProfiles; i++ {
		port := tmdef.MakeDevPort(0, 8*i)
		fixture.AddPort(port, tmdef.Speed10G)
		require.NoError(queues.Carve(port, i+1, nil))
	}
	port := tmdef.MakeDevPort(0, 8*tm.MinQueueProfiles)
	fixture.AddPort(port, tmdef.Speed10G)
	assert.ErrorIs(queues.Carve(port, 8, nil), tmdef.ErrNoSysResources)
	require.NoError(queues.Carve(port, 2, nil))

	_, e := queues.Info(port, 0)
	require.NoError(e)
}

func TestQueueThresholds(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino2)
	queues := fixture.Dev.Queues()
	port, mirror := tmdef.MakeDevPort(0, 1), tmdef.MakeDevPort(0, 2)
	fixture.AddPort(port, tmdef.Speed100G)
	require.NoError(queues.Carve(port, 8, nil))

	_, e := queues.Info(mirror, 0)
	assert.ErrorIs(e, tmdef.ErrObjectNotFound)

	require.NoError(queues.SetMinLimit(port, 2, 10))
	require.NoError(queues.SetAppLimit(port, 2, 20))
	require.NoError(queues.SetAppHyst(port, 2, 8))
	assert.ErrorIs(queues.SetRedLimitPct(port, 2, 101), tmdef.ErrInvalidArg)
	require.NoError(queues.SetRedLimitPct(port, 2, 50))
	require.NoError(queues.SetRedHyst(port, 2, 8))
	require.NoError(queues.SetYellowLimitPct(port, 2, 75))
	require.NoError(queues.SetYellowHyst(port, 2, 16))
	require.NoError(queues.SetAppPoolUsage(port, 2, 3, tmdef.Baf80Percent, true))
	require.NoError(queues.SetTailDrop(port, 2, false))
	require.NoError(queues.SetColorDrop(port, 2, true))
	require.NoError(queues.SetVisible(port, 2, false))
	require.NoError(queues.SetNegMirrorDest(port, 2, tm.NegMirrorDest{Port: mirror, Queue: 5}))
	assert.ErrorIs(queues.SetNegMirrorDest(port, 2, tm.NegMirrorDest{Port: tmdef.MakeDevPort(3, 0)}), tmdef.ErrInvalidArg)

	var hw uint32
	hyst, e := queues.RedHyst(port, 2, &hw)
	require.NoError(e)
	assert.EqualValues(8, hyst)
	sharedIndex := hw
	hyst, e = queues.AppHyst(port, 2, &hw)
	require.NoError(e)
	assert.EqualValues(8, hyst)
	assert.Equal(sharedIndex, hw)
	hyst, e = queues.YellowHyst(port, 2, &hw)
	require.NoError(e)
	assert.EqualValues(16, hyst)
	assert.NotEqual(sharedIndex, hw)

	pct, e := queues.YellowLimitPct(port, 2, &hw)
	require.NoError(e)
	assert.EqualValues(75, pct)
	assert.EqualValues(75, hw)
	visible, e := queues.Visible(port, 2, nil)
	require.NoError(e)
	assert.False(visible)
	dest, e := queues.NegMirrorDest(port, 2, &hw)
	require.NoError(e)
	assert.Equal(tm.NegMirrorDest{Port: mirror, Queue: 5}, dest)
	assert.EqualValues(uint32(mirror)<<8|5, hw)

	st, e := queues.Info(port, 2)
	require.NoError(e)
	assert.EqualValues(10, st.MinLimit)
	assert.EqualValues(20, st.AppLimit)
	assert.EqualValues(50, st.RedLimitPct)
	assert.EqualValues(3, st.AppPool)
	assert.Equal(tmdef.Baf80Percent, st.Baf)
	assert.True(st.Dynamic)
	assert.False(st.TailDrop)
	assert.True(st.ColorDrop)
	assert.Equal(tmdef.InSync, st.Sync)

	fixture.Chip.ClearLog()
	fixture.Dev.BeginWarmInit()
	require.NoError(queues.SetMinLimit(port, 2, 10))
	require.NoError(queues.SetAppHyst(port, 2, 8))
	require.NoError(queues.SetRedLimitPct(port, 2, 50))
	require.NoError(queues.SetAppPoolUsage(port, 2, 3, tmdef.Baf80Percent, true))
	require.NoError(queues.SetTailDrop(port, 2, false))
	require.NoError(queues.SetNegMirrorDest(port, 2, tm.NegMirrorDest{Port: mirror, Queue: 5}))
	assert.Empty(fixture.Chip.Writes(""))
	require.NoError(queues.SetMinLimit(port, 2, 11))
	assert.Len(fixture.Chip.Writes("q.min_limit"), 1)
	require.NoError(fixture.Dev.EndWarmInit())
}

func TestQueueCounters(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino)
	queues := fixture.Dev.Queues()
	port := tmdef.MakeDevPort(1, 5)
	fixture.AddPort(port, tmdef.Speed25G)
	require.NoError(queues.Carve(port, 2, nil))
	st, e := queues.Info(port, 1)
	require.NoError(e)

	addr := func(c string) tmhw.Addr {
		return tmhw.Addr{Block: "tof.cnt." + c, Pipe: 1, Index: st.Physical}
	}
	fixture.Chip.Poke(addr("q_drop"), 1<<32-1)
	cnt, e := queues.DropCount(port, 1)
	require.NoError(e)
	assert.EqualValues(1<<32-1, cnt)
	fixture.Chip.Poke(addr("q_drop"), 1<<40|3)
	cnt, e = queues.DropCount(port, 1)
	require.NoError(e)
	assert.EqualValues(3, cnt&0xFF)

	fixture.Chip.Poke(addr("q_usage"), 40)
	fixture.Chip.Poke(addr("q_wm"), 90)
	usage, watermark, e := queues.Usage(port, 1)
	require.NoError(e)
	assert.EqualValues(40, usage)
	assert.EqualValues(90, watermark)

	require.NoError(queues.ClearDropCount(port, 1))
	cnt, e = queues.DropCount(port, 1)
	require.NoError(e)
	assert.EqualValues(0, cnt)
}
