package tm_test

import (
	"testing"

	"github.com/usnistgov/tofino-tm/tm"
	"github.com/usnistgov/tofino-tm/tm/tmdef"
	"github.com/usnistgov/tofino-tm/tm/tmhw"
)

func TestPortQacRx(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino2)
	ports := fixture.Dev.Ports()
	port := tmdef.MakeDevPort(0, 8)

	var changes []bool
	cancel := fixture.Dev.OnQacRxChanged(func(p tmdef.DevPort, enabled bool) {
		assert.Equal(port, p)
		changes = append(changes, enabled)
	})
	defer cancel()

	fixture.AddPort(port, tmdef.Speed100G)
	qacRx, e := ports.QacRx(port)
	require.NoError(e)
	assert.False(qacRx)
	assert.Empty(fixture.Chip.Writes("qac_rx"))

	require.NoError(ports.UpdateAdminState(port, true))
	qacRx, e = ports.QacRx(port)
	require.NoError(e)
	assert.True(qacRx)

	require.NoError(ports.UpdateStatus(port, true))
	assert.Len(fixture.Chip.Writes("qac_rx"), 1)

	require.NoError(ports.UpdateAdminState(port, false))
	qacRx, e = ports.QacRx(port)
	require.NoError(e)
	assert.False(qacRx)

	ws := fixture.Chip.Writes("qac_rx")
	require.Len(ws, 2)
	assert.EqualValues(1, ws[0].Value)
	assert.EqualValues(0, ws[1].Value)
	assert.Equal([]bool{true, false}, changes)
}

func TestPortQacRxNoMac(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino)
	ports := fixture.Dev.Ports()
	cpu, recirc := tmdef.MakeDevPort(0, 64), tmdef.MakeDevPort(1, 68)
	fixture.PortInfo.SetHasMac(cpu, false)
	fixture.PortInfo.SetRecirculation(recirc, true)

	fixture.AddPort(cpu, tmdef.Speed10G)
	fixture.AddPort(recirc, tmdef.Speed100G)
	for _, port := range []tmdef.DevPort{cpu, recirc} {
		qacRx, e := ports.QacRx(port)
		require.NoError(e)
		assert.True(qacRx, port)
	}
	assert.Len(fixture.Chip.Writes("qac_rx"), 2)

	require.NoError(ports.UpdateAdminState(recirc, true))
	assert.Len(fixture.Chip.Writes("qac_rx"), 2)

	fixture.PortInfo.SetRecirculation(recirc, false)
	require.NoError(ports.UpdateStatus(recirc, true))
	qacRx, e := ports.QacRx(recirc)
	require.NoError(e)
	assert.True(qacRx)

	require.NoError(ports.UpdateAdminState(cpu, false))
	qacRx, e = ports.QacRx(cpu)
	require.NoError(e)
	assert.False(qacRx)
	assert.Len(fixture.Chip.Writes("qac_rx"), 3)

	st, e := ports.Info(recirc)
	require.NoError(e)
	assert.False(st.Recirculation)
	assert.Equal(tm.AdminUp, st.Admin)
	assert.True(st.LinkUp)
}

func TestPortAddDelete(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino2)
	ports := fixture.Dev.Ports()
	port := tmdef.MakeDevPort(1, 16)

	var added, deleted []tmdef.DevPort
	cancelAdded := fixture.Dev.OnPortAdded(func(p tmdef.DevPort, speed tmdef.Speed) {
		assert.Equal(tmdef.Speed400G, speed)
		added = append(added, p)
	})
	defer cancelAdded()
	cancelDeleted := fixture.Dev.OnPortDeleted(func(p tmdef.DevPort) { deleted = append(deleted, p) })
	defer cancelDeleted()

	assert.ErrorIs(ports.Add(port, tmdef.SpeedNone), tmdef.ErrInvalidArg)
	assert.ErrorIs(ports.Add(tmdef.MakeDevPort(2, 0), tmdef.Speed10G), tmdef.ErrInvalidArg)
	require.NoError(ports.Add(port, tmdef.Speed400G))
	assert.ErrorIs(ports.Add(port, tmdef.Speed400G), tmdef.ErrAlreadyExists)
	assert.Equal([]tmdef.DevPort{port}, ports.List())

	st, e := ports.Info(port)
	require.NoError(e)
	assert.True(st.Added)
	assert.EqualValues(400000, st.Rate)
	assert.Equal(-1, st.Profile)

	var hw uint32
	ucCt, e := ports.UcCutThroughLimit(port, &hw)
	require.NoError(e)
	assert.EqualValues(16, ucCt)
	assert.EqualValues(16, hw)
	tx, rx, e := ports.FlowControl(port)
	require.NoError(e)
	assert.Equal(tmdef.FlowControlNone, tx)
	assert.Equal(tmdef.FlowControlNone, rx)

	ppgs := fixture.Dev.Ppgs()
	h, e := ppgs.Alloc(port, tmdef.InvalidPpg)
	require.NoError(e)
	require.NoError(ppgs.SetIcosMask(h, 0x0F))
	require.NoError(fixture.Dev.Queues().Carve(port, 8, nil))
	require.NoError(ports.SetCpuPort(port))

	fixture.Chip.ClearLog()
	require.NoError(ports.Delete(port))
	assert.Equal([]tmdef.DevPort{port}, added)
	assert.Equal([]tmdef.DevPort{port}, deleted)
	assert.Empty(ports.List())
	_, ok := ports.CpuPort()
	assert.False(ok)

	ws := fixture.Chip.Writes("port.enable")
	require.Len(ws, 1)
	assert.EqualValues(0, ws[0].Value)
	ws = fixture.Chip.Writes("q.carve")
	require.Len(ws, 1)
	assert.EqualValues(0, ws[0].Value)

	_, e = ppgs.Info(h)
	assert.ErrorIs(e, tmdef.ErrObjectNotFound)
	assert.ErrorIs(ports.Delete(port), tmdef.ErrObjectNotFound)

	count, e := fixture.Dev.Queues().ProfileUseCount(1)
	require.NoError(e)
	assert.Equal(0, count)

	require.NoError(ports.Add(port, tmdef.Speed400G))
	list, e := ppgs.List(port)
	require.NoError(e)
	assert.Empty(list)
}

func TestPortDeleteErrors(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino3)
	ports := fixture.Dev.Ports()
	port := tmdef.MakeDevPort(1, 40)
	fixture.AddPort(port, tmdef.Speed200G)
	require.NoError(fixture.Dev.Queues().Carve(port, 4, nil))

	fixture.Chip.FailWrites("q.carve", tmdef.ErrHwCommFail)
	fixture.Chip.FailWrites("port.enable", tmdef.ErrHwCommFail)
	e := ports.Delete(port)
	assert.ErrorIs(e, tmdef.ErrHwCommFail)
	assert.Empty(ports.List())
	assert.NotEmpty(fixture.Dev.OutOfSync())
	fixture.Chip.FailWrites("q.carve", nil)
	fixture.Chip.FailWrites("port.enable", nil)

	require.NoError(ports.Add(port, tmdef.Speed200G))
	st, e := ports.Info(port)
	require.NoError(e)
	assert.Equal(tmdef.InSync, st.Sync)
}

func TestPortThresholds(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino)
	ports := fixture.Dev.Ports()
	port := tmdef.MakeDevPort(0, 1)

	assert.ErrorIs(ports.SetWacDropLimit(port, 1000), tmdef.ErrObjectNotFound)
	assert.ErrorIs(ports.SetWacHyst(port, 64), tmdef.ErrObjectNotFound)
	assert.ErrorIs(ports.SetCpuPort(port), tmdef.ErrObjectNotFound)
	_, e := ports.QacDropLimit(port, nil)
	assert.ErrorIs(e, tmdef.ErrObjectNotFound)
	assert.Empty(fixture.Chip.Writes(""))
	inUse, e := fixture.Dev.Pipes().HystProfilesInUse(0)
	require.NoError(e)
	assert.Equal(0, inUse)

	fixture.AddPort(port, tmdef.Speed100G)
	require.NoError(ports.SetWacDropLimit(port, 1000))
	require.NoError(ports.SetQacDropLimit(port, 2000))
	require.NoError(ports.SetSkidLimit(port, 30))
	require.NoError(ports.SetWacHyst(port, 64))
	require.NoError(ports.SetQacHyst(port, 64))
	require.NoError(ports.SetCutThrough(port, true))
	assert.ErrorIs(ports.SetFlowControl(port, tmdef.FlowControl(9), tmdef.FlowControlNone), tmdef.ErrInvalidArg)
	require.NoError(ports.SetFlowControl(port, tmdef.FlowControlPfc, tmdef.FlowControlPause))
	assert.ErrorIs(ports.SetPfcCosMap(port, [tmdef.NIcos]int{0, 1, 2, 3, 4, 5, 6, 8}), tmdef.ErrInvalidArg)
	require.NoError(ports.SetPfcCosMap(port, [tmdef.NIcos]int{7, 6, 5, 4, 3, 2, 1, 0}))

	var hw uint32
	limit, e := ports.QacDropLimit(port, &hw)
	require.NoError(e)
	assert.EqualValues(2000, limit)
	assert.EqualValues(2000, hw)
	hyst, e := ports.QacHyst(port, &hw)
	require.NoError(e)
	assert.EqualValues(64, hyst)
	assert.EqualValues(1, hw)
	hyst, e = ports.WacHyst(port, &hw)
	require.NoError(e)
	assert.EqualValues(64, hyst)
	assert.EqualValues(1, hw)

	inUse, e = fixture.Dev.Pipes().HystProfilesInUse(0)
	require.NoError(e)
	assert.Equal(1, inUse)
	assert.Len(fixture.Chip.Writes("pipe.hyst_profile"), 1)

	cosMap, e := ports.PfcCosMap(port)
	require.NoError(e)
	assert.Equal([tmdef.NIcos]int{7, 6, 5, 4, 3, 2, 1, 0}, cosMap)
	tx, rx, e := ports.FlowControl(port)
	require.NoError(e)
	assert.Equal(tmdef.FlowControlPfc, tx)
	assert.Equal(tmdef.FlowControlPause, rx)

	fixture.Chip.ClearLog()
	fixture.Dev.BeginWarmInit()
	require.NoError(ports.SetWacDropLimit(port, 1000))
	require.NoError(ports.SetWacHyst(port, 64))
	require.NoError(ports.SetCutThrough(port, true))
	require.NoError(ports.SetFlowControl(port, tmdef.FlowControlPfc, tmdef.FlowControlPause))
	require.NoError(ports.SetPfcCosMap(port, [tmdef.NIcos]int{7, 6, 5, 4, 3, 2, 1, 0}))
	assert.Empty(fixture.Chip.Writes(""))
	require.NoError(fixture.Dev.EndWarmInit())

	require.NoError(ports.Delete(port))
	inUse, e = fixture.Dev.Pipes().HystProfilesInUse(0)
	require.NoError(e)
	assert.Equal(0, inUse)
	assert.ErrorIs(ports.SetQacHyst(port, 64), tmdef.ErrObjectNotFound)
}

func TestPortDropCounts(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino2)
	ports := fixture.Dev.Ports()
	port := tmdef.MakeDevPort(0, 5)

	_, _, e := ports.DropCounts(port)
	assert.ErrorIs(e, tmdef.ErrObjectNotFound)
	fixture.AddPort(port, tmdef.Speed25G)

	fixture.Chip.Poke(tmhw.Addr{Block: "tof2.cnt.wac_drop", Pipe: 0, Index: 5}, 11)
	fixture.Chip.Poke(tmhw.Addr{Block: "tof2.cnt.qac_drop", Pipe: 0, Index: 5}, 22)
	wac, qac, e := ports.DropCounts(port)
	require.NoError(e)
	assert.EqualValues(11, wac)
	assert.EqualValues(22, qac)

	require.NoError(ports.ClearDropCounts(port))
	wac, qac, e = ports.DropCounts(port)
	require.NoError(e)
	assert.EqualValues(0, wac)
	assert.EqualValues(0, qac)
}

func TestPortWarmInitAdd(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino2, func(cfg *tm.Config) { cfg.WarmInit = true })
	ports := fixture.Dev.Ports()
	mac, noMac := tmdef.MakeDevPort(0, 0), tmdef.MakeDevPort(0, 1)
	fixture.PortInfo.SetHasMac(noMac, false)

	fixture.AddPort(mac, tmdef.Speed100G)
	fixture.AddPort(noMac, tmdef.Speed100G)
	require.NoError(fixture.Dev.Queues().Carve(mac, 8, nil))
	assert.Empty(fixture.Chip.Writes(""))

	qacRx, e := ports.QacRx(noMac)
	require.NoError(e)
	assert.True(qacRx)
	qacRx, e = ports.QacRx(mac)
	require.NoError(e)
	assert.False(qacRx)

	require.NoError(fixture.Dev.EndWarmInit())
	assert.False(fixture.Dev.WarmInit())
}
