package tmscript_test

import (
	"encoding/json"
	"testing"

	"github.com/usnistgov/tofino-tm/tm/tmdef"
	"github.com/usnistgov/tofino-tm/tm/tmhw"
	"github.com/usnistgov/tofino-tm/tm/tmscript"
)

func TestPpgScript(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino2)

	require.NoError(fixture.Run(`
# PPG on a 100G port
port add 0/4 100G
ppg alloc 0/4 as h
ppg min $h 40
ppg pool $h 2 disable dynamic
ppg info $h
`))
	h, ok := fixture.Interp.Var("h")
	require.True(ok)
	handle, e := tmdef.ParsePpgHandle(h)
	require.NoError(e)
	assert.Equal(tmdef.MakeDevPort(0, 4), handle.DevPort())

	lines := fixture.Lines()
	require.Len(lines, 2)
	assert.Equal(h, lines[0])
	var info struct {
		MinLimit uint32 `json:"minLimit"`
		AppPool  int    `json:"appPool"`
		Dynamic  bool   `json:"dynamic"`
	}
	require.NoError(json.Unmarshal([]byte(lines[1]), &info))
	assert.EqualValues(40, info.MinLimit)
	assert.Equal(2, info.AppPool)
	assert.True(info.Dynamic)
	assert.NotEmpty(fixture.Chip.Writes("ppg.min_limit"))

	require.NoError(fixture.Run("ppg free $h\nppg list 0/4"))
	assert.Equal([]string{"[]"}, fixture.Lines())
}

func TestQueueScript(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino2)

	require.NoError(fixture.Run(`
port add 0/0 100G
port add 0/8 100G
queue carve 0/0 8
queue carve 0/8 8
queue profile 0/0
queue profile 0/8
queue min 0/8 3 200
queue red-pct 0/8 3 50
expect invalid-argument queue red-pct 0/8 3 101
expect invalid-argument queue min 0/8 8 1
`))
	lines := fixture.Lines()
	require.Len(lines, 2)
	assert.Equal(lines[0], lines[1])

	v, e := fixture.Dev.Queues().MinLimit(tmdef.MakeDevPort(0, 8), 3, nil)
	assert.NoError(e)
	assert.EqualValues(200, v)
	pct, e := fixture.Dev.Queues().RedLimitPct(tmdef.MakeDevPort(0, 8), 3, nil)
	assert.NoError(e)
	assert.EqualValues(50, pct)
}

func TestPoolPipeScript(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino)

	require.NoError(fixture.Run(`
pool limit eg 1 red 1000
pool hyst ig 0 green 32
pool skid-limit 500
expect not-supported pool glb-cell-limit 100
pipe limit 1 8000
pool get-limit eg 1 red
`))
	lines := fixture.Lines()
	require.Len(lines, 1)
	assert.JSONEq(`{"value":1000,"hw":1000}`, lines[0])

	limit, e := fixture.Dev.Pipes().Limit(1, nil)
	assert.NoError(e)
	assert.EqualValues(8000, limit)
}

func TestPortScript(t *testing.T) {
	assert, require := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino2)
	fixture.Chip.Poke(tmhw.Addr{Block: "tof2.cnt.wac_drop", Pipe: 1, Index: 2}, 7)

	require.NoError(fixture.Run(`
port add 1/2 25G
expect already-exists port add 1/2 25G
port qac-limit 1/2 300
port drops 1/2
port list
port delete 1/2
port list
sync
`))
	assert.Equal([]string{
		`{"qac":0,"wac":7}`,
		`["1/2"]`,
		`[]`,
		`[]`,
	}, fixture.Lines())
}

func TestErrors(t *testing.T) {
	assert, _ := makeAR(t)
	fixture := NewFixture(t, tmdef.Tofino)

	e := fixture.Run("echo 'a b' c\nfrobnicate 1")
	assert.ErrorIs(e, tmscript.ErrUnknownCommand)
	assert.Contains(e.Error(), "line 2")
	assert.Equal([]string{"'a b' c"}, fixture.Lines())

	assert.ErrorIs(fixture.Interp.Exec("port add 0/1"), tmdef.ErrInvalidArg)
	assert.ErrorIs(fixture.Interp.Exec("port add 0/1 100G extra"), tmdef.ErrInvalidArg)
	assert.ErrorIs(fixture.Interp.Exec("port add 0/1 fast"), tmdef.ErrInvalidArg)
	assert.ErrorIs(fixture.Interp.Exec("ppg min $nope 1"), tmdef.ErrInvalidArg)
	assert.ErrorIs(fixture.Interp.Exec("echo 'unterminated"), tmdef.ErrInvalidArg)
	assert.ErrorIs(fixture.Interp.Exec("expect again echo"), tmdef.ErrUnexpected)
	assert.ErrorIs(fixture.Interp.Exec("expect busy echo"), tmdef.ErrInvalidArg)
	assert.NoError(fixture.Interp.Exec("expect not-found port delete 0/1"))
	assert.NoError(fixture.Interp.Exec("expect object-not-found port wac-limit 0/1 100"))
	assert.NoError(fixture.Interp.Exec("expect INVALID port delete x/y"))
	assert.NoError(fixture.Interp.Exec("expect 4 port delete x/y"))
	assert.Empty(fixture.Dev.Ports().List())

	assert.Contains(tmscript.Usage(), "port add PORT SPEED")
}
