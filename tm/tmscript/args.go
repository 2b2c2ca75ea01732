package tmscript

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/usnistgov/tofino-tm/tm"
	"github.com/usnistgov/tofino-tm/tm/tmdef"
)

// argList parses positional command arguments.
// The first parse error is retained in e; later accessors return zero values.
type argList struct {
	tokens []string
	e      error
}

func (a *argList) fail(i int, what string, e error) {
	if a.e != nil {
		return
	}
	if e == nil {
		a.e = fmt.Errorf("%w: bad %s %q", tmdef.ErrInvalidArg, what, a.tokens[i])
	} else {
		a.e = fmt.Errorf("%w: bad %s %q: %v", tmdef.ErrInvalidArg, what, a.tokens[i], e)
	}
}

func (a *argList) str(i int) string {
	return a.tokens[i]
}

func (a *argList) integer(i int) int {
	n, e := strconv.ParseInt(a.tokens[i], 0, 32)
	if e != nil {
		a.fail(i, "number", e)
	}
	return int(n)
}

func (a *argList) u32(i int) uint32 {
	n, e := strconv.ParseUint(a.tokens[i], 0, 32)
	if e != nil {
		a.fail(i, "number", e)
	}
	return uint32(n)
}

func (a *argList) boolean(i int) bool {
	switch strings.ToLower(a.tokens[i]) {
	case "on", "up", "true", "yes", "1", "enable":
		return true
	case "off", "down", "false", "no", "0", "disable":
		return false
	}
	a.fail(i, "boolean", nil)
	return false
}

func (a *argList) port(i int) tmdef.DevPort {
	p, e := tmdef.ParseDevPort(a.tokens[i])
	if e != nil {
		a.fail(i, "port", e)
	}
	return p
}

func (a *argList) ppg(i int) tmdef.PpgHandle {
	h, e := tmdef.ParsePpgHandle(a.tokens[i])
	if e != nil {
		a.fail(i, "PPG handle", e)
	}
	return h
}

func (a *argList) speed(i int) tmdef.Speed {
	s, ok := tmdef.ParseSpeed(a.tokens[i])
	if !ok {
		a.fail(i, "speed", nil)
	}
	return s
}

func (a *argList) pools(in *Interpreter, i int) tm.Pools {
	switch strings.ToLower(a.tokens[i]) {
	case "ig", "ingress":
		return in.dev.IngressPools().Pools
	case "eg", "egress":
		return in.dev.EgressPools()
	}
	a.fail(i, "direction", nil)
	return in.dev.EgressPools()
}

func (a *argList) pool(i int) tmdef.PoolID {
	return tmdef.PoolID(a.integer(i))
}

func (a *argList) color(i int) tmdef.Color {
	c, ok := tmdef.ParseColor(strings.ToLower(a.tokens[i]))
	if !ok {
		a.fail(i, "color", nil)
	}
	return c
}

func (a *argList) baf(i int) tmdef.Baf {
	if strings.EqualFold(a.tokens[i], "disable") {
		return tmdef.BafDisable
	}
	return tmdef.Baf(a.u32(i))
}

func (a *argList) flowControl(i int) tmdef.FlowControl {
	fc, ok := tmdef.ParseFlowControl(strings.ToLower(a.tokens[i]))
	if !ok {
		a.fail(i, "flow control", nil)
	}
	return fc
}

func (a *argList) icosMask(i int) tmdef.IcosMask {
	n, e := strconv.ParseUint(a.tokens[i], 0, 8)
	if e != nil {
		a.fail(i, "iCoS mask", e)
	}
	return tmdef.IcosMask(n)
}

// ints parses all tokens starting at i.
func (a *argList) ints(i int) (list []int) {
	for j := i; j < len(a.tokens); j++ {
		list = append(list, a.integer(j))
	}
	return list
}

var statusAliases = map[string]tmdef.Status{
	"ok":           tmdef.Success,
	"no-resources": tmdef.NoSysResources,
	"exists":       tmdef.AlreadyExists,
	"invalid":      tmdef.InvalidArg,
	"hw-fail":      tmdef.HwCommFail,
	"not-found":    tmdef.ObjectNotFound,
	"again":        tmdef.Again,
	"unexpected":   tmdef.Unexpected,
}

// parseStatus parses a status name such as "invalid-argument", a short alias such as "again", or a decimal code.
func parseStatus(s string) (tmdef.Status, bool) {
	if n, e := strconv.Atoi(s); e == nil {
		return tmdef.Status(n), true
	}
	if st, ok := statusAliases[strings.ToLower(s)]; ok {
		return st, true
	}
	for st := tmdef.Success; st <= tmdef.NotSupported; st++ {
		if strings.EqualFold(strings.ReplaceAll(st.Error(), " ", "-"), s) {
			return st, true
		}
	}
	return 0, false
}
