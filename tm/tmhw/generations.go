package tmhw

import (
	"github.com/usnistgov/tofino-tm/tm/tmdef"
)

type tofino struct{ *regBackend }

func (tofino) generation() {}

type tofino2 struct{ *regBackend }

func (tofino2) generation() {}

type tofino3 struct{ *regBackend }

func (tofino3) generation() {}

func counterWidths(drop, fifo, gauge uint) (w [NCounters]uint) {
	for c := Counter(0); c < NCounters; c++ {
		switch {
		case c == PipePreFifoDrop:
			w[c] = fifo
		case c.IsGauge():
			w[c] = gauge
		default:
			w[c] = drop
		}
	}
	return w
}

// Tofino has no global cell limit and no PPG fast-recover mode.
func tofinoTraits() traits {
	params, _ := tmdef.ParamsOf(tmdef.Tofino)
	unsupported := makeFieldSet(PoolGlbCellLimit, PoolGlbCellLimitEnable, PpgFastRecover)
	return traits{
		params:  params,
		prefix:  "tof",
		noWrite: unsupported,
		noRead:  unsupported,
		widths:  counterWidths(40, 32, 20),
	}
}

func tofino2Traits() traits {
	params, _ := tmdef.ParamsOf(tmdef.Tofino2)
	return traits{
		params: params,
		prefix: "tof2",
		widths: counterWidths(48, 32, 20),
	}
}

func tofino3Traits() traits {
	params, _ := tmdef.ParamsOf(tmdef.Tofino3)
	return traits{
		params: params,
		prefix: "tof3",
		widths: counterWidths(48, 36, 22),
	}
}
