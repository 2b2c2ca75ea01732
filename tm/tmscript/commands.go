package tmscript

import (
	"github.com/kballard/go-shellquote"

	"github.com/usnistgov/tofino-tm/tm"
	"github.com/usnistgov/tofino-tm/tm/tmdef"
)

type limitResult struct {
	Value uint32 `json:"value"`
	HW    uint32 `json:"hw"`
}

type dropResult struct {
	Drop uint64 `json:"drop"`
}

func init() {
	defineVariadic("echo", 0, "WORD...", func(in *Interpreter, a *argList) (any, error) {
		return shellquote.Join(a.tokens...), nil
	})
	defineCommand("sync", 0, "", func(in *Interpreter, a *argList) (any, error) {
		list := in.dev.OutOfSync()
		if list == nil {
			list = []tm.Resource{}
		}
		return list, nil
	})

	defineCommand("warm begin", 0, "", func(in *Interpreter, a *argList) (any, error) {
		in.dev.BeginWarmInit()
		return nil, nil
	})
	defineCommand("warm restore", 0, "", func(in *Interpreter, a *argList) (any, error) {
		return nil, in.dev.RestoreFromHardware()
	})
	defineCommand("warm end", 0, "", func(in *Interpreter, a *argList) (any, error) {
		return nil, in.dev.EndWarmInit()
	})

	definePortCommands()
	definePpgCommands()
	defineQueueCommands()
	definePoolCommands()
	definePipeCommands()
}

func definePortCommands() {
	defineCommand("port add", 2, "PORT SPEED", func(in *Interpreter, a *argList) (any, error) {
		id, speed := a.port(0), a.speed(1)
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.Ports().Add(id, speed)
	})
	defineCommand("port delete", 1, "PORT", func(in *Interpreter, a *argList) (any, error) {
		id := a.port(0)
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.Ports().Delete(id)
	})
	defineCommand("port speed", 2, "PORT SPEED", func(in *Interpreter, a *argList) (any, error) {
		id, speed := a.port(0), a.speed(1)
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.Ports().UpdateSpeed(id, speed)
	})
	defineCommand("port admin", 2, "PORT up|down", func(in *Interpreter, a *argList) (any, error) {
		id, up := a.port(0), a.boolean(1)
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.Ports().UpdateAdminState(id, up)
	})
	defineCommand("port link", 2, "PORT up|down", func(in *Interpreter, a *argList) (any, error) {
		id, up := a.port(0), a.boolean(1)
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.Ports().UpdateStatus(id, up)
	})
	defineCommand("port list", 0, "", func(in *Interpreter, a *argList) (any, error) {
		list := []string{}
		for _, id := range in.dev.Ports().List() {
			list = append(list, id.String())
		}
		return list, nil
	})
	defineCommand("port info", 1, "PORT", func(in *Interpreter, a *argList) (any, error) {
		id := a.port(0)
		if a.e != nil {
			return nil, nil
		}
		return in.dev.Ports().Info(id)
	})
	defineCommand("port cpu", 1, "PORT", func(in *Interpreter, a *argList) (any, error) {
		id := a.port(0)
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.Ports().SetCpuPort(id)
	})
	defineCommand("port drops", 1, "PORT", func(in *Interpreter, a *argList) (any, error) {
		id := a.port(0)
		if a.e != nil {
			return nil, nil
		}
		wac, qac, e := in.dev.Ports().DropCounts(id)
		return map[string]uint64{"wac": wac, "qac": qac}, e
	})
	defineCommand("port clear-drops", 1, "PORT", func(in *Interpreter, a *argList) (any, error) {
		id := a.port(0)
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.Ports().ClearDropCounts(id)
	})
	defineCommand("port cut-through", 2, "PORT on|off", func(in *Interpreter, a *argList) (any, error) {
		id, enable := a.port(0), a.boolean(1)
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.Ports().SetCutThrough(id, enable)
	})
	defineCommand("port flow-control", 3, "PORT TX RX", func(in *Interpreter, a *argList) (any, error) {
		id, tx, rx := a.port(0), a.flowControl(1), a.flowControl(2)
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.Ports().SetFlowControl(id, tx, rx)
	})
	defineCommand("port pfc-cos-map", 1+tmdef.NIcos, "PORT ICOS0..ICOS7", func(in *Interpreter, a *argList) (any, error) {
		id := a.port(0)
		var m [tmdef.NIcos]int
		copy(m[:], a.ints(1))
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.Ports().SetPfcCosMap(id, m)
	})

	for name, setter := range map[string]func(ps tm.Ports, id tmdef.DevPort, v uint32) error{
		"wac-limit":   tm.Ports.SetWacDropLimit,
		"wac-hyst":    tm.Ports.SetWacHyst,
		"qac-limit":   tm.Ports.SetQacDropLimit,
		"qac-hyst":    tm.Ports.SetQacHyst,
		"skid-limit":  tm.Ports.SetSkidLimit,
		"uc-ct-limit": tm.Ports.SetUcCutThroughLimit,
	} {
		setter := setter
		defineCommand("port "+name, 2, "PORT CELLS", func(in *Interpreter, a *argList) (any, error) {
			id, v := a.port(0), a.u32(1)
			if a.e != nil {
				return nil, nil
			}
			return nil, setter(in.dev.Ports(), id, v)
		})
	}
	for name, getter := range map[string]func(ps tm.Ports, id tmdef.DevPort, hw *uint32) (uint32, error){
		"get-wac-limit": tm.Ports.WacDropLimit,
		"get-qac-limit": tm.Ports.QacDropLimit,
		"get-wac-hyst":  tm.Ports.WacHyst,
		"get-qac-hyst":  tm.Ports.QacHyst,
	} {
		getter := getter
		defineCommand("port "+name, 1, "PORT", func(in *Interpreter, a *argList) (any, error) {
			var r limitResult
			var e error
			id := a.port(0)
			if a.e != nil {
				return nil, nil
			}
			r.Value, e = getter(in.dev.Ports(), id, &r.HW)
			return r, e
		})
	}
}

func definePpgCommands() {
	defineVariadic("ppg alloc", 1, "PORT [SAVED-HANDLE]", func(in *Interpreter, a *argList) (any, error) {
		id, saved := a.port(0), tmdef.InvalidPpg
		if len(a.tokens) > 1 {
			saved = a.ppg(1)
		}
		if a.e != nil {
			return nil, nil
		}
		h, e := in.dev.Ppgs().Alloc(id, saved)
		if e != nil && h == tmdef.InvalidPpg {
			return nil, e
		}
		return h, e
	})
	defineCommand("ppg free", 1, "PPG", func(in *Interpreter, a *argList) (any, error) {
		h := a.ppg(0)
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.Ppgs().Free(h)
	})
	defineCommand("ppg default", 1, "PORT", func(in *Interpreter, a *argList) (any, error) {
		id := a.port(0)
		if a.e != nil {
			return nil, nil
		}
		return in.dev.Ppgs().DefaultPpg(id)
	})
	defineCommand("ppg list", 1, "PORT", func(in *Interpreter, a *argList) (any, error) {
		id := a.port(0)
		if a.e != nil {
			return nil, nil
		}
		list, e := in.dev.Ppgs().List(id)
		names := []string{}
		for _, h := range list {
			names = append(names, h.String())
		}
		return names, e
	})
	defineCommand("ppg info", 1, "PPG", func(in *Interpreter, a *argList) (any, error) {
		h := a.ppg(0)
		if a.e != nil {
			return nil, nil
		}
		return in.dev.Ppgs().Info(h)
	})
	defineCommand("ppg icos", 2, "PPG MASK", func(in *Interpreter, a *argList) (any, error) {
		h, mask := a.ppg(0), a.icosMask(1)
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.Ppgs().SetIcosMask(h, mask)
	})
	defineCommand("ppg pool", 4, "PPG POOL BAF dynamic|static", func(in *Interpreter, a *argList) (any, error) {
		h, pool, baf := a.ppg(0), a.pool(1), a.baf(2)
		dynamic := a.str(3) == "dynamic"
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.Ppgs().SetAppPoolUsage(h, pool, baf, dynamic)
	})
	defineCommand("ppg usage", 1, "PPG", func(in *Interpreter, a *argList) (any, error) {
		h := a.ppg(0)
		if a.e != nil {
			return nil, nil
		}
		return in.dev.Ppgs().Usage(h)
	})
	defineCommand("ppg drops", 1, "PPG", func(in *Interpreter, a *argList) (any, error) {
		h := a.ppg(0)
		if a.e != nil {
			return nil, nil
		}
		cnt, e := in.dev.Ppgs().DropCount(h)
		return dropResult{cnt}, e
	})

	for name, setter := range map[string]func(pp tm.Ppgs, h tmdef.PpgHandle, v uint32) error{
		"min":  tm.Ppgs.SetMinLimit,
		"skid": tm.Ppgs.SetSkidLimit,
		"app":  tm.Ppgs.SetAppLimit,
		"hyst": tm.Ppgs.SetHyst,
	} {
		setter := setter
		defineCommand("ppg "+name, 2, "PPG CELLS", func(in *Interpreter, a *argList) (any, error) {
			h, v := a.ppg(0), a.u32(1)
			if a.e != nil {
				return nil, nil
			}
			return nil, setter(in.dev.Ppgs(), h, v)
		})
	}
	for name, setter := range map[string]func(pp tm.Ppgs, h tmdef.PpgHandle, enable bool) error{
		"pfc":          tm.Ppgs.SetPfc,
		"fast-recover": tm.Ppgs.SetFastRecover,
	} {
		setter := setter
		defineCommand("ppg "+name, 2, "PPG on|off", func(in *Interpreter, a *argList) (any, error) {
			h, enable := a.ppg(0), a.boolean(1)
			if a.e != nil {
				return nil, nil
			}
			return nil, setter(in.dev.Ppgs(), h, enable)
		})
	}
}

func defineQueueCommands() {
	defineVariadic("queue carve", 2, "PORT COUNT [MAPPING...]", func(in *Interpreter, a *argList) (any, error) {
		id, count, mapping := a.port(0), a.integer(1), a.ints(2)
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.Queues().Carve(id, count, mapping)
	})
	defineCommand("queue profile", 1, "PORT", func(in *Interpreter, a *argList) (any, error) {
		id := a.port(0)
		if a.e != nil {
			return nil, nil
		}
		return in.dev.Queues().ProfileIndex(id)
	})
	defineCommand("queue base", 1, "PORT", func(in *Interpreter, a *argList) (any, error) {
		id := a.port(0)
		if a.e != nil {
			return nil, nil
		}
		return in.dev.Queues().BaseQueue(id)
	})
	defineCommand("queue info", 2, "PORT QID", func(in *Interpreter, a *argList) (any, error) {
		id, qid := a.port(0), a.integer(1)
		if a.e != nil {
			return nil, nil
		}
		return in.dev.Queues().Info(id, qid)
	})
	defineCommand("queue pool", 5, "PORT QID POOL BAF dynamic|static", func(in *Interpreter, a *argList) (any, error) {
		id, qid, pool, baf := a.port(0), a.integer(1), a.pool(2), a.baf(3)
		dynamic := a.str(4) == "dynamic"
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.Queues().SetAppPoolUsage(id, qid, pool, baf, dynamic)
	})
	defineCommand("queue neg-mirror", 4, "PORT QID DEST-PORT DEST-QUEUE", func(in *Interpreter, a *argList) (any, error) {
		id, qid := a.port(0), a.integer(1)
		dest := tm.NegMirrorDest{Port: a.port(2), Queue: a.integer(3)}
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.Queues().SetNegMirrorDest(id, qid, dest)
	})
	defineCommand("queue drops", 2, "PORT QID", func(in *Interpreter, a *argList) (any, error) {
		id, qid := a.port(0), a.integer(1)
		if a.e != nil {
			return nil, nil
		}
		cnt, e := in.dev.Queues().DropCount(id, qid)
		return dropResult{cnt}, e
	})
	defineCommand("queue usage", 2, "PORT QID", func(in *Interpreter, a *argList) (any, error) {
		id, qid := a.port(0), a.integer(1)
		if a.e != nil {
			return nil, nil
		}
		usage, wm, e := in.dev.Queues().Usage(id, qid)
		return map[string]uint64{"usage": usage, "watermark": wm}, e
	})

	for name, setter := range map[string]func(qs tm.Queues, id tmdef.DevPort, qid int, v uint32) error{
		"min":         tm.Queues.SetMinLimit,
		"app":         tm.Queues.SetAppLimit,
		"app-hyst":    tm.Queues.SetAppHyst,
		"red-pct":     tm.Queues.SetRedLimitPct,
		"red-hyst":    tm.Queues.SetRedHyst,
		"yellow-pct":  tm.Queues.SetYellowLimitPct,
		"yellow-hyst": tm.Queues.SetYellowHyst,
	} {
		setter := setter
		defineCommand("queue "+name, 3, "PORT QID VALUE", func(in *Interpreter, a *argList) (any, error) {
			id, qid, v := a.port(0), a.integer(1), a.u32(2)
			if a.e != nil {
				return nil, nil
			}
			return nil, setter(in.dev.Queues(), id, qid, v)
		})
	}
	for name, setter := range map[string]func(qs tm.Queues, id tmdef.DevPort, qid int, enable bool) error{
		"tail-drop":  tm.Queues.SetTailDrop,
		"color-drop": tm.Queues.SetColorDrop,
		"visible":    tm.Queues.SetVisible,
	} {
		setter := setter
		defineCommand("queue "+name, 3, "PORT QID on|off", func(in *Interpreter, a *argList) (any, error) {
			id, qid, enable := a.port(0), a.integer(1), a.boolean(2)
			if a.e != nil {
				return nil, nil
			}
			return nil, setter(in.dev.Queues(), id, qid, enable)
		})
	}
}

func definePoolCommands() {
	defineCommand("pool limit", 4, "ig|eg POOL COLOR CELLS", func(in *Interpreter, a *argList) (any, error) {
		pools, pool, color, v := a.pools(in, 0), a.pool(1), a.color(2), a.u32(3)
		if a.e != nil {
			return nil, nil
		}
		return nil, pools.SetLimit(pool, color, v)
	})
	defineCommand("pool get-limit", 3, "ig|eg POOL COLOR", func(in *Interpreter, a *argList) (any, error) {
		pools, pool, color := a.pools(in, 0), a.pool(1), a.color(2)
		if a.e != nil {
			return nil, nil
		}
		var r limitResult
		var e error
		r.Value, e = pools.Limit(pool, color, &r.HW)
		return r, e
	})
	defineCommand("pool hyst", 4, "ig|eg POOL COLOR CELLS", func(in *Interpreter, a *argList) (any, error) {
		pools, pool, color, v := a.pools(in, 0), a.pool(1), a.color(2), a.u32(3)
		if a.e != nil {
			return nil, nil
		}
		return nil, pools.SetHyst(pool, color, v)
	})
	defineCommand("pool color-drop", 3, "ig|eg POOL on|off", func(in *Interpreter, a *argList) (any, error) {
		pools, pool, enable := a.pools(in, 0), a.pool(1), a.boolean(2)
		if a.e != nil {
			return nil, nil
		}
		return nil, pools.SetColorDrop(pool, enable)
	})
	defineCommand("pool dod-limit", 2, "ig|eg CELLS", func(in *Interpreter, a *argList) (any, error) {
		pools, v := a.pools(in, 0), a.u32(1)
		if a.e != nil {
			return nil, nil
		}
		return nil, pools.SetDodLimit(v)
	})
	defineCommand("pool pfc-limit", 3, "POOL ICOS CELLS", func(in *Interpreter, a *argList) (any, error) {
		pool, icos, v := a.pool(0), a.integer(1), a.u32(2)
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.IngressPools().SetPfcLimit(pool, icos, v)
	})
	for name, setter := range map[string]func(p tm.IngressPools, v uint32) error{
		"skid-limit":     tm.IngressPools.SetSkidLimit,
		"skid-hyst":      tm.IngressPools.SetSkidHyst,
		"glb-cell-limit": tm.IngressPools.SetGlbCellLimit,
	} {
		setter := setter
		defineCommand("pool "+name, 1, "CELLS", func(in *Interpreter, a *argList) (any, error) {
			v := a.u32(0)
			if a.e != nil {
				return nil, nil
			}
			return nil, setter(in.dev.IngressPools(), v)
		})
	}
	defineCommand("pool glb-cell-enable", 1, "on|off", func(in *Interpreter, a *argList) (any, error) {
		enable := a.boolean(0)
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.IngressPools().SetGlbCellLimitEnabled(enable)
	})
}

func definePipeCommands() {
	defineCommand("pipe limit", 2, "PIPE CELLS", func(in *Interpreter, a *argList) (any, error) {
		pipe, v := a.integer(0), a.u32(1)
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.Pipes().SetLimit(pipe, v)
	})
	defineCommand("pipe hyst", 2, "PIPE CELLS", func(in *Interpreter, a *argList) (any, error) {
		pipe, v := a.integer(0), a.u32(1)
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.Pipes().SetHyst(pipe, v)
	})
	defineCommand("pipe counters", 1, "PIPE", func(in *Interpreter, a *argList) (any, error) {
		pipe := a.integer(0)
		if a.e != nil {
			return nil, nil
		}
		return in.dev.Pipes().Counters(pipe)
	})
	defineCommand("pipe clear-counters", 1, "PIPE", func(in *Interpreter, a *argList) (any, error) {
		pipe := a.integer(0)
		if a.e != nil {
			return nil, nil
		}
		return nil, in.dev.Pipes().ClearCounters(pipe)
	})
}
