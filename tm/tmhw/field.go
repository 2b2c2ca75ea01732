package tmhw

import (
	"github.com/usnistgov/tofino-tm/tm/tmdef"
)

// Concern identifies the resource kind a Field or Counter belongs to.
type Concern uint8

// Concern values.
const (
	ConcernNone Concern = iota
	ConcernPool
	ConcernPpg
	ConcernPort
	ConcernQueue
	ConcernPipe
)

// Field identifies a configurable hardware attribute.
type Field uint8

// Field values.
const (
	FieldInvalid Field = iota

	PoolGreenLimit
	PoolYellowLimit
	PoolRedLimit
	PoolGreenHyst
	PoolYellowHyst
	PoolRedHyst
	PoolColorDrop
	PoolPfcLimit
	PoolDodLimit
	PoolSkidLimit
	PoolSkidHyst
	PoolGlbCellLimit
	PoolGlbCellLimitEnable

	PpgPort
	PpgMinLimit
	PpgSkidLimit
	PpgAppLimit
	PpgHystIndex
	PpgAppPool
	PpgDynamic
	PpgBaf
	PpgIcosMask
	PpgPfc
	PpgFastRecover

	PortRate
	PortWacLimit
	PortWacHystIndex
	PortQacLimit
	PortQacHystIndex
	PortSkidLimit
	PortCutThrough
	PortUcCtLimit
	PortFlowControlTx
	PortFlowControlRx
	PortPfcCosMap
	PortIcosPpg

	QueueMinLimit
	QueueAppLimit
	QueueAppHystIndex
	QueueRedLimitPct
	QueueRedHystIndex
	QueueYellowLimitPct
	QueueYellowHystIndex
	QueueAppPool
	QueueDynamic
	QueueBaf
	QueueTailDrop
	QueueColorDrop
	QueueVisible
	QueueNegMirrorDest

	PipeLimit
	PipeHyst
	PipeHystProfile

	nFields
)

var fieldNames = [nFields]string{
	PoolGreenLimit:         "green_limit",
	PoolYellowLimit:        "yellow_limit",
	PoolRedLimit:           "red_limit",
	PoolGreenHyst:          "green_hyst",
	PoolYellowHyst:         "yellow_hyst",
	PoolRedHyst:            "red_hyst",
	PoolColorDrop:          "color_drop",
	PoolPfcLimit:           "pfc_limit",
	PoolDodLimit:           "dod_limit",
	PoolSkidLimit:          "skid_limit",
	PoolSkidHyst:           "skid_hyst",
	PoolGlbCellLimit:       "glb_cell_limit",
	PoolGlbCellLimitEnable: "glb_cell_limit_en",

	PpgPort:        "port",
	PpgMinLimit:    "min_limit",
	PpgSkidLimit:   "skid_limit",
	PpgAppLimit:    "app_limit",
	PpgHystIndex:   "hyst_idx",
	PpgAppPool:     "app_pool",
	PpgDynamic:     "dynamic",
	PpgBaf:         "baf",
	PpgIcosMask:    "icos_mask",
	PpgPfc:         "pfc",
	PpgFastRecover: "fast_recover",

	PortRate:          "rate",
	PortWacLimit:      "wac_limit",
	PortWacHystIndex:  "wac_hyst_idx",
	PortQacLimit:      "qac_limit",
	PortQacHystIndex:  "qac_hyst_idx",
	PortSkidLimit:     "skid_limit",
	PortCutThrough:    "ct_enable",
	PortUcCtLimit:     "uc_ct_limit",
	PortFlowControlTx: "fc_tx",
	PortFlowControlRx: "fc_rx",
	PortPfcCosMap:     "pfc_cos_map",
	PortIcosPpg:       "icos_ppg",

	QueueMinLimit:        "min_limit",
	QueueAppLimit:        "app_limit",
	QueueAppHystIndex:    "app_hyst_idx",
	QueueRedLimitPct:     "red_limit_pct",
	QueueRedHystIndex:    "red_hyst_idx",
	QueueYellowLimitPct:  "yellow_limit_pct",
	QueueYellowHystIndex: "yellow_hyst_idx",
	QueueAppPool:         "app_pool",
	QueueDynamic:         "dynamic",
	QueueBaf:             "baf",
	QueueTailDrop:        "tail_drop",
	QueueColorDrop:       "color_drop",
	QueueVisible:         "visible",
	QueueNegMirrorDest:   "neg_mirror_dest",

	PipeLimit:       "limit",
	PipeHyst:        "hyst",
	PipeHystProfile: "hyst_profile",
}

func (f Field) String() string {
	if f > FieldInvalid && f < nFields {
		return fieldNames[f]
	}
	return "invalid"
}

// Concern returns the resource kind of the field.
func (f Field) Concern() Concern {
	switch {
	case f >= PoolGreenLimit && f <= PoolGlbCellLimitEnable:
		return ConcernPool
	case f >= PpgPort && f <= PpgFastRecover:
		return ConcernPpg
	case f >= PortRate && f <= PortIcosPpg:
		return ConcernPort
	case f >= QueueMinLimit && f <= QueueNegMirrorDest:
		return ConcernQueue
	case f >= PipeLimit && f <= PipeHystProfile:
		return ConcernPipe
	}
	return ConcernNone
}

// PoolLimitField returns the shared pool limit field of a color.
func PoolLimitField(c tmdef.Color) Field {
	return PoolGreenLimit + Field(c)
}

// PoolHystField returns the shared pool hysteresis field of a color.
func PoolHystField(c tmdef.Color) Field {
	return PoolGreenHyst + Field(c)
}

// Counter identifies a hardware counter or usage gauge.
type Counter uint8

// Counter values.
const (
	PortWacDrop Counter = iota
	PortQacDrop
	PpgDrop
	PpgGminUsage
	PpgSharedUsage
	PpgSkidUsage
	PpgWatermark
	QueueDrop
	QueueUsage
	QueueWatermark
	PipeWacDrop
	PipeQacDrop
	PipePreFifoDrop

	NCounters
)

var counterNames = [NCounters]string{
	PortWacDrop:     "wac_drop",
	PortQacDrop:     "qac_drop",
	PpgDrop:         "ppg_drop",
	PpgGminUsage:    "gmin_usage",
	PpgSharedUsage:  "shared_usage",
	PpgSkidUsage:    "skid_usage",
	PpgWatermark:    "ppg_wm",
	QueueDrop:       "q_drop",
	QueueUsage:      "q_usage",
	QueueWatermark:  "q_wm",
	PipeWacDrop:     "pipe_wac_drop",
	PipeQacDrop:     "pipe_qac_drop",
	PipePreFifoDrop: "pre_fifo_drop",
}

func (c Counter) String() string {
	if c < NCounters {
		return counterNames[c]
	}
	return "invalid"
}

// IsGauge determines whether the counter is an instantaneous level rather than an accumulating count.
func (c Counter) IsGauge() bool {
	switch c {
	case PpgGminUsage, PpgSharedUsage, PpgSkidUsage, PpgWatermark, QueueUsage, QueueWatermark:
		return true
	}
	return false
}

// Concern returns the resource kind of the counter.
func (c Counter) Concern() Concern {
	switch {
	case c <= PortQacDrop:
		return ConcernPort
	case c <= PpgWatermark:
		return ConcernPpg
	case c <= QueueWatermark:
		return ConcernQueue
	case c < NCounters:
		return ConcernPipe
	}
	return ConcernNone
}
