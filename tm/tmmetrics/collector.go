// Package tmmetrics exports traffic manager counters and thresholds as Prometheus metrics.
package tmmetrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/usnistgov/tofino-tm/core/logging"
	"github.com/usnistgov/tofino-tm/tm"
	"github.com/usnistgov/tofino-tm/tm/tmdef"
)

var logger = logging.New("TmMetrics")

const namespace = "tm"

type metricDef struct {
	subsystem string
	name      string
	help      string
	labels    []string
}

var metricDefs = map[string]metricDef{
	"port_wac_drop":       {"port", "wac_drop_total", "Packets dropped by ingress admission control of a port.", []string{"port"}},
	"port_qac_drop":       {"port", "qac_drop_total", "Packets dropped by egress admission control of a port.", []string{"port"}},
	"port_wac_limit":      {"port", "wac_limit_cells", "Ingress drop limit of a port.", []string{"port"}},
	"port_qac_limit":      {"port", "qac_limit_cells", "Egress drop limit of a port.", []string{"port"}},
	"port_qac_rx":         {"port", "qac_rx", "Whether egress admission control accepts traffic to a port.", []string{"port"}},
	"ppg_drop":            {"ppg", "drop_total", "Packets dropped on a PPG.", []string{"port", "ppg"}},
	"ppg_min_limit":       {"ppg", "min_limit_cells", "Guaranteed minimum of a PPG.", []string{"port", "ppg"}},
	"ppg_app_limit":       {"ppg", "app_limit_cells", "Shared pool limit of a PPG.", []string{"port", "ppg"}},
	"queue_drop":          {"queue", "drop_total", "Packets dropped on a queue.", []string{"port", "queue"}},
	"queue_usage":         {"queue", "usage_cells", "Current buffer usage of a queue.", []string{"port", "queue"}},
	"queue_watermark":     {"queue", "watermark_cells", "Peak buffer usage of a queue.", []string{"port", "queue"}},
	"queue_min_limit":     {"queue", "min_limit_cells", "Guaranteed minimum of a queue.", []string{"port", "queue"}},
	"pipe_wac_drop":       {"pipe", "wac_drop_total", "Packets dropped by ingress admission control of a pipe.", []string{"pipe"}},
	"pipe_qac_drop":       {"pipe", "qac_drop_total", "Packets dropped by egress admission control of a pipe.", []string{"pipe"}},
	"pipe_pre_fifo_drop":  {"pipe", "pre_fifo_drop_total", "Packets dropped in a pre-scheduler FIFO.", []string{"pipe", "fifo"}},
	"pipe_limit":          {"pipe", "limit_cells", "Egress buffer limit of a pipe.", []string{"pipe"}},
	"pool_limit":          {"pool", "limit_cells", "Color limit of an application pool.", []string{"dir", "pool", "color"}},
	"out_of_sync":         {"", "out_of_sync_resources", "Resources whose last hardware write failed.", nil},
	"hyst_profiles_inuse": {"pipe", "hyst_profiles_inuse", "Hysteresis profiles in use in a pipe.", []string{"pipe"}},
}

// Collector is a prometheus.Collector of one traffic manager device.
type Collector struct {
	dev     *tm.Device
	logger  *zap.Logger
	entries map[string]*prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// New creates a Collector.
// Every metric carries a constant "dev" label with the device ID.
func New(dev *tm.Device) *Collector {
	c := &Collector{
		dev:     dev,
		logger:  logger.With(dev.ID().ZapField("dev")),
		entries: map[string]*prometheus.Desc{},
	}
	constLabels := prometheus.Labels{"dev": strconv.Itoa(int(dev.ID()))}
	for key, def := range metricDefs {
		c.entries[key] = prometheus.NewDesc(prometheus.BuildFQName(namespace, def.subsystem, def.name), def.help, def.labels, constLabels)
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.entries {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
// A counter that cannot be read is skipped and logged.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	emit := func(key string, vt prometheus.ValueType, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(c.entries[key], vt, v, labels...)
	}

	for pipe := 0; pipe < c.dev.Config().Pipes; pipe++ {
		c.collectPipe(pipe, emit)
	}
	c.collectPools(emit)
	for _, id := range c.dev.Ports().List() {
		c.collectPort(id, emit)
	}
	emit("out_of_sync", prometheus.GaugeValue, float64(len(c.dev.OutOfSync())))
}

type emitFunc func(key string, vt prometheus.ValueType, v float64, labels ...string)

func (c *Collector) collectPipe(pipe int, emit emitFunc) {
	pipes := c.dev.Pipes()
	pipeL := strconv.Itoa(pipe)
	if cnt, e := pipes.Counters(pipe); e != nil {
		c.logger.Debug("pipe counters unavailable", zap.Int("pipe", pipe), zap.Error(e))
	} else {
		emit("pipe_wac_drop", prometheus.CounterValue, float64(cnt.WacDrop), pipeL)
		emit("pipe_qac_drop", prometheus.CounterValue, float64(cnt.QacDrop), pipeL)
		for fifo, v := range cnt.PreFifoDrop {
			emit("pipe_pre_fifo_drop", prometheus.CounterValue, float64(v), pipeL, strconv.Itoa(fifo))
		}
	}
	if limit, e := pipes.Limit(pipe, nil); e == nil {
		emit("pipe_limit", prometheus.GaugeValue, float64(limit), pipeL)
	}
	if n, e := pipes.HystProfilesInUse(pipe); e == nil {
		emit("hyst_profiles_inuse", prometheus.GaugeValue, float64(n), pipeL)
	}
}

func (c *Collector) collectPools(emit emitFunc) {
	for _, pools := range []tm.Pools{c.dev.IngressPools().Pools, c.dev.EgressPools()} {
		dirL := pools.Dir().String()
		for pool := tmdef.PoolID(0); pool < tmdef.NAppPools; pool++ {
			for color := tmdef.Green; color <= tmdef.Red; color++ {
				if limit, e := pools.Limit(pool, color, nil); e == nil {
					emit("pool_limit", prometheus.GaugeValue, float64(limit), dirL, strconv.Itoa(int(pool)), color.String())
				}
			}
		}
	}
}

func (c *Collector) collectPort(id tmdef.DevPort, emit emitFunc) {
	ports, ppgs, queues := c.dev.Ports(), c.dev.Ppgs(), c.dev.Queues()
	portL := id.String()

	if wac, qac, e := ports.DropCounts(id); e != nil {
		c.logger.Debug("port counters unavailable", id.ZapField("port"), zap.Error(e))
	} else {
		emit("port_wac_drop", prometheus.CounterValue, float64(wac), portL)
		emit("port_qac_drop", prometheus.CounterValue, float64(qac), portL)
	}
	if v, e := ports.WacDropLimit(id, nil); e == nil {
		emit("port_wac_limit", prometheus.GaugeValue, float64(v), portL)
	}
	if v, e := ports.QacDropLimit(id, nil); e == nil {
		emit("port_qac_limit", prometheus.GaugeValue, float64(v), portL)
	}
	if on, e := ports.QacRx(id); e == nil {
		emit("port_qac_rx", prometheus.GaugeValue, b2f(on), portL)
	}

	if list, e := ppgs.List(id); e == nil {
		if def, e := ppgs.DefaultPpg(id); e == nil {
			list = append(list, def)
		}
		for _, h := range list {
			ppgL := strconv.Itoa(h.Ppg())
			if cnt, e := ppgs.DropCount(h); e == nil {
				emit("ppg_drop", prometheus.CounterValue, float64(cnt), portL, ppgL)
			}
			if st, e := ppgs.Info(h); e == nil {
				emit("ppg_min_limit", prometheus.GaugeValue, float64(st.MinLimit), portL, ppgL)
				emit("ppg_app_limit", prometheus.GaugeValue, float64(st.AppLimit), portL, ppgL)
			}
		}
	}

	st, e := ports.Info(id)
	if e != nil {
		return
	}
	for qid := 0; qid < st.QueueCount; qid++ {
		qL := strconv.Itoa(qid)
		if cnt, e := queues.DropCount(id, qid); e == nil {
			emit("queue_drop", prometheus.CounterValue, float64(cnt), portL, qL)
		}
		if usage, wm, e := queues.Usage(id, qid); e == nil {
			emit("queue_usage", prometheus.GaugeValue, float64(usage), portL, qL)
			emit("queue_watermark", prometheus.GaugeValue, float64(wm), portL, qL)
		}
		if v, e := queues.MinLimit(id, qid, nil); e == nil {
			emit("queue_min_limit", prometheus.GaugeValue, float64(v), portL, qL)
		}
	}
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
