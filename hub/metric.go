package hub

import (
	"sync/atomic"
)

// Metrics contains atomic counters for a hub connection.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// CmdSendCount indicates the number of commands written to the wire.
	CmdSendCount atomic.Uint64
	// RespRecvCount indicates the number of well-formed response frames received.
	RespRecvCount atomic.Uint64
	// TimeoutCount indicates the number of exchanges that exceeded their budget.
	TimeoutCount atomic.Uint64
	// MalformedCount indicates the number of responses that failed to decode.
	MalformedCount atomic.Uint64
	// StatusFailCount indicates the number of non-zero status replies.
	StatusFailCount atomic.Uint64

	// RescanCount indicates the number of completed discovery runs.
	RescanCount atomic.Uint64
	// DeviceGauge indicates the number of currently registered devices.
	DeviceGauge atomic.Int64

	// FlushCount indicates the number of queued updates written by the flusher.
	FlushCount atomic.Uint64
	// CoalesceCount indicates the number of queued updates superseded before flush.
	CoalesceCount atomic.Uint64
}

func (m *Metrics) incCmdSendCount() {
	m.CmdSendCount.Add(1)
}

func (m *Metrics) incRespRecvCount() {
	m.RespRecvCount.Add(1)
}

func (m *Metrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *Metrics) incMalformedCount() {
	m.MalformedCount.Add(1)
}

func (m *Metrics) incStatusFailCount() {
	m.StatusFailCount.Add(1)
}

func (m *Metrics) incRescanCount() {
	m.RescanCount.Add(1)
}

func (m *Metrics) setDeviceGauge(n int) {
	m.DeviceGauge.Store(int64(n))
}

func (m *Metrics) incFlushCount() {
	m.FlushCount.Add(1)
}

func (m *Metrics) incCoalesceCount() {
	m.CoalesceCount.Add(1)
}
