package supervisor

import (
	"sync/atomic"
)

// Metrics contains atomic counters of one instrument link.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// BytesRecvCount indicates the number of bytes read from the channel.
	BytesRecvCount atomic.Uint64
	// BytesSendCount indicates the number of bytes written to the channel.
	BytesSendCount atomic.Uint64

	// FrameAcceptCount indicates the number of ASTM frames or HL7 messages accepted.
	FrameAcceptCount atomic.Uint64
	// FrameRejectCount indicates the number of frames, blocks or chunks rejected.
	FrameRejectCount atomic.Uint64

	// MsgOffloadCount indicates the number of messages stored by the sink.
	MsgOffloadCount atomic.Uint64
	// OffloadErrCount indicates the number of failed sink offloads.
	OffloadErrCount atomic.Uint64
	// SessionTimeoutCount indicates the number of transfers closed by timeout.
	SessionTimeoutCount atomic.Uint64

	// ConnectCount indicates the number of successful channel opens.
	ConnectCount atomic.Uint64
	// ConnRetryGauge indicates the number of consecutive failed attempts.
	ConnRetryGauge atomic.Uint32
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	BytesRecv       uint64 `json:"bytes_recv"`
	BytesSend       uint64 `json:"bytes_send"`
	FramesAccepted  uint64 `json:"frames_accepted"`
	FramesRejected  uint64 `json:"frames_rejected"`
	MsgsOffloaded   uint64 `json:"msgs_offloaded"`
	OffloadErrors   uint64 `json:"offload_errors"`
	SessionTimeouts uint64 `json:"session_timeouts"`
	Connects        uint64 `json:"connects"`
	ConnRetries     uint32 `json:"conn_retries"`
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		BytesRecv:       m.BytesRecvCount.Load(),
		BytesSend:       m.BytesSendCount.Load(),
		FramesAccepted:  m.FrameAcceptCount.Load(),
		FramesRejected:  m.FrameRejectCount.Load(),
		MsgsOffloaded:   m.MsgOffloadCount.Load(),
		OffloadErrors:   m.OffloadErrCount.Load(),
		SessionTimeouts: m.SessionTimeoutCount.Load(),
		Connects:        m.ConnectCount.Load(),
		ConnRetries:     m.ConnRetryGauge.Load(),
	}
}

func (m *Metrics) addBytesRecv(n int) {
	m.BytesRecvCount.Add(uint64(n))
}

func (m *Metrics) addBytesSend(n int) {
	m.BytesSendCount.Add(uint64(n))
}

func (m *Metrics) addFrames(accepted, rejected int) {
	m.FrameAcceptCount.Add(uint64(accepted))
	m.FrameRejectCount.Add(uint64(rejected))
}

func (m *Metrics) addMsgOffload(n int) {
	m.MsgOffloadCount.Add(uint64(n))
}

func (m *Metrics) incOffloadErrCount() {
	m.OffloadErrCount.Add(1)
}

func (m *Metrics) incSessionTimeoutCount() {
	m.SessionTimeoutCount.Add(1)
}

func (m *Metrics) incConnectCount() {
	m.ConnectCount.Add(1)
}

func (m *Metrics) incConnRetryGauge() {
	m.ConnRetryGauge.Add(1)
}

func (m *Metrics) resetConnRetryGauge() {
	m.ConnRetryGauge.Store(0)
}
