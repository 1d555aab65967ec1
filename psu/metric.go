package psu

import (
	"sync/atomic"
)

// ConnMetrics contains atomic metrics for a power supply connection.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ConnMetrics struct {
	// CmdSendCount indicates the number of fire-and-forget commands sent.
	CmdSendCount atomic.Uint64
	// QueryCount indicates the number of queries issued.
	QueryCount atomic.Uint64
	// ReplyRecvCount indicates the number of reply lines received.
	ReplyRecvCount atomic.Uint64
	// TimeoutCount indicates the number of queries that timed out.
	TimeoutCount atomic.Uint64
	// MalformedReplyCount indicates the number of replies that could not be
	// tokenized.
	MalformedReplyCount atomic.Uint64
	// ErrorDrainCount indicates the number of error-queue entries drained.
	ErrorDrainCount atomic.Uint64
}

func (m *ConnMetrics) incCmdSendCount() {
	m.CmdSendCount.Add(1)
}

func (m *ConnMetrics) incQueryCount() {
	m.QueryCount.Add(1)
}

func (m *ConnMetrics) incReplyRecvCount() {
	m.ReplyRecvCount.Add(1)
}

func (m *ConnMetrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *ConnMetrics) incMalformedReplyCount() {
	m.MalformedReplyCount.Add(1)
}

func (m *ConnMetrics) incErrorDrainCount() {
	m.ErrorDrainCount.Add(1)
}
