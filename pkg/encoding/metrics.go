package encoding

import (
	"sync/atomic"
	"time"
)

// Metrics contains usage statistics of a Serializer.
type Metrics struct {
	Writes uint64 // Number of Write and Encode calls
	Reads  uint64 // Number of Read and Decode calls

	BytesWritten uint64
	BytesRead    uint64

	Faults  uint64 // Faults handed to the failure policy
	Aborted uint64 // Calls that returned an error

	WriteLatency time.Duration // Average Write latency
	ReadLatency  time.Duration // Average Read latency
}

type metrics struct {
	writes, reads           atomic.Uint64
	bytesWritten, bytesRead atomic.Uint64
	faults, aborted         atomic.Uint64
	writeNanos, readNanos   atomic.Int64
}

func (m *metrics) record(op string, bytes int64, faults int, latency time.Duration, err error) {
	switch op {
	case OpWrite:
		m.writes.Add(1)
		m.bytesWritten.Add(uint64(bytes))
		m.writeNanos.Add(int64(latency))
	case OpRead:
		m.reads.Add(1)
		m.bytesRead.Add(uint64(bytes))
		m.readNanos.Add(int64(latency))
	}
	m.faults.Add(uint64(faults))
	if err != nil {
		m.aborted.Add(1)
	}
}

func (m *metrics) snapshot() Metrics {
	out := Metrics{
		Writes:       m.writes.Load(),
		Reads:        m.reads.Load(),
		BytesWritten: m.bytesWritten.Load(),
		BytesRead:    m.bytesRead.Load(),
		Faults:       m.faults.Load(),
		Aborted:      m.aborted.Load(),
	}
	if out.Writes > 0 {
		out.WriteLatency = time.Duration(m.writeNanos.Load() / int64(out.Writes))
	}
	if out.Reads > 0 {
		out.ReadLatency = time.Duration(m.readNanos.Load() / int64(out.Reads))
	}
	return out
}
