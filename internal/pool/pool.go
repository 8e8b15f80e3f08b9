// Package pool provides reusable byte buffers for the hot paths of the
// probe exchange, keeping per-datagram allocations off the GC.
package pool

import "sync"

const (
	// RecvBufferSize is the receive buffer size for the probe loop and
	// the proxy relay. Sized to the largest possible UDP payload so an
	// oversized noise datagram is read (and discarded) whole.
	RecvBufferSize = 65535

	// PacketBufferSize fits any framed outbound probe (MTU-sized).
	PacketBufferSize = 1500
)

var (
	recvPool = sync.Pool{
		New: func() interface{} {
			buf := make([]byte, RecvBufferSize)
			return &buf
		},
	}

	packetPool = sync.Pool{
		New: func() interface{} {
			buf := make([]byte, PacketBufferSize)
			return &buf
		},
	}
)

// GetRecvBuffer returns a RecvBufferSize buffer. Callers must return it
// with PutRecvBuffer.
func GetRecvBuffer() *[]byte {
	return recvPool.Get().(*[]byte)
}

// PutRecvBuffer returns a receive buffer to the pool.
func PutRecvBuffer(buf *[]byte) {
	if buf == nil {
		return
	}
	*buf = (*buf)[:cap(*buf)]
	recvPool.Put(buf)
}

// GetPacketBuffer returns a PacketBufferSize buffer. Callers must
// return it with PutPacketBuffer.
func GetPacketBuffer() *[]byte {
	return packetPool.Get().(*[]byte)
}

// PutPacketBuffer returns a packet buffer to the pool.
func PutPacketBuffer(buf *[]byte) {
	if buf == nil {
		return
	}
	*buf = (*buf)[:cap(*buf)]
	packetPool.Put(buf)
}
