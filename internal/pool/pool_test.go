package pool

import "testing"

func TestGetRecvBuffer(t *testing.T) {
	buf := GetRecvBuffer()
	if buf == nil {
		t.Fatal("GetRecvBuffer returned nil")
	}
	if len(*buf) != RecvBufferSize {
		t.Errorf("buffer length = %d, want %d", len(*buf), RecvBufferSize)
	}
	PutRecvBuffer(buf)
}

func TestGetPacketBuffer(t *testing.T) {
	buf := GetPacketBuffer()
	if buf == nil {
		t.Fatal("GetPacketBuffer returned nil")
	}
	if len(*buf) != PacketBufferSize {
		t.Errorf("buffer length = %d, want %d", len(*buf), PacketBufferSize)
	}
	PutPacketBuffer(buf)
}

func TestPutRestoresLength(t *testing.T) {
	buf := GetPacketBuffer()
	*buf = (*buf)[:10]
	PutPacketBuffer(buf)

	again := GetPacketBuffer()
	defer PutPacketBuffer(again)
	if len(*again) != PacketBufferSize {
		t.Errorf("recycled buffer length = %d, want %d", len(*again), PacketBufferSize)
	}
}

func TestPutNil(t *testing.T) {
	// Must not panic.
	PutRecvBuffer(nil)
	PutPacketBuffer(nil)
}
