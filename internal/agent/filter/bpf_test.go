package filter

import (
	"encoding/binary"
	"testing"

	"golang.org/x/net/bpf"
)

// frame 构造最小的 Ethernet + IPv4(20B) + TCP(20B) 帧。
func frame(etherType uint16, proto byte, src, dst uint16) []byte {
	b := make([]byte, 14+20+20)
	binary.BigEndian.PutUint16(b[12:], etherType)
	b[14] = 0x45
	b[23] = proto
	binary.BigEndian.PutUint16(b[34:], src)
	binary.BigEndian.PutUint16(b[36:], dst)
	return b
}

func TestTCPPortBPF(t *testing.T) {
	if _, err := TCPPortBPF(0); err == nil {
		t.Fatal("expected error for port 0")
	}
	ins, err := TCPPortBPF(8080)
	if err != nil {
		t.Fatalf("TCPPortBPF failed: %v", err)
	}
	if len(ins) != len(tcpPortInstructions(8080)) {
		t.Errorf("instructions=%d", len(ins))
	}
}

func TestTCPPortFilterVerdicts(t *testing.T) {
	vm, err := bpf.NewVM(tcpPortInstructions(8080))
	if err != nil {
		t.Fatalf("NewVM: %v", err)
	}

	tests := []struct {
		name   string
		pkt    []byte
		accept bool
	}{
		{"request to port", frame(0x0800, 6, 51000, 8080), true},
		{"response from port", frame(0x0800, 6, 8080, 51000), true},
		{"other port", frame(0x0800, 6, 51000, 443), false},
		{"udp", frame(0x0800, 17, 51000, 8080), false},
		{"ipv6", frame(0x86dd, 6, 51000, 8080), false},
	}
	for _, tt := range tests {
		n, err := vm.Run(tt.pkt)
		if err != nil {
			t.Fatalf("%s: run: %v", tt.name, err)
		}
		if (n > 0) != tt.accept {
			t.Errorf("%s: accepted=%d want accept=%v", tt.name, n, tt.accept)
		}
	}
}
