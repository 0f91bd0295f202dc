package filter

import (
	"fmt"

	"golang.org/x/net/bpf"
)

// TCPPortBPF 生成只放行指定 TCP 端口（源或目的）IPv4 流量的 classic BPF。
func TCPPortBPF(port uint16) ([]bpf.RawInstruction, error) {
	if port == 0 {
		return nil, fmt.Errorf("端口不能为 0")
	}
	raw, err := bpf.Assemble(tcpPortInstructions(port))
	if err != nil {
		return nil, fmt.Errorf("组装 BPF 失败：%w", err)
	}
	return raw, nil
}

// 假设链路层为 Ethernet。IPv4 头部长度不固定，需要用 LoadMemShift：
//   X = 4 * (packet[14] & 0x0f)
// 然后读取 TCP 端口：src=[14+X]，dst=[14+X+2]。
func tcpPortInstructions(port uint16) []bpf.Instruction {
	p := uint32(port)
	return []bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},                         // EtherType
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0800, SkipFalse: 7}, // IPv4? 否则 drop

		bpf.LoadAbsolute{Off: 23, Size: 1},                    // IPv4 protocol
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 6, SkipFalse: 5}, // TCP? 否则 drop
		bpf.LoadMemShift{Off: 14},

		bpf.LoadIndirect{Off: 14, Size: 2},                   // tcp src port
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: p, SkipTrue: 3}, // 命中 -> accept
		bpf.LoadIndirect{Off: 16, Size: 2},                   // tcp dst port
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: p, SkipTrue: 1},

		bpf.RetConstant{Val: 0},      // drop
		bpf.RetConstant{Val: 0xFFFF}, // accept，snaplen 由 AF_PACKET 控制
	}
}
