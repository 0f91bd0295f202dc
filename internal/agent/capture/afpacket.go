package capture

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/afpacket"
	"golang.org/x/net/bpf"
)

const (
	minFrame    = 2048
	maxFrame    = 1 << 16
	ringBlock   = 1 << 20
	ringBlocks  = 64
	pollTimeout = 250 * time.Millisecond
)

// ring 是 *afpacket.TPacket 中本包用到的部分。
type ring interface {
	ZeroCopyReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	SetBPF(filter []bpf.RawInstruction) error
	SocketStats() (afpacket.SocketStats, afpacket.SocketStatsV3, error)
	Close()
}

// Handle 从 AF_PACKET 环形缓冲读取以太网帧。ReadPacket 返回的数据在下次读取前有效。
type Handle struct {
	r ring
}

// Stats 是内核侧的累计收包/丢包计数。
type Stats struct {
	Received uint
	Dropped  uint
}

// Open 在 iface 上打开抓包句柄，iface 为 "any" 时监听所有网卡。
func Open(iface string, snaplen int) (*Handle, error) {
	if iface == "" {
		return nil, fmt.Errorf("interface 不能为空")
	}
	tp, err := afpacket.NewTPacket(ringOptions(iface, snaplen)...)
	if err != nil {
		return nil, openError(iface, err)
	}
	return &Handle{r: tp}, nil
}

func ringOptions(iface string, snaplen int) []interface{} {
	frame := frameSize(snaplen)
	block := ringBlock
	if block%frame != 0 {
		block = frame * 16
	}
	opts := []interface{}{
		afpacket.OptFrameSize(frame),
		afpacket.OptBlockSize(block),
		afpacket.OptNumBlocks(ringBlocks),
		afpacket.OptPollTimeout(pollTimeout),
	}
	if iface != "any" {
		opts = append(opts, afpacket.OptInterface(iface))
	}
	return opts
}

// frameSize 取不小于 snaplen 的 2 的幂，限制在 [minFrame, maxFrame]。
func frameSize(snaplen int) int {
	n := minFrame
	for n < snaplen && n < maxFrame {
		n <<= 1
	}
	return n
}

func openError(iface string, err error) error {
	switch {
	case errors.Is(err, syscall.EPERM), errors.Is(err, syscall.EACCES):
		return fmt.Errorf("打开 AF_PACKET 失败：%w（需要 root 或 CAP_NET_RAW）", err)
	case iface != "any" && isOpError(err):
		return fmt.Errorf("打开 AF_PACKET 失败：%w（检查网卡名是否存在：%s）", err, iface)
	default:
		return fmt.Errorf("打开 AF_PACKET 失败：%w", err)
	}
}

func isOpError(err error) bool {
	var op *net.OpError
	return errors.As(err, &op)
}

func (h *Handle) Close() {
	if h.r != nil {
		h.r.Close()
	}
}

func (h *Handle) SetBPF(ins []bpf.RawInstruction) error {
	if err := h.r.SetBPF(ins); err != nil {
		return fmt.Errorf("设置 BPF 失败：%w", err)
	}
	return nil
}

// ReadPacket 阻塞直到读到一帧或 ctx 结束。poll 超时只用于检查 ctx，其余错误直接返回。
func (h *Handle) ReadPacket(ctx context.Context) ([]byte, gopacket.CaptureInfo, error) {
	for {
		data, ci, err := h.r.ZeroCopyReadPacketData()
		if err == nil {
			return data, ci, nil
		}
		if ctx.Err() != nil {
			return nil, gopacket.CaptureInfo{}, ctx.Err()
		}
		if errors.Is(err, afpacket.ErrTimeout) || errors.Is(err, afpacket.ErrPoll) {
			continue
		}
		return nil, gopacket.CaptureInfo{}, fmt.Errorf("读取数据包失败：%w", err)
	}
}

func (h *Handle) Stats() (Stats, error) {
	// 只有与当前 TPACKET 版本对应的那一组计数非零。
	v2, v3, err := h.r.SocketStats()
	if err != nil {
		return Stats{}, fmt.Errorf("读取抓包统计失败：%w", err)
	}
	return Stats{
		Received: v2.Packets() + v3.Packets(),
		Dropped:  v2.Drops() + v3.Drops(),
	}, nil
}
