package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	log "github.com/sirupsen/logrus"

	"tunnelwatch/internal/agent/capture"
	"tunnelwatch/internal/agent/filter"
	"tunnelwatch/internal/agent/httpmatcher"
	"tunnelwatch/internal/agent/report"
	"tunnelwatch/pkg/model"
)

type Uploader interface {
	Upload(ctx context.Context, e *model.LogEntry) error
}

func Run(ctx context.Context, cfg Config) error {
	cfg.applyDefaults()
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port 非法：%d", cfg.Port)
	}

	rep, err := report.NewClient(cfg.Server, cfg.Token, cfg.HTTPPostTimeout)
	if err != nil {
		return err
	}

	handle, err := capture.Open(cfg.Interface, 65535)
	if err != nil {
		return err
	}
	defer handle.Close()

	// 在内核态过滤，只把目标端口的 TCP 包送到用户态。
	rawIns, err := filter.TCPPortBPF(uint16(cfg.Port))
	if err != nil {
		return err
	}
	if err := handle.SetBPF(rawIns); err != nil {
		return err
	}

	p := newProcessor(httpmatcher.NewMatcher(cfg.RequestTimeout, cfg.BaseDomain), rep, cfg.QueueSize)
	p.start(ctx)
	defer p.stop()

	log.Infof("[agent] 开始抓包：iface=%s port=%d -> server=%s", cfg.Interface, cfg.Port, cfg.Server)

	cleanupTicker := time.NewTicker(2 * time.Second)
	defer cleanupTicker.Stop()
	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()
	drops := &dropTracker{src: handle}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-cleanupTicker.C:
			if n := p.m.Cleanup(time.Now()); n > 0 {
				log.Debugf("[agent] %d 个请求等待响应超时", n)
			}
		case <-statsTicker.C:
			drops.check()
		default:
		}

		data, ci, err := handle.ReadPacket(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		p.handle(data, ci)
	}
}

const statsInterval = 30 * time.Second

type statsSource interface {
	Stats() (capture.Stats, error)
}

// dropTracker 记录上次看到的内核丢包数，只在新增时告警。
type dropTracker struct {
	src  statsSource
	last uint
}

// check 返回自上次检查以来内核新丢弃的包数。
func (d *dropTracker) check() uint {
	st, err := d.src.Stats()
	if err != nil {
		log.Debugf("[agent] %v", err)
		return 0
	}
	if st.Dropped < d.last {
		// 计数被重置
		d.last = 0
	}
	n := st.Dropped - d.last
	d.last = st.Dropped
	if n > 0 {
		log.Warnf("[agent] 内核丢弃 %d 个数据包（累计收 %d / 丢 %d），可能需要调大环形缓冲", n, st.Received, st.Dropped)
	}
	return n
}

// processor 解析数据包、配对请求和响应，并异步上报。
type processor struct {
	m     *httpmatcher.Matcher
	up    Uploader
	queue chan *model.LogEntry

	wg      sync.WaitGroup
	mu      sync.Mutex
	dropped int
}

func newProcessor(m *httpmatcher.Matcher, up Uploader, queueSize int) *processor {
	return &processor{m: m, up: up, queue: make(chan *model.LogEntry, queueSize)}
}

func (p *processor) start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for e := range p.queue {
			if err := p.up.Upload(ctx, e); err != nil {
				log.Warnf("[agent] 上报失败（忽略继续抓包）：%v", err)
			}
		}
	}()
}

// stop 等待队列中已有的记录上报完毕。
func (p *processor) stop() {
	close(p.queue)
	p.wg.Wait()
}

func (p *processor) handle(data []byte, ci gopacket.CaptureInfo) {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)
	ip4, _ := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if ip4 == nil {
		return
	}
	tcp, _ := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
	if tcp == nil || len(tcp.Payload) == 0 {
		return
	}

	meta := httpmatcher.PacketMeta{
		Timestamp: ci.Timestamp,
		SrcIP:     ip4.SrcIP.String(),
		DstIP:     ip4.DstIP.String(),
		SrcPort:   int(tcp.SrcPort),
		DstPort:   int(tcp.DstPort),
		Payload:   tcp.Payload,
	}
	if p.m.ObserveRequest(meta) {
		return
	}
	e, ok := p.m.ObserveResponse(meta)
	if !ok {
		return
	}
	select {
	case p.queue <- e:
	default:
		p.mu.Lock()
		p.dropped++
		n := p.dropped
		p.mu.Unlock()
		log.Warnf("[agent] 上报队列已满，丢弃一条记录（累计 %d）", n)
	}
}

func (p *processor) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}
