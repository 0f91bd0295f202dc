package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"tunnelwatch/internal/client/feed"
	"tunnelwatch/internal/client/store"
	"tunnelwatch/internal/client/view"
)

// RunDump 拉取一次历史记录，按过滤条件输出最新的 cfg.Limit 条，然后退出。
func RunDump(ctx context.Context, cfg Config, w io.Writer) error {
	cfg.applyDefaults()
	fc, err := feed.NewClient(cfg.Server, cfg.Token, cfg.RequestTimeout)
	if err != nil {
		return err
	}
	history, err := guardedSource{Client: fc, onUnauthorized: cfg.OnUnauthorized}.History(ctx)
	if err != nil {
		return fmt.Errorf("拉取历史记录失败：%w", err)
	}

	st := store.New(store.DefaultCapacity)
	st.InsertBatch(history)
	page := view.Visible(st, cfg.Filter, cfg.Limit)

	renderTable(w, page)
	return nil
}

func renderTable(w io.Writer, page view.Page) {
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"Time", "Subdomain", "Method", "Path", "Status", "Headers", "Body"})
	t.SetAutoWrapText(false)
	t.SetRowLine(false)

	for _, it := range page.Items {
		e := it.Entry
		ts := ""
		if !e.Timestamp.IsZero() {
			ts = e.Timestamp.Format(time.RFC3339)
		}
		t.Append([]string{
			ts,
			e.Subdomain,
			e.Method,
			e.Path,
			fmt.Sprintf("%d", e.Status),
			fmt.Sprintf("%d", len(e.Headers)),
			humanize.Bytes(uint64(len(e.Body))),
		})
	}
	t.SetFooter([]string{"", "", "", "", "", "matched", fmt.Sprintf("%d", page.Matched)})
	t.Render()
}
