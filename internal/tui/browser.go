// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rowscope/cli/internal/loader"
	"rowscope/cli/internal/model"
	"rowscope/cli/internal/query"
	"rowscope/cli/internal/session"
	"rowscope/cli/internal/terminal"
	"rowscope/cli/internal/viewport"

	"atomicgo.dev/cursor"
	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"
	"github.com/pterm/pterm"
)

// chrome is the number of screen lines used by everything except data rows:
// table header and separator, status bar, help line and a spare line.
const chrome = 5

// Engine is the part of a session the browser drives.
type Engine interface {
	Source
	OnVisibleRangeChanged(first, last int64) viewport.Plan
	TotalRowEstimate() model.Estimate
	ModeIndicator() model.Mode
	Query() query.Descriptor
	State() session.State
	Err() error
	Warnings() []error
	Stats() session.Stats
	MaxVisibleRows() int64
	Sort(ctx context.Context, column string, dir model.SortDirection) error
	Rerun(ctx context.Context) error
	Completions() <-chan loader.Result
	Apply(res loader.Result) session.Event
}

type action int

const (
	actionNone action = iota
	actionMove
	actionSort
	actionRerun
	actionQuit
)

// Browser keeps the scroll position and selected column of one result.
type Browser struct {
	eng      Engine
	capacity int
	top      int64
	height   int
	col      int
	// notice is the error of the last sort or re-run request.
	notice error
}

// NewBrowser returns a browser showing height rows at a time. capacity is
// only used for the status bar.
func NewBrowser(eng Engine, height, capacity int) *Browser {
	b := &Browser{eng: eng, capacity: capacity}
	b.height = b.fit(height)
	return b
}

// Top returns the first visible row.
func (b *Browser) Top() int64 { return b.top }

// Selected returns the selected column index.
func (b *Browser) Selected() int { return b.col }

// SetHeight changes how many rows are visible. The height never exceeds what
// the chunk cache can keep pinned at once.
func (b *Browser) SetHeight(h int) {
	b.height = b.fit(h)
	b.clamp()
}

func (b *Browser) fit(h int) int {
	return int(min(int64(max(h, 1)), b.eng.MaxVisibleRows()))
}

// Notice returns the error of the last sort or re-run request, if any.
func (b *Browser) Notice() error { return b.notice }

// Visible returns the visible row range, inclusive.
func (b *Browser) Visible() (first, last int64) {
	return b.top, b.top + int64(b.height) - 1
}

// Push reports the visible range to the engine.
func (b *Browser) Push() viewport.Plan {
	first, last := b.Visible()
	return b.eng.OnVisibleRangeChanged(first, last)
}

func (b *Browser) handle(k keys.Key) action {
	page := int64(b.height)
	switch k.Code {
	case keys.Up:
		return b.scroll(-1)
	case keys.Down:
		return b.scroll(1)
	case keys.PgUp:
		return b.scroll(-page)
	case keys.PgDown, keys.Space:
		return b.scroll(page)
	case keys.Home:
		return b.jump(0)
	case keys.End:
		return b.end()
	case keys.Left:
		return b.selectColumn(-1)
	case keys.Right, keys.Tab:
		return b.selectColumn(1)
	case keys.Escape, keys.CtrlC:
		return actionQuit
	case keys.RuneKey:
		switch k.String() {
		case "k":
			return b.scroll(-1)
		case "j":
			return b.scroll(1)
		case "g":
			return b.jump(0)
		case "G":
			return b.end()
		case "h":
			return b.selectColumn(-1)
		case "l":
			return b.selectColumn(1)
		case "s":
			return actionSort
		case "r":
			return actionRerun
		case "q":
			return actionQuit
		}
	}
	return actionNone
}

func (b *Browser) scroll(delta int64) action {
	return b.jump(b.top + delta)
}

func (b *Browser) jump(row int64) action {
	prev := b.top
	b.top = row
	b.clamp()
	if b.top == prev {
		return actionNone
	}
	return actionMove
}

// end scrolls to the last page. Without a known total there is no last page.
func (b *Browser) end() action {
	total := b.eng.TotalRowEstimate()
	if !total.Known {
		return actionNone
	}
	return b.jump(total.Value - int64(b.height))
}

func (b *Browser) clamp() {
	if total := b.eng.TotalRowEstimate(); total.Known {
		b.top = min(b.top, max(total.Value-int64(b.height), 0))
	}
	b.top = max(b.top, 0)
}

func (b *Browser) selectColumn(delta int) action {
	n := len(b.eng.Columns())
	if n == 0 {
		return actionNone
	}
	next := min(max(b.col+delta, 0), n-1)
	if next == b.col {
		return actionNone
	}
	b.col = next
	return actionMove
}

// nextSort returns the ordering applied by the sort key: ascending on a new
// column, flipped on the current one.
func (b *Browser) nextSort() (string, model.SortDirection, bool) {
	cols := b.eng.Columns()
	if b.col >= len(cols) {
		return "", model.Asc, false
	}
	column := cols[b.col]
	current := b.eng.Query().Sort
	if current.Column == column && current.Direction == model.Asc {
		return column, model.Desc, true
	}
	return column, model.Asc, true
}

// sort applies the sort key. A rejected sort keeps the current position.
func (b *Browser) sort(ctx context.Context) {
	column, dir, ok := b.nextSort()
	if !ok {
		b.notice = errors.New("no column to sort by")
		return
	}
	b.notice = b.eng.Sort(ctx, column, dir)
	if b.notice == nil {
		b.top = 0
	}
}

// View renders the grid and the status bar.
func (b *Browser) View() string {
	var sb strings.Builder
	sort := b.eng.Query().Sort

	switch b.eng.State() {
	case session.StateFailed:
		sb.WriteString(pterm.Error.Sprint(b.eng.Err()))
		sb.WriteString("\n")
	case session.StateCounting:
		sb.WriteString(pterm.FgGray.Sprint("counting rows"))
		sb.WriteString("\n")
	default:
		grid, err := RenderGrid(b.eng, GridOptions{First: b.top, Height: b.height, Selected: b.col, Sort: sort})
		if err != nil {
			grid = pterm.Error.Sprint(err)
		}
		sb.WriteString(grid)
		sb.WriteString("\n")
	}

	first, last := b.Visible()
	total := b.eng.TotalRowEstimate()
	if total.Known && total.Value > 0 {
		last = min(last, total.Value-1)
	}
	stats := b.eng.Stats()
	status := Status{
		First:    first,
		Last:     last,
		Total:    total,
		Mode:     b.eng.ModeIndicator(),
		State:    stats.State.String(),
		Sort:     sort,
		Epoch:    stats.Epoch,
		Cache:    stats.Cache,
		Capacity: b.capacity,
	}
	if b.notice != nil {
		status.Warning = b.notice.Error()
	} else if ws := b.eng.Warnings(); len(ws) > 0 {
		status.Warning = ws[len(ws)-1].Error()
	}
	sb.WriteString(StatusLine(status))
	sb.WriteString("\n")
	sb.WriteString(pterm.FgGray.Sprint("↑↓ scroll  PgUp/PgDn page  ←→ column  s sort  r re-run  q quit"))
	return sb.String()
}

// Run takes over the terminal until the user quits or ctx is done.
func (b *Browser) Run(ctx context.Context) error {
	_, h := terminal.Size()
	b.SetHeight(h - chrome)
	b.Push()

	area, err := pterm.DefaultArea.WithRemoveWhenDone(false).Start()
	if err != nil {
		return fmt.Errorf("failed to start display: %w", err)
	}
	defer func() { _ = area.Stop() }()
	cursor.Hide()
	defer cursor.Show()

	pressed := make(chan keys.Key)
	done := make(chan struct{})
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- keyboard.Listen(func(k keys.Key) (bool, error) {
			select {
			case pressed <- k:
			case <-done:
				return true, nil
			}
			return isQuit(k), nil
		})
	}()
	listening := true
	defer func() {
		close(done)
		if !listening {
			return
		}
		// The listener only notices done on its next key.
		go keyboard.SimulateKeyPress(keys.Escape)
		select {
		case <-listenErr:
		case <-time.After(time.Second):
		}
	}()

	resize := time.NewTicker(250 * time.Millisecond)
	defer resize.Stop()

	area.Update(b.View())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-listenErr:
			listening = false
			return err
		case res, ok := <-b.eng.Completions():
			if !ok {
				return nil
			}
			ev := b.eng.Apply(res)
			if ev.Visible() {
				b.clamp()
				area.Update(b.View())
			}
		case <-resize.C:
			_, h := terminal.Size()
			if h-chrome != b.height {
				b.SetHeight(h - chrome)
				b.Push()
				area.Update(b.View())
			}
		case k := <-pressed:
			switch b.handle(k) {
			case actionQuit:
				listening = false
				<-listenErr
				return nil
			case actionMove:
				b.Push()
			case actionSort:
				b.sort(ctx)
			case actionRerun:
				b.notice = b.eng.Rerun(ctx)
			case actionNone:
				continue
			}
			area.Update(b.View())
		}
	}
}

func isQuit(k keys.Key) bool {
	return k.Code == keys.Escape || k.Code == keys.CtrlC || (k.Code == keys.RuneKey && k.String() == "q")
}
