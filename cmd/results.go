// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"

	"rowscope/cli/internal/model"
	"rowscope/cli/internal/session"
	"rowscope/cli/internal/tui"
)

// awaitRange shows rows [first, last] and applies completions until none of
// them is loading. It returns how many chunks of the range failed.
func awaitRange(ctx context.Context, s *session.Session, first, last int64) (int, error) {
	if err := s.CheckRange(first, last); err != nil {
		return 0, err
	}
	s.OnVisibleRangeChanged(first, last)
	for {
		if s.State() == session.StateFailed {
			return 0, s.Err()
		}
		loading, failed := 0, 0
		if s.State() == session.StateEagerLoaded && !s.Ready() {
			loading = 1
		} else {
			// One lookup per chunk is enough.
			size := int64(s.Config().ChunkSize)
			for r := first; r <= last; r = (r/size + 1) * size {
				switch s.Cell(r, 0).State {
				case model.CellLoading:
					loading++
				case model.CellError:
					failed++
				}
			}
		}
		if loading == 0 {
			return failed, nil
		}
		if _, err := s.Next(ctx); err != nil {
			return failed, err
		}
	}
}

// renderPage renders rows [first, first+height) of the current result.
func renderPage(s *session.Session, first int64, height int) (string, error) {
	return tui.RenderGrid(s, tui.GridOptions{First: first, Height: height, Selected: -1, Sort: s.Query().Sort})
}
