// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/copytree/copytree/pkg/pipeline"
)

// ProgressConfig determines if and how progress should be displayed.
type ProgressConfig struct {
	// Enabled indicates whether progress output should be shown.
	// Disabled when --json or -q is used, or when stderr is not a TTY.
	Enabled bool

	// Writer is where progress output goes (always os.Stderr).
	Writer io.Writer

	// NoColor disables colored output in progress bars.
	NoColor bool
}

// NewProgressConfig creates a progress configuration based on global flags
// and TTY detection.
func NewProgressConfig(globals GlobalFlags) ProgressConfig {
	enabled := !globals.Quiet && !globals.JSON && isatty.IsTerminal(os.Stderr.Fd())
	return ProgressConfig{
		Enabled: enabled,
		Writer:  os.Stderr,
		NoColor: globals.NoColor,
	}
}

// NewSpinner creates an indeterminate spinner for operations where the
// total count is unknown. Returns nil if progress is disabled.
func NewSpinner(cfg ProgressConfig, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
		progressbar.OptionThrottle(65*time.Millisecond),
	)
}

// watchProgress subscribes to the pipeline's event stream and drives a
// per-stage spinner. The returned channel closes once the event stream
// drains, so callers can wait for the final redraw before printing.
func watchProgress(p *pipeline.Pipeline, cfg ProgressConfig) <-chan struct{} {
	done := make(chan struct{})
	events := p.Subscribe(64)

	go func() {
		defer close(done)
		var spinner *progressbar.ProgressBar
		for evt := range events {
			switch evt.Type {
			case pipeline.EventStageStart:
				if spinner != nil {
					_ = spinner.Finish()
				}
				stage, _ := evt.Data["stage"].(string)
				spinner = NewSpinner(cfg, fmt.Sprintf("%-16s", stage))
			case pipeline.EventFileBatch, pipeline.EventStageProgress:
				if spinner != nil {
					_ = spinner.Add(1)
				}
			case pipeline.EventStageComplete:
				if spinner != nil {
					_ = spinner.Finish()
					spinner = nil
				}
			case pipeline.EventPipelineComplete, pipeline.EventPipelineError:
				if spinner != nil {
					_ = spinner.Finish()
					spinner = nil
				}
				return
			}
		}
	}()
	return done
}
