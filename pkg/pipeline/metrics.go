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

package pipeline

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsPipeline holds the Prometheus collectors for stage-boundary
// timing and error counts, registered lazily so importing the package
// without a registry does not panic in tests.
type metricsPipeline struct {
	once sync.Once

	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	stageRecovers *prometheus.CounterVec
}

var pipeMetrics metricsPipeline

func (m *metricsPipeline) init() {
	m.once.Do(func() {
		m.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Wall-clock duration of a pipeline stage.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"stage"})

		m.stageErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_stage_errors_total",
			Help: "Stage failures, recovered or not.",
		}, []string{"stage"})

		m.stageRecovers = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_stage_recovers_total",
			Help: "Stage failures recovered via handleError.",
		}, []string{"stage"})

		prometheus.MustRegister(m.stageDuration, m.stageErrors, m.stageRecovers)
	})
}

func recordStageDuration(stage string, seconds float64) {
	pipeMetrics.init()
	pipeMetrics.stageDuration.WithLabelValues(stage).Observe(seconds)
}

func recordStageError(stage string) {
	pipeMetrics.init()
	pipeMetrics.stageErrors.WithLabelValues(stage).Inc()
}

func recordStageRecover(stage string) {
	pipeMetrics.init()
	pipeMetrics.stageRecovers.WithLabelValues(stage).Inc()
}
