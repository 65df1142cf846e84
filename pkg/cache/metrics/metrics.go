/*
 * Copyright 2026 The Filecached Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package metrics exposes Prometheus gauges and counters describing the
// running state of the cache engine, labeled by cache type name.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// TypeBytesUsed reports the current used byte count of a cache type.
	TypeBytesUsed = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "filecached",
		Name:      "type_bytes_used",
		Help:      "Current bytes used by a cache type.",
	}, []string{"type"})

	// TypeObjects reports the current object count of a cache type.
	TypeObjects = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "filecached",
		Name:      "type_objects",
		Help:      "Current object count of a cache type.",
	}, []string{"type"})

	// Evictions counts objects evicted, labeled by the reason reclamation ran.
	Evictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "filecached",
		Name:      "evictions_total",
		Help:      "Total objects evicted by reclamation.",
	}, []string{"type", "reason"})

	// Orphans counts on-disk files removed by CleanupOrphans.
	Orphans = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "filecached",
		Name:      "orphans_removed_total",
		Help:      "Total on-disk files removed as orphans.",
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(TypeBytesUsed, TypeObjects, Evictions, Orphans)
}

// ObserveType updates the per-type gauges after a mutation.
func ObserveType(typeName string, usedBytes int64, objectCount int) {
	TypeBytesUsed.WithLabelValues(typeName).Set(float64(usedBytes))
	TypeObjects.WithLabelValues(typeName).Set(float64(objectCount))
}

// ObserveEviction records one evicted object, labeled by reason. The
// cache engine passes "reclaim" for every eviction; it does not
// distinguish a type's own watermark pressure from global reclamation.
func ObserveEviction(typeName, reason string) {
	Evictions.WithLabelValues(typeName, reason).Inc()
}

// ObserveOrphanRemoved records one orphaned file removed for typeName.
func ObserveOrphanRemoved(typeName string) {
	Orphans.WithLabelValues(typeName).Inc()
}
