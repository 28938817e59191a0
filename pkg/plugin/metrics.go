// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magnum Contributors

package plugin

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for plugin lifecycle operations.
var (
	// loadsTotal counts Load outcomes by result label.
	loadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "magnum_plugin_loads_total",
		Help: "Total number of plugin load attempts",
	}, []string{"result"})

	// unloadsTotal counts Unload outcomes by result label.
	unloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "magnum_plugin_unloads_total",
		Help: "Total number of plugin unload attempts",
	}, []string{"result"})

	// loadedPlugins tracks dynamic plugins currently mapped.
	loadedPlugins = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "magnum_plugins_loaded",
		Help: "Number of dynamic plugins currently loaded",
	})

	// liveInstances tracks outstanding owned instances across all managers.
	liveInstances = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "magnum_plugin_instances_live",
		Help: "Number of live plugin instances not yet released",
	})
)

// Result labels for lifecycle counters.
const (
	resultOK     = "ok"
	resultError  = "error"
	resultStatic = "static"
)
