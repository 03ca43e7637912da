package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/entities/catalog"
)

var (
	catalogLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "provisioning",
		Subsystem: "catalog",
		Name:      "loads_total",
		Help:      "Catalog loads broken down by dataset and result.",
	}, []string{"dataset", "result"})

	ruleSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "provisioning",
		Subsystem: "rule",
		Name:      "saves_total",
		Help:      "Save attempts broken down by outcome.",
	}, []string{"outcome"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "provisioning",
		Subsystem: "rule_builder",
		Name:      "sessions",
		Help:      "Rule builder sessions currently held in memory.",
	})
)

func recordLoad(dataset catalog.Dataset, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	catalogLoads.With(prometheus.Labels{"dataset": string(dataset), "result": result}).Inc()
}

func recordSave(outcome string) {
	ruleSaves.WithLabelValues(outcome).Inc()
}
