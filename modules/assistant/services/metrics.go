package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var assistantReplies = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "assistant",
	Subsystem: "chat",
	Name:      "replies_total",
	Help:      "Assistant turns broken down by result.",
}, []string{"result"})

func recordReply(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	assistantReplies.WithLabelValues(result).Inc()
}
