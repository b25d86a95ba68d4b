package maccommand

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mcc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maccommand_rx_count",
		Help: "The number of received mac-commands (per command).",
	}, []string{"command"})
)

func macCommandCounter(c string) prometheus.Counter {
	return mcc.With(prometheus.Labels{"command": c})
}
