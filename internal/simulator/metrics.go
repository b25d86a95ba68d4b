package simulator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ur = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simulator_uplink_received_count",
		Help: "The number of uplink transmissions received by the gateway.",
	})
	ul = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simulator_uplink_lost_count",
		Help: "The number of uplink transmissions below the gateway sensitivity.",
	})
	dd = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simulator_downlink_received_count",
		Help: "The number of downlink transmissions received by a device.",
	})
	dl = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simulator_downlink_lost_count",
		Help: "The number of downlink transmissions below the device sensitivity.",
	})
)

func uplinkReceivedCounter() prometheus.Counter {
	return ur
}

func uplinkLostCounter() prometheus.Counter {
	return ul
}

func downlinkReceivedCounter() prometheus.Counter {
	return dd
}

func downlinkLostCounter() prometheus.Counter {
	return dl
}
