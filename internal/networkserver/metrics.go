package networkserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "networkserver_uplink_count",
		Help: "The number of handled uplink frames (per message type).",
	}, []string{"m_type"})
	dc = promauto.NewCounter(prometheus.CounterOpts{
		Name: "networkserver_downlink_count",
		Help: "The number of transmitted downlink frames.",
	})
	dlc = promauto.NewCounter(prometheus.CounterOpts{
		Name: "networkserver_downlink_lost_count",
		Help: "The number of downlink frames that did not reach the device.",
	})
	arc = promauto.NewCounter(prometheus.CounterOpts{
		Name: "networkserver_adr_request_count",
		Help: "The number of link-adr requests issued by the ADR algorithm.",
	})
)

func uplinkFrameCounter(mType string) prometheus.Counter {
	return uc.With(prometheus.Labels{"m_type": mType})
}

func downlinkFrameCounter() prometheus.Counter {
	return dc
}

func downlinkFrameLostCounter() prometheus.Counter {
	return dlc
}

func adrRequestCounter() prometheus.Counter {
	return arc
}
