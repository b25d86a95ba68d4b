// Package networkserver implements the network-server side of the
// simulation: uplink handling, ADR decisions and downlink scheduling.
package networkserver

import (
	"time"

	"github.com/pkg/errors"

	"github.com/brocaar/lorawan"

	"github.com/jbbonice2/lorawan-adr-simulator/internal/adr"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/band"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/config"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/models"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/scheduler"
	"github.com/jbbonice2/lorawan-adr-simulator/internal/session"
)

// Options holds the callbacks wiring the network-server to the simulated
// radio medium.
type Options struct {
	// SendDownlink delivers a downlink frame to the given device during
	// its RX1 window. It returns true when the device received the frame.
	SendDownlink func(devAddr lorawan.DevAddr, frame models.DownlinkFrame) bool
}

type extraChannel struct {
	index     int
	frequency uint32
	minDR     int
	maxDR     int
}

// NetworkServer handles the uplinks of all simulated devices and issues
// mac-commands back through class-A downlinks.
type NetworkServer struct {
	sched *scheduler.Scheduler
	store *session.Store

	handler        adr.Handler
	failureHandler adr.DownlinkFailureHandler

	disableADR           bool
	installationMargin   float64
	rx1Delay             time.Duration
	devStatusReqInterval time.Duration
	extraChannels        []extraChannel

	sendDownlink func(lorawan.DevAddr, models.DownlinkFrame) bool
}

// New creates a new network-server using the ADR algorithm configured
// under network_server.adr.algorithm_id.
func New(conf config.Config, sched *scheduler.Scheduler, opts Options) (*NetworkServer, error) {
	if opts.SendDownlink == nil {
		return nil, errors.New("SendDownlink must be set")
	}

	handler, err := adr.GetHandler(conf.NetworkServer.ADR.AlgorithmID)
	if err != nil {
		return nil, errors.Wrap(err, "get adr handler error")
	}

	ns := NetworkServer{
		sched:                sched,
		store:                session.NewStore(),
		handler:              handler,
		disableADR:           conf.NetworkServer.NetworkSettings.DisableADR,
		installationMargin:   conf.NetworkServer.NetworkSettings.InstallationMargin,
		rx1Delay:             time.Duration(conf.NetworkServer.NetworkSettings.RX1Delay) * time.Second,
		devStatusReqInterval: conf.NetworkServer.NetworkSettings.DevStatusReqInterval,
		sendDownlink:         opts.SendDownlink,
	}

	// Extra channels are appended to the band behind the standard ones,
	// in configuration order.
	base := len(band.Band().GetStandardUplinkChannelIndices())
	for i, ec := range conf.NetworkServer.NetworkSettings.ExtraChannels {
		ns.extraChannels = append(ns.extraChannels, extraChannel{
			index:     base + i,
			frequency: ec.Frequency,
			minDR:     ec.MinDR,
			maxDR:     ec.MaxDR,
		})
	}

	if fh, ok := handler.(adr.DownlinkFailureHandler); ok {
		ns.failureHandler = fh
	}

	return &ns, nil
}

// Sessions returns the device-session store.
func (n *NetworkServer) Sessions() *session.Store {
	return n.store
}
