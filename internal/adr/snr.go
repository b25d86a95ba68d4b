package adr

import (
	"gonum.org/v1/gonum/stat"
)

// SNRMode selects how an SNRHandler aggregates the uplink SNR history.
type SNRMode int

// Available aggregation modes.
const (
	SNRMax SNRMode = iota
	SNRAvg
	SNRMin
)

// SNRHandler implements the classic SNR-margin based ADR algorithm: the
// margin of the aggregated uplink SNR over the demodulation floor decides,
// in 3 dB steps, how far the data-rate can be raised and the tx-power
// lowered.
type SNRHandler struct {
	mode SNRMode
}

// NewSNRHandler creates an SNR-margin handler with the given aggregation
// mode.
func NewSNRHandler(mode SNRMode) *SNRHandler {
	return &SNRHandler{mode: mode}
}

// ID returns the ID.
func (h *SNRHandler) ID() string {
	switch h.mode {
	case SNRAvg:
		return "snr-avg"
	case SNRMin:
		return "snr-min"
	default:
		return "snr-max"
	}
}

// Name returns the name.
func (h *SNRHandler) Name() string {
	switch h.mode {
	case SNRAvg:
		return "SNR-margin ADR algorithm (average SNR)"
	case SNRMin:
		return "SNR-margin ADR algorithm (min SNR)"
	default:
		return "SNR-margin ADR algorithm (max SNR)"
	}
}

// Handle handles the ADR request.
func (h *SNRHandler) Handle(req HandleRequest) (HandleResponse, error) {
	resp := HandleResponse{
		DR:           req.DR,
		TxPowerIndex: req.TxPowerIndex,
		NbTrans:      req.NbTrans,
	}

	if !req.ADR || len(req.UplinkHistory) == 0 {
		return resp, nil
	}

	// Lower the DR only if it exceeds the max. allowed DR.
	if req.DR > req.MaxDR {
		resp.DR = req.MaxDR
	}

	resp.NbTrans = h.getNbTrans(req.NbTrans, h.getPacketLossPercentage(req))

	snrMargin := h.aggregateSNR(req) - req.RequiredSNRForDR - req.InstallationMargin
	nStep := int(snrMargin / 3)

	// In case of negative steps the algorithm would increase the tx-power.
	// To avoid up / down / up / down tx-power changes, wait until the full
	// history window for the current tx-power index has been collected.
	if nStep < 0 && h.getHistoryCount(req) != h.requiredHistoryCount() {
		return resp, nil
	}

	resp.TxPowerIndex, resp.DR = h.getIdealTxPowerIndexAndDR(nStep, resp.TxPowerIndex, resp.DR, req.MaxTxPowerIndex, req.MaxDR)

	return resp, nil
}

func (h *SNRHandler) aggregateSNR(req HandleRequest) float32 {
	switch h.mode {
	case SNRAvg:
		snrs := make([]float64, 0, len(req.UplinkHistory))
		for _, m := range req.UplinkHistory {
			snrs = append(snrs, float64(m.MaxSNR))
		}
		return float32(stat.Mean(snrs, nil))
	case SNRMin:
		var snrM float32 = 999
		for _, m := range req.UplinkHistory {
			if m.MaxSNR < snrM {
				snrM = m.MaxSNR
			}
		}
		return snrM
	default:
		var snrM float32 = -999
		for _, m := range req.UplinkHistory {
			if m.MaxSNR > snrM {
				snrM = m.MaxSNR
			}
		}
		return snrM
	}
}

// getHistoryCount returns the history count with equal TxPowerIndex.
func (h *SNRHandler) getHistoryCount(req HandleRequest) int {
	var count int
	for _, uh := range req.UplinkHistory {
		if req.TxPowerIndex == uh.TXPowerIndex {
			count++
		}
	}
	return count
}

func (h *SNRHandler) requiredHistoryCount() int {
	return 20
}

func (h *SNRHandler) getIdealTxPowerIndexAndDR(nStep, txPowerIndex, dr, maxTxPowerIndex, maxDR int) (int, int) {
	if nStep == 0 {
		return txPowerIndex, dr
	}

	if nStep > 0 {
		if dr < maxDR {
			// Increase the DR.
			dr++
		} else if txPowerIndex < maxTxPowerIndex {
			// Decrease the TxPower.
			txPowerIndex++
		}
		nStep--
	} else {
		if txPowerIndex > 0 {
			// Increase TxPower.
			txPowerIndex--
		}
		nStep++
	}

	return h.getIdealTxPowerIndexAndDR(nStep, txPowerIndex, dr, maxTxPowerIndex, maxDR)
}

func (h *SNRHandler) getNbTrans(currentNbTrans int, pktLossRate float32) int {
	if currentNbTrans < 1 {
		currentNbTrans = 1
	}
	if currentNbTrans > 3 {
		currentNbTrans = 3
	}

	if pktLossRate < 5 {
		return pktLossRateTable[0][currentNbTrans-1]
	} else if pktLossRate < 10 {
		return pktLossRateTable[1][currentNbTrans-1]
	} else if pktLossRate < 30 {
		return pktLossRateTable[2][currentNbTrans-1]
	}

	return pktLossRateTable[3][currentNbTrans-1]
}

func (h *SNRHandler) getPacketLossPercentage(req HandleRequest) float32 {
	if len(req.UplinkHistory) < h.requiredHistoryCount() {
		return 0
	}

	var lostPackets uint32
	var previousFCnt uint32

	for i, m := range req.UplinkHistory {
		if i == 0 {
			previousFCnt = m.FCnt
			continue
		}

		lostPackets += m.FCnt - previousFCnt - 1 // there is always an expected difference of 1
		previousFCnt = m.FCnt
	}

	return float32(lostPackets) / float32(len(req.UplinkHistory)) * 100
}

var pktLossRateTable = [][3]int{
	{1, 1, 2},
	{1, 2, 3},
	{2, 3, 3},
	{3, 3, 3},
}
