package adr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSNRHandler(t *testing.T) {
	t.Run("IDs", func(t *testing.T) {
		assert := require.New(t)
		assert.Equal("snr-max", NewSNRHandler(SNRMax).ID())
		assert.Equal("snr-avg", NewSNRHandler(SNRAvg).ID())
		assert.Equal("snr-min", NewSNRHandler(SNRMin).ID())
	})

	t.Run("aggregateSNR", func(t *testing.T) {
		assert := require.New(t)

		req := HandleRequest{
			UplinkHistory: []UplinkMetaData{
				{MaxSNR: -5},
				{MaxSNR: 3},
				{MaxSNR: -10},
			},
		}

		assert.EqualValues(3, NewSNRHandler(SNRMax).aggregateSNR(req))
		assert.EqualValues(-4, NewSNRHandler(SNRAvg).aggregateSNR(req))
		assert.EqualValues(-10, NewSNRHandler(SNRMin).aggregateSNR(req))
	})

	t.Run("getPacketLossPercentage", func(t *testing.T) {
		assert := require.New(t)

		req := HandleRequest{}
		for i := uint32(9); i < 31; i++ {
			if i == 13 || i == 19 {
				continue
			}
			req.UplinkHistory = append(req.UplinkHistory, UplinkMetaData{
				FCnt: i,
			})
		}

		h := NewSNRHandler(SNRMax)
		assert.EqualValues(10, h.getPacketLossPercentage(req))
	})

	t.Run("getNbTrans", func(t *testing.T) {
		h := NewSNRHandler(SNRMax)

		tests := []struct {
			pktLossRate     float32
			currentNbTrans  int
			expectedNbTrans int
		}{
			{4.99, 3, 2},
			{9.99, 2, 2},
			{29.99, 1, 2},
			{30, 3, 3},
		}

		for _, tst := range tests {
			t.Run(fmt.Sprintf("packetloss rate: %f, current nbTrans: %d", tst.pktLossRate, tst.currentNbTrans), func(t *testing.T) {
				assert := require.New(t)
				assert.Equal(tst.expectedNbTrans, h.getNbTrans(tst.currentNbTrans, tst.pktLossRate))
			})
		}
	})

	t.Run("getIdealTxPowerIndexAndDR", func(t *testing.T) {
		h := NewSNRHandler(SNRMax)

		tests := []struct {
			name                 string
			nStep                int
			txPowerIndex         int
			dr                   int
			maxTxPowerIndex      int
			maxDR                int
			expectedTxPowerIndex int
			expectedDR           int
		}{
			{
				name:                 "two steps: two data-rate increases",
				nStep:                2,
				txPowerIndex:         0,
				dr:                   0,
				maxTxPowerIndex:      5,
				maxDR:                5,
				expectedDR:           2,
				expectedTxPowerIndex: 0,
			},
			{
				name:                 "three steps: one data-rate increase, two tx-power decreases",
				nStep:                3,
				txPowerIndex:         0,
				dr:                   4,
				maxTxPowerIndex:      5,
				maxDR:                5,
				expectedDR:           5,
				expectedTxPowerIndex: 2,
			},
			{
				name:                 "negative step: one tx-power increase",
				nStep:                -1,
				txPowerIndex:         3,
				dr:                   2,
				maxTxPowerIndex:      5,
				maxDR:                5,
				expectedDR:           2,
				expectedTxPowerIndex: 2,
			},
			{
				name:                 "negative steps at max tx-power",
				nStep:                -3,
				txPowerIndex:         0,
				dr:                   2,
				maxTxPowerIndex:      5,
				maxDR:                5,
				expectedDR:           2,
				expectedTxPowerIndex: 0,
			},
		}

		for _, tst := range tests {
			t.Run(tst.name, func(t *testing.T) {
				assert := require.New(t)
				txPowerIndex, dr := h.getIdealTxPowerIndexAndDR(tst.nStep, tst.txPowerIndex, tst.dr, tst.maxTxPowerIndex, tst.maxDR)
				assert.Equal(tst.expectedDR, dr)
				assert.Equal(tst.expectedTxPowerIndex, txPowerIndex)
			})
		}
	})

	t.Run("Handle", func(t *testing.T) {
		goodHistory := make([]UplinkMetaData, 0, 20)
		for i := uint32(0); i < 20; i++ {
			goodHistory = append(goodHistory, UplinkMetaData{
				FCnt:   i,
				MaxSNR: -5,
			})
		}

		mixedHistory := make([]UplinkMetaData, 0, 10)
		for i := uint32(0); i < 10; i++ {
			snr := float32(-5)
			if i%2 == 1 {
				snr = -15
			}
			mixedHistory = append(mixedHistory, UplinkMetaData{
				FCnt:   i,
				MaxSNR: snr,
			})
		}

		tests := []struct {
			name     string
			mode     SNRMode
			request  HandleRequest
			response HandleResponse
		}{
			{
				name: "adr disabled",
				mode: SNRMax,
				request: HandleRequest{
					ADR:           false,
					DR:            0,
					TxPowerIndex:  0,
					NbTrans:       1,
					UplinkHistory: goodHistory,
				},
				response: HandleResponse{DR: 0, TxPowerIndex: 0, NbTrans: 1},
			},
			{
				name: "max: five db margin raises the data-rate",
				mode: SNRMax,
				request: HandleRequest{
					ADR:                true,
					DR:                 0,
					TxPowerIndex:       0,
					NbTrans:            1,
					MaxTxPowerIndex:    6,
					MaxDR:              5,
					RequiredSNRForDR:   -20,
					InstallationMargin: 10,
					UplinkHistory:      goodHistory,
				},
				response: HandleResponse{DR: 1, TxPowerIndex: 0, NbTrans: 1},
			},
			{
				name: "max over mixed history uses the best uplink",
				mode: SNRMax,
				request: HandleRequest{
					ADR:                true,
					DR:                 0,
					TxPowerIndex:       0,
					NbTrans:            1,
					MaxTxPowerIndex:    6,
					MaxDR:              5,
					RequiredSNRForDR:   -20,
					InstallationMargin: 10,
					UplinkHistory:      mixedHistory,
				},
				response: HandleResponse{DR: 1, TxPowerIndex: 0, NbTrans: 1},
			},
			{
				name: "avg over mixed history stays",
				mode: SNRAvg,
				request: HandleRequest{
					ADR:                true,
					DR:                 0,
					TxPowerIndex:       0,
					NbTrans:            1,
					MaxTxPowerIndex:    6,
					MaxDR:              5,
					RequiredSNRForDR:   -20,
					InstallationMargin: 10,
					UplinkHistory:      mixedHistory,
				},
				response: HandleResponse{DR: 0, TxPowerIndex: 0, NbTrans: 1},
			},
			{
				name: "min over mixed history waits for a full history window",
				mode: SNRMin,
				request: HandleRequest{
					ADR:                true,
					DR:                 0,
					TxPowerIndex:       0,
					NbTrans:            1,
					MaxTxPowerIndex:    6,
					MaxDR:              5,
					RequiredSNRForDR:   -20,
					InstallationMargin: 10,
					UplinkHistory:      mixedHistory,
				},
				response: HandleResponse{DR: 0, TxPowerIndex: 0, NbTrans: 1},
			},
			{
				name: "data-rate above the maximum is lowered",
				mode: SNRMax,
				request: HandleRequest{
					ADR:                true,
					DR:                 7,
					TxPowerIndex:       0,
					NbTrans:            1,
					MaxTxPowerIndex:    6,
					MaxDR:              5,
					RequiredSNRForDR:   -7.5,
					InstallationMargin: 10,
					UplinkHistory:      goodHistory,
				},
				response: HandleResponse{DR: 5, TxPowerIndex: 0, NbTrans: 1},
			},
		}

		for _, tst := range tests {
			t.Run(tst.name, func(t *testing.T) {
				assert := require.New(t)

				resp, err := NewSNRHandler(tst.mode).Handle(tst.request)
				assert.NoError(err)
				assert.Equal(tst.response, resp)
			})
		}
	})
}
