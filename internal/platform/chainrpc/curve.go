package chainrpc

import (
	"encoding/binary"
	"fmt"
)

// Bonding-curve account layout: an 8-byte discriminator followed by five
// little-endian u64 reserve/supply fields and a one-byte completion flag.
const (
	curveDiscriminatorLen = 8
	curveAccountMinLen    = curveDiscriminatorLen + 5*8 + 1

	// Native unit scales: SOL reserves are in lamports (1e9 per SOL), token
	// reserves in base units (1e6 per token).
	lamportsPerSol    = 1e9
	baseUnitsPerToken = 1e6
)

// CurveState is the decoded constant-product bonding-curve account.
type CurveState struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	// Complete is set once the curve has filled and the token graduated to
	// open-market trading.
	Complete bool
}

// DecodeCurveState parses the fixed binary layout of a bonding-curve account.
func DecodeCurveState(data []byte) (CurveState, error) {
	if len(data) < curveAccountMinLen {
		return CurveState{}, fmt.Errorf("chainrpc: curve account too short: %d bytes", len(data))
	}

	off := curveDiscriminatorLen
	u64 := func() uint64 {
		v := binary.LittleEndian.Uint64(data[off : off+8])
		off += 8
		return v
	}

	state := CurveState{
		VirtualTokenReserves: u64(),
		VirtualSolReserves:   u64(),
		RealTokenReserves:    u64(),
		RealSolReserves:      u64(),
		TokenTotalSupply:     u64(),
	}
	state.Complete = data[off] != 0
	return state, nil
}

// Price returns the spot price in SOL per token derived from the virtual
// reserve ratio, adjusted for native unit scales.
func (s CurveState) Price() (float64, error) {
	if s.VirtualTokenReserves == 0 {
		return 0, fmt.Errorf("chainrpc: zero virtual token reserves")
	}
	sol := float64(s.VirtualSolReserves) / lamportsPerSol
	tokens := float64(s.VirtualTokenReserves) / baseUnitsPerToken
	return sol / tokens, nil
}
