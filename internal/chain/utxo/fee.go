package utxo

import (
	"math"
	"math/bits"
)

// DustLimit is the smallest output value, in satoshis, nodes will relay.
const DustLimit = 546

// Serialized sizes of a pay-to-pubkey-hash spend. An input is a 36 byte
// outpoint, a 107 byte signature script with its length prefix and a 4 byte
// sequence. An output is an 8 byte value and a 25 byte script with its
// prefix. The base covers version, locktime and both counts.
const (
	baseTxBytes   = 10
	p2pkhInBytes  = 148
	p2pkhOutBytes = 34
)

// EstimateTxSize returns the expected serialized size of a transaction
// spending inputs P2PKH coins into outputs P2PKH outputs.
func EstimateTxSize(inputs, outputs int) uint64 {
	n := baseTxBytes + inputs*p2pkhInBytes + outputs*p2pkhOutBytes
	return uint64(max(n, 0)) //nolint:gosec // G115: clamped above
}

// EstimateFeeForTx prices EstimateTxSize at feePerKB satoshis per 1000
// bytes, rounding a partial satoshi up.
func EstimateFeeForTx(inputs, outputs int, feePerKB uint64) uint64 {
	return feeForSize(EstimateTxSize(inputs, outputs), feePerKB)
}

// feeForSize saturates at math.MaxUint64 rather than wrapping.
func feeForSize(size, feePerKB uint64) uint64 {
	hi, cost := bits.Mul64(size, feePerKB)
	if hi != 0 {
		return math.MaxUint64
	}
	fee := cost / 1000
	if cost%1000 != 0 {
		fee++
	}
	return fee
}
