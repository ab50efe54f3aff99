// Package rate holds the fixed KES/satoshi conversion policy. The rate is a
// product constant, not market data: 150 KES buys exactly 1,000 sats, and
// integer conversion truncates in both directions so user-visible amounts are
// reproducible.
package rate

const (
	// KESPerBlock and SatsPerBlock express the fixed exchange rate
	// 150 KES == 1000 sats.
	KESPerBlock  = 150
	SatsPerBlock = 1000
)

// KESToSats converts a KES amount into satoshis, truncating.
func KESToSats(kes int64) int64 {
	return kes * SatsPerBlock / KESPerBlock
}

// SatsToKES converts satoshis into KES, truncating. SatsToKES(KESToSats(x))
// never exceeds x.
func SatsToKES(sats int64) int64 {
	return sats * KESPerBlock / SatsPerBlock
}
