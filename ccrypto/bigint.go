package ccrypto

import (
	"fmt"
	"math/big"
)

// MaxU128 is the largest value representable in an unsigned 128-bit field.
var MaxU128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// MaxLocalMaxDebt is 2^127 - 1, the ceiling spec.md §3 places on
// local_max_debt/remote_max_debt/SetRemoteMaxDebt's argument.
var MaxLocalMaxDebt = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

// MinI128 and MaxI128 bound a signed 128-bit balance.
var (
	MaxI128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	MinI128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// BEBytes16 encodes a non-negative big.Int into 16 big-endian bytes,
// matching spec.md §6: "u128/i128 are 16 bytes big-endian". Negative
// values (for the signed balance) are encoded as their two's-complement
// 128-bit representation.
func BEBytes16(v *big.Int) [16]byte {
	var out [16]byte
	val := new(big.Int).Set(v)
	if val.Sign() < 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), 128)
		val.Add(val, mod)
	}
	b := val.Bytes()
	copy(out[16-len(b):], b)
	return out
}

// CheckU128 validates that v is within [0, 2^128-1].
func CheckU128(v *big.Int) error {
	if v.Sign() < 0 || v.Cmp(MaxU128) > 0 {
		return fmt.Errorf("value %s out of u128 range", v)
	}
	return nil
}

// CheckI128 validates that v is within [-2^127, 2^127-1].
func CheckI128(v *big.Int) error {
	if v.Cmp(MinI128) < 0 || v.Cmp(MaxI128) > 0 {
		return fmt.Errorf("value %s out of i128 range", v)
	}
	return nil
}

// CheckMaxDebt validates that v <= 2^127 - 1 (spec.md §3/§4.1:
// SetRemoteMaxDebt requires x <= 2^127 - 1).
func CheckMaxDebt(v *big.Int) error {
	if v.Sign() < 0 || v.Cmp(MaxLocalMaxDebt) > 0 {
		return fmt.Errorf("max debt %s exceeds 2^127-1", v)
	}
	return nil
}
