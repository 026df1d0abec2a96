// Package toyrsa implements a demonstration RSA round: trial-division
// primality, a gcd key check, square-and-multiply modular exponentiation and
// an optional CRT recombination. When the prime candidates fail, halved
// candidates are retried a bounded number of times.
//
// The primality test and inverse computation are intentionally naive; this
// is a workload kernel, not cryptography.
package toyrsa

import (
	"errors"
	"fmt"
	"math"

	"github.com/defistate/poolsim-go/fingerprint"
	"github.com/defistate/poolsim-go/fixedpoint"
)

var (
	// ErrInvalidKey is returned when a candidate pair never yields a usable
	// key, even after fallback halving.
	ErrInvalidKey = errors.New("invalid key material")
)

// fallbackAttempts bounds the candidate-halving retries.
const fallbackAttempts = 3

// Params is one encryption request.
type Params struct {
	PrimeP   uint64 `json:"primeP"`
	PrimeQ   uint64 `json:"primeQ"`
	Exponent uint64 `json:"exponent"`
	Message  uint64 `json:"message"`
	UseCRT   bool   `json:"useCRT"`
}

// Result is the outcome of one encryption round.
type Result struct {
	Ciphertext    uint64 `json:"ciphertext"`
	CRTCiphertext uint64 `json:"crtCiphertext"`
	PrimePUsed    uint64 `json:"primePUsed"`
	PrimeQUsed    uint64 `json:"primeQUsed"`
	WasFallback   bool   `json:"wasFallback"`
	Combined      uint64 `json:"combined"`
}

// Run encrypts the message under the candidate key pair.
func Run(params Params) (Result, error) {
	ciphertext, ok := encrypt(params.PrimeP, params.PrimeQ, params.Exponent, params.Message)
	if !ok || ciphertext == 0 {
		// A zero ciphertext is indistinguishable from a failed key here,
		// so it takes the fallback path too.
		return fallback(params)
	}

	var crt uint64
	if params.UseCRT {
		crt, _ = encryptCRT(params.PrimeP, params.PrimeQ, params.Exponent, params.Message)
	}
	return Result{
		Ciphertext:    ciphertext,
		CRTCiphertext: crt,
		PrimePUsed:    params.PrimeP,
		PrimeQUsed:    params.PrimeQ,
		Combined:      fingerprint.Fold(ciphertext, crt),
	}, nil
}

// fallback halves both candidates and retries, up to fallbackAttempts times.
// The CRT path is not attempted for fallback keys.
func fallback(params Params) (Result, error) {
	p, q := params.PrimeP, params.PrimeQ
	for attempt := 0; attempt < fallbackAttempts; attempt++ {
		p, q = p/2, q/2
		ciphertext, ok := encrypt(p, q, params.Exponent, params.Message)
		if !ok || ciphertext == 0 {
			continue
		}
		return Result{
			Ciphertext:  ciphertext,
			PrimePUsed:  p,
			PrimeQUsed:  q,
			WasFallback: true,
			Combined:    ciphertext,
		}, nil
	}
	return Result{}, fmt.Errorf("%w: p=%d q=%d e=%d", ErrInvalidKey,
		params.PrimeP, params.PrimeQ, params.Exponent)
}

// encrypt computes message^e mod p*q. ok is false when the candidates are
// not prime-like or the exponent shares a factor with the totient.
func encrypt(p, q, e, message uint64) (uint64, bool) {
	if !primeLike(p) || !primeLike(q) {
		return 0, false
	}
	n := fixedpoint.SatMul(p, q)

	phi := fixedpoint.SatMul(p-1, q-1)
	if gcd(e, phi) != 1 {
		return 0, false
	}
	return modExp(message, e, n), true
}

// encryptCRT computes the same ciphertext via per-prime residues and a
// naive CRT recombination.
func encryptCRT(p, q, e, message uint64) (uint64, bool) {
	if !primeLike(p) || !primeLike(q) {
		return 0, false
	}
	n := fixedpoint.SatMul(p, q)
	pEnc := modExp(message, e, p)
	qEnc := modExp(message, e, q)

	qInvModP := modInverse(q, p)
	pInvModQ := modInverse(p, q)
	if qInvModP == 0 || pInvModQ == 0 {
		return 0, false
	}

	partial1 := fixedpoint.SatMul(q, qInvModP) % n
	partial1 = fixedpoint.SatMul(partial1, pEnc) % n
	partial2 := fixedpoint.SatMul(p, pInvModQ) % n
	partial2 = fixedpoint.SatMul(partial2, qEnc) % n

	return fixedpoint.SatAdd(partial1, partial2) % n, true
}

// primeLike trial-divides up to the square root. Adequate for the small
// candidates this kernel sees.
func primeLike(candidate uint64) bool {
	if candidate < 2 {
		return false
	}
	for i := uint64(2); i*i <= candidate; i++ {
		if candidate%i == 0 {
			return false
		}
	}
	return true
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// modExp is square-and-multiply with saturating products. The saturation
// only matters for moduli above 2^32, where the truncated product keeps the
// function deterministic instead of overflowing.
func modExp(base, exp, modulus uint64) uint64 {
	if modulus == 0 {
		return 0
	}
	result := uint64(1)
	current := base % modulus
	for e := exp; e > 0; e >>= 1 {
		if e&1 == 1 {
			result = fixedpoint.SatMul(result, current) % modulus
		}
		current = fixedpoint.SatMul(current, current) % modulus
	}
	return result
}

// modInverse returns the inverse of a modulo m via extended gcd, or 0 when
// no inverse exists.
func modInverse(a, m uint64) uint64 {
	if m == 0 {
		return 0
	}
	g, x := extendedGCD(int64(a), int64(m))
	if g != 1 {
		return 0
	}
	inv := x % int64(m)
	if inv < 0 {
		inv = satAddInt64(inv, int64(m))
	}
	return uint64(inv)
}

// extendedGCD returns gcd(a, b) and the a-coefficient of the Bezout
// identity.
func extendedGCD(a, b int64) (int64, int64) {
	if b == 0 {
		return a, 1
	}
	g, x1 := extendedGCD(b, a%b)
	x := satSubInt64(0, satDivInt64(a, b)) * x1
	return g, x1 - x
}

func satAddInt64(a, b int64) int64 {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		if b > 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return sum
}

func satSubInt64(a, b int64) int64 {
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		if b < 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return diff
}

func satDivInt64(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	return a / b
}
