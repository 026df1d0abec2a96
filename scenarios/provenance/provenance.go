// Package provenance scores a product's data lineage: the production
// environment is validated against a required bitmask, a wide lineage hash
// is derived from the product identity and quality score, and the
// certification bitmask is folded into the final integrity value. Products
// from invalid environments get a bounded number of repair attempts.
package provenance

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"math/bits"
)

// ErrEnvironmentInvalid is returned when the environment flags never satisfy
// the required mask, even after fallback repairs.
var ErrEnvironmentInvalid = errors.New("environment invalid")

// requiredEnvMask demands bits 0 and 2 of the environment flags.
const requiredEnvMask uint32 = 0b101

// fallbackAttempts bounds the environment-repair retries.
const fallbackAttempts = 3

// lineagePrime seeds the lineage hash product.
var lineagePrime = big.NewInt(104_729)

// maxUint64Big masks the lineage hash down to its low 64 bits.
var maxUint64Big = new(big.Int).SetUint64(math.MaxUint64)

// Params describes one product lineage check.
type Params struct {
	ProductID     uint64 `json:"productId"`
	EnvFlags      uint32 `json:"envFlags"`
	QualityScore  uint64 `json:"qualityScore"`
	Certification uint32 `json:"certification"`
}

// Result is the outcome of one lineage check.
type Result struct {
	EnvFlagsUsed    uint32 `json:"envFlagsUsed"`
	QualityUsed     uint64 `json:"qualityUsed"`
	CertTransformed uint32 `json:"certTransformed"`
	WasFallback     bool   `json:"wasFallback"`
	Combined        uint64 `json:"combined"`
}

// Run validates the environment and computes the integrity value.
func Run(params Params) (Result, error) {
	if validEnvironment(params.EnvFlags) {
		return score(params.ProductID, params.EnvFlags, params.QualityScore, params.Certification, false), nil
	}
	return fallback(params)
}

// fallback first tries promoting environment bits by shifting left, then
// halving the quality score, recursing with the shifted flags otherwise.
func fallback(params Params) (Result, error) {
	envFlags := params.EnvFlags
	for attempt := 0; attempt < fallbackAttempts; attempt++ {
		shifted := envFlags << 1
		if validEnvironment(shifted) {
			return score(params.ProductID, shifted, params.QualityScore, params.Certification, true), nil
		}
		if halfQuality := params.QualityScore / 2; validEnvironment(envFlags) && halfQuality > 0 {
			return score(params.ProductID, envFlags, halfQuality, params.Certification, true), nil
		}
		envFlags = shifted
	}
	return Result{}, fmt.Errorf("%w: flags=%#b product=%d",
		ErrEnvironmentInvalid, params.EnvFlags, params.ProductID)
}

func score(productID uint64, envFlags uint32, quality uint64, certification uint32, isFallback bool) Result {
	hash := lineageHash(productID, envFlags, quality)
	cert := transformCertification(certification)
	return Result{
		EnvFlagsUsed:    envFlags,
		QualityUsed:     quality,
		CertTransformed: cert,
		WasFallback:     isFallback,
		Combined:        combineFinal(hash, cert, quality),
	}
}

func validEnvironment(envFlags uint32) bool {
	return envFlags&requiredEnvMask == requiredEnvMask
}

// lineageHash mixes identity, environment and quality into a wide product:
// (id << 3) * (env + 1) * (quality + 1) * prime.
func lineageHash(productID uint64, envFlags uint32, quality uint64) *big.Int {
	hash := new(big.Int).Lsh(new(big.Int).SetUint64(productID), 3)
	hash.Mul(hash, new(big.Int).SetUint64(uint64(envFlags)+1))
	hash.Mul(hash, new(big.Int).Add(new(big.Int).SetUint64(quality), big.NewInt(1)))
	return hash.Mul(hash, lineagePrime)
}

// transformCertification rotates, shifts and popcounts the certification
// bits into a compact digest.
func transformCertification(certMask uint32) uint32 {
	combined := bits.RotateLeft32(certMask, 5)>>2 | certMask
	return combined ^ uint32(bits.OnesCount32(combined))
}

// combineFinal folds the low 64 bits of the lineage hash with the validity
// bit, the certification digest and the quality score.
func combineFinal(hash *big.Int, certTransform uint32, quality uint64) uint64 {
	lineageLo := new(big.Int).And(hash, maxUint64Big).Uint64()
	const validityBit = uint64(1)
	x := bits.RotateLeft64(lineageLo, 7) ^ validityBit
	y := uint64(certTransform) ^ quality
	return x ^ y
}
