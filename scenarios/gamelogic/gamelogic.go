// Package gamelogic settles one forging action for a player: the legendary
// item cost is derived from materials and rarity, checked against the
// player's energy and focus, and folded together with a combat damage roll
// and the experience curve. Players who cannot afford the full cost get
// three fallback rounds at halved materials and rarity.
package gamelogic

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/defistate/poolsim-go/fingerprint"
)

// ErrInsufficientResources is returned when the player cannot afford the
// forging cost even after fallback halving.
var ErrInsufficientResources = errors.New("insufficient resources")

const (
	// fallbackAttempts bounds the materials/rarity halving rounds.
	fallbackAttempts = 3
	// combatDefense is the fixed defense stat of the training dummy.
	combatDefense = 100
	// xpRate is the fixed experience rate of the level curve.
	xpRate = 10
)

// forgeMultiplier scales material cost into currency.
var forgeMultiplier = big.NewInt(1000)

// Params describes one forging action.
type Params struct {
	PlayerEnergy  uint64 `json:"playerEnergy"`
	PlayerFocus   uint32 `json:"playerFocus"`
	BaseMaterials uint64 `json:"baseMaterials"`
	RarityFactor  uint32 `json:"rarityFactor"`
}

// Result is the outcome of one settled action.
type Result struct {
	ForgingCost   uint64 `json:"forgingCost"`
	DamageDealt   uint64 `json:"damageDealt"`
	XPNeeded      uint64 `json:"xpNeeded"`
	MaterialsUsed uint64 `json:"materialsUsed"`
	RarityUsed    uint32 `json:"rarityUsed"`
	WasFallback   bool   `json:"wasFallback"`
	Combined      uint64 `json:"combined"`
}

// Run settles the action.
func Run(params Params) (Result, error) {
	cost := forgeCost(params.BaseMaterials, params.RarityFactor)
	focusCost := satMulUint32(params.RarityFactor, 2)

	if !canAfford(params.PlayerEnergy, params.PlayerFocus, cost, focusCost) {
		return fallback(params)
	}

	attackPower := satAddUint32(params.RarityFactor, 50)
	damage := combatDamage(attackPower, combatDefense)
	xpNeeded := experienceForLevel(params.RarityFactor, xpRate)

	return Result{
		ForgingCost:   cost,
		DamageDealt:   damage,
		XPNeeded:      xpNeeded,
		MaterialsUsed: params.BaseMaterials,
		RarityUsed:    params.RarityFactor,
		Combined: fingerprint.Fold(
			cost, damage, xpNeeded, params.PlayerEnergy, params.BaseMaterials,
		),
	}, nil
}

// fallback retries the forge at halved materials and rarity. The fallback
// fingerprint is a 32-bit fold of the reduced cost and remaining resources.
func fallback(params Params) (Result, error) {
	materials, rarity := params.BaseMaterials, params.RarityFactor
	for attempt := 0; attempt < fallbackAttempts; attempt++ {
		materials, rarity = materials/2, rarity/2
		cost := forgeCost(materials, rarity)
		if !canAfford(params.PlayerEnergy, params.PlayerFocus, cost, rarity) {
			continue
		}
		combined := uint32(cost) ^ rarity ^ uint32(params.PlayerEnergy) ^ params.PlayerFocus
		return Result{
			ForgingCost:   cost,
			MaterialsUsed: materials,
			RarityUsed:    rarity,
			WasFallback:   true,
			Combined:      uint64(combined),
		}, nil
	}
	return Result{}, fmt.Errorf("%w: energy=%d focus=%d materials=%d rarity=%d",
		ErrInsufficientResources, params.PlayerEnergy, params.PlayerFocus,
		params.BaseMaterials, params.RarityFactor)
}

func canAfford(energy uint64, focus uint32, costEnergy uint64, costFocus uint32) bool {
	return energy >= costEnergy && focus >= costFocus
}

// forgeCost is materials * rarity * 1000, saturating at the 64-bit ceiling.
func forgeCost(materials uint64, rarity uint32) uint64 {
	cost := new(big.Int).SetUint64(materials)
	cost.Mul(cost, new(big.Int).SetUint64(uint64(rarity)))
	cost.Mul(cost, forgeMultiplier)
	if !cost.IsUint64() {
		return math.MaxUint64
	}
	return cost.Uint64()
}

// combatDamage is attackPower^2 / defense.
func combatDamage(attackPower, defense uint32) uint64 {
	squared := uint64(satMulUint32(attackPower, attackPower))
	return squared / uint64(max(defense, 1))
}

// experienceForLevel is level^3 + rate^2, saturating at the 64-bit ceiling.
func experienceForLevel(level, rate uint32) uint64 {
	needed := new(big.Int).SetUint64(uint64(level))
	needed.Mul(needed, needed).Mul(needed, new(big.Int).SetUint64(uint64(level)))
	rateSq := new(big.Int).SetUint64(uint64(rate))
	needed.Add(needed, rateSq.Mul(rateSq, rateSq))
	if !needed.IsUint64() {
		return math.MaxUint64
	}
	return needed.Uint64()
}

func satAddUint32(a, b uint32) uint32 {
	if sum := a + b; sum >= a {
		return sum
	}
	return ^uint32(0)
}

func satMulUint32(a, b uint32) uint32 {
	wide := uint64(a) * uint64(b)
	if wide > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(wide)
}
