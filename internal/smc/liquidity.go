package smc

import (
	"math"
	"sort"
	"time"

	"forex-trading-bot/internal/market"
)

// swingPoint is an internal swing high or low
type swingPoint struct {
	price     float64
	index     int
	timestamp time.Time
}

// DetectLiquidityZones clusters swing highs into buyside zones and swing lows
// into sellside zones. Levels within ClusterTolerance percent of each other
// merge by averaging; a cluster's strength grows 25 points per member, capped
// at 100. Clusters below MinZoneStrength are dropped and the newest
// MaxLiquidityZones are kept.
func (d *Detector) DetectLiquidityZones(candles []market.Candle) []LiquidityZone {
	zones := make([]LiquidityZone, 0)

	highs := d.findSwingHighs(candles)
	lows := d.findSwingLows(candles)

	zones = append(zones, d.clusterSwings(highs, Buyside)...)
	zones = append(zones, d.clusterSwings(lows, Sellside)...)

	// Keep the newest N by timestamp but preserve detection order in the
	// output.
	if len(zones) > d.cfg.MaxLiquidityZones {
		sorted := make([]LiquidityZone, len(zones))
		copy(sorted, zones)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Timestamp.After(sorted[j].Timestamp)
		})
		cutoff := sorted[d.cfg.MaxLiquidityZones-1].Timestamp

		kept := make([]LiquidityZone, 0, d.cfg.MaxLiquidityZones)
		for _, z := range zones {
			if !z.Timestamp.Before(cutoff) && len(kept) < d.cfg.MaxLiquidityZones {
				kept = append(kept, z)
			}
		}
		zones = kept
	}
	return zones
}

// clusterSwings merges swing levels whose pairwise relative distance is below
// the tolerance, averaging the level and keeping the newest member timestamp.
func (d *Detector) clusterSwings(swings []swingPoint, side LiquiditySide) []LiquidityZone {
	tolerance := d.cfg.ClusterTolerance / 100

	type cluster struct {
		level     float64
		count     int
		timestamp time.Time
	}
	var clusters []*cluster

	for _, swing := range swings {
		merged := false
		for _, cl := range clusters {
			if cl.level != 0 && math.Abs(swing.price-cl.level)/cl.level < tolerance {
				// Running average keeps the cluster level centered
				cl.level = (cl.level*float64(cl.count) + swing.price) / float64(cl.count+1)
				cl.count++
				if swing.timestamp.After(cl.timestamp) {
					cl.timestamp = swing.timestamp
				}
				merged = true
				break
			}
		}
		if !merged {
			clusters = append(clusters, &cluster{
				level:     swing.price,
				count:     1,
				timestamp: swing.timestamp,
			})
		}
	}

	zones := make([]LiquidityZone, 0, len(clusters))
	for _, cl := range clusters {
		strength := math.Min(float64(cl.count)*25, 100)
		if strength < d.cfg.MinZoneStrength {
			continue
		}
		zones = append(zones, LiquidityZone{
			Side:      side,
			Level:     cl.level,
			Strength:  strength,
			Timestamp: cl.timestamp,
		})
	}
	return zones
}

// findSwingHighs returns candles whose high strictly exceeds every neighbor
// within SwingWindow candles on each side.
func (d *Detector) findSwingHighs(candles []market.Candle) []swingPoint {
	var swings []swingPoint
	w := d.cfg.SwingWindow

	for i := w; i < len(candles)-w; i++ {
		isSwing := true
		for j := i - w; j <= i+w; j++ {
			if j != i && candles[j].High >= candles[i].High {
				isSwing = false
				break
			}
		}
		if isSwing {
			swings = append(swings, swingPoint{
				price:     candles[i].High,
				index:     i,
				timestamp: candles[i].Timestamp,
			})
		}
	}
	return swings
}

// findSwingLows returns candles whose low is strictly below every neighbor
// within SwingWindow candles on each side.
func (d *Detector) findSwingLows(candles []market.Candle) []swingPoint {
	var swings []swingPoint
	w := d.cfg.SwingWindow

	for i := w; i < len(candles)-w; i++ {
		isSwing := true
		for j := i - w; j <= i+w; j++ {
			if j != i && candles[j].Low <= candles[i].Low {
				isSwing = false
				break
			}
		}
		if isSwing {
			swings = append(swings, swingPoint{
				price:     candles[i].Low,
				index:     i,
				timestamp: candles[i].Timestamp,
			})
		}
	}
	return swings
}
