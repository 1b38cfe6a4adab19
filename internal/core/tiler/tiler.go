// Package tiler partitions a search disk into a deterministic ordered set of
// overlapping square tiles sized for provider query limits
package tiler

import (
	"fmt"
	"math"
)

// kilometers per degree of latitude, flat-earth approximation
const kmPerDegLat = 111.32

// Point is a WGS84 coordinate in decimal degrees
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// BBox is a tile bounding box in decimal degrees
type BBox struct {
	West  float64 `json:"west"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
	South float64 `json:"south"`
}

// Contains reports whether p lies inside the box
func (b BBox) Contains(p Point) bool {
	return p.Lat >= b.South && p.Lat <= b.North && p.Lon >= b.West && p.Lon <= b.East
}

// Tile is one bounded sub-region of the search disk
// the id is derived from creation order so a cursor can resume deterministically
type Tile struct {
	ID     string `json:"id"`
	Center Point  `json:"center"`
	Bounds BBox   `json:"bounds"`
}

// Build partitions the disk of radiusKm around center into ordered tiles.
// Grid step is max(tileSizeKm-overlapKm, 1km); a tile is emitted for every
// grid offset whose center distance from the query center is at most
// radiusKm + tileSizeKm/2, so the tile set over-covers the disk rather than
// under-covering it. Emission order is a row-major (y, x) sweep and is stable
// across calls with identical inputs.
func Build(center Point, radiusKm, tileSizeKm, overlapKm float64) []Tile {
	if radiusKm <= 0 || tileSizeKm <= 0 {
		return nil
	}

	step := tileSizeKm - overlapKm
	if step < 1 {
		step = 1
	}

	kmPerDegLon := kmPerDegLat * math.Cos(center.Lat*math.Pi/180)
	if kmPerDegLon <= 0 {
		// poles degenerate, keep longitude math finite
		kmPerDegLon = 1e-6
	}

	halfTile := tileSizeKm / 2
	reach := radiusKm + halfTile
	n := int(math.Ceil(reach / step))

	var tiles []Tile
	for y := -n; y <= n; y++ {
		for x := -n; x <= n; x++ {
			dx := float64(x) * step
			dy := float64(y) * step
			if math.Hypot(dx, dy) > reach {
				continue
			}
			c := Point{
				Lat: center.Lat + dy/kmPerDegLat,
				Lon: center.Lon + dx/kmPerDegLon,
			}
			tiles = append(tiles, Tile{
				ID:     fmt.Sprintf("t%d", len(tiles)),
				Center: c,
				Bounds: BBox{
					West:  c.Lon - halfTile/kmPerDegLon,
					East:  c.Lon + halfTile/kmPerDegLon,
					North: c.Lat + halfTile/kmPerDegLat,
					South: c.Lat - halfTile/kmPerDegLat,
				},
			})
		}
	}
	return tiles
}

// DistanceKm is the haversine distance between two points
func DistanceKm(a, b Point) float64 {
	const earthRadiusKm = 6371.0
	la1 := a.Lat * math.Pi / 180
	la2 := b.Lat * math.Pi / 180
	dla := (b.Lat - a.Lat) * math.Pi / 180
	dlo := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dla/2)*math.Sin(dla/2) +
		math.Cos(la1)*math.Cos(la2)*math.Sin(dlo/2)*math.Sin(dlo/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
