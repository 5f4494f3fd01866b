package registry

import (
	"math"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/dea-madrid/address-validation/internal/geo"
)

// spatialRes is the H3 resolution used to bucket addresses. Resolution
// 9 cells have an edge length of roughly 174 m, a good fit for the
// sub-2 km radii this engine queries.
const (
	spatialRes      = 9
	spatialEdgeM    = 174.4
	maxGridDiskRing = 64
)

// cellIndex buckets address slots by their H3 cell so a radius query
// only inspects addresses in the covering grid disk instead of the
// whole registry.
type cellIndex struct {
	buckets map[h3.Cell][]int32
}

func buildCellIndex(addresses []AddressRecord) (*cellIndex, error) {
	idx := &cellIndex{buckets: make(map[h3.Cell][]int32)}
	for slot := range addresses {
		a := &addresses[slot]
		if !a.HasCoordinates() {
			continue
		}
		cell, err := h3.LatLngToCell(h3.NewLatLng(*a.Latitude, *a.Longitude), spatialRes)
		if err != nil {
			return nil, err
		}
		idx.buckets[cell] = append(idx.buckets[cell], int32(slot))
	}
	if len(idx.buckets) == 0 {
		return nil, nil
	}
	return idx, nil
}

// query returns the slots within radiusM of the point together with
// their exact haversine distances, ascending by distance. The grid
// disk over-covers; candidates are filtered by true distance.
func (idx *cellIndex) query(lat, lon, radiusM float64, addresses []AddressRecord) ([]int32, []float64, error) {
	origin, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), spatialRes)
	if err != nil {
		return nil, nil, err
	}

	k := int(math.Ceil(radiusM/spatialEdgeM)) + 1
	if k > maxGridDiskRing {
		k = maxGridDiskRing
	}
	disk, err := h3.GridDisk(origin, k)
	if err != nil {
		return nil, nil, err
	}

	type hit struct {
		slot int32
		dist float64
	}
	var hits []hit
	for _, cell := range disk {
		for _, slot := range idx.buckets[cell] {
			a := &addresses[slot]
			d, err := geo.DistanceMeters(lat, lon, *a.Latitude, *a.Longitude)
			if err != nil {
				return nil, nil, err
			}
			if d <= radiusM {
				hits = append(hits, hit{slot: slot, dist: d})
			}
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	slots := make([]int32, len(hits))
	dists := make([]float64, len(hits))
	for i, h := range hits {
		slots[i] = h.slot
		dists[i] = h.dist
	}
	return slots, dists, nil
}
