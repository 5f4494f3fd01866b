// Package registry holds the read-only in-memory index over the
// authoritative street/address dataset and its exact, trigram and
// radius lookups.
//
// A build produces an immutable snapshot; queries run lock-free
// against whatever snapshot is current. Rebuild swaps snapshots
// atomically, so in-flight validations complete against the
// pre-rebuild data instead of blocking.
package registry

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dea-madrid/address-validation/internal/geo"
)

var (
	// ErrUnavailable is returned when no snapshot has been loaded yet.
	ErrUnavailable = eris.New("registry unavailable: no snapshot loaded")

	// ErrNoCoordinateIndex is returned by radius queries when the
	// current snapshot carries no coordinate data.
	ErrNoCoordinateIndex = eris.New("registry has no coordinate index")
)

// Source is the external authoritative data source the registry is
// built from. Loading is out of scope here; implementations only need
// to hand over a complete Dataset.
type Source interface {
	Fetch(ctx context.Context) (*Dataset, error)
}

// snapshot is one immutable build of the registry indexes.
type snapshot struct {
	streets           []StreetRecord
	streetSlotByID    map[int64]int32
	districtsByStreet map[int64][]StreetDistrictRecord
	addresses         []AddressRecord
	addrSlotsByStreet map[int64][]int32
	exactByName       map[string][]int32
	trigrams          *trigramIndex
	cells             *cellIndex // nil when no address carries coordinates
}

// Registry answers address lookups against the current snapshot.
// Queries need no locking; Rebuild serializes with itself only.
type Registry struct {
	log       *zap.Logger
	snap      atomic.Pointer[snapshot]
	rebuildMu sync.Mutex
}

// New creates an empty registry. Queries fail with ErrUnavailable
// until the first Load or Rebuild completes.
func New(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{log: log}
}

// Ready reports whether a snapshot is loaded.
func (r *Registry) Ready() bool {
	return r.snap.Load() != nil
}

// Size returns the street and address counts of the current snapshot.
func (r *Registry) Size() (streets, addresses int) {
	s := r.snap.Load()
	if s == nil {
		return 0, 0
	}
	return len(s.streets), len(s.addresses)
}

// Rebuild fetches the dataset from the source, builds fresh indexes
// and swaps them in atomically. Concurrent rebuilds are serialized;
// queries keep running against the previous snapshot throughout.
func (r *Registry) Rebuild(ctx context.Context, src Source) error {
	r.rebuildMu.Lock()
	defer r.rebuildMu.Unlock()

	ds, err := src.Fetch(ctx)
	if err != nil {
		return eris.Wrap(err, "fetch registry dataset")
	}
	return r.Load(ds)
}

// Load builds indexes from an already-fetched dataset and swaps them
// in. Used directly by tests and by offline tooling.
func (r *Registry) Load(ds *Dataset) error {
	s, dropped, err := buildSnapshot(ds)
	if err != nil {
		return eris.Wrap(err, "build registry snapshot")
	}
	r.snap.Store(s)

	r.log.Info("registry snapshot loaded",
		zap.Int("streets", len(s.streets)),
		zap.Int("addresses", len(s.addresses)),
		zap.Int("half_coordinate_pairs_nulled", dropped),
		zap.Bool("spatial_index", s.cells != nil),
	)
	return nil
}

func buildSnapshot(ds *Dataset) (*snapshot, int, error) {
	s := &snapshot{
		streets:           make([]StreetRecord, len(ds.Streets)),
		streetSlotByID:    make(map[int64]int32, len(ds.Streets)),
		districtsByStreet: make(map[int64][]StreetDistrictRecord),
		addresses:         make([]AddressRecord, len(ds.Addresses)),
		addrSlotsByStreet: make(map[int64][]int32),
		exactByName:       make(map[string][]int32),
	}

	copy(s.streets, ds.Streets)
	for slot, st := range s.streets {
		s.streetSlotByID[st.ID] = int32(slot)
	}
	for _, sd := range ds.StreetDistricts {
		s.districtsByStreet[sd.StreetID] = append(s.districtsByStreet[sd.StreetID], sd)
	}

	dropped := 0
	copy(s.addresses, ds.Addresses)
	for slot := range s.addresses {
		a := &s.addresses[slot]
		// Coordinate pairing invariant: a record may never carry only
		// one component. Null out both instead of trusting half a pair.
		if (a.Latitude == nil) != (a.Longitude == nil) {
			a.Latitude = nil
			a.Longitude = nil
			dropped++
		}
		s.addrSlotsByStreet[a.StreetID] = append(s.addrSlotsByStreet[a.StreetID], int32(slot))
		s.exactByName[a.StreetNameNormalized] = append(s.exactByName[a.StreetNameNormalized], int32(slot))
	}

	s.trigrams = buildTrigramIndex(s.streets)

	cells, err := buildCellIndex(s.addresses)
	if err != nil {
		return nil, dropped, err
	}
	s.cells = cells

	return s, dropped, nil
}

// FindExact returns all addresses whose normalized street name (and
// class, when given) match exactly. A nil house number means every
// number on the street.
func (r *Registry) FindExact(streetClass, normalizedStreetName string, houseNumber *int) ([]AddressRecord, error) {
	s := r.snap.Load()
	if s == nil {
		return nil, ErrUnavailable
	}

	var out []AddressRecord
	for _, slot := range s.exactByName[normalizedStreetName] {
		a := s.addresses[slot]
		if streetClass != "" && a.StreetClass != streetClass {
			continue
		}
		if houseNumber != nil && a.Number != *houseNumber {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// FindFuzzy ranks every known street by trigram similarity against the
// normalized query and returns those at or above minSimilarity,
// descending by score. Equal scores break toward the shorter street
// name, preferring a specific match over a longer coincidental
// superstring.
func (r *Registry) FindFuzzy(normalizedStreetName string, minSimilarity float64) ([]FuzzyMatch, error) {
	s := r.snap.Load()
	if s == nil {
		return nil, ErrUnavailable
	}

	scores := s.trigrams.query(normalizedStreetName, minSimilarity)
	out := make([]FuzzyMatch, 0, len(scores))
	for slot, sim := range scores {
		out = append(out, FuzzyMatch{Street: s.streets[slot], Similarity: sim})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		if len(out[i].Street.NameNormalized) != len(out[j].Street.NameNormalized) {
			return len(out[i].Street.NameNormalized) < len(out[j].Street.NameNormalized)
		}
		return out[i].Street.ID < out[j].Street.ID
	})
	return out, nil
}

// FindNearby returns all addresses with known coordinates within
// radiusMeters of the point, ascending by distance.
func (r *Registry) FindNearby(lat, lon, radiusMeters float64) ([]NearbyMatch, error) {
	if err := geo.ValidateLatLon(lat, lon); err != nil {
		return nil, err
	}

	s := r.snap.Load()
	if s == nil {
		return nil, ErrUnavailable
	}
	if s.cells == nil {
		return nil, ErrNoCoordinateIndex
	}

	slots, dists, err := s.cells.query(lat, lon, radiusMeters, s.addresses)
	if err != nil {
		return nil, eris.Wrap(err, "spatial query")
	}

	out := make([]NearbyMatch, len(slots))
	for i, slot := range slots {
		out[i] = NearbyMatch{Address: s.addresses[slot], DistanceM: dists[i]}
	}
	return out, nil
}

// DistrictsFor returns the district crossings of a street, or nil when
// the street is unknown.
func (r *Registry) DistrictsFor(streetID int64) []StreetDistrictRecord {
	s := r.snap.Load()
	if s == nil {
		return nil
	}
	return s.districtsByStreet[streetID]
}

// AddressesOnStreet returns the address points of a street, optionally
// restricted to one house number.
func (r *Registry) AddressesOnStreet(streetID int64, houseNumber *int) []AddressRecord {
	s := r.snap.Load()
	if s == nil {
		return nil
	}
	var out []AddressRecord
	for _, slot := range s.addrSlotsByStreet[streetID] {
		a := s.addresses[slot]
		if houseNumber != nil && a.Number != *houseNumber {
			continue
		}
		out = append(out, a)
	}
	return out
}

// StreetByID looks up a street record.
func (r *Registry) StreetByID(id int64) (StreetRecord, bool) {
	s := r.snap.Load()
	if s == nil {
		return StreetRecord{}, false
	}
	slot, ok := s.streetSlotByID[id]
	if !ok {
		return StreetRecord{}, false
	}
	return s.streets[slot], true
}
