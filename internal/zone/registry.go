// Package zone provides the Zone metadata lookup table, adapted from
// the teacher's internal/services/coinregistry (a SLIP-44 coin metadata
// registry) into the nine-entry Zone table spec §6 names but does not
// itself define a type for.
package zone

import (
	"fmt"

	"github.com/dominant-strategies/go-qi-wallet/internal/models"
)

// Metadata describes one zone: its human name, its region grouping, and
// the address-prefix byte that routes an address to it (spec §6:
// "each with an address prefix (first two hex nibbles)").
type Metadata struct {
	Zone   models.Zone
	Region string // "Cyprus" | "Paxos" | "Hydra"
	Prefix byte   // first byte of an address routed to this zone
}

// Registry is an indexed table of the nine zones.
type Registry struct {
	entries    []Metadata
	byZone     map[models.Zone]*Metadata
	byPrefix   map[byte]*Metadata
}

// NewRegistry builds the fixed nine-zone table.
func NewRegistry() *Registry {
	r := &Registry{
		byZone:   make(map[models.Zone]*Metadata),
		byPrefix: make(map[byte]*Metadata),
	}

	r.add(Metadata{Zone: models.ZoneCyprus1, Region: "Cyprus", Prefix: 0x00})
	r.add(Metadata{Zone: models.ZoneCyprus2, Region: "Cyprus", Prefix: 0x01})
	r.add(Metadata{Zone: models.ZoneCyprus3, Region: "Cyprus", Prefix: 0x02})
	r.add(Metadata{Zone: models.ZonePaxos1, Region: "Paxos", Prefix: 0x10})
	r.add(Metadata{Zone: models.ZonePaxos2, Region: "Paxos", Prefix: 0x11})
	r.add(Metadata{Zone: models.ZonePaxos3, Region: "Paxos", Prefix: 0x12})
	r.add(Metadata{Zone: models.ZoneHydra1, Region: "Hydra", Prefix: 0x20})
	r.add(Metadata{Zone: models.ZoneHydra2, Region: "Hydra", Prefix: 0x21})
	r.add(Metadata{Zone: models.ZoneHydra3, Region: "Hydra", Prefix: 0x22})

	return r
}

func (r *Registry) add(m Metadata) {
	r.entries = append(r.entries, m)
	entry := &r.entries[len(r.entries)-1]
	r.byZone[m.Zone] = entry
	r.byPrefix[m.Prefix] = entry
}

// Lookup returns the Metadata for z, or an error if z is not a known zone.
func (r *Registry) Lookup(z models.Zone) (Metadata, error) {
	m, ok := r.byZone[z]
	if !ok {
		return Metadata{}, fmt.Errorf("zone %s not in registry", z)
	}
	return *m, nil
}

// ZoneForPrefix routes an address's leading byte to its zone. Returns
// false if no zone claims that prefix (spec §3: misrouting is a
// derivation error handled by skip-and-retry, not a panic).
func (r *Registry) ZoneForPrefix(prefix byte) (models.Zone, bool) {
	m, ok := r.byPrefix[prefix]
	if !ok {
		return "", false
	}
	return m.Zone, true
}

// InZone reports whether addressBytes (the raw 20-byte address) belongs
// to zone z, by comparing its leading byte against the registry.
func (r *Registry) InZone(addressBytes []byte, z models.Zone) bool {
	if len(addressBytes) == 0 {
		return false
	}
	got, ok := r.ZoneForPrefix(addressBytes[0])
	return ok && got == z
}

// All returns every zone's metadata.
func (r *Registry) All() []Metadata {
	out := make([]Metadata, len(r.entries))
	copy(out, r.entries)
	return out
}
