// Package models holds the core Qi wallet data types shared across every
// component: zones, addresses, outpoints and their statuses.
package models

import (
	"fmt"

	"github.com/dominant-strategies/go-qi-wallet/internal/walleterrors"
)

// Zone identifies one of the network's nine geographic partitions. The
// first two hex nibbles of an address encode the zone it belongs to.
type Zone string

const (
	ZoneCyprus1 Zone = "Cyprus1"
	ZoneCyprus2 Zone = "Cyprus2"
	ZoneCyprus3 Zone = "Cyprus3"
	ZonePaxos1  Zone = "Paxos1"
	ZonePaxos2  Zone = "Paxos2"
	ZonePaxos3  Zone = "Paxos3"
	ZoneHydra1  Zone = "Hydra1"
	ZoneHydra2  Zone = "Hydra2"
	ZoneHydra3  Zone = "Hydra3"
)

// AllZones lists the closed enumeration of zones in a stable order.
var AllZones = []Zone{
	ZoneCyprus1, ZoneCyprus2, ZoneCyprus3,
	ZonePaxos1, ZonePaxos2, ZonePaxos3,
	ZoneHydra1, ZoneHydra2, ZoneHydra3,
}

// Valid reports whether z is one of the nine known zones.
func (z Zone) Valid() bool {
	for _, known := range AllZones {
		if z == known {
			return true
		}
	}
	return false
}

func (z Zone) String() string {
	return string(z)
}

// ParseZone validates a raw zone string against the closed enumeration.
func ParseZone(s string) (Zone, error) {
	z := Zone(s)
	if !z.Valid() {
		return "", fmt.Errorf("%w: %q", walleterrors.ErrInvalidZone, s)
	}
	return z, nil
}
