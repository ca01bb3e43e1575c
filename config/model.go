// Package config holds the engine's immutable configuration value types:
// Dataset, DatasetElement, InterfaceDef, PdTelegramDef, and the ConfigModel
// that aggregates them. Instances are produced by xmlload and, once built,
// never mutated — engine.Engine deep-copies what it needs out of a
// ConfigModel before XmlConfigLoader's own storage may be released.
package config

import (
	"strconv"

	"github.com/OneOfOne/xxhash"
)

// ElementType is the closed enumeration of dataset element wire types this
// engine's codec understands. Any other numeric type value is carried as
// Opaque and refused by the codec (spec §3, §4.6).
type ElementType int

const (
	Opaque ElementType = iota
	BOOL8
	UINT8
	INT8
	UINT16
	INT16
	UINT32
	INT32
)

func (t ElementType) String() string {
	switch t {
	case BOOL8:
		return "BOOL8"
	case UINT8:
		return "UINT8"
	case INT8:
		return "INT8"
	case UINT16:
		return "UINT16"
	case INT16:
		return "INT16"
	case UINT32:
		return "UINT32"
	case INT32:
		return "INT32"
	default:
		return "OPAQUE"
	}
}

// Size returns the on-wire byte width of one scalar instance of t, or 0 for
// Opaque (which the codec always skips).
func (t ElementType) Size() int {
	switch t {
	case BOOL8, UINT8, INT8:
		return 1
	case UINT16, INT16:
		return 2
	case UINT32, INT32:
		return 4
	default:
		return 0
	}
}

// Direction is a PD telegram's transmission role from the perspective of
// the host the configuration was loaded for (spec §3, §4.1).
type Direction int

const (
	Source Direction = iota
	Sink
	SourceSink
)

func (d Direction) String() string {
	switch d {
	case Source:
		return "Source"
	case Sink:
		return "Sink"
	default:
		return "SourceSink"
	}
}

// DatasetElement is one named, typed, possibly-array field within a
// Dataset (spec §3).
type DatasetElement struct {
	Name      string
	Type      ElementType
	ArraySize uint32 // 0 means scalar
}

// Count returns the repetition count for this element: 1 for a scalar, or
// ArraySize for an array (spec §4.6).
func (e DatasetElement) Count() uint32 {
	if e.ArraySize == 0 {
		return 1
	}
	return e.ArraySize
}

// Dataset is a typed record schema, addressed by numeric DatasetID,
// immutable after load (spec §3).
type Dataset struct {
	ID       uint32
	Name     string
	Elements []DatasetElement
}

// InterfaceDef is a network interface the engine binds to (spec §3).
type InterfaceDef struct {
	Name      string
	NetworkID uint32
	HostIP    string // dotted quad
}

// PdTelegramDef is one PD telegram definition (spec §3).
type PdTelegramDef struct {
	Name          string
	ComID         uint32
	DatasetID     uint32
	Direction     Direction
	CycleUS       uint32
	Marshall      bool // carried, inert: codec is unconditionally big-endian (spec §3, §4.6)
	InterfaceName string
}

// ConfigModel is the immutable, deep-copyable result of loading an XML
// configuration for a given host (spec §3). Engine.LoadConfig copies the
// slices it needs out of this model; the loader's own working storage may
// be discarded afterward.
type ConfigModel struct {
	Interfaces []InterfaceDef
	Datasets   []Dataset
	Telegrams  []PdTelegramDef

	// ConfigFingerprint is a 64-bit hash of the raw XML bytes the model
	// was parsed from (SPEC_FULL §11), so a caller can tell whether a
	// given load_config call actually installed a new generation.
	ConfigFingerprint uint64
}

// Fingerprint hashes raw XML bytes the way ConfigModel.ConfigFingerprint
// is computed, exposed standalone so the loader and tests can both use it.
func Fingerprint(xmlBytes []byte) uint64 {
	return xxhash.Checksum64(xmlBytes)
}

// DatasetByID returns the Dataset with the given id, or false if none of
// the loaded datasets carry that id.
func (c *ConfigModel) DatasetByID(id uint32) (Dataset, bool) {
	for _, d := range c.Datasets {
		if d.ID == id {
			return d, true
		}
	}
	return Dataset{}, false
}

// InterfaceByName returns the InterfaceDef with the given name, or false.
func (c *ConfigModel) InterfaceByName(name string) (InterfaceDef, bool) {
	for _, i := range c.Interfaces {
		if i.Name == name {
			return i, true
		}
	}
	return InterfaceDef{}, false
}

// FingerprintString renders ConfigFingerprint as a lowercase hex string
// without leading zeros, convenient for snapshots and log lines.
func (c *ConfigModel) FingerprintString() string {
	return strconv.FormatUint(c.ConfigFingerprint, 16)
}
