// Package product tracks the products being reconstructed: how bundles are
// keyed to a product, the per-product state machine, and the registry that
// guarantees one live worker per key.
package product

import (
	"fmt"

	"firestige.xyz/grbr/internal/apid"
	"firestige.xyz/grbr/internal/core"
)

// Key names one eventual artifact.
type Key string

// SpareKey collects bundles from instruments without a naming rule.
const SpareKey Key = "SPARE"

// timeLayout renders s%Y%j%H%M%S.
const timeLayout = "2006002150405"

// DeriveKey builds the product key of a bundle from its headers:
//
//	<stub>_[<satellite>_]s<YYYY><DDD><HH><MM><SS>
//
// The time is the payload header timestamp truncated to the second.
// Bundles from an unrecognized instrument, or from an APID the
// instrument does not name, all map to SpareKey. A bundle without a
// payload header has no key.
func DeriveKey(h1 core.PrimaryHeader, h2 *core.SecondaryHeader, hp *core.PayloadHeader, satellite string) (Key, error) {
	if hp == nil {
		return "", fmt.Errorf("apid %#x: %w", h1.APID, core.ErrNoPayloadHeader)
	}
	stub, ok := Stub(h1.APID)
	if !ok {
		return SpareKey, nil
	}
	if satellite != "" {
		stub += "_" + satellite
	}
	return Key(stub + "_s" + hp.Time().Format(timeLayout)), nil
}

// Stub returns the instrument and product part of the key for a.
func Stub(a uint16) (string, bool) {
	switch apid.InstrumentOf(a) {
	case apid.ABI:
		sc, ok := apid.SceneOf(a)
		if !ok {
			return "", false
		}
		return sc.Stub(apid.BandNumber(a)), true
	case apid.GLM:
		return "GLM", true
	case apid.MAG:
		return "MAG", true
	case apid.SEISS:
		return seissStub(a)
	case apid.EXIS:
		return exisStub(a)
	case apid.SUVI:
		return suviStub(a)
	case apid.INFO:
		return "GRB-INFO", true
	default:
		return "", false
	}
}

func seissStub(a uint16) (string, bool) {
	switch a {
	case 0x400, 0x401:
		return "SEISS-EHIS", true
	case 0x410, 0x411:
		return "SEISS-MPSL", true
	case 0x420, 0x421:
		return "SEISS-MPSH", true
	case 0x430, 0x431:
		return "SEISS-SGPS", true
	}
	return "", false
}

func exisStub(a uint16) (string, bool) {
	switch a {
	case 0x380, 0x381:
		return "EXIS-EUV", true
	case 0x382, 0x383:
		return "EXIS-XRAY", true
	}
	return "", false
}

// Metadata and data APIDs for the same passband are six apart.
func suviStub(a uint16) (string, bool) {
	i := int(a - 0x480)
	if i >= len(apid.SUVIChannels) {
		i -= len(apid.SUVIChannels)
	}
	if i < 0 || i >= len(apid.SUVIChannels) {
		return "", false
	}
	return "SUVI-" + apid.SUVIChannels[i], true
}
