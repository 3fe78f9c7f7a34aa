package apid

import "fmt"

// ABI product groups in APID order, 16 bands each from 0x080.
var abiGroups = []string{
	"ABI Full Disk Metadata (Mode 6)",
	"ABI Full Disk Radiance Image Data (Mode 6)",
	"ABI Continental United States Metadata (Mode 6)",
	"ABI Continental United States Radiance Image (Mode 6)",
	"ABI Mesoscale #1 Metadata (Mode 6)",
	"ABI Mesoscale #1 Radiance Image (Mode 6)",
	"ABI Mesoscale #2 Metadata (Mode 6)",
	"ABI Mesoscale #2 Radiance Image (Mode 6)",

	"ABI Full Disk Metadata (Mode 3)",
	"ABI Full Disk Radiance Image Data (Mode 3)",
	"ABI Continental United States Metadata (Mode 3)",
	"ABI Continental United States Radiance Image (Mode 3)",
	"ABI Mesoscale #1 Metadata (Mode 3)",
	"ABI Mesoscale #1 Radiance Image (Mode 3)",
	"ABI Mesoscale #2 Metadata (Mode 3)",
	"ABI Mesoscale #2 Radiance Image (Mode 3)",

	"ABI Full Disk Metadata (Mode 4)",
	"ABI Full Disk Radiance Image Data (Mode 4)",

	"ABI CONUS Metadata (Extracted from Full Disk Mode 4)",

	"ABI Non-Standard ABI Image Metadata",
	"ABI Non-Standard ABI Radiance Image Data",
}

const abiBase = 0x080

var names = buildNames()

func buildNames() map[uint16]string {
	m := map[uint16]string{
		0x300: "GLM Lightning Detection Metadata",
		0x301: "GLM Flash Data",
		0x302: "GLM Group Data",
		0x303: "GLM Event Data",

		0x380: "EXIS Solar Flux: EUV Metadata",
		0x381: "EXIS Solar Flux: EUV Data",
		0x382: "EXIS Solar Flux: X-Ray Metadata",
		0x383: "EXIS Solar Flux: X-Ray Data",

		0x400: "SEISS Energetic Heavy Ions Metadata",
		0x401: "SEISS Energetic Heavy Ions Data",
		0x410: "SEISS Magnetospheric Electrons and Protons: Low Energy Metadata",
		0x411: "SEISS Magnetospheric Electrons and Protons: Low Energy Data",
		0x420: "SEISS Magnetospheric Electrons and Protons: Medium and High Energy Metadata",
		0x421: "SEISS Magnetospheric Electrons and Protons: Medium and High Energy Data",
		0x430: "SEISS Solar and Galactic Protons Metadata",
		0x431: "SEISS Solar and Galactic Protons Data",

		0x500: "MAG Metadata",
		0x501: "MAG Product Data",

		0x580: "GRB INFO",
	}

	a := uint16(abiBase)
	for _, group := range abiGroups {
		for band := 1; band <= 16; band++ {
			m[a] = fmt.Sprintf("%s Band %02d", group, band)
			a++
		}
	}

	for i, ch := range SUVIChannels {
		m[0x480+uint16(i)] = "SUVI Solar Imagery: X-Ray Metadata Band " + ch
		m[0x486+uint16(i)] = "SUVI Solar Imagery: X-Ray Data Band " + ch
	}
	return m
}

// SUVIChannels lists the SUVI passbands in APID order.
var SUVIChannels = []string{"Fe094", "Fe132", "Fe171", "Fe195", "Fe284", "He304"}
