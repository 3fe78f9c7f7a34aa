package apid

import "fmt"

// Band describes one ABI channel.
type Band struct {
	Number     int
	Wavelength float64 // µm
	Resolution float64 // km at nadir
	BitDepth   int
}

// Mask returns the mask selecting the significant bits of a sample.
func (b Band) Mask() uint16 {
	return uint16(1)<<b.BitDepth - 1
}

// ChunkSize is the storage chunk of every ABI band, rows by columns.
var ChunkSize = [2]int{226, 226}

var bands = [...]Band{
	{1, 0.47, 1, 10},
	{2, 0.64, 0.5, 12},
	{3, 0.865, 1, 10},
	{4, 1.378, 2, 11},
	{5, 1.61, 1, 10},
	{6, 2.25, 2, 10},
	{7, 3.9, 2, 14},
	{8, 6.185, 2, 12},
	{9, 6.95, 2, 11},
	{10, 7.34, 2, 12},
	{11, 8.5, 2, 12},
	{12, 9.61, 2, 11},
	{13, 10.35, 2, 12},
	{14, 11.2, 2, 12},
	{15, 12.3, 2, 12},
	{16, 13.3, 2, 10},
}

// BandNumber returns the ABI band carried on a. Bands cycle every 16 APIDs.
func BandNumber(a uint16) int {
	return int(a%16) + 1
}

// BandOf returns the band table entry for an ABI APID.
func BandOf(a uint16) Band {
	return bands[BandNumber(a)-1]
}

// Region is the ABI scan region.
type Region uint8

const (
	RegionUnknown Region = iota
	RegionFullDisk
	RegionCONUS
	RegionMeso1
	RegionMeso2
)

func (r Region) String() string {
	switch r {
	case RegionFullDisk:
		return "full disk"
	case RegionCONUS:
		return "conus"
	case RegionMeso1, RegionMeso2:
		return "mesoscale"
	default:
		return "unknown"
	}
}

// code is the region letter used in product names.
func (r Region) code() string {
	switch r {
	case RegionFullDisk:
		return "F"
	case RegionCONUS:
		return "C"
	case RegionMeso1:
		return "M1"
	case RegionMeso2:
		return "M2"
	default:
		return ""
	}
}

// Scene is the region and scan mode of an ABI APID.
type Scene struct {
	Region Region
	Mode   int
}

// Stub returns the product name stem, e.g. "ABI-L1b-RadF-M6C02".
func (s Scene) Stub(band int) string {
	return fmt.Sprintf("ABI-L1b-Rad%s-M%dC%02d", s.Region.code(), s.Mode, band)
}

var scenes = []struct {
	span
	Scene
}{
	{span{0x080, 0x09f}, Scene{RegionFullDisk, 6}},
	{span{0x0a0, 0x0bf}, Scene{RegionCONUS, 6}},
	{span{0x0c0, 0x0df}, Scene{RegionMeso1, 6}},
	{span{0x0e0, 0x0ff}, Scene{RegionMeso2, 6}},
	{span{0x100, 0x11f}, Scene{RegionFullDisk, 3}},
	{span{0x120, 0x13f}, Scene{RegionCONUS, 3}},
	{span{0x140, 0x15f}, Scene{RegionMeso1, 3}},
	{span{0x160, 0x17f}, Scene{RegionMeso2, 3}},
	{span{0x180, 0x19f}, Scene{RegionFullDisk, 4}},
}

// SceneOf returns the scene of an ABI APID.
func SceneOf(a uint16) (Scene, bool) {
	for _, s := range scenes {
		if s.has(a) {
			return s.Scene, true
		}
	}
	return Scene{}, false
}

// Size is an image extent in pixels.
type Size struct {
	Rows, Cols int
}

var resolutions = map[Region]map[float64]Size{
	RegionFullDisk: {
		0.5: {21696, 21696},
		1:   {10848, 10848},
		2:   {5424, 5424},
		4:   {2712, 2712},
		10:  {1086, 1086},
	},
	RegionCONUS: {
		0.5: {6000, 10000},
		1:   {3000, 5000},
		2:   {1500, 2500},
		10:  {300, 500},
	},
	RegionMeso1: mesoscale,
	RegionMeso2: mesoscale,
}

var mesoscale = map[float64]Size{
	0.5: {2000, 2000},
	1:   {1000, 1000},
	2:   {500, 500},
	4:   {250, 250},
	10:  {100, 100},
}

// ImageSize returns the full image extent of an ABI APID.
func ImageSize(a uint16) (Size, bool) {
	sc, ok := SceneOf(a)
	if !ok {
		return Size{}, false
	}
	sz, ok := resolutions[sc.Region][BandOf(a).Resolution]
	return sz, ok
}
