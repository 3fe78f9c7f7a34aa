package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ncml = `<?xml version="1.0" encoding="UTF-8"?>
<netcdf xmlns="http://www.unidata.ucar.edu/namespaces/netcdf/ncml-2.2">
  <dimension name="y" length="2"/>
  <attribute name="dataset_name" value="OR_ABI-L1b-RadF-M3C09_G16_s20170601200000.nc"/>
  <attribute name="platform_ID" value="G16"/>
  <variable name="Rad" shape="y x" type="short">
    <attribute name="long_name" value="radiance"/>
  </variable>
</netcdf>`

func newStore(t *testing.T, tracking, keep bool) (*DirStore, DirConfig) {
	t.Helper()
	root := t.TempDir()
	cfg := DirConfig{
		Out:         filepath.Join(root, "product"),
		Tmp:         filepath.Join(root, "tmp"),
		TrackDir:    filepath.Join(root, "track"),
		Tracking:    tracking,
		KeepStaging: keep,
		Provenance:  Provenance{Version: "GRB-R vtest", ProductionHost: "host", History: "h"},
	}
	s, err := NewDirStore(cfg)
	require.NoError(t, err)
	return s, cfg
}

func testInfo() Info {
	return Info{
		Key:        "ABI-L1b-RadF-M3C09_s2017060120000",
		Product:    "ABI Full Disk Metadata (Mode 3) Band 09",
		Instrument: "ABI",
		APID:       0x108,
		Time:       time.Date(2017, 3, 1, 12, 0, 0, 0, time.UTC),
		Track:      true,
	}
}

func TestTrimMetadata(t *testing.T) {
	assert.Equal(t, "<netcdf></netcdf>", string(TrimMetadata([]byte("<netcdf></netcdf>\x00\x00junk"))))
	assert.Equal(t, "no end", string(TrimMetadata([]byte("no end"))))
}

func TestDatasetName(t *testing.T) {
	name, err := DatasetName([]byte(ncml))
	require.NoError(t, err)
	assert.Equal(t, "OR_ABI-L1b-RadF-M3C09_G16_s20170601200000.nc", name)

	attrs, err := GlobalAttributes([]byte(ncml))
	require.NoError(t, err)
	assert.Equal(t, "G16", attrs["platform_ID"])
	assert.NotContains(t, attrs, "long_name", "variable attributes are not global")

	_, err = DatasetName([]byte(`<netcdf><attribute name="title" value="x"/></netcdf>`))
	assert.ErrorIs(t, err, ErrNoDatasetName)
}

func TestDirStore_SealLifecycle(t *testing.T) {
	s, cfg := newStore(t, true, false)
	ctx := context.Background()

	a, err := s.Open(ctx, testInfo())
	require.NoError(t, err)

	p := &Placement{ULX: 10, ULY: 20, Height: 2, Width: 3}
	require.NoError(t, a.WriteSlice(ctx, Record{Variable: "Rad", Placement: p, Data: []byte{1, 2, 3, 4, 5, 6}}))
	require.NoError(t, a.WriteSlice(ctx, Record{Variable: "DQF", Placement: p, Data: []byte{0, 0, 0}}))
	brX, brY := p.BottomRight()
	require.NoError(t, a.Track(p.ULX, p.ULY, brX, brY))

	_, err = a.Seal(ctx)
	assert.ErrorIs(t, err, ErrNoDatasetName, "sealing requires metadata")

	require.NoError(t, a.ApplyMetadata(ctx, []byte(ncml)))
	final, err := a.Seal(ctx)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Out, "OR_ABI-L1b-RadF-M3C09_G16_s20170601200000.nc"), final)

	f, err := os.Open(final)
	require.NoError(t, err)
	defer f.Close()
	recs, err := ReadRecords(f)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Rad", recs[0].Variable)
	assert.Equal(t, *p, *recs[0].Placement)
	assert.Equal(t, []byte{0, 0, 0}, recs[1].Data)

	m, err := ReadManifest(final + ManifestSuffix)
	require.NoError(t, err)
	assert.Equal(t, "sealed", m.State)
	assert.Equal(t, 2, m.Slices)
	assert.Equal(t, int64(9), m.Bytes)
	assert.Equal(t, "0x108", m.APID)
	assert.Equal(t, "host", m.Provenance.ProductionHost)

	assert.NoFileExists(t, filepath.Join(cfg.Tmp, testInfo().Key+PartSuffix))
	assert.NoFileExists(t, filepath.Join(cfg.Tmp, testInfo().Key+MetadataSuffix))
	assert.NoFileExists(t, filepath.Join(cfg.TrackDir, testInfo().Key+TrackSuffix))

	assert.ErrorIs(t, a.WriteSlice(ctx, Record{Variable: "Rad"}), ErrClosed)
}

func TestDirStore_KeepStagingAndTracking(t *testing.T) {
	s, cfg := newStore(t, true, true)
	ctx := context.Background()

	a, err := s.Open(ctx, testInfo())
	require.NoError(t, err)
	require.NoError(t, a.Track(0, 0, 226, 226))
	require.NoError(t, a.ApplyMetadata(ctx, []byte(ncml)))
	_, err = a.Seal(ctx)
	require.NoError(t, err)

	track, err := os.ReadFile(filepath.Join(cfg.TrackDir, testInfo().Key+TrackSuffix))
	require.NoError(t, err)
	assert.Equal(t, "0 0 226 226\n", string(track))
	assert.FileExists(t, filepath.Join(cfg.Tmp, testInfo().Key+MetadataSuffix))
}

func TestDirStore_SealDocument(t *testing.T) {
	s, cfg := newStore(t, false, false)
	ctx := context.Background()

	info := Info{Key: "GRB-INFO_s2017060120000", Product: "GRB Information", Instrument: "INFO", APID: 0x580}
	a, err := s.Open(ctx, info)
	require.NoError(t, err)

	_, err = a.SealDocument(ctx, "../escape.xml", []byte("<x/>"))
	assert.ErrorIs(t, err, ErrBadDocumentName)

	final, err := a.SealDocument(ctx, "GRB_INFO_20170601.xml", []byte("<info/>"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Out, "GRB_INFO_20170601.xml"), final)

	body, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "<info/>", string(body))

	m, err := ReadManifest(final + ManifestSuffix)
	require.NoError(t, err)
	assert.Equal(t, "sealed", m.State)
	assert.Equal(t, "GRB_INFO_20170601.xml", m.DatasetName)
	assert.Equal(t, 1, m.Slices)
	assert.Equal(t, "0x580", m.APID)
	assert.NoFileExists(t, a.Path())

	_, err = a.SealDocument(ctx, "again.xml", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDirStore_Abort(t *testing.T) {
	s, cfg := newStore(t, false, false)
	ctx := context.Background()

	a, err := s.Open(ctx, testInfo())
	require.NoError(t, err)
	require.NoError(t, a.WriteSlice(ctx, Record{Variable: "data", Data: []byte("x")}))
	require.NoError(t, a.Abort(ctx, "timed out"))
	require.NoError(t, a.Abort(ctx, "again"))

	m, err := ReadManifest(filepath.Join(cfg.Tmp, testInfo().Key+ManifestSuffix))
	require.NoError(t, err)
	assert.Equal(t, "aborted", m.State)
	assert.Equal(t, "timed out", m.Reason)
	assert.FileExists(t, a.Path(), "aborted artifacts stay in staging")

	entries, err := os.ReadDir(cfg.Out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPostProcessor_Empty(t *testing.T) {
	assert.NoError(t, PostProcessor{}.Run("/nowhere"))
	assert.Error(t, PostProcessor{Command: filepath.Join(t.TempDir(), "missing")}.Run("/nowhere"))
}
