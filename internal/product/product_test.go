package product

import (
	"errors"
	"testing"

	"firestige.xyz/grbr/internal/apid"
	"firestige.xyz/grbr/internal/core"
)

func newTestProduct() *Product {
	b := &core.Bundle{
		Primary: core.PrimaryHeader{APID: 0x118},
		Payload: sample,
	}
	return New("ABI-L1b-RadF-M3C09_s2017060120000", b)
}

func TestNew(t *testing.T) {
	p := newTestProduct()
	if p.State() != StateOpen {
		t.Fatalf("expected open, got %s", p.State())
	}
	if p.Instrument != apid.ABI || p.Name != "ABI Full Disk Radiance Image Data (Mode 3) Band 09" {
		t.Fatalf("unexpected identity %s %q", p.Instrument, p.Name)
	}
	if !p.Time.Equal(sample.Time()) {
		t.Fatalf("expected time %v, got %v", sample.Time(), p.Time)
	}
}

func TestProduct_MetadataOnce(t *testing.T) {
	p := newTestProduct()

	apply, err := p.AcceptMetadata([]byte("<netcdf/>"))
	if err != nil || !apply {
		t.Fatalf("expected first metadata to apply, got %v, %v", apply, err)
	}
	if p.State() != StateMetadataReceived {
		t.Fatalf("expected metadata_received, got %s", p.State())
	}

	apply, err = p.AcceptMetadata([]byte("<netcdf/>"))
	if err != nil || apply {
		t.Fatalf("identical metadata must be ignored, got %v, %v", apply, err)
	}

	apply, err = p.AcceptMetadata([]byte("<netcdf a='1'/>"))
	if !errors.Is(err, core.ErrMetadataConflict) || apply {
		t.Fatalf("expected conflict, got %v, %v", apply, err)
	}
	if string(p.Metadata()) != "<netcdf/>" {
		t.Fatalf("conflicting metadata must not replace the original, got %q", p.Metadata())
	}
}

func TestProduct_SealAndTimeout(t *testing.T) {
	p := newTestProduct()
	if err := p.Seal(); err == nil {
		t.Fatal("sealing without metadata should fail")
	}
	if err := p.AcceptData(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.AcceptMetadata([]byte("m")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Seal(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.TimeOut() {
		t.Fatal("a sealed product cannot time out")
	}
	if err := p.AcceptData(); !errors.Is(err, core.ErrProductClosed) {
		t.Fatalf("expected ErrProductClosed, got %v", err)
	}

	q := newTestProduct()
	if !q.TimeOut() || q.State() != StateTimedOut {
		t.Fatalf("expected timed_out, got %s", q.State())
	}
	if _, err := q.AcceptMetadata([]byte("m")); !errors.Is(err, core.ErrProductClosed) {
		t.Fatalf("expected ErrProductClosed, got %v", err)
	}
	if q.Slices() != 0 {
		t.Fatalf("expected no slices, got %d", q.Slices())
	}
}

func TestProduct_Seen(t *testing.T) {
	p := newTestProduct()
	ref := core.Reference{Offset: 42, Source: "/data/grb.ccsds"}
	if p.Seen(ref) {
		t.Fatal("first delivery reported as repeat")
	}
	if p.Seen(ref) {
		t.Fatal("a reference that was never applied reported as repeat")
	}
	p.Applied(ref)
	if !p.Seen(ref) {
		t.Fatal("applied reference not reported as repeat")
	}
	if p.Seen(core.Reference{Offset: 43, Source: ref.Source}) {
		t.Fatal("different offset reported as repeat")
	}
}

func TestProduct_AcceptDocument(t *testing.T) {
	p := newTestProduct()
	if err := p.AcceptDocument(); err != nil {
		t.Fatalf("AcceptDocument: %v", err)
	}
	if p.State() != StateMetadataReceived {
		t.Fatalf("expected %s, got %s", StateMetadataReceived, p.State())
	}
	if err := p.AcceptDocument(); !errors.Is(err, core.ErrProductClosed) {
		t.Fatalf("second document: expected ErrProductClosed, got %v", err)
	}
	if err := p.Seal(); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if p.Slices() != 1 {
		t.Fatalf("expected 1 slice, got %d", p.Slices())
	}
}
