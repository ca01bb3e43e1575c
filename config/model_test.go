package config_test

import (
	"testing"

	"github.com/tlc-io/tlcengine/config"
)

func TestDatasetElementCount(t *testing.T) {
	cases := []struct {
		arraySize uint32
		want      uint32
	}{
		{0, 1},
		{1, 1},
		{5, 5},
	}
	for _, c := range cases {
		e := config.DatasetElement{ArraySize: c.arraySize}
		if got := e.Count(); got != c.want {
			t.Errorf("ArraySize=%d: Count()=%d, want %d", c.arraySize, got, c.want)
		}
	}
}

func TestElementTypeSize(t *testing.T) {
	cases := map[config.ElementType]int{
		config.BOOL8:  1,
		config.UINT8:  1,
		config.INT8:   1,
		config.UINT16: 2,
		config.INT16:  2,
		config.UINT32: 4,
		config.INT32:  4,
		config.Opaque: 0,
	}
	for typ, want := range cases {
		if got := typ.Size(); got != want {
			t.Errorf("%v.Size() = %d, want %d", typ, got, want)
		}
	}
}

func TestConfigModelLookups(t *testing.T) {
	m := &config.ConfigModel{
		Interfaces: []config.InterfaceDef{{Name: "eth0", HostIP: "10.0.0.1"}},
		Datasets:   []config.Dataset{{ID: 42, Name: "Foo"}},
	}

	if _, ok := m.DatasetByID(42); !ok {
		t.Fatal("expected dataset 42 to be found")
	}
	if _, ok := m.DatasetByID(7); ok {
		t.Fatal("expected dataset 7 to be absent")
	}
	if _, ok := m.InterfaceByName("eth0"); !ok {
		t.Fatal("expected interface eth0 to be found")
	}
	if _, ok := m.InterfaceByName("eth1"); ok {
		t.Fatal("expected interface eth1 to be absent")
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a := config.Fingerprint([]byte("<device/>"))
	b := config.Fingerprint([]byte("<device/>"))
	c := config.Fingerprint([]byte("<device></device>"))
	if a != b {
		t.Fatal("expected identical input to hash identically")
	}
	if a == c {
		t.Fatal("expected different input to hash differently")
	}
}
