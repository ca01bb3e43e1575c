package engine_test

import (
	"os"
	"testing"
	"time"

	"github.com/tlc-io/tlcengine/engine"
	"github.com/tlc-io/tlcengine/pdtransport/fake"
)

const sampleXML = `<?xml version="1.0"?>
<device>
  <data-set-list>
    <data-set id="1" name="Greeting">
      <element name="a" type="UINT16"/>
      <element name="b" type="INT8"/>
    </data-set>
  </data-set-list>
  <bus-interface-list>
    <bus-interface name="eth0" network-id="1" host-ip="10.0.0.1">
      <telegram name="Ping" com-id="1001" data-set-id="1" cycle-us="10000">
        <source><uri-host host="A"/></source>
        <destination><uri-host host="B"/></destination>
      </telegram>
    </bus-interface>
  </bus-interface-list>
</device>`

func writeTempXML(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "tlcengine-*.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

func TestLoadConfigBuildsOneRuntimePerTelegram(t *testing.T) {
	path := writeTempXML(t, sampleXML)
	tr := fake.New()
	e := engine.New(tr)

	if err := e.LoadConfig(path, "A"); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	snap := e.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("Snapshot() len = %d, want 1", len(snap))
	}
	if snap[0].ComID != 1001 || snap[0].Direction.String() != "Source" {
		t.Fatalf("snapshot[0] = %+v", snap[0])
	}
	if e.GenerationID() == "" {
		t.Fatal("expected a non-empty generation id after a successful load")
	}
}

// scenario 1 from spec §8, driven end to end through SetPdValues.
func TestSetPdValuesEncodesPayload(t *testing.T) {
	path := writeTempXML(t, sampleXML)
	tr := fake.New()
	e := engine.New(tr)
	if err := e.LoadConfig(path, "A"); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	e.SetPdValues(1001, map[string]float64{"a": 258, "b": -1})
	snap := e.Snapshot()
	if snap[0].TXPayloadSize != 3 {
		t.Fatalf("tx_payload size = %d, want 3", snap[0].TXPayloadSize)
	}
}

func TestSetPdValuesUnknownComIDIsNoop(t *testing.T) {
	path := writeTempXML(t, sampleXML)
	tr := fake.New()
	e := engine.New(tr)
	if err := e.LoadConfig(path, "A"); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	e.SetPdValues(9999, map[string]float64{"a": 1})
}

// scenario 4 from spec §8: disabling a telegram must stop its TX count
// from advancing.
func TestEnablePdFalseStopsTransmission(t *testing.T) {
	path := writeTempXML(t, sampleXML)
	tr := fake.New()
	e := engine.New(tr)
	if err := e.LoadConfig(path, "A"); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	e.EnablePd(1001, false)
	e.Start()
	time.Sleep(50 * time.Millisecond)
	e.Stop()

	snap := e.Snapshot()
	if snap[0].TXCount != 0 {
		t.Fatalf("tx_count = %d, want 0 after disabling", snap[0].TXCount)
	}
}

func TestEnablePdUnknownComIDIsNoop(t *testing.T) {
	path := writeTempXML(t, sampleXML)
	tr := fake.New()
	e := engine.New(tr)
	if err := e.LoadConfig(path, "A"); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	e.EnablePd(4242, false)
}

func TestLoadConfigWhileRunningRestartsScheduler(t *testing.T) {
	path := writeTempXML(t, sampleXML)
	tr := fake.New()
	e := engine.New(tr)
	if err := e.LoadConfig(path, "A"); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	e.Start()
	time.Sleep(5 * time.Millisecond)

	if err := e.LoadConfig(path, "A"); err != nil {
		t.Fatalf("second LoadConfig: %v", err)
	}
	time.Sleep(15 * time.Millisecond)
	e.Stop()

	snap := e.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected one telegram after reload, got %d", len(snap))
	}
	if snap[0].TXCount == 0 {
		t.Fatal("expected the restarted scheduler to transmit on the reloaded telegram")
	}
}

func TestLoadConfigPropagatesParseFailure(t *testing.T) {
	tr := fake.New()
	e := engine.New(tr)
	if err := e.LoadConfig("/no/such/file.xml", "A"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
