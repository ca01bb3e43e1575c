package xmlload_test

import (
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/tlc-io/tlcengine/cmn/cos"
	"github.com/tlc-io/tlcengine/config"
	"github.com/tlc-io/tlcengine/xmlload"
)

const twoHostDoc = `<?xml version="1.0"?>
<device>
  <data-set-list>
    <data-set id="1" name="SimpleSet">
      <element name="a" type="UINT16"/>
      <element name="b" type="INT8"/>
    </data-set>
  </data-set-list>
  <bus-interface-list>
    <bus-interface name="eth0" network-id="1" host-ip="10.0.0.1">
      <telegram name="Greeting" com-id="1001" data-set-id="1" cycle-us="10000">
        <source><uri-host host="A"/></source>
        <destination><uri-host host="B"/></destination>
      </telegram>
    </bus-interface>
  </bus-interface-list>
</device>`

func writeTempXML(content string) string {
	f, err := os.CreateTemp("", "tlcengine-*.xml")
	Expect(err).NotTo(HaveOccurred())
	_, err = f.WriteString(content)
	Expect(err).NotTo(HaveOccurred())
	Expect(f.Close()).To(Succeed())
	return f.Name()
}

var _ = Describe("Load", func() {
	var path string

	AfterEach(func() {
		if path != "" {
			os.Remove(path)
		}
	})

	// scenario 6 from spec §8.
	It("resolves Source for the declared source host", func() {
		path = writeTempXML(twoHostDoc)
		model, err := xmlload.Load(path, "A")
		Expect(err).NotTo(HaveOccurred())
		Expect(model.Telegrams).To(HaveLen(1))
		Expect(model.Telegrams[0].Direction).To(Equal(config.Source))
		Expect(model.Telegrams[0].Name).To(Equal("Greeting"))
	})

	It("resolves Sink for the declared destination host", func() {
		path = writeTempXML(twoHostDoc)
		model, err := xmlload.Load(path, "B")
		Expect(err).NotTo(HaveOccurred())
		Expect(model.Telegrams[0].Direction).To(Equal(config.Sink))
	})

	It("falls back to the declared exchange type for an unrelated host", func() {
		path = writeTempXML(twoHostDoc)
		model, err := xmlload.Load(path, "C")
		Expect(err).NotTo(HaveOccurred())
		Expect(model.Telegrams[0].Direction).To(Equal(config.SourceSink))
	})

	It("populates dataset elements in declared order", func() {
		path = writeTempXML(twoHostDoc)
		model, err := xmlload.Load(path, "A")
		Expect(err).NotTo(HaveOccurred())
		ds, ok := model.DatasetByID(1)
		Expect(ok).To(BeTrue())
		Expect(ds.Elements).To(HaveLen(2))
		Expect(ds.Elements[0].Type).To(Equal(config.UINT16))
		Expect(ds.Elements[1].Type).To(Equal(config.INT8))
	})

	It("returns a ParseFailure ErrConfig for a missing file", func() {
		_, err := xmlload.Load(filepath.Join(os.TempDir(), "does-not-exist.xml"), "A")
		Expect(err).To(HaveOccurred())
		Expect(cos.IsErrConfig(err)).To(BeTrue())
		var cfgErr *cos.ErrConfig
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
		Expect(cfgErr.Kind).To(Equal(cos.ParseFailure))
	})

	It("returns a SectionMissing ErrConfig for a dangling data-set-id reference", func() {
		path = writeTempXML(`<?xml version="1.0"?>
<device>
  <bus-interface-list>
    <bus-interface name="eth0" network-id="1" host-ip="10.0.0.1">
      <telegram name="Orphan" com-id="2002" data-set-id="99" cycle-us="1000"/>
    </bus-interface>
  </bus-interface-list>
</device>`)
		_, err := xmlload.Load(path, "A")
		Expect(err).To(HaveOccurred())
		Expect(cos.IsErrConfig(err)).To(BeTrue())
		var cfgErr *cos.ErrConfig
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
		Expect(cfgErr.Kind).To(Equal(cos.SectionMissing))
	})

	It("produces a stable fingerprint for identical XML content", func() {
		path = writeTempXML(twoHostDoc)
		first, err := xmlload.Load(path, "A")
		Expect(err).NotTo(HaveOccurred())
		second, err := xmlload.Load(path, "A")
		Expect(err).NotTo(HaveOccurred())
		Expect(first.ConfigFingerprint).To(Equal(second.ConfigFingerprint))
	})
})
