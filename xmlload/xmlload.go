// Package xmlload implements the engine's XmlConfigLoader (spec §4.1):
// turning a TRDP-schema XML document into an immutable config.ConfigModel.
//
// Loading is deliberately two-pass, mirroring the upstream library this
// engine was built against: a structural pass via encoding/xml gives us
// everything except telegram names, which the schema only carries as an
// attribute encoding/xml's typed unmarshal has no clean hook for here, so
// a second textual pass with regexp recovers them keyed by com-id.
package xmlload

import (
	"encoding/xml"
	"os"
	"regexp"
	"strconv"

	"github.com/tlc-io/tlcengine/cmn/cos"
	"github.com/tlc-io/tlcengine/config"
)

// deviceXML mirrors the structural subset of the TRDP device configuration
// schema this loader consumes (spec §4.1, §6.2).
type deviceXML struct {
	XMLName    xml.Name        `xml:"device"`
	Interfaces []interfaceXML  `xml:"bus-interface-list>bus-interface"`
	Datasets   []datasetXML    `xml:"data-set-list>data-set"`
}

type interfaceXML struct {
	Name      string       `xml:"name,attr"`
	NetworkID uint32       `xml:"network-id,attr"`
	HostIP    string       `xml:"host-ip,attr"`
	Exchanges []exchangeXML `xml:"telegram"`
}

type exchangeXML struct {
	ComID     uint32 `xml:"com-id,attr"`
	DatasetID uint32 `xml:"data-set-id,attr"`
	Type      string `xml:"type,attr"` // "source", "sink", "source-sink", or absent
	CycleUS   uint32 `xml:"cycle-us,attr"`
	Marshall  bool   `xml:"marshall,attr"`

	SourceHosts []uriHostXML `xml:"source>uri-host"`
	DestHosts   []uriHostXML `xml:"destination>uri-host"`
}

type uriHostXML struct {
	Host string `xml:"host,attr"`
}

type datasetXML struct {
	ID       uint32          `xml:"id,attr"`
	Name     string          `xml:"name,attr"`
	Elements []elementXML    `xml:"element"`
}

type elementXML struct {
	Name      string `xml:"name,attr"`
	Type      string `xml:"type,attr"`
	ArraySize uint32 `xml:"array-size,attr"`
}

var (
	telegramTag = regexp.MustCompile(`(?i)<\s*telegram[^>]*>`)
	nameAttr    = regexp.MustCompile(`(?i)name\s*=\s*"([^"]*)"`)
	comIDAttr   = regexp.MustCompile(`(?i)com-id\s*=\s*"([0-9]+)"`)
)

// Load parses the XML document at xmlPath and resolves directions against
// hostName, producing an immutable ConfigModel (spec §4.1).
//
// Failure returns a *cos.ErrConfig: ParseFailure if the file cannot be
// opened or is not well-formed XML, SectionMissing if a referenced
// dataset is absent.
func Load(xmlPath string, hostName string) (*config.ConfigModel, error) {
	raw, err := os.ReadFile(xmlPath)
	if err != nil {
		return nil, cos.NewErrConfig(cos.ParseFailure, err, "open %s", xmlPath)
	}

	var doc deviceXML
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, cos.NewErrConfig(cos.ParseFailure, err, "parse %s", xmlPath)
	}

	names := parseTelegramNames(raw)

	model := &config.ConfigModel{
		ConfigFingerprint: config.Fingerprint(raw),
	}

	model.Datasets = make([]config.Dataset, 0, len(doc.Datasets))
	for _, d := range doc.Datasets {
		model.Datasets = append(model.Datasets, toDataset(d))
	}

	model.Interfaces = make([]config.InterfaceDef, 0, len(doc.Interfaces))
	model.Telegrams = make([]config.PdTelegramDef, 0)

	for _, ifc := range doc.Interfaces {
		iface := config.InterfaceDef{Name: ifc.Name, NetworkID: ifc.NetworkID, HostIP: ifc.HostIP}
		model.Interfaces = append(model.Interfaces, iface)

		for _, ex := range ifc.Exchanges {
			if _, ok := model.DatasetByID(ex.DatasetID); !ok {
				return nil, cos.NewErrConfig(cos.SectionMissing, nil,
					"telegram com-id %d references unknown data-set-id %d", ex.ComID, ex.DatasetID)
			}

			telegram := config.PdTelegramDef{
				Name:          names[ex.ComID],
				ComID:         ex.ComID,
				DatasetID:     ex.DatasetID,
				Direction:     determineDirection(ex, hostName),
				CycleUS:       ex.CycleUS,
				Marshall:      ex.Marshall,
				InterfaceName: ifc.Name,
			}
			model.Telegrams = append(model.Telegrams, telegram)
		}
	}

	return model, nil
}

func toDataset(d datasetXML) config.Dataset {
	ds := config.Dataset{ID: d.ID, Name: d.Name, Elements: make([]config.DatasetElement, 0, len(d.Elements))}
	for _, e := range d.Elements {
		ds.Elements = append(ds.Elements, config.DatasetElement{
			Name:      e.Name,
			Type:      parseElementType(e.Type),
			ArraySize: e.ArraySize,
		})
	}
	return ds
}

func parseElementType(s string) config.ElementType {
	switch s {
	case "BOOL8":
		return config.BOOL8
	case "UINT8":
		return config.UINT8
	case "INT8":
		return config.INT8
	case "UINT16":
		return config.UINT16
	case "INT16":
		return config.INT16
	case "UINT32":
		return config.UINT32
	case "INT32":
		return config.INT32
	default:
		return config.Opaque
	}
}

// determineDirection implements spec §4.1's host-aware resolution: source
// hit + dest hit wins as SourceSink; a single hit wins outright; no hit
// falls back to the exchange's declared type attribute.
func determineDirection(ex exchangeXML, hostName string) config.Direction {
	isSource := false
	for _, h := range ex.SourceHosts {
		if h.Host == hostName {
			isSource = true
			break
		}
	}

	isSink := false
	for _, h := range ex.DestHosts {
		if h.Host == hostName {
			isSink = true
			break
		}
	}

	switch {
	case isSource && isSink:
		return config.SourceSink
	case isSource:
		return config.Source
	case isSink:
		return config.Sink
	default:
		return declaredDirection(ex.Type)
	}
}

func declaredDirection(t string) config.Direction {
	switch t {
	case "source":
		return config.Source
	case "sink":
		return config.Sink
	default:
		return config.SourceSink
	}
}

// parseTelegramNames recovers the name attribute of every <telegram …> tag
// by textual matching, keyed by com-id (spec §4.1 step 2). Malformed or
// incomplete tags are skipped rather than failing the whole load.
func parseTelegramNames(raw []byte) map[uint32]string {
	names := make(map[uint32]string)
	content := string(raw)

	for _, tag := range telegramTag.FindAllString(content, -1) {
		nameMatch := nameAttr.FindStringSubmatch(tag)
		comIDMatch := comIDAttr.FindStringSubmatch(tag)
		if nameMatch == nil || comIDMatch == nil {
			continue
		}
		comID, err := strconv.ParseUint(comIDMatch[1], 10, 32)
		if err != nil {
			continue
		}
		names[uint32(comID)] = nameMatch[1]
	}
	return names
}
