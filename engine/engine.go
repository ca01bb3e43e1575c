// Package engine implements the Engine facade (spec §2, §4.2–§4.3, §4.7):
// configuration lifecycle, the control API the HTTP adapter drives, and
// the snapshot API. It is the one package that wires XmlConfigLoader,
// Codec, PdRuntime, Scheduler, RxPipeline and Transport together.
package engine

import (
	"sync"
	"time"

	"github.com/teris-io/shortid"
	"golang.org/x/sync/errgroup"

	"github.com/tlc-io/tlcengine/cmn/cos"
	"github.com/tlc-io/tlcengine/cmn/nlog"
	"github.com/tlc-io/tlcengine/codec"
	"github.com/tlc-io/tlcengine/config"
	"github.com/tlc-io/tlcengine/pdruntime"
	"github.com/tlc-io/tlcengine/pdtransport"
	"github.com/tlc-io/tlcengine/rx"
	"github.com/tlc-io/tlcengine/sched"
	"github.com/tlc-io/tlcengine/xmlload"
)

// processCycleUS is the process-level cycle period passed to every opened
// session (spec §4.2 step 4): a fixed 100ms, independent of any one
// telegram's own cycle_us.
const processCycleUS = 100_000

// Engine is the facade spec §2 calls out: it owns the single shared state
// lock guarding pd_runtimes and interface membership (spec §5).
type Engine struct {
	transport pdtransport.Transport

	mu         sync.Mutex
	running    bool
	datasets   []config.Dataset
	defs       []config.PdTelegramDef
	interfaces []*pdruntime.InterfaceRuntime
	runtimes   []*pdruntime.PdRuntime

	fingerprint   uint64
	generationID  string
	transportInit bool

	scheduler *sched.Scheduler
	pipeline  *rx.Pipeline
}

// New constructs an Engine bound to the given Transport. The Transport's
// process-wide init/terminate lifecycle is pinned to this Engine's
// LoadConfig/Stop cycle (spec §9 — "only one Engine per process may
// exist").
func New(transport pdtransport.Transport) *Engine {
	e := &Engine{transport: transport}
	e.scheduler = sched.New(e.tick)
	e.pipeline = rx.New(&e.mu, e.findInterfaceBySession, e.findRuntimeOnInterface)
	return e
}

// LoadConfig implements spec §4.2. If the engine is running or has
// interfaces it is stopped first, and it is restarted after a successful
// load if it was running. On failure the error is returned with the engine
// stopped: the previous configuration is neither restored nor restarted,
// and its runtimes stay in place with their sessions closed.
func (e *Engine) LoadConfig(xmlPath, hostName string) error {
	e.mu.Lock()
	shouldRestart := e.running
	hadInterfaces := len(e.interfaces) > 0
	e.mu.Unlock()

	if shouldRestart || hadInterfaces {
		e.Stop()
	}

	model, err := xmlload.Load(xmlPath, hostName)
	if err != nil {
		return err
	}

	if !e.transportInit {
		if err := e.transport.Init(); err != nil {
			return cos.NewErrTransport(cos.InitFailure, err, "transport init")
		}
		e.transportInit = true
	}

	ifaces, err := e.openSessions(model, hostName)
	if err != nil {
		return err
	}

	runtimes, err := e.subscribeAll(model, ifaces)
	if err != nil {
		e.closeSessionsReverse(ifaces)
		return err
	}

	genID, err := shortid.Generate()
	if err != nil {
		genID = ""
	}

	datasets := make([]config.Dataset, len(model.Datasets))
	for i, d := range model.Datasets {
		d.Elements = append([]config.DatasetElement(nil), d.Elements...)
		datasets[i] = d
	}
	defs := append([]config.PdTelegramDef(nil), model.Telegrams...)

	e.mu.Lock()
	e.datasets = datasets
	e.defs = defs
	e.interfaces = ifaces
	e.runtimes = runtimes
	e.fingerprint = model.ConfigFingerprint
	e.generationID = genID
	e.mu.Unlock()

	nlog.Infof("load_config: generation=%s fingerprint=%s interfaces=%d telegrams=%d",
		genID, model.FingerprintString(), len(ifaces), len(runtimes))

	if shouldRestart {
		e.Start()
	}
	return nil
}

// openSessions opens one transport session per InterfaceDef concurrently
// (SPEC_FULL §11 wires golang.org/x/sync/errgroup here). Callers must close
// whatever was opened if the overall load fails.
func (e *Engine) openSessions(model *config.ConfigModel, hostName string) ([]*pdruntime.InterfaceRuntime, error) {
	ifaces := make([]*pdruntime.InterfaceRuntime, len(model.Interfaces))

	g := new(errgroup.Group)
	for i, def := range model.Interfaces {
		i, def := i, def
		g.Go(func() error {
			cfg := pdtransport.ProcessConfig{HostName: hostName, CycleUS: processCycleUS, Blocking: true}
			session, err := e.transport.OpenSession(def.HostIP, cfg, e.pipeline.Deliver)
			if err != nil {
				return cos.NewErrTransport(cos.SessionOpenFailure, err, "open session on %s (%s)", def.Name, def.HostIP)
			}
			ifaces[i] = &pdruntime.InterfaceRuntime{Def: def, Session: session}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, ifc := range ifaces {
			if ifc != nil && ifc.Session != nil {
				_ = e.transport.CloseSession(ifc.Session)
			}
		}
		return nil, err
	}
	return ifaces, nil
}

// subscribeAll builds one PdRuntime per telegram def and subscribes the
// non-Source ones on their interface's session (spec §4.2 step 5).
func (e *Engine) subscribeAll(model *config.ConfigModel, ifaces []*pdruntime.InterfaceRuntime) ([]*pdruntime.PdRuntime, error) {
	byName := make(map[string]*pdruntime.InterfaceRuntime, len(ifaces))
	for _, ifc := range ifaces {
		byName[ifc.Def.Name] = ifc
	}

	now := time.Now()
	runtimes := make([]*pdruntime.PdRuntime, len(model.Telegrams))

	for i, def := range model.Telegrams {
		runtime := pdruntime.NewPdRuntime(i, def.Direction, now)
		runtimes[i] = runtime

		if def.Direction == config.Source {
			continue
		}

		ifc, ok := byName[def.InterfaceName]
		if !ok {
			return nil, cos.NewErrTransport(cos.SubscribeFailure, nil, "unknown interface %q for com_id %d", def.InterfaceName, def.ComID)
		}

		timeoutUS := uint32(0)
		if def.CycleUS > 0 {
			timeoutUS = 2 * def.CycleUS
		}
		if err := e.transport.Subscribe(ifc.Session, def.ComID, timeoutUS); err != nil {
			return nil, cos.NewErrTransport(cos.SubscribeFailure, err, "subscribe com_id %d on %s", def.ComID, def.InterfaceName)
		}
		ifc.PdList = append(ifc.PdList, runtime)
	}
	return runtimes, nil
}

func (e *Engine) closeSessionsReverse(ifaces []*pdruntime.InterfaceRuntime) {
	for i := len(ifaces) - 1; i >= 0; i-- {
		if ifaces[i] != nil && ifaces[i].Session != nil {
			_ = e.transport.CloseSession(ifaces[i].Session)
		}
	}
}

// Start launches the scheduler (spec §4.3).
func (e *Engine) Start() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	e.scheduler.Start()
}

// Stop halts the scheduler, closes every transport session, and tears down
// the transport stack (spec §4.3). Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.running = false
	ifaces := e.interfaces
	e.mu.Unlock()

	e.scheduler.Stop()

	e.closeSessionsReverse(ifaces)

	if e.transportInit {
		_ = e.transport.Terminate()
		e.transportInit = false
	}
}

// tick is the Scheduler's Fire callback (spec §4.4).
func (e *Engine) tick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, runtime := range e.runtimes {
		def := e.defs[runtime.DefIndex]
		if !runtime.DueToFire(def.Direction, def.CycleUS, now) {
			continue
		}

		ifc := e.findInterfaceByName(def.InterfaceName)
		if ifc != nil {
			_ = e.transport.Publish(ifc.Session, def.ComID, runtime.TXPayload)
		}
		runtime.Advance(def.CycleUS, now)
	}
}

func (e *Engine) findInterfaceByName(name string) *pdruntime.InterfaceRuntime {
	for _, ifc := range e.interfaces {
		if ifc.Def.Name == name {
			return ifc
		}
	}
	return nil
}

// findInterfaceBySession and findRuntimeOnInterface back the RxPipeline
// (spec §4.5 steps 1–2). They do not take e.mu themselves: Pipeline.Deliver
// calls them with e.mu already held, since sessions opened by LoadConfig can
// deliver before e.interfaces is replaced.
func (e *Engine) findInterfaceBySession(session pdtransport.Session) (*pdruntime.InterfaceRuntime, bool) {
	for _, ifc := range e.interfaces {
		if ifc.Session == session {
			return ifc, true
		}
	}
	return nil, false
}

func (e *Engine) findRuntimeOnInterface(ifc *pdruntime.InterfaceRuntime, comID uint32) (*pdruntime.PdRuntime, bool) {
	for _, r := range ifc.PdList {
		if e.defs[r.DefIndex].ComID == comID {
			return r, true
		}
	}
	return nil, false
}

// EnablePd implements spec §4.7: finds the first PdRuntime matching com_id
// on any interface and sets tx_enabled. No-op if not found.
func (e *Engine) EnablePd(comID uint32, enable bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if r, ok := e.findRuntimeByComID(comID); ok {
		r.TXEnabled = enable
	}
}

// SetPdValues implements the Codec's Encode operation (spec §4.6,
// "set_pd_values"): a no-op if com_id or its dataset can't be resolved.
func (e *Engine) SetPdValues(comID uint32, values map[string]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.findRuntimeByComID(comID)
	if !ok {
		return
	}

	def := e.defs[r.DefIndex]
	dataset, ok := e.datasetByID(def.DatasetID)
	if !ok {
		return
	}

	r.TXPayload = codec.Encode(dataset, values)
}

func (e *Engine) findRuntimeByComID(comID uint32) (*pdruntime.PdRuntime, bool) {
	for _, r := range e.runtimes {
		if e.defs[r.DefIndex].ComID == comID {
			return r, true
		}
	}
	return nil, false
}

func (e *Engine) datasetByID(id uint32) (config.Dataset, bool) {
	for _, d := range e.datasets {
		if d.ID == id {
			return d, true
		}
	}
	return config.Dataset{}, false
}

// Snapshot implements list_pd_snapshot (spec §6.1, §4.7): a deep,
// self-contained copy safe to read outside the lock.
type Snapshot struct {
	ComID             uint32
	Name              string
	DatasetID         uint32
	Direction         config.Direction
	CycleUS           uint32
	Interface         string
	TXEnabled         bool
	NextTXDueUS       int64
	TXPayloadSize     int
	LastRXPayloadSize int
	LastRXTimeUS      int64
	LastRXValid       bool
	RXCount           uint64
	TXCount           uint64
	TimeoutCount      uint64
	LastPeriodUS      float64
	AvgPeriodUS       float64
	DecodedFields     []codec.DecodedField
}

// Snapshot returns one entry per loaded PD telegram (spec §8's "returned
// sequence length equals the number of loaded PD telegrams").
func (e *Engine) Snapshot() []Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Snapshot, 0, len(e.runtimes))
	for _, r := range e.runtimes {
		def := e.defs[r.DefIndex]
		clone := r.Clone()

		entry := Snapshot{
			ComID:             def.ComID,
			Name:              def.Name,
			DatasetID:         def.DatasetID,
			Direction:         def.Direction,
			CycleUS:           def.CycleUS,
			Interface:         def.InterfaceName,
			TXEnabled:         clone.TXEnabled,
			NextTXDueUS:       clone.NextTXDue.UnixMicro(),
			TXPayloadSize:     len(clone.TXPayload),
			LastRXPayloadSize: len(clone.LastRXPayload),
			LastRXValid:       clone.LastRXValid,
			RXCount:           clone.RXCount,
			TXCount:           clone.TXCount,
			TimeoutCount:      clone.TimeoutCount,
			LastPeriodUS:      clone.LastPeriodUS,
			AvgPeriodUS:       clone.AvgPeriodUS,
		}
		if clone.LastRXValid {
			entry.LastRXTimeUS = clone.LastRXTime.UnixMicro()
		}
		if dataset, ok := e.datasetByID(def.DatasetID); ok && clone.LastRXValid {
			entry.DecodedFields = codec.Decode(dataset, clone.LastRXPayload)
		}
		out = append(out, entry)
	}
	return out
}

// GenerationID returns the identifier minted by the most recent successful
// LoadConfig, or "" if none has succeeded yet (SPEC_FULL §11).
func (e *Engine) GenerationID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generationID
}

// Fingerprint returns the currently loaded configuration's fingerprint.
func (e *Engine) Fingerprint() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fingerprint
}
