// Package httpapi is the thin control surface spec.md §6.1 describes: a
// JSON-over-HTTP adapter driving engine.Engine's public methods. It is
// deliberately kept outside the core — the core never imports net/http.
package httpapi

import (
	encjson "encoding/json"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	"github.com/tlc-io/tlcengine/cmn/nlog"
	"github.com/tlc-io/tlcengine/codec"
	"github.com/tlc-io/tlcengine/engine"
)

func formatFingerprint(fp uint64) string {
	return strconv.FormatUint(fp, 16)
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server wraps an *engine.Engine behind the four control operations
// spec.md §6.1 names.
type Server struct {
	eng *engine.Engine
}

// New builds a Server bound to eng.
func New(eng *engine.Engine) *Server {
	return &Server{eng: eng}
}

// ListenAndServe blocks serving on addr until the listener errs.
func (s *Server) ListenAndServe(addr string) error {
	nlog.Infof("httpapi: listening on %s", addr)
	return fasthttp.ListenAndServe(addr, s.handle)
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	switch {
	case path == "/snapshot" && ctx.IsGet():
		s.handleSnapshot(ctx)
	case path == "/load_config" && ctx.IsPost():
		s.handleLoadConfig(ctx)
	case path == "/enable_pd" && ctx.IsPost():
		s.handleEnablePd(ctx)
	case path == "/set_pd_values" && ctx.IsPost():
		s.handleSetPdValues(ctx)
	default:
		writeError(ctx, fasthttp.StatusNotFound, "no such route")
	}
}

type decodedFieldJSON struct {
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Values []int64 `json:"values"`
}

type snapshotEntry struct {
	ComID             uint32             `json:"com_id"`
	Name              string             `json:"name"`
	DatasetID         uint32             `json:"dataset_id"`
	Direction         string             `json:"direction"`
	CycleUS           uint32             `json:"cycle_us"`
	Interface         string             `json:"interface"`
	TXEnabled         bool               `json:"tx_enabled"`
	NextTXDueUS       int64              `json:"next_tx_due_us"`
	TXPayloadSize     int                `json:"tx_payload_size"`
	LastRXPayloadSize int                `json:"last_rx_payload_size"`
	LastRXTimeUS      int64              `json:"last_rx_time_us"`
	LastRXValid       bool               `json:"last_rx_valid"`
	RXCount           uint64             `json:"rx_count"`
	TXCount           uint64             `json:"tx_count"`
	TimeoutCount      uint64             `json:"timeout_count"`
	LastPeriodUS      float64            `json:"last_period_us"`
	AvgPeriodUS       float64            `json:"avg_period_us"`
	DecodedFields     []decodedFieldJSON `json:"decoded_fields,omitempty"`
}

// toDecodedFieldsJSON renders the codec's decoded RX fields (spec.md
// §4.7, §6.1's "decoded_fields?") for the control API boundary.
func toDecodedFieldsJSON(fields []codec.DecodedField) []decodedFieldJSON {
	if len(fields) == 0 {
		return nil
	}
	out := make([]decodedFieldJSON, len(fields))
	for i, f := range fields {
		out[i] = decodedFieldJSON{Name: f.Name, Type: f.Type.String(), Values: f.Values}
	}
	return out
}

type snapshotResponse struct {
	GenerationID string          `json:"generation_id"`
	Fingerprint  string          `json:"fingerprint"`
	Telegrams    []snapshotEntry `json:"telegrams"`
}

// handleSnapshot implements list_pd_snapshot (spec.md §6.1).
func (s *Server) handleSnapshot(ctx *fasthttp.RequestCtx) {
	snaps := s.eng.Snapshot()
	resp := snapshotResponse{
		GenerationID: s.eng.GenerationID(),
		Fingerprint:  formatFingerprint(s.eng.Fingerprint()),
		Telegrams:    make([]snapshotEntry, 0, len(snaps)),
	}
	for _, snap := range snaps {
		resp.Telegrams = append(resp.Telegrams, snapshotEntry{
			ComID:             snap.ComID,
			Name:              snap.Name,
			DatasetID:         snap.DatasetID,
			Direction:         snap.Direction.String(),
			CycleUS:           snap.CycleUS,
			Interface:         snap.Interface,
			TXEnabled:         snap.TXEnabled,
			NextTXDueUS:       snap.NextTXDueUS,
			TXPayloadSize:     snap.TXPayloadSize,
			LastRXPayloadSize: snap.LastRXPayloadSize,
			LastRXTimeUS:      snap.LastRXTimeUS,
			LastRXValid:       snap.LastRXValid,
			RXCount:           snap.RXCount,
			TXCount:           snap.TXCount,
			TimeoutCount:      snap.TimeoutCount,
			LastPeriodUS:      snap.LastPeriodUS,
			AvgPeriodUS:       snap.AvgPeriodUS,
			DecodedFields:     toDecodedFieldsJSON(snap.DecodedFields),
		})
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

type loadConfigRequest struct {
	Path     string `json:"path"`
	HostName string `json:"host_name"`
}

type loadConfigResponse struct {
	GenerationID string `json:"generation_id"`
}

// handleLoadConfig implements load_config (spec.md §6.1, §4.2).
func (s *Server) handleLoadConfig(ctx *fasthttp.RequestCtx) {
	var req loadConfigRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "malformed request body")
		return
	}

	if err := s.eng.LoadConfig(req.Path, req.HostName); err != nil {
		writeError(ctx, fasthttp.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, loadConfigResponse{GenerationID: s.eng.GenerationID()})
}

type enablePdRequest struct {
	ComID  uint32 `json:"com_id"`
	Enable bool   `json:"enable"`
}

// handleEnablePd implements enable_pd (spec.md §6.1, §4.7). Unknown
// com_ids are a silent no-op, mirroring Engine.EnablePd.
func (s *Server) handleEnablePd(ctx *fasthttp.RequestCtx) {
	var req enablePdRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "malformed request body")
		return
	}
	s.eng.EnablePd(req.ComID, req.Enable)
	writeJSON(ctx, fasthttp.StatusOK, okResponse{OK: true})
}

type pdFieldRequest struct {
	Name  string             `json:"name"`
	Value encjson.RawMessage `json:"value"`
}

type setPdValuesRequest struct {
	ComID  uint32           `json:"com_id"`
	Fields []pdFieldRequest `json:"fields"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// handleSetPdValues implements set_pd_values (spec.md §6.1, §4.6): values
// must be numeric, and a non-numeric entry is silently skipped rather than
// failing the whole request.
func (s *Server) handleSetPdValues(ctx *fasthttp.RequestCtx) {
	var req setPdValuesRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "malformed request body")
		return
	}

	values := make(map[string]float64, len(req.Fields))
	for _, f := range req.Fields {
		var num float64
		if err := json.Unmarshal(f.Value, &num); err != nil {
			continue
		}
		values[f.Name] = num
	}

	s.eng.SetPdValues(req.ComID, values)
	writeJSON(ctx, fasthttp.StatusOK, okResponse{OK: true})
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "encode response")
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError always shapes the body as {"error": "..."} (spec.md §6.1).
func writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, errorResponse{Error: msg})
}
