package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"fleet-track/ingestion/internal/auth"
	"fleet-track/ingestion/internal/domain"
	"fleet-track/ingestion/internal/pipeline"
)

// AssetLoader fetches asset aggregates for authenticated callers.
type AssetLoader interface {
	GetAsset(ctx context.Context, accountID, assetID string) (*domain.Asset, error)
}

type eventRequest struct {
	Timestamp  int64   `json:"timestamp"`
	StatusCode uint32  `json:"status_code"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	SpeedKPH   float64 `json:"speed_kph"`
	Heading    float64 `json:"heading"`
	OdometerKM float64 `json:"odometer_km"`
	InputMask  uint32  `json:"input_mask"`

	BatteryLevel float64 `json:"battery_level"`
	FuelLevel    float64 `json:"fuel_level"`

	MCC    int `json:"mcc"`
	MNC    int `json:"mnc"`
	CellID int `json:"cell_id"`
	LAC    int `json:"lac"`

	GeozoneIndex int64           `json:"geozone_index"`
	SensorData   json.RawMessage `json:"sensor_data"`
}

// IngestHandler accepts telemetry events over HTTP and feeds them to the
// pipeline. Asset aggregates are cached in-process: the pipeline mutates
// them in memory and persists changed fields itself. The pipeline does not
// guard the aggregate, so each cache entry carries a mutex and ingest calls
// for the same asset are serialized here.
type IngestHandler struct {
	pipe   *pipeline.Pipeline
	assets AssetLoader
	cache  sync.Map
	log    *slog.Logger
}

type assetEntry struct {
	mu    sync.Mutex
	asset *domain.Asset
}

func NewIngestHandler(pipe *pipeline.Pipeline, assets AssetLoader, log *slog.Logger) *IngestHandler {
	return &IngestHandler{pipe: pipe, assets: assets, log: log}
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, `{"error":"method not allowed"}`)
		return
	}

	binding, ok := BindingFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, `{"error":"no asset binding"}`)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, `{"error":"malformed event payload"}`)
		return
	}

	entry, err := h.asset(r, binding)
	if err != nil {
		h.log.Error("asset load failed", "account", binding.AccountID, "asset", binding.AssetID, "error", err)
		writeJSON(w, http.StatusInternalServerError, `{"error":"asset lookup failed"}`)
		return
	}
	if entry == nil {
		writeJSON(w, http.StatusNotFound, `{"error":"unknown asset"}`)
		return
	}

	ev := &domain.Event{
		ReceivedAt:   time.Now(),
		AccountID:    binding.AccountID,
		AssetID:      binding.AssetID,
		Timestamp:    req.Timestamp,
		StatusCode:   domain.StatusCode(req.StatusCode),
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		SpeedKPH:     req.SpeedKPH,
		Heading:      req.Heading,
		OdometerKM:   req.OdometerKM,
		InputMask:    req.InputMask,
		BatteryLevel: req.BatteryLevel,
		FuelLevel:    req.FuelLevel,
		MCC:          req.MCC,
		MNC:          req.MNC,
		CellID:       req.CellID,
		LAC:          req.LAC,
		GeozoneIndex: req.GeozoneIndex,
		SensorData:   req.SensorData,
	}

	entry.mu.Lock()
	accepted, err := h.pipe.Ingest(r.Context(), entry.asset, ev)
	entry.mu.Unlock()
	if err != nil {
		h.log.Error("ingest failed", "account", binding.AccountID, "asset", binding.AssetID, "error", err)
		writeJSON(w, http.StatusInternalServerError, `{"error":"event not persisted"}`)
		return
	}
	if !accepted {
		writeJSON(w, http.StatusBadRequest, `{"error":"event rejected"}`)
		return
	}
	writeJSON(w, http.StatusAccepted, `{"status":"accepted"}`)
}

func (h *IngestHandler) asset(r *http.Request, b auth.Binding) (*assetEntry, error) {
	key := b.AccountID + "/" + b.AssetID
	if cached, ok := h.cache.Load(key); ok {
		return cached.(*assetEntry), nil
	}
	asset, err := h.assets.GetAsset(r.Context(), b.AccountID, b.AssetID)
	if err != nil || asset == nil {
		return nil, err
	}
	actual, _ := h.cache.LoadOrStore(key, &assetEntry{asset: asset})
	return actual.(*assetEntry), nil
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}
