// Package models holds the request and response bodies of the HTTP API.
package models

import (
	"github.com/smazurov/ffpipe/internal/capture"
	"github.com/smazurov/ffpipe/internal/catalog"
	"github.com/smazurov/ffpipe/internal/config"
	"github.com/smazurov/ffpipe/internal/engine"
	"github.com/smazurov/ffpipe/internal/logging"
	"github.com/smazurov/ffpipe/internal/version"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionResponse struct {
	Body version.Info
}

// Device models
type DevicesData struct {
	Devices []catalog.Device `json:"devices" doc:"Video devices in the catalog"`
	Count   int              `json:"count" example:"1" doc:"Number of devices"`
}

type DevicesResponse struct {
	Body DevicesData
}

type AudioDevicesData struct {
	Recording []catalog.AudioDevice `json:"recording" doc:"Record endpoints"`
	Playout   []catalog.AudioDevice `json:"playout" doc:"Playout endpoints"`
}

type AudioDevicesResponse struct {
	Body AudioDevicesData
}

type DeviceInput struct {
	DeviceID string `path:"device_id" example:"F3E977DB27F1" doc:"Catalog device id"`
}

type CapabilitiesData struct {
	DeviceID     string               `json:"device_id" doc:"Catalog device id"`
	Capabilities []catalog.Capability `json:"capabilities" doc:"Supported capabilities, in catalog order"`
}

type CapabilitiesResponse struct {
	Body CapabilitiesData
}

// CapabilityRequest is the requested capability for best-match. Zero
// fields score as far from every candidate.
type CapabilityRequest struct {
	Width       int    `json:"width" example:"1280" minimum:"0" doc:"Requested width"`
	Height      int    `json:"height" example:"720" minimum:"0" doc:"Requested height"`
	FPS         int    `json:"fps" example:"30" minimum:"0" doc:"Requested frame rate"`
	PixelFormat string `json:"pixel_format,omitempty" example:"i420" doc:"Requested pixel format"`
	Interlaced  bool   `json:"interlaced,omitempty" doc:"Requested interlacing"`
}

type BestMatchRequest struct {
	DeviceID string `path:"device_id" example:"F3E977DB27F1" doc:"Catalog device id"`
	Body     CapabilityRequest
}

type BestMatchResponse struct {
	Body catalog.Match
}

// Stream models
type StreamsResponse struct {
	Body engine.Snapshot
}

type DirectionInput struct {
	Direction string `path:"direction" enum:"capture,record,playout" doc:"Stream direction"`
}

type StreamResponse struct {
	Body capture.Status
}

type EngineConfigResponse struct {
	Body config.Engine
}

// Log models
type LogsInput struct {
	Module    string `query:"module" example:"capture" doc:"Only entries from this module"`
	Direction string `query:"direction" example:"record" doc:"Only entries about this stream direction"`
	Session   string `query:"session" doc:"Only entries from this stream session"`
	Level     string `query:"level" enum:"debug,info,warn,error" doc:"Minimum level"`
	Limit     int    `query:"limit" minimum:"0" maximum:"10000" doc:"Newest entries only (0 = all)"`
}

type LogsData struct {
	Entries []logging.LogEntry `json:"entries" doc:"Buffered log entries, oldest first"`
	Count   int                `json:"count" doc:"Number of entries returned"`
	Total   int                `json:"total" doc:"Number of entries in the buffer"`
}

type LogsResponse struct {
	Body LogsData
}

type LogLevelsResponse struct {
	Body map[string]string
}

type SetLogLevelRequest struct {
	Module string `path:"module" example:"ffmpeg" doc:"Logger module"`
	Body   struct {
		Level string `json:"level" enum:"debug,info,warn,error" doc:"New level"`
	}
}
