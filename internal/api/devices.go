package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/ffpipe/internal/api/models"
	"github.com/smazurov/ffpipe/internal/catalog"
	"github.com/smazurov/ffpipe/internal/media"
)

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "List the video devices of the capability catalog",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.DevicesResponse, error) {
		devices := s.catalog.Devices()
		return &models.DevicesResponse{
			Body: models.DevicesData{Devices: devices, Count: len(devices)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-audio-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices/audio",
		Summary:     "List Audio Devices",
		Description: "List the record and playout endpoints",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.AudioDevicesResponse, error) {
		return &models.AudioDevicesResponse{
			Body: models.AudioDevicesData{
				Recording: s.catalog.AudioDevices(media.Record),
				Playout:   s.catalog.AudioDevices(media.Playout),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-capabilities",
		Method:      http.MethodGet,
		Path:        "/api/devices/{device_id}/capabilities",
		Summary:     "List Capabilities",
		Description: "List the capabilities of a device in catalog order",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.DeviceInput) (*models.CapabilitiesResponse, error) {
		caps, err := s.catalog.ListCapabilities(input.DeviceID)
		if err != nil {
			return nil, mapCatalogError(err)
		}
		return &models.CapabilitiesResponse{
			Body: models.CapabilitiesData{DeviceID: input.DeviceID, Capabilities: caps},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "best-match",
		Method:      http.MethodPost,
		Path:        "/api/devices/{device_id}/best-match",
		Summary:     "Best Matching Capability",
		Description: "Find the capability closest to the requested one. Ties keep the lowest index.",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 422},
	}, func(_ context.Context, input *models.BestMatchRequest) (*models.BestMatchResponse, error) {
		requested := catalog.Capability{
			Width:      input.Body.Width,
			Height:     input.Body.Height,
			MaxFPS:     input.Body.FPS,
			Interlaced: input.Body.Interlaced,
		}
		if input.Body.PixelFormat != "" {
			format, err := media.ParsePixelFormat(input.Body.PixelFormat)
			if err != nil {
				return nil, huma.Error422UnprocessableEntity("invalid pixel format", err)
			}
			requested.PixelFormat = format
		}

		match, err := s.catalog.BestMatch(input.DeviceID, requested)
		if err != nil {
			return nil, mapCatalogError(err)
		}
		return &models.BestMatchResponse{Body: match}, nil
	})
}

func mapCatalogError(err error) error {
	switch {
	case errors.Is(err, catalog.ErrDeviceNotFound):
		return huma.Error404NotFound("device not found", err)
	case errors.Is(err, catalog.ErrNoCapabilities):
		return huma.Error422UnprocessableEntity("device has no capabilities", err)
	default:
		return huma.Error500InternalServerError("catalog query failed", err)
	}
}
