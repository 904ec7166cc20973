package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/ffpipe/internal/api/models"
	"github.com/smazurov/ffpipe/internal/capture"
	"github.com/smazurov/ffpipe/internal/media"
)

func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-streams",
		Method:      http.MethodGet,
		Path:        "/api/streams",
		Summary:     "Stream Status",
		Description: "Status of every direction and host adapter",
		Tags:        []string{"streams"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StreamsResponse, error) {
		return &models.StreamsResponse{Body: s.engine.Status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream-config",
		Method:      http.MethodGet,
		Path:        "/api/streams/config",
		Summary:     "Stream Config",
		Description: "The stream sections currently applied",
		Tags:        []string{"streams"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.EngineConfigResponse, error) {
		return &models.EngineConfigResponse{Body: s.engine.Config()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream",
		Method:      http.MethodGet,
		Path:        "/api/streams/{direction}",
		Summary:     "Direction Status",
		Description: "Status of one direction",
		Tags:        []string{"streams"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.DirectionInput) (*models.StreamResponse, error) {
		dir, err := parseDirection(input.Direction)
		if err != nil {
			return nil, err
		}
		return &models.StreamResponse{Body: s.engine.DirectionStatus(dir)}, nil
	})

	s.registerStreamAction("start", "Start Direction", "Start a direction. Starting a running direction does nothing.",
		func(dir media.Direction) error { return s.engine.StartDirection(dir) })
	s.registerStreamAction("stop", "Stop Direction", "Stop a direction and wait for its worker to exit.",
		func(dir media.Direction) error { s.engine.StopDirection(dir); return nil })
	s.registerStreamAction("restart", "Restart Direction", "Stop then start a direction, for example after end-of-stream.",
		func(dir media.Direction) error { return s.engine.RestartDirection(dir) })
}

func (s *Server) registerStreamAction(action, summary, description string, apply func(media.Direction) error) {
	huma.Register(s.api, huma.Operation{
		OperationID: action + "-stream",
		Method:      http.MethodPost,
		Path:        "/api/streams/{direction}/" + action,
		Summary:     summary,
		Description: description,
		Tags:        []string{"streams"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 422, 500},
	}, func(_ context.Context, input *models.DirectionInput) (*models.StreamResponse, error) {
		dir, err := parseDirection(input.Direction)
		if err != nil {
			return nil, err
		}
		if err := apply(dir); err != nil {
			return nil, mapStreamError(err)
		}
		return &models.StreamResponse{Body: s.engine.DirectionStatus(dir)}, nil
	})
}

func parseDirection(name string) (media.Direction, error) {
	dir, err := media.ParseDirection(name)
	if err != nil {
		return 0, huma.Error404NotFound("unknown direction", err)
	}
	return dir, nil
}

// mapStreamError maps stream errors to HTTP errors.
func mapStreamError(err error) error {
	var streamErr *capture.StreamError
	if errors.As(err, &streamErr) {
		switch streamErr.Code {
		case capture.ErrCodeDeviceNotFound:
			return huma.Error404NotFound(streamErr.Message, err)
		case capture.ErrCodeInvalidConfig:
			return huma.Error422UnprocessableEntity(streamErr.Message, err)
		case capture.ErrCodeRunning, capture.ErrCodeNotInitialized:
			return huma.Error409Conflict(streamErr.Message, err)
		}
	}
	if errors.Is(err, media.ErrInvalidConfig) {
		return huma.Error422UnprocessableEntity("invalid stream config", err)
	}
	return huma.Error500InternalServerError("stream operation failed", err)
}
