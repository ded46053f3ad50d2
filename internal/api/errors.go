package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/scenecast/internal/devices"
	"github.com/smazurov/scenecast/internal/pipeline"
	"github.com/smazurov/scenecast/internal/profile"
	"github.com/smazurov/scenecast/internal/scene"
	"github.com/smazurov/scenecast/internal/session"
)

// mapError maps domain errors to HTTP errors.
func (s *Server) mapError(err error) error {
	var (
		notFound    *scene.NotFoundError
		invalid     *scene.ValidationError
		lastScene   *scene.LastSceneError
		badProfile  *profile.ValidationError
		unsupported *pipeline.UnsupportedCaptureError
		execErr     *session.ExecutorError
		transition  *session.TransitionError
		deviceErr   *devices.DeviceError
	)
	switch {
	case errors.As(err, &notFound):
		return huma.Error404NotFound(err.Error())
	case errors.As(err, &invalid), errors.As(err, &badProfile):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, pipeline.ErrNoStreamKey):
		return huma.Error400BadRequest(err.Error())
	case errors.As(err, &lastScene), errors.As(err, &transition):
		return huma.Error409Conflict(err.Error())
	case errors.As(err, &unsupported):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.As(err, &execErr), errors.As(err, &deviceErr):
		return huma.Error502BadGateway(err.Error())
	}
	s.logger.Error("Unhandled API error", "error", err)
	return huma.Error500InternalServerError("internal error", err)
}
