package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/scenecast/internal/api/models"
	"github.com/smazurov/scenecast/internal/session"
)

func (s *Server) registerSessionRoutes() {
	sess := s.options.Session

	huma.Register(s.api, huma.Operation{
		OperationID:   "start-track",
		Method:        http.MethodPost,
		Path:          "/api/session/{track}/start",
		Summary:       "Start Track",
		Description:   "Build the pipeline for the active scene and start the track. Startup completes in the background; follow session events for the outcome.",
		Tags:          []string{"session"},
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{400, 401, 409, 422},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.TrackPath) (*models.TrackResponse, error) {
		track := session.Track(input.Track)
		if err := sess.Start(track); err != nil {
			return nil, s.mapError(err)
		}
		return s.trackResponse(track), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-track",
		Method:      http.MethodPost,
		Path:        "/api/session/{track}/stop",
		Summary:     "Stop Track",
		Description: "Stop the track and return it to idle. Also clears a failed track.",
		Tags:        []string{"session"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.TrackPath) (*models.TrackResponse, error) {
		track := session.Track(input.Track)
		if err := sess.Stop(track); err != nil {
			return nil, s.mapError(err)
		}
		return s.trackResponse(track), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "session-stats",
		Method:      http.MethodGet,
		Path:        "/api/session/stats",
		Summary:     "Session Stats",
		Description: "Aggregate status, uptime and encoder telemetry of both tracks",
		Tags:        []string{"session"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.StatsResponse, error) {
		return &models.StatsResponse{Body: sess.Stats()}, nil
	})
}

func (s *Server) trackResponse(track session.Track) *models.TrackResponse {
	data := models.TrackData{
		Track: string(track),
		State: string(s.options.Session.State(track)),
	}
	if err := s.options.Session.LastError(track); err != nil {
		data.Error = err.Error()
	}
	return &models.TrackResponse{Body: data}
}
