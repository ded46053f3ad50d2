package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/smazurov/scenecast/internal/api/models"
	"github.com/smazurov/scenecast/internal/ffmpeg"
	"github.com/smazurov/scenecast/internal/pipeline"
)

func (s *Server) registerPipelineRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-pipeline",
		Method:      http.MethodGet,
		Path:        "/api/pipeline",
		Summary:     "Pipeline Preview",
		Description: "Build the pipeline the active scene would start with, without starting it. The stream key is masked.",
		Tags:        []string{"session"},
		Errors:      []int{400, 401, 422},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.PipelineRequest) (*models.PipelineResponse, error) {
		sess := s.options.Session
		desc, err := pipeline.Build(s.options.Scenes.Active(), sess.Profile(), pipeline.Options{
			Platform:  sess.Platform(),
			Target:    pipeline.Target(input.Target),
			SessionID: uuid.NewString(),
			StartedAt: time.Now(),
		})
		if err != nil {
			return nil, s.mapError(err)
		}
		redacted := desc.Redacted()
		args, err := ffmpeg.BuildArgs(redacted)
		if err != nil {
			return nil, s.mapError(err)
		}
		return &models.PipelineResponse{Body: models.PipelineData{Description: redacted, Args: args}}, nil
	})
}
