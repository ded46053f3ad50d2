package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/scenecast/internal/api/models"
	"github.com/smazurov/scenecast/internal/config"
	"github.com/smazurov/scenecast/internal/scene"
)

func (s *Server) registerSceneRoutes() {
	m := s.options.Scenes

	huma.Register(s.api, huma.Operation{
		OperationID: "list-scenes",
		Method:      http.MethodGet,
		Path:        "/api/scenes",
		Summary:     "List Scenes",
		Description: "List every scene with its sources",
		Tags:        []string{"scenes"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.SceneListResponse, error) {
		active := m.ActiveID()
		scenes := m.Scenes()
		data := models.SceneListData{
			Scenes: make([]models.SceneData, 0, len(scenes)),
			Active: string(active),
			Count:  len(scenes),
		}
		for _, sc := range scenes {
			data.Scenes = append(data.Scenes, models.FromScene(sc, active))
		}
		return &models.SceneListResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-scene",
		Method:        http.MethodPost,
		Path:          "/api/scenes",
		Summary:       "Create Scene",
		Description:   "Create an empty scene",
		Tags:          []string{"scenes"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{400, 401},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.SceneCreateRequest) (*models.SceneResponse, error) {
		id, err := m.CreateScene(input.Body.Name)
		if err != nil {
			return nil, s.mapError(err)
		}
		return s.sceneResponse(id)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-scene",
		Method:      http.MethodGet,
		Path:        "/api/scenes/{id}",
		Summary:     "Get Scene",
		Tags:        []string{"scenes"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SceneIDPath) (*models.SceneResponse, error) {
		return s.sceneResponse(scene.SceneID(input.SceneID))
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "rename-scene",
		Method:      http.MethodPatch,
		Path:        "/api/scenes/{id}",
		Summary:     "Rename Scene",
		Tags:        []string{"scenes"},
		Errors:      []int{400, 401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SceneRenameRequest) (*models.SceneResponse, error) {
		id := scene.SceneID(input.SceneID)
		if err := m.RenameScene(id, input.Body.Name); err != nil {
			return nil, s.mapError(err)
		}
		return s.sceneResponse(id)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-scene",
		Method:      http.MethodDelete,
		Path:        "/api/scenes/{id}",
		Summary:     "Delete Scene",
		Description: "Delete a scene and release every device its sources held. The last scene cannot be deleted.",
		Tags:        []string{"scenes"},
		Errors:      []int{401, 404, 409},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SceneIDPath) (*struct{}, error) {
		if err := m.DeleteScene(scene.SceneID(input.SceneID)); err != nil {
			return nil, s.mapError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-active-scene",
		Method:      http.MethodPut,
		Path:        "/api/scenes/active",
		Summary:     "Switch Scene",
		Description: "Make a scene the one being composited. Running sessions keep their pipeline until restarted.",
		Tags:        []string{"scenes"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.ActiveSceneRequest) (*models.SceneResponse, error) {
		id := scene.SceneID(input.Body.SceneID)
		if err := m.SetActiveScene(id); err != nil {
			return nil, s.mapError(err)
		}
		return s.sceneResponse(id)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "save-scenes",
		Method:      http.MethodPost,
		Path:        "/api/scenes/save",
		Summary:     "Save Scenes",
		Description: "Write every scene to the configured scenes file",
		Tags:        []string{"scenes"},
		Errors:      []int{401, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.SaveScenesResponse, error) {
		path := s.options.ScenesFile
		if path == "" {
			return nil, huma.Error409Conflict("no scenes file configured")
		}
		if err := config.SaveScenes(path, m); err != nil {
			return nil, s.mapError(err)
		}
		s.logger.Info("Scenes saved", "path", path)
		return &models.SaveScenesResponse{Body: models.SaveScenesData{Path: path}}, nil
	})
}

func (s *Server) sceneResponse(id scene.SceneID) (*models.SceneResponse, error) {
	sc, err := s.options.Scenes.Scene(id)
	if err != nil {
		return nil, s.mapError(err)
	}
	return &models.SceneResponse{Body: models.FromScene(sc, s.options.Scenes.ActiveID())}, nil
}

func (s *Server) sourceResponse(id scene.SourceID) (*models.SourceResponse, error) {
	src, _, err := s.options.Scenes.Source(id)
	if err != nil {
		return nil, s.mapError(err)
	}
	return &models.SourceResponse{Body: models.FromSource(src)}, nil
}
