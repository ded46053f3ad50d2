package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/scenecast/internal/api/models"
	"github.com/smazurov/scenecast/internal/scene"
)

func (s *Server) registerSourceRoutes() {
	m := s.options.Scenes

	huma.Register(s.api, huma.Operation{
		OperationID:   "add-source",
		Method:        http.MethodPost,
		Path:          "/api/scenes/{id}/sources",
		Summary:       "Add Source",
		Description:   "Add a source to a scene. Visible camera sources bind their device.",
		Tags:          []string{"sources"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{400, 401, 404},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.SourceCreateRequest) (*models.SourceResponse, error) {
		b := input.Body
		content, err := scene.NewContent(scene.Kind(b.Type), b.DeviceID, b.ContentRef)
		if err != nil {
			return nil, s.mapError(err)
		}
		if mf, ok := content.(scene.MediaFile); ok {
			mf.Loop = b.Loop
			content = mf
		}
		spec := scene.NewSource{
			ID:      scene.SourceID(b.ID),
			Name:    b.Name,
			Content: content,
			Visible: b.Visible,
			Locked:  b.Locked,
			Volume:  b.Volume,
			Muted:   b.Muted,
			ZIndex:  b.ZIndex,
		}
		if b.Bounds != nil {
			r := b.Bounds.ToRect()
			spec.Bounds = &r
		}
		id, err := m.AddSource(scene.SceneID(input.SceneID), spec)
		if err != nil {
			return nil, s.mapError(err)
		}
		return s.sourceResponse(id)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-source",
		Method:      http.MethodPatch,
		Path:        "/api/sources/{id}",
		Summary:     "Update Source",
		Description: "Apply a partial update. Locked sources reject placement changes unless the same request unlocks them.",
		Tags:        []string{"sources"},
		Errors:      []int{400, 401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SourceUpdateRequest) (*models.SourceResponse, error) {
		id := scene.SourceID(input.SourceID)
		b := input.Body
		patch := scene.SourcePatch{
			Name:    b.Name,
			Visible: b.Visible,
			Locked:  b.Locked,
			Volume:  b.Volume,
			Muted:   b.Muted,
			ZIndex:  b.ZIndex,
		}
		if b.Bounds != nil {
			r := b.Bounds.ToRect()
			patch.Bounds = &r
		}
		if b.DeviceID != nil || b.ContentRef != nil || b.Loop != nil {
			content, err := s.patchContent(id, b.DeviceID, b.ContentRef, b.Loop)
			if err != nil {
				return nil, s.mapError(err)
			}
			patch.Content = content
		}
		if err := m.UpdateSource(id, patch); err != nil {
			return nil, s.mapError(err)
		}
		return s.sourceResponse(id)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "reorder-source",
		Method:      http.MethodPut,
		Path:        "/api/sources/{id}/z",
		Summary:     "Reorder Source",
		Description: "Set the paint order of a source. Ties paint in insertion order.",
		Tags:        []string{"sources"},
		Errors:      []int{400, 401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.ReorderRequest) (*models.SourceResponse, error) {
		id := scene.SourceID(input.SourceID)
		if err := m.Reorder(id, input.Body.ZIndex); err != nil {
			return nil, s.mapError(err)
		}
		return s.sourceResponse(id)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "remove-source",
		Method:      http.MethodDelete,
		Path:        "/api/sources/{id}",
		Summary:     "Remove Source",
		Description: "Remove a source, releasing its device before it leaves the scene",
		Tags:        []string{"sources"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SourceIDPath) (*struct{}, error) {
		if err := m.RemoveSource(scene.SourceID(input.SourceID)); err != nil {
			return nil, s.mapError(err)
		}
		return &struct{}{}, nil
	})
}

// patchContent rebuilds a source's content with the given fields replaced.
// The kind never changes.
func (s *Server) patchContent(id scene.SourceID, deviceID, ref *string, loop *bool) (scene.Content, error) {
	src, _, err := s.options.Scenes.Source(id)
	if err != nil {
		return nil, err
	}
	kind, dev, cur := scene.Flatten(src.Content)
	if deviceID != nil {
		dev = *deviceID
	}
	if ref != nil {
		cur = *ref
	}
	content, err := scene.NewContent(kind, dev, cur)
	if err != nil {
		return nil, err
	}
	if mf, ok := content.(scene.MediaFile); ok {
		if old, ok := src.Content.(scene.MediaFile); ok {
			mf.Loop = old.Loop
		}
		if loop != nil {
			mf.Loop = *loop
		}
		content = mf
	}
	return content, nil
}
