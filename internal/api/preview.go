package api

import (
	"bytes"
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// PreviewResponse carries a PNG snapshot of the latest frame.
type PreviewResponse struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}

func (s *Server) registerPreviewRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-preview",
		Method:      http.MethodGet,
		Path:        "/api/preview.png",
		Summary:     "Preview Frame",
		Description: "PNG snapshot of the most recently composited frame",
		Tags:        []string{"preview"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*PreviewResponse, error) {
		var buf bytes.Buffer
		if err := s.options.Preview.EncodePNG(&buf); err != nil {
			return nil, huma.Error500InternalServerError("failed to encode preview", err)
		}
		return &PreviewResponse{
			ContentType:  "image/png",
			CacheControl: "no-store",
			Body:         buf.Bytes(),
		}, nil
	})
}
