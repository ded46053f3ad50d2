package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/scenecast/internal/api/models"
)

func (s *Server) registerDeviceRoutes() {
	d := s.options.Devices

	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "List capture devices from the last scan",
		Tags:        []string{"devices"},
		Errors:      []int{401, 502},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.DeviceResponse, error) {
		return s.listDevices(ctx)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "rescan-devices",
		Method:      http.MethodPost,
		Path:        "/api/devices/rescan",
		Summary:     "Rescan Devices",
		Description: "Re-enumerate devices and retry every failed binding",
		Tags:        []string{"devices"},
		Errors:      []int{401, 502},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.DeviceResponse, error) {
		if err := d.Rescan(ctx); err != nil {
			return nil, s.mapError(err)
		}
		return s.listDevices(ctx)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-bindings",
		Method:      http.MethodGet,
		Path:        "/api/devices/bindings",
		Summary:     "Device Bindings",
		Description: "Report the state and reference count of every bound device",
		Tags:        []string{"devices"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.BindingsResponse, error) {
		return &models.BindingsResponse{Body: models.BindingsData{Bindings: d.Bindings()}}, nil
	})
}

func (s *Server) listDevices(ctx context.Context) (*models.DeviceResponse, error) {
	cams, err := s.options.Devices.ListCameras(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	mics, err := s.options.Devices.ListMicrophones(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	return &models.DeviceResponse{Body: models.DeviceData{
		Cameras:     cams,
		Microphones: mics,
		Count:       len(cams) + len(mics),
	}}, nil
}
