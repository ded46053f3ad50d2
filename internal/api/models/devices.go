package models

import "github.com/smazurov/scenecast/internal/devices"

type DeviceData struct {
	Cameras     []devices.DeviceInfo `json:"cameras" doc:"Video capture devices"`
	Microphones []devices.DeviceInfo `json:"microphones" doc:"Audio capture devices"`
	Count       int                  `json:"count" example:"3" doc:"Total number of devices"`
}

type DeviceResponse struct {
	Body DeviceData
}

type BindingsData struct {
	Bindings []devices.Binding `json:"bindings" doc:"Devices currently referenced by visible camera sources"`
}

type BindingsResponse struct {
	Body BindingsData
}
