package models

import (
	"github.com/smazurov/scenecast/internal/pipeline"
	"github.com/smazurov/scenecast/internal/session"
)

type TrackPath struct {
	Track string `path:"track" enum:"stream,record" doc:"Session track"`
}

type StatsResponse struct {
	Body session.Stats
}

type TrackData struct {
	Track string `json:"track" example:"stream" doc:"Session track"`
	State string `json:"state" example:"starting" doc:"State after the request"`
	Error string `json:"error,omitempty" doc:"Preserved failure reason"`
}

type TrackResponse struct {
	Body TrackData
}

type PipelineRequest struct {
	Target string `query:"target" enum:"auto,stream,record" default:"auto" doc:"Sink to build for"`
}

type PipelineData struct {
	Description *pipeline.Description `json:"description" doc:"Pipeline description with the stream key masked"`
	Args        []string              `json:"args" doc:"ffmpeg arguments with the stream key masked"`
}

type PipelineResponse struct {
	Body PipelineData
}
