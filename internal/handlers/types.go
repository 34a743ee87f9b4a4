package handlers

import (
	"time"

	"github.com/Brownie44l1/lizzycam/internal/frame"
	"github.com/Brownie44l1/lizzycam/internal/pipeline"
	"github.com/Brownie44l1/lizzycam/internal/supplier"
)

// FrameRequest is one camera frame pushed by a capture client. Plane data
// is base64 in JSON.
type FrameRequest struct {
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	Planes    []frame.Plane `json:"planes"`
	Timestamp *time.Time    `json:"timestamp,omitempty"`
}

type FrameAccepted struct {
	FrameID string `json:"frame_id"`
}

// PredictionRequest carries an already built input tensor.
type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type StatsResponse struct {
	Mailbox     supplier.Stats       `json:"mailbox"`
	Runner      pipeline.RunnerStats `json:"runner"`
	Subscribers int                  `json:"subscribers"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
