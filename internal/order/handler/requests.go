package handler

import "time"

type updateStatusRequest struct {
	Status string `json:"status"`
}

type addTrackingRequest struct {
	Location         string     `json:"location"`
	Description      string     `json:"description"`
	EstimatedArrival *time.Time `json:"estimatedArrival"`
}
