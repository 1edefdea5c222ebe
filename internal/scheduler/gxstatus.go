package scheduler

import "github.com/jharjadi/docingest/internal/model"

// mapGxStatus translates a GX status string into the local GxStatus
// enum. The mapping is total: any string it doesn't recognize maps to
// ERROR, with the raw value left for the caller to record as the error
// message (spec §4.7 "status mapping from GX strings is total").
func mapGxStatus(raw string) model.GxStatus {
	switch raw {
	case "QUEUED":
		return model.GxQueued
	case "PROCESSING":
		return model.GxProcessing
	case "ACTIVE":
		return model.GxActive
	case "COMPLETE", "COMPLETED":
		return model.GxComplete
	case "CANCELLED", "CANCELED":
		return model.GxCancelled
	default:
		return model.GxError
	}
}
