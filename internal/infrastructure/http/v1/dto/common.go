// Package dto provides Data Transfer Objects for API requests/responses.
package dto

// ListResponse wraps list results with paging.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// QueuedResponse is returned when work was handed to the background worker.
type QueuedResponse struct {
	TaskID       string `json:"taskId"`
	AdjustmentID string `json:"adjustmentId"`
	Status       string `json:"status"`
}
