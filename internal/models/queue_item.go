package models

// QueueStatus is the lifecycle state of an enrichment queue item
type QueueStatus string

const (
	// QueueStatusNew marks an item waiting to be picked up
	QueueStatusNew QueueStatus = "new"
	// QueueStatusPending marks the single item currently being processed
	QueueStatusPending QueueStatus = "pending"
	// QueueStatusError marks an item whose enrichment failed; it stays in the
	// queue for manual inspection and is not retried by the scheduler
	QueueStatusError QueueStatus = "error"
)

// QueueItem is a pending enrichment request in the content repository.
// Created by ingestion, mutated only by the scheduler loop, deleted on
// successful completion. At most one item is pending at any time.
type QueueItem struct {
	ID     string      `json:"documentId"`
	Slug   string      `json:"slug"`
	Fields []string    `json:"fields,omitempty"`
	Status QueueStatus `json:"status"`
}
