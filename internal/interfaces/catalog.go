package interfaces

import (
	"context"

	"github.com/ternarybob/ditare/internal/models"
)

// CatalogService is the content repository contract the pipelines depend on.
// Reads go through GraphQL, writes through the REST surface; implementations
// own idempotent creation (lookup by natural key before create).
type CatalogService interface {
	// FindServiceBySlug returns the service with the given slug, or nil when
	// no record exists.
	FindServiceBySlug(ctx context.Context, slug string) (*models.ServiceRecord, error)

	// GetServiceByID returns the full service record. A non-empty locale
	// fetches the locale variant; nil is returned when the variant (or the
	// record) does not exist.
	GetServiceByID(ctx context.Context, id, locale string) (*models.ServiceRecord, error)

	// CreateService creates a record from the draft and returns its id
	CreateService(ctx context.Context, draft models.ServiceDraft) (string, error)

	// UpdateService updates an existing record by its stable id
	UpdateService(ctx context.Context, id string, draft models.ServiceDraft) (string, error)

	// UpdateServiceTranslation overwrites the locale variant of a record
	UpdateServiceTranslation(ctx context.Context, id, locale string, draft models.ServiceDraft) error

	// ListTags returns the full tag taxonomy with normalized statuses
	ListTags(ctx context.Context) ([]models.Tag, error)

	// CreateTag creates a tag and returns its id. Creation is idempotent:
	// when a tag with the same name (case-insensitive) already exists, its
	// id is returned instead.
	CreateTag(ctx context.Context, name string, status models.TagStatus) (string, error)

	// ListQueueItems returns the queue items with the given status, oldest
	// first.
	ListQueueItems(ctx context.Context, status models.QueueStatus) ([]models.QueueItem, error)

	// CreateQueueItem enqueues a new enrichment request
	CreateQueueItem(ctx context.Context, item models.QueueItem) error

	// UpdateQueueItemStatus transitions a queue item
	UpdateQueueItemStatus(ctx context.Context, id string, status models.QueueStatus) error

	// DeleteQueueItem removes a completed queue item
	DeleteQueueItem(ctx context.Context, id string) error
}
