package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ternarybob/ditare/internal/interfaces"
	"github.com/ternarybob/ditare/internal/models"
)

// Verify interface compliance at compile time
var _ interfaces.CatalogService = (*Client)(nil)

const serviceFields = `documentId
slug
name
url
description
abstract
functionality
shortfacts
pricing
youtube_video
youtube_title
top
publishdate
reviewCount
averageRating
tags {
	documentId
	name
	tag_status
	excluded
}`

// FindServiceBySlug returns the service with the given slug, or nil when no
// record exists.
func (c *Client) FindServiceBySlug(ctx context.Context, slug string) (*models.ServiceRecord, error) {
	query := fmt.Sprintf(`query ($slug: String!) {
		services(filters: { slug: { eq: $slug } }) {
			%s
		}
	}`, serviceFields)

	var data struct {
		Services []serviceNode `json:"services"`
	}
	if err := c.graphql(ctx, query, map[string]interface{}{"slug": slug}, &data); err != nil {
		return nil, fmt.Errorf("failed to look up service %q: %w", slug, err)
	}
	if len(data.Services) == 0 {
		return nil, nil
	}
	return toServiceRecord(&data.Services[0]), nil
}

// GetServiceByID returns the full service record. A non-empty locale fetches
// the locale variant; nil is returned when the variant does not exist.
func (c *Client) GetServiceByID(ctx context.Context, id, locale string) (*models.ServiceRecord, error) {
	query := fmt.Sprintf(`query ($id: ID!, $locale: I18NLocaleCode) {
		service(documentId: $id, locale: $locale) {
			%s
		}
	}`, serviceFields)

	variables := map[string]interface{}{"id": id}
	if locale != "" {
		variables["locale"] = locale
	}

	var data struct {
		Service *serviceNode `json:"service"`
	}
	if err := c.graphql(ctx, query, variables, &data); err != nil {
		return nil, fmt.Errorf("failed to fetch service %s: %w", id, err)
	}
	if data.Service == nil {
		return nil, nil
	}
	return toServiceRecord(data.Service), nil
}

// CreateService creates a record from the draft and returns its id.
func (c *Client) CreateService(ctx context.Context, draft models.ServiceDraft) (string, error) {
	var resp restDocumentResponse
	if err := c.rest(ctx, http.MethodPost, "/services", restDocument{Data: draft}, &resp); err != nil {
		return "", fmt.Errorf("failed to create service: %w", err)
	}
	return resp.Data.DocumentID, nil
}

// UpdateService updates an existing record by its stable id.
func (c *Client) UpdateService(ctx context.Context, id string, draft models.ServiceDraft) (string, error) {
	var resp restDocumentResponse
	if err := c.rest(ctx, http.MethodPut, "/services/"+id, restDocument{Data: draft}, &resp); err != nil {
		return "", fmt.Errorf("failed to update service %s: %w", id, err)
	}
	if resp.Data.DocumentID == "" {
		return id, nil
	}
	return resp.Data.DocumentID, nil
}

// UpdateServiceTranslation overwrites the locale variant of a record. The
// draft is written as given: the caller decides which fields to omit and
// which to blank, and an empty string deliberately clears a variant field.
func (c *Client) UpdateServiceTranslation(ctx context.Context, id, locale string, draft models.ServiceDraft) error {
	path := fmt.Sprintf("/services/%s?locale=%s", id, url.QueryEscape(locale))
	if err := c.rest(ctx, http.MethodPut, path, restDocument{Data: draft}, nil); err != nil {
		return fmt.Errorf("failed to update %s translation of service %s: %w", locale, id, err)
	}
	return nil
}

// ListTags returns the full tag taxonomy with normalized statuses.
func (c *Client) ListTags(ctx context.Context) ([]models.Tag, error) {
	query := `query {
		tags(pagination: { limit: 500 }) {
			documentId
			name
			tag_status
			excluded
		}
	}`

	var data struct {
		Tags []tagNode `json:"tags"`
	}
	if err := c.graphql(ctx, query, nil, &data); err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}

	tags := make([]models.Tag, 0, len(data.Tags))
	for i := range data.Tags {
		tags = append(tags, toTag(&data.Tags[i]))
	}
	return tags, nil
}

// CreateTag creates a tag and returns its id. Creation is idempotent: a tag
// with the same name (case-insensitive) returns the existing id.
func (c *Client) CreateTag(ctx context.Context, name string, status models.TagStatus) (string, error) {
	existing, err := c.findTagByName(ctx, name)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID, nil
	}

	payload := restDocument{Data: map[string]interface{}{
		"name":       name,
		"tag_status": string(status),
	}}

	var resp restDocumentResponse
	if err := c.rest(ctx, http.MethodPost, "/tags", payload, &resp); err != nil {
		// A concurrent create can hit the unique constraint; resolve to the
		// winner's id instead of failing the run.
		if isAlreadyExists(err) {
			if existing, lookupErr := c.findTagByName(ctx, name); lookupErr == nil && existing != nil {
				return existing.ID, nil
			}
		}
		return "", fmt.Errorf("failed to create tag %q: %w", name, err)
	}
	return resp.Data.DocumentID, nil
}

func (c *Client) findTagByName(ctx context.Context, name string) (*models.Tag, error) {
	query := `query ($name: String!) {
		tags(filters: { name: { eqi: $name } }) {
			documentId
			name
			tag_status
			excluded
		}
	}`

	var data struct {
		Tags []tagNode `json:"tags"`
	}
	if err := c.graphql(ctx, query, map[string]interface{}{"name": name}, &data); err != nil {
		return nil, fmt.Errorf("failed to look up tag %q: %w", name, err)
	}
	if len(data.Tags) == 0 {
		return nil, nil
	}
	tag := toTag(&data.Tags[0])
	return &tag, nil
}

// ListQueueItems returns the queue items with the given status, oldest first.
func (c *Client) ListQueueItems(ctx context.Context, status models.QueueStatus) ([]models.QueueItem, error) {
	query := `query ($status: String!) {
		queues(
			filters: { queuestatus: { eq: $status } }
			sort: "createdAt:asc"
			pagination: { limit: 100 }
		) {
			documentId
			slug
			fields
			queuestatus
		}
	}`

	var data struct {
		Queues []queueNode `json:"queues"`
	}
	if err := c.graphql(ctx, query, map[string]interface{}{"status": string(status)}, &data); err != nil {
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}

	items := make([]models.QueueItem, 0, len(data.Queues))
	for i := range data.Queues {
		items = append(items, toQueueItem(&data.Queues[i]))
	}
	return items, nil
}

// CreateQueueItem enqueues a new enrichment request.
func (c *Client) CreateQueueItem(ctx context.Context, item models.QueueItem) error {
	status := item.Status
	if status == "" {
		status = models.QueueStatusNew
	}

	payload := restDocument{Data: map[string]interface{}{
		"slug":        item.Slug,
		"fields":      strings.Join(item.Fields, ","),
		"queuestatus": string(status),
	}}

	if err := c.rest(ctx, http.MethodPost, "/queues", payload, nil); err != nil {
		return fmt.Errorf("failed to create queue item for %q: %w", item.Slug, err)
	}
	return nil
}

// UpdateQueueItemStatus transitions a queue item.
func (c *Client) UpdateQueueItemStatus(ctx context.Context, id string, status models.QueueStatus) error {
	payload := restDocument{Data: map[string]interface{}{
		"queuestatus": string(status),
	}}
	if err := c.rest(ctx, http.MethodPut, "/queues/"+id, payload, nil); err != nil {
		return fmt.Errorf("failed to update queue item %s: %w", id, err)
	}
	return nil
}

// DeleteQueueItem removes a completed queue item.
func (c *Client) DeleteQueueItem(ctx context.Context, id string) error {
	if err := c.rest(ctx, http.MethodDelete, "/queues/"+id, nil, nil); err != nil {
		return fmt.Errorf("failed to delete queue item %s: %w", id, err)
	}
	return nil
}

func toTag(node *tagNode) models.Tag {
	return models.Tag{
		ID:     node.DocumentID,
		Name:   node.Name,
		Status: models.NormalizeTagStatus(node.TagStatus, node.Excluded),
	}
}

func toServiceRecord(node *serviceNode) *models.ServiceRecord {
	record := &models.ServiceRecord{
		ID:            node.DocumentID,
		Slug:          node.Slug,
		Name:          node.Name,
		URL:           node.URL,
		Description:   node.Description,
		Abstract:      node.Abstract,
		Functionality: node.Functionality,
		Shortfacts:    node.Shortfacts,
		Pricing:       node.Pricing,
		YouTubeVideo:  node.YouTubeVideo,
		YouTubeTitle:  node.YouTubeTitle,
		Top:           node.Top,
		PublishDate:   node.PublishDate,
		ReviewCount:   node.ReviewCount,
		AverageRating: node.AverageRating,
	}
	for i := range node.Tags {
		record.Tags = append(record.Tags, toTag(&node.Tags[i]))
	}
	return record
}

func toQueueItem(node *queueNode) models.QueueItem {
	return models.QueueItem{
		ID:     node.DocumentID,
		Slug:   node.Slug,
		Fields: splitFields(node.Fields),
		Status: models.QueueStatus(node.Status),
	}
}

func splitFields(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var fields []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			fields = append(fields, trimmed)
		}
	}
	return fields
}

func isAlreadyExists(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "unique") || strings.Contains(msg, "already exists")
}
