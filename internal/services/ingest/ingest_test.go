package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/ditare/internal/common"
	"github.com/ternarybob/ditare/internal/interfaces"
	"github.com/ternarybob/ditare/internal/models"
)

// rotatingTokens serves "stale" until invalidated, then "fresh".
type rotatingTokens struct {
	invalidated atomic.Bool
}

func (r *rotatingTokens) Token(_ context.Context) (string, error) {
	if r.invalidated.Load() {
		return "fresh", nil
	}
	return "stale", nil
}

func (r *rotatingTokens) Invalidate() {
	r.invalidated.Store(true)
}

func TestGraphClient_ListTasks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me/todo/lists/list-1/tasks", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("$top"))
		assert.Equal(t, "Bearer stale", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"value":[{"id":"t-1","title":"Notion"},{"id":"t-2","title":"Canva"}]}`))
	}))
	defer server.Close()

	client := NewGraphClient(&rotatingTokens{}, WithBaseURL(server.URL))

	tasks, err := client.ListTasks(context.Background(), "list-1", 20)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, interfaces.Task{ID: "t-1", Title: "Notion"}, tasks[0])
}

func TestGraphClient_UnauthorizedRetriesExactlyOnce(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.Header.Get("Authorization") == "Bearer stale" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"value":[{"id":"t-1","title":"Notion"}]}`))
	}))
	defer server.Close()

	tokens := &rotatingTokens{}
	client := NewGraphClient(tokens, WithBaseURL(server.URL))

	tasks, err := client.ListTasks(context.Background(), "list-1", 20)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, tokens.invalidated.Load())
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestGraphClient_PersistentUnauthorizedSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewGraphClient(&rotatingTokens{}, WithBaseURL(server.URL))

	_, err := client.ListTasks(context.Background(), "list-1", 20)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

// taskSource is an in-memory interfaces.TaskSource.
type taskSource struct {
	tasks      []interfaces.Task
	deleted    []string
	deleteFail map[string]error
}

func (s *taskSource) ListTasks(_ context.Context, _ string, _ int) ([]interfaces.Task, error) {
	return s.tasks, nil
}

func (s *taskSource) DeleteTask(_ context.Context, _ string, taskID string) error {
	if err := s.deleteFail[taskID]; err != nil {
		return err
	}
	s.deleted = append(s.deleted, taskID)
	return nil
}

// queueRecorder records created queue items.
type queueRecorder struct {
	created    []models.QueueItem
	createFail map[string]error
}

func (q *queueRecorder) FindServiceBySlug(_ context.Context, _ string) (*models.ServiceRecord, error) {
	return nil, nil
}

func (q *queueRecorder) GetServiceByID(_ context.Context, _, _ string) (*models.ServiceRecord, error) {
	return nil, nil
}

func (q *queueRecorder) CreateService(_ context.Context, _ models.ServiceDraft) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (q *queueRecorder) UpdateService(_ context.Context, _ string, _ models.ServiceDraft) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (q *queueRecorder) UpdateServiceTranslation(_ context.Context, _, _ string, _ models.ServiceDraft) error {
	return nil
}

func (q *queueRecorder) ListTags(_ context.Context) ([]models.Tag, error) { return nil, nil }

func (q *queueRecorder) CreateTag(_ context.Context, _ string, _ models.TagStatus) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (q *queueRecorder) ListQueueItems(_ context.Context, _ models.QueueStatus) ([]models.QueueItem, error) {
	return nil, nil
}

func (q *queueRecorder) CreateQueueItem(_ context.Context, item models.QueueItem) error {
	if err := q.createFail[item.Slug]; err != nil {
		return err
	}
	q.created = append(q.created, item)
	return nil
}

func (q *queueRecorder) UpdateQueueItemStatus(_ context.Context, _ string, _ models.QueueStatus) error {
	return nil
}

func (q *queueRecorder) DeleteQueueItem(_ context.Context, _ string) error { return nil }

func TestSyncer_CreatesQueueItemsAndConsumesTasks(t *testing.T) {
	tasks := &taskSource{tasks: []interfaces.Task{
		{ID: "t-1", Title: "Notion"},
		{ID: "t-2", Title: "Canva"},
		{ID: "t-3", Title: ""},
	}}
	queue := &queueRecorder{}
	syncer := NewSyncer(tasks, queue, "list-1", common.GetLogger())

	created, err := syncer.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	require.Len(t, queue.created, 2)
	assert.Equal(t, "Notion", queue.created[0].Slug)
	assert.Equal(t, models.QueueStatusNew, queue.created[0].Status)
	assert.Equal(t, []string{"t-1", "t-2"}, tasks.deleted)
}

func TestSyncer_PerTaskFailuresCollected(t *testing.T) {
	tasks := &taskSource{
		tasks: []interfaces.Task{
			{ID: "t-1", Title: "Notion"},
			{ID: "t-2", Title: "Canva"},
		},
		deleteFail: map[string]error{"t-1": errors.New("delete refused")},
	}
	queue := &queueRecorder{
		createFail: map[string]error{"Canva": errors.New("queue full")},
	}
	syncer := NewSyncer(tasks, queue, "list-1", common.GetLogger())

	created, err := syncer.SyncOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, created, "the pass continues past failures")
	assert.Contains(t, err.Error(), "delete refused")
	assert.Contains(t, err.Error(), "queue full")
}

func TestSyncer_EmptyListIsNoOp(t *testing.T) {
	syncer := NewSyncer(&taskSource{}, &queueRecorder{}, "list-1", common.GetLogger())

	created, err := syncer.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, created)
}
