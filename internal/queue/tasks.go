package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"knowledge-base-platform/internal/logger"
	"knowledge-base-platform/services"
)

const TaskIndexDocument = "knowledge:index"

type IndexDocumentPayload struct {
	DocumentID string `json:"document_id"`
	OwnerID    string `json:"owner_id"`
	Reprocess  bool   `json:"reprocess"`
}

// NewIndexDocumentTask builds the queued indexing task for one document.
func NewIndexDocumentTask(documentID, ownerID string, reprocess bool) (*asynq.Task, error) {
	payload, err := json.Marshal(IndexDocumentPayload{
		DocumentID: documentID,
		OwnerID:    ownerID,
		Reprocess:  reprocess,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIndexDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("default"),
	), nil
}

// Client enqueues indexing work. Implements services.TaskEnqueuer.
type Client struct {
	inner *asynq.Client
}

func NewClient(redisAddr, redisPassword string) *Client {
	return &Client{inner: asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: redisPassword,
	})}
}

func (c *Client) EnqueueIndexDocument(ctx context.Context, documentID, ownerID string, reprocess bool) error {
	task, err := NewIndexDocumentTask(documentID, ownerID, reprocess)
	if err != nil {
		return err
	}
	info, err := c.inner.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TaskIndexDocument, err)
	}
	logger.Info("indexing task enqueued",
		"task_id", info.ID, "document_id", documentID, "reprocess", reprocess)
	return nil
}

func (c *Client) Close() error {
	return c.inner.Close()
}

// TaskProcessor is the worker-side handler set.
type TaskProcessor struct {
	indexer   *services.Indexer
	documents services.DocumentStore
}

func NewTaskProcessor(indexer *services.Indexer, documents services.DocumentStore) *TaskProcessor {
	return &TaskProcessor{indexer: indexer, documents: documents}
}

// HandleIndexDocument runs one queued indexing pass. Caller errors
// (empty content, bad ids, vanished rows) skip the retry loop; upstream
// and connectivity failures are left to asynq's backoff.
func (p *TaskProcessor) HandleIndexDocument(ctx context.Context, t *asynq.Task) error {
	var payload IndexDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	if payload.Reprocess {
		_, err := p.indexer.Reprocess(ctx, payload.DocumentID, payload.OwnerID)
		return p.classify(err, payload.DocumentID)
	}

	doc, err := p.documents.Get(ctx, payload.DocumentID, payload.OwnerID)
	if err != nil {
		return p.classify(err, payload.DocumentID)
	}
	return p.classify(p.indexer.Index(ctx, doc), payload.DocumentID)
}

func (p *TaskProcessor) classify(err error, documentID string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, services.ErrDocumentNotFound) || services.IsCallerError(err) {
		logger.Warn("dropping non-retryable indexing task",
			"document_id", documentID, "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}
