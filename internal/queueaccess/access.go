package queueaccess

import (
	"context"
	"errors"
	"fmt"

	"reelforge/internal/api"
	"reelforge/internal/apiclient"
	"reelforge/internal/queue"
)

// ErrDaemonRequired marks queue writes attempted without a running daemon.
// Direct store access is read-only; mutations go through the daemon so its
// lanes and notifier observe them.
var ErrDaemonRequired = errors.New("daemon is not running")

// Access provides queue operations regardless of HTTP or direct store backing.
type Access interface {
	Stats(ctx context.Context) (map[string]int, error)
	List(ctx context.Context, statuses []string) ([]api.Reel, error)
	Describe(ctx context.Context, id string) (*api.Reel, error)
	Cancel(ctx context.Context, id string) (*api.CancelResponse, error)
	ClearAll(ctx context.Context) (int64, error)
	ClearCompleted(ctx context.Context) (int64, error)
	ClearFailed(ctx context.Context) (int64, error)
	RetryAll(ctx context.Context) (int64, error)
	Retry(ctx context.Context, ids []string) (int64, error)
}

// NewHTTPAccess returns an Access backed by the daemon API.
func NewHTTPAccess(client *apiclient.Client) Access {
	return &httpAccess{client: client}
}

// NewStoreAccess returns a read-only Access over the queue database.
func NewStoreAccess(store *queue.Store) Access {
	return &storeAccess{service: api.NewQueueService(store)}
}

type httpAccess struct {
	client *apiclient.Client
}

func (a *httpAccess) Stats(ctx context.Context) (map[string]int, error) {
	status, err := a.client.Status(ctx)
	if err != nil {
		return nil, err
	}
	return status.Workflow.QueueStats, nil
}

func (a *httpAccess) List(ctx context.Context, statuses []string) ([]api.Reel, error) {
	return a.client.QueueList(ctx, statuses)
}

func (a *httpAccess) Describe(ctx context.Context, id string) (*api.Reel, error) {
	return a.client.Describe(ctx, id)
}

func (a *httpAccess) Cancel(ctx context.Context, id string) (*api.CancelResponse, error) {
	return a.client.Cancel(ctx, id)
}

func (a *httpAccess) ClearAll(ctx context.Context) (int64, error) {
	return a.client.QueueClear(ctx)
}

func (a *httpAccess) ClearCompleted(ctx context.Context) (int64, error) {
	return a.client.QueueClearCompleted(ctx)
}

func (a *httpAccess) ClearFailed(ctx context.Context) (int64, error) {
	return a.client.QueueClearFailed(ctx)
}

func (a *httpAccess) RetryAll(ctx context.Context) (int64, error) {
	return a.client.QueueRetry(ctx, nil)
}

func (a *httpAccess) Retry(ctx context.Context, ids []string) (int64, error) {
	return a.client.QueueRetry(ctx, ids)
}

type storeAccess struct {
	service *api.QueueService
}

func (a *storeAccess) Stats(ctx context.Context) (map[string]int, error) {
	return a.service.Stats(ctx)
}

func (a *storeAccess) List(ctx context.Context, statuses []string) ([]api.Reel, error) {
	var filters []queue.Status
	for _, value := range statuses {
		parsed, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		filters = append(filters, parsed)
	}
	return a.service.List(ctx, filters...)
}

func (a *storeAccess) Describe(ctx context.Context, id string) (*api.Reel, error) {
	return a.service.Describe(ctx, id)
}

func (a *storeAccess) Cancel(context.Context, string) (*api.CancelResponse, error) {
	return nil, writeNeedsDaemon("cancel a reel")
}

func (a *storeAccess) ClearAll(context.Context) (int64, error) {
	return 0, writeNeedsDaemon("clear the queue")
}

func (a *storeAccess) ClearCompleted(context.Context) (int64, error) {
	return 0, writeNeedsDaemon("clear completed reels")
}

func (a *storeAccess) ClearFailed(context.Context) (int64, error) {
	return 0, writeNeedsDaemon("clear failed reels")
}

func (a *storeAccess) RetryAll(context.Context) (int64, error) {
	return 0, writeNeedsDaemon("retry failed reels")
}

func (a *storeAccess) Retry(context.Context, []string) (int64, error) {
	return 0, writeNeedsDaemon("retry failed reels")
}

func writeNeedsDaemon(action string) error {
	return fmt.Errorf("%w: cannot %s; start it with 'reelforge daemon'", ErrDaemonRequired, action)
}
