package cron

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/buildmart-backend/internal/docpaths"
	"github.com/angelmondragon/buildmart-backend/internal/notifications"
	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	"github.com/angelmondragon/buildmart-backend/pkg/logger"
)

const (
	defaultNotificationRetention = 30 * 24 * time.Hour
	customerIDDepth              = 3
	notificationsKey             = "Notifications"
)

// PruneNotificationsJobParams configure the read-notification sweep.
type PruneNotificationsJobParams struct {
	Logger    *logger.Logger
	Store     docstore.Store
	Retention time.Duration
}

// NewPruneNotificationsJob builds the job that deletes notifications read
// longer ago than Retention. Unread notifications are never removed.
func NewPruneNotificationsJob(params PruneNotificationsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("document store required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultNotificationRetention
	}
	return &pruneNotificationsJob{
		logg:      params.Logger,
		store:     params.Store,
		retention: retention,
		now:       time.Now,
	}, nil
}

type pruneNotificationsJob struct {
	logg      *logger.Logger
	store     docstore.Store
	retention time.Duration
	now       func() time.Time
}

func (j *pruneNotificationsJob) Name() string { return "prune-read-notifications" }

func (j *pruneNotificationsJob) Run(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().Add(-j.retention)

	var users map[string]any
	if _, err := docstore.GetInto(ctx, j.store, docpaths.Users(), &users); err != nil {
		return 0, fmt.Errorf("load customers: %w", err)
	}
	var vendors map[string]any
	if _, err := docstore.GetInto(ctx, j.store, docpaths.Vendors(), &vendors); err != nil {
		return 0, fmt.Errorf("load vendors: %w", err)
	}

	roots := map[string]any{}
	collectCustomers(users, nil, roots)
	for vendorID, subtree := range vendors {
		if tree, ok := subtree.(map[string]any); ok {
			roots[docpaths.VendorNotifications(vendorID)] = tree[notificationsKey]
		}
	}

	paths := make([]string, 0, len(roots))
	for path := range roots {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	pruned := 0
	var errs error
	for _, root := range paths {
		n, err := j.prune(ctx, root, roots[root], cutoff)
		pruned += n
		if err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if pruned > 0 {
		j.logg.Info(j.logg.WithField(ctx, "recipients", len(paths)), "pruned read notifications")
	}
	return pruned, errs
}

func (j *pruneNotificationsJob) prune(ctx context.Context, root string, value any, cutoff time.Time) (int, error) {
	if value == nil {
		return 0, nil
	}
	var byID map[string]notifications.Notification
	if err := docstore.Decode(value, &byID); err != nil {
		return 0, fmt.Errorf("decode %s: %w", root, err)
	}
	batch := docstore.NewBatch()
	count := 0
	for id, n := range byID {
		if !n.Read || n.ReadAt == nil || !n.ReadAt.Before(cutoff) {
			continue
		}
		batch.Delete(docstore.Join(root, id))
		count++
	}
	if count == 0 {
		return 0, nil
	}
	if err := j.store.Commit(ctx, batch); err != nil {
		return 0, fmt.Errorf("prune %s: %w", root, err)
	}
	return count, nil
}

// collectCustomers walks Users/{state}/{city}/{phone} and records each
// customer's notifications subtree under its full path.
func collectCustomers(tree map[string]any, prefix []string, out map[string]any) {
	for key, child := range tree {
		subtree, ok := child.(map[string]any)
		if !ok {
			continue
		}
		segments := append(append([]string(nil), prefix...), key)
		if len(segments) == customerIDDepth {
			out[docpaths.CustomerNotifications(strings.Join(segments, "/"))] = subtree[notificationsKey]
			continue
		}
		collectCustomers(subtree, segments, out)
	}
}
