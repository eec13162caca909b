package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/buildmart-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLConn is the subset of db.Client the SQL backend needs.
type SQLConn interface {
	DB() *gorm.DB
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	Ping(ctx context.Context) error
}

type sqlBackend struct {
	conn SQLConn
	hub  *Hub
	now  func() time.Time
}

// NewSQL returns a store persisting documents in the documents table. Change
// notifications are delivered within this process only.
func NewSQL(conn SQLConn, opts ...Option) (*Engine, error) {
	if conn == nil || conn.DB() == nil {
		return nil, errors.New("docstore: sql connection is required")
	}
	hub := NewHub()
	b := &sqlBackend{conn: conn, hub: hub, now: time.Now}
	return newEngine(b, hub, buildOptions(opts)), nil
}

func (b *sqlBackend) view(ctx context.Context, fn func(r reader) error) error {
	return fn(sqlReader{tx: b.conn.DB().WithContext(ctx)})
}

func (b *sqlBackend) transact(ctx context.Context, fn func(r reader) (map[string][]byte, error)) error {
	return b.conn.WithTx(ctx, func(tx *gorm.DB) error {
		// Row locks serialise writers touching the same documents on postgres;
		// sqlite already serialises write transactions.
		lock := tx.Dialector.Name() == "postgres"
		writes, err := fn(sqlReader{tx: tx, lock: lock})
		if err != nil {
			return err
		}
		now := b.now().UTC()
		for _, path := range sortedKeys(writes) {
			raw := writes[path]
			if raw == nil {
				if err := tx.Where("path = ?", path).Delete(&models.Document{}).Error; err != nil {
					return err
				}
				continue
			}
			doc := models.Document{Path: path, Body: string(raw), Version: 1, UpdatedAt: now}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "path"}},
				DoUpdates: clause.Assignments(map[string]any{
					"body":       doc.Body,
					"updated_at": now,
					"version":    gorm.Expr("documents.version + 1"),
				}),
			}).Create(&doc).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *sqlBackend) publish(_ context.Context, paths []string) error {
	b.hub.Notify(paths)
	return nil
}

func (b *sqlBackend) ping(ctx context.Context) error {
	return b.conn.Ping(ctx)
}

func (b *sqlBackend) close() error { return nil }

type sqlReader struct {
	tx   *gorm.DB
	lock bool
}

func (r sqlReader) query() *gorm.DB {
	q := r.tx.Model(&models.Document{})
	if r.lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (r sqlReader) getMany(_ context.Context, paths []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(paths))
	if len(paths) == 0 {
		return out, nil
	}
	var docs []models.Document
	if err := r.query().Where("path IN ?", paths).Find(&docs).Error; err != nil {
		return nil, err
	}
	for _, doc := range docs {
		out[doc.Path] = []byte(doc.Body)
	}
	return out, nil
}

func (r sqlReader) scan(_ context.Context, prefix string) ([]entry, error) {
	var docs []models.Document
	err := r.query().
		Where("path >= ? AND path < ?", prefix, upperBound(prefix)).
		Order("path").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	out := make([]entry, 0, len(docs))
	for _, doc := range docs {
		out = append(out, entry{path: doc.Path, raw: []byte(doc.Body)})
	}
	return out, nil
}
