package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// multipartThreshold is the payload size above which uploads switch to the
// multipart manager.
const multipartThreshold = 16 * 1024 * 1024

// PriceHistoryStore is the slice of domain.OracleStore the archiver needs.
type PriceHistoryStore interface {
	ListHistoryBefore(ctx context.Context, asset string, before time.Time) ([]domain.OraclePrice, error)
	DeleteHistoryBefore(ctx context.Context, asset string, before time.Time) (int64, error)
}

// ObjectChecker reports whether an object key is already taken.
type ObjectChecker interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// archiveRecord is one JSONL line.
type archiveRecord struct {
	Asset           string    `json:"asset"`
	VsCurrency      string    `json:"vsCurrency"`
	Price           string    `json:"price"`
	Source          string    `json:"source"`
	SourceUpdatedAt time.Time `json:"sourceUpdatedAt"`
	FetchedAt       time.Time `json:"fetchedAt"`
}

// PriceArchiver implements domain.Archiver. It exports history rows older
// than the cutoff as JSONL and deletes them only after the upload succeeded.
type PriceArchiver struct {
	writer  domain.BlobWriter
	objects ObjectChecker
	store   PriceHistoryStore
	now     func() time.Time
}

// NewPriceArchiver creates a PriceArchiver. objects may be nil, in which case
// existing objects for the same day are overwritten.
func NewPriceArchiver(writer domain.BlobWriter, objects ObjectChecker, store PriceHistoryStore) *PriceArchiver {
	return &PriceArchiver{
		writer:  writer,
		objects: objects,
		store:   store,
		now:     time.Now,
	}
}

// ArchivePriceHistory uploads the asset's history older than before and
// returns the number of rows archived.
func (a *PriceArchiver) ArchivePriceHistory(ctx context.Context, asset string, before time.Time) (int64, error) {
	rows, err := a.store.ListHistoryBefore(ctx, asset, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s query: %w", asset, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	buf, err := marshalPriceJSONL(rows)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s marshal: %w", asset, err)
	}

	path, err := a.objectPath(ctx, asset, before)
	if err != nil {
		return 0, err
	}

	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", asset, err)
	}

	deleted, err := a.store.DeleteHistoryBefore(ctx, asset, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s delete after upload to %s: %w", asset, path, err)
	}
	return deleted, nil
}

// objectPath returns oracle/history/<asset>/<yyyy-mm-dd>.jsonl for the
// cutoff day, or a time-suffixed variant when that key is already taken.
func (a *PriceArchiver) objectPath(ctx context.Context, asset string, before time.Time) (string, error) {
	path := archivePath(asset, before)
	if a.objects == nil {
		return path, nil
	}
	exists, err := a.objects.Exists(ctx, path)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive %s check existing: %w", asset, err)
	}
	if exists {
		return fmt.Sprintf("oracle/history/%s/%s.jsonl", asset, a.now().UTC().Format("2006-01-02T150405")), nil
	}
	return path, nil
}

func archivePath(asset string, before time.Time) string {
	return fmt.Sprintf("oracle/history/%s/%s.jsonl", asset, before.UTC().Format("2006-01-02"))
}

// marshalPriceJSONL writes one compact JSON object per line.
func marshalPriceJSONL(rows []domain.OraclePrice) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, p := range rows {
		rec := archiveRecord{
			Asset:           p.Asset,
			VsCurrency:      p.VsCurrency,
			Price:           p.Price.String(),
			Source:          p.Source,
			SourceUpdatedAt: p.SourceUpdatedAt.UTC(),
			FetchedAt:       p.FetchedAt.UTC(),
		}
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*PriceArchiver)(nil)
