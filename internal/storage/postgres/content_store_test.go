package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/cryptoganster/cryptoingest/internal/domain"
)

const testHashHex = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func testContentItem(t *testing.T) *domain.ContentItem {
	t.Helper()
	hash, err := domain.NewContentHash(testHashHex)
	require.NoError(t, err)
	tag, err := domain.NewAssetTag("BTC", 0.9)
	require.NoError(t, err)
	item, err := domain.NewContentItem(domain.NewContentItemParams{
		ContentID:         "content-1",
		SourceID:          "src-1",
		Hash:              hash,
		RawContent:        "raw content body",
		NormalizedContent: "normalized content body",
		Metadata:          domain.ContentMetadata{Title: "Bitcoin News"},
		AssetTags:         []domain.AssetTag{tag},
		CollectedAt:       time.Unix(1700000000, 0).UTC(),
	})
	require.NoError(t, err)
	return item
}

func TestContentStoreSaveInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewContentStoreWithPool(mock)
	item := testContentItem(t)

	mock.ExpectExec("INSERT INTO content_items").
		WithArgs(
			item.ContentID,
			item.SourceID,
			testHashHex,
			item.RawContent,
			item.NormalizedContent,
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			item.CollectedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Save(context.Background(), item))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContentStoreFindByHash(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewContentStoreWithPool(mock)
	hash, err := domain.NewContentHash(testHashHex)
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{
		"content_id", "source_id", "content_hash", "raw_content",
		"normalized_content", "metadata", "asset_tags", "collected_at",
	}).AddRow(
		"content-1", "src-1", testHashHex, "raw content body",
		"normalized content body",
		[]byte(`{"title":"Bitcoin News"}`),
		[]byte(`[{"symbol":"BTC","confidence":0.9}]`),
		time.Unix(1700000000, 0).UTC(),
	)
	mock.ExpectQuery("SELECT (.+) FROM content_items").
		WithArgs(testHashHex).
		WillReturnRows(rows)

	item, err := store.FindByHash(context.Background(), hash)
	require.NoError(t, err)
	require.NotNil(t, item)
	require.Equal(t, "content-1", item.ContentID)
	require.Equal(t, "Bitcoin News", item.Metadata.Title)
	require.True(t, item.HasAssetTag("BTC"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContentStoreFindByHashMiss(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewContentStoreWithPool(mock)
	hash, err := domain.NewContentHash(testHashHex)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM content_items").
		WithArgs(testHashHex).
		WillReturnError(pgx.ErrNoRows)

	item, err := store.FindByHash(context.Background(), hash)
	require.NoError(t, err, "a missing hash is not an error")
	require.Nil(t, item)
	require.NoError(t, mock.ExpectationsWereMet())
}
