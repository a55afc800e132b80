package filestore

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tiberius19/canvas-core/app/models"
)

func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	silent := logger.New(
		log.New(io.Discard, "", log.LstdFlags),
		logger.Config{LogLevel: logger.Silent},
	)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: silent})
	require.NoError(t, err)

	return gormDB, mock
}

type fakeCache struct {
	entries       map[string][]models.FileAttachment
	invalidations int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]models.FileAttachment{}}
}

func (f *fakeCache) Get(key CacheKey) ([]models.FileAttachment, bool) {
	v, ok := f.entries[key.String()]
	return v, ok
}

func (f *fakeCache) Set(key CacheKey, attachments []models.FileAttachment) {
	f.entries[key.String()] = attachments
}

func (f *fakeCache) InvalidateEntity(systemModuleID, entityID uint) {
	f.invalidations++
	prefix := EntityPrefix(systemModuleID, entityID)
	for k := range f.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(f.entries, k)
		}
	}
}

var testEntity = EntityRef{SystemModuleID: 4, EntityID: 17, CompanyID: 5}

func expectFileLookup(mock sqlmock.Sqlmock, fileID uint) {
	mock.ExpectQuery("SELECT (.+) FROM `filesystem` WHERE id = (.+) AND is_deleted = 0").
		WillReturnRows(sqlmock.NewRows([]string{"id", "uuid", "name", "path", "file_type", "is_deleted"}).
			AddRow(fileID, "uuid-1", "avatar.png", "/files/avatar.png", "image", 0))
}

func expectAttachmentInsert(mock sqlmock.Sqlmock, newID int64) {
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `filesystem_entities`").
		WillReturnResult(sqlmock.NewResult(newID, 1))
	mock.ExpectCommit()
}

func TestAttachSameFieldNameCreatesTwoRows(t *testing.T) {
	db, mock := newTestDB(t)
	cache := newFakeCache()
	store := NewStore(db, cache)

	expectFileLookup(mock, 11)
	expectAttachmentInsert(mock, 1)
	expectFileLookup(mock, 12)
	expectAttachmentInsert(mock, 2)

	err := store.Attach(context.Background(), testEntity, []Link{
		{FileID: 11, FieldName: "avatar"},
		{FileID: 12, FieldName: "avatar"},
	})
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1, cache.invalidations)
}

func TestAttachWithExistingIDUpdatesInPlace(t *testing.T) {
	db, mock := newTestDB(t)
	cache := newFakeCache()
	store := NewStore(db, cache)

	expectFileLookup(mock, 11)
	mock.ExpectQuery("SELECT (.+) FROM `filesystem_entities` WHERE id = (.+) AND system_modules_id = (.+) AND entity_id = (.+)").
		WillReturnRows(sqlmock.NewRows([]string{"id", "system_modules_id", "entity_id", "filesystem_id", "companies_id", "field_name", "is_deleted"}).
			AddRow(7, testEntity.SystemModuleID, testEntity.EntityID, 9, testEntity.CompanyID, "avatar", 0))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `filesystem_entities` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Attach(context.Background(), testEntity, []Link{
		{ID: 7, FileID: 11, FieldName: "avatar"},
	})
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1, cache.invalidations)
}

func TestAttachRejectsInvalidFileReference(t *testing.T) {
	db, mock := newTestDB(t)
	cache := newFakeCache()
	store := NewStore(db, cache)

	err := store.Attach(context.Background(), testEntity, []Link{{FieldName: "avatar"}})
	assert.ErrorIs(t, err, ErrInvalidFile)

	mock.ExpectQuery("SELECT (.+) FROM `filesystem` WHERE id = (.+) AND is_deleted = 0").
		WillReturnError(gorm.ErrRecordNotFound)

	err = store.Attach(context.Background(), testEntity, []Link{{FileID: 99}})
	assert.ErrorIs(t, err, ErrInvalidFile)

	assert.NoError(t, mock.ExpectationsWereMet())
	// Nothing was written, so nothing to invalidate.
	assert.Zero(t, cache.invalidations)
}

func expectAttachmentList(mock sqlmock.Sqlmock, attachmentID, fileID uint) {
	mock.ExpectQuery("SELECT (.+) FROM `filesystem_entities` JOIN filesystem ON").
		WillReturnRows(sqlmock.NewRows([]string{"id", "system_modules_id", "entity_id", "filesystem_id", "companies_id", "field_name", "is_deleted", "created_at", "updated_at"}).
			AddRow(attachmentID, testEntity.SystemModuleID, testEntity.EntityID, fileID, testEntity.CompanyID, "avatar", 0, time.Now(), time.Now()))
	mock.ExpectQuery("SELECT (.+) FROM `filesystem` WHERE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "uuid", "name", "path", "file_type", "is_deleted"}).
			AddRow(fileID, "uuid-1", "avatar.png", "/files/avatar.png", "image", 0))
}

func TestGetAttachmentsReadThroughCache(t *testing.T) {
	db, mock := newTestDB(t)
	cache := newFakeCache()
	store := NewStore(db, cache)

	// First call misses and queries.
	expectAttachmentList(mock, 3, 11)
	first, err := store.GetAttachments(context.Background(), testEntity, "")
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Second call is served from the cache: no further expectations.
	second, err := store.GetAttachments(context.Background(), testEntity, "")
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].FilesystemID, second[0].FilesystemID)
	require.NoError(t, mock.ExpectationsWereMet())

	// A write invalidates, so the next read queries again.
	expectFileLookup(mock, 12)
	expectAttachmentInsert(mock, 4)
	require.NoError(t, store.Attach(context.Background(), testEntity, []Link{{FileID: 12, FieldName: "avatar"}}))

	expectAttachmentList(mock, 4, 12)
	third, err := store.GetAttachments(context.Background(), testEntity, "")
	require.NoError(t, err)
	require.Len(t, third, 1)
	assert.Equal(t, uint(12), third[0].FilesystemID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAttachmentsCacheKeySeparatesFilters(t *testing.T) {
	db, mock := newTestDB(t)
	cache := newFakeCache()
	store := NewStore(db, cache)

	expectAttachmentList(mock, 3, 11)
	_, err := store.GetAttachments(context.Background(), testEntity, "image")
	require.NoError(t, err)

	// Different file type filter, different key, new query.
	expectAttachmentList(mock, 5, 13)
	_, err = store.GetAttachments(context.Background(), testEntity, "document")
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Len(t, cache.entries, 2)
}

func TestGetAttachmentByNameAndAttributes(t *testing.T) {
	db, mock := newTestDB(t)
	cache := newFakeCache()
	store := NewStore(db, cache)

	mock.ExpectQuery("SELECT (.+) FROM `filesystem_entities` JOIN filesystem ON (.+) JOIN filesystem_settings ON").
		WillReturnRows(sqlmock.NewRows([]string{"id", "system_modules_id", "entity_id", "filesystem_id", "companies_id", "field_name", "is_deleted"}).
			AddRow(8, testEntity.SystemModuleID, testEntity.EntityID, 11, testEntity.CompanyID, "photo", 0))
	mock.ExpectQuery("SELECT (.+) FROM `filesystem` WHERE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "uuid", "name", "path", "file_type", "is_deleted"}).
			AddRow(11, "uuid-1", "photo-md.png", "/files/photo-md.png", "image", 0))

	attachment, err := store.GetAttachmentByNameAndAttributes(context.Background(), testEntity, "photo", "resolution", "medium")
	require.NoError(t, err)
	assert.Equal(t, uint(8), attachment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAttachmentByNameNotFound(t *testing.T) {
	db, mock := newTestDB(t)
	cache := newFakeCache()
	store := NewStore(db, cache)

	mock.ExpectQuery("SELECT (.+) FROM `filesystem_entities` JOIN filesystem ON").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetAttachmentByName(context.Background(), testEntity, "missing-slot")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteFileOutsideScopeIsNotFound(t *testing.T) {
	db, mock := newTestDB(t)
	cache := newFakeCache()
	store := NewStore(db, cache)

	mock.ExpectQuery("SELECT (.+) FROM `filesystem_entities` WHERE id = (.+) AND system_modules_id = (.+) AND entity_id = (.+) AND is_deleted = 0").
		WillReturnError(gorm.ErrRecordNotFound)

	err := store.DeleteFile(context.Background(), testEntity, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	// No update ran and the cache kept its entries.
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Zero(t, cache.invalidations)
}

func TestDeleteFileSoftDeletes(t *testing.T) {
	db, mock := newTestDB(t)
	cache := newFakeCache()
	store := NewStore(db, cache)

	mock.ExpectQuery("SELECT (.+) FROM `filesystem_entities` WHERE id = (.+) AND system_modules_id = (.+) AND entity_id = (.+) AND is_deleted = 0").
		WillReturnRows(sqlmock.NewRows([]string{"id", "system_modules_id", "entity_id", "filesystem_id", "companies_id", "field_name", "is_deleted"}).
			AddRow(42, testEntity.SystemModuleID, testEntity.EntityID, 11, testEntity.CompanyID, "avatar", 0))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `filesystem_entities` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.DeleteFile(context.Background(), testEntity, 42))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1, cache.invalidations)
}

func TestDeleteFilesSoftDeletesAll(t *testing.T) {
	db, mock := newTestDB(t)
	cache := newFakeCache()
	store := NewStore(db, cache)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `filesystem_entities` SET").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, store.DeleteFiles(context.Background(), testEntity))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1, cache.invalidations)
}

func TestReplaceAllNilLeavesAttachmentsUntouched(t *testing.T) {
	db, mock := newTestDB(t)
	cache := newFakeCache()
	store := NewStore(db, cache)

	require.NoError(t, store.ReplaceAll(context.Background(), testEntity, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Zero(t, cache.invalidations)
}

func TestReplaceAllEmptyHonorsDeploymentFlag(t *testing.T) {
	db, mock := newTestDB(t)
	cache := newFakeCache()
	store := NewStore(db, cache)

	settings := models.GetAppSettings()
	settings.DeleteFilesOnEmptyFilesField = false
	empty := []Link{}

	require.NoError(t, store.ReplaceAll(context.Background(), testEntity, &empty))
	assert.Zero(t, cache.invalidations)

	settings.DeleteFilesOnEmptyFilesField = true
	t.Cleanup(func() { settings.DeleteFilesOnEmptyFilesField = false })

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `filesystem_entities` SET").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, store.ReplaceAll(context.Background(), testEntity, &empty))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1, cache.invalidations)
}

func TestReplaceAllRunsInOneTransaction(t *testing.T) {
	db, mock := newTestDB(t)
	cache := newFakeCache()
	store := NewStore(db, cache)

	links := []Link{{FileID: 11, FieldName: "avatar"}}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `filesystem_entities` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM `filesystem` WHERE id = (.+) AND is_deleted = 0").
		WillReturnRows(sqlmock.NewRows([]string{"id", "uuid", "name", "path", "file_type", "is_deleted"}).
			AddRow(11, "uuid-1", "avatar.png", "/files/avatar.png", "image", 0))
	mock.ExpectExec("INSERT INTO `filesystem_entities`").
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectCommit()

	require.NoError(t, store.ReplaceAll(context.Background(), testEntity, &links))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1, cache.invalidations)
}

func TestReplaceAllRollsBackOnBadLink(t *testing.T) {
	db, mock := newTestDB(t)
	cache := newFakeCache()
	store := NewStore(db, cache)

	links := []Link{{FileID: 99, FieldName: "avatar"}}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `filesystem_entities` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM `filesystem` WHERE id = (.+) AND is_deleted = 0").
		WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectRollback()

	err := store.ReplaceAll(context.Background(), testEntity, &links)
	assert.ErrorIs(t, err, ErrInvalidFile)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Zero(t, cache.invalidations)
}

func TestFetchThroughDegradesWhenCacheIsEmptyList(t *testing.T) {
	db, mock := newTestDB(t)
	cache := newFakeCache()
	store := NewStore(db, cache)

	// A cached empty list counts as a miss and triggers a fresh query.
	key := store.listKey(testEntity)
	cache.Set(key, []models.FileAttachment{})

	expectAttachmentList(mock, 3, 11)
	attachments, err := store.GetAttachments(context.Background(), testEntity, "")
	require.NoError(t, err)
	assert.Len(t, attachments, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheKeyString(t *testing.T) {
	key := CacheKey{SystemModuleID: 4, EntityID: 17, CompanyID: 5}
	assert.Equal(t, "filesystem:4:17:d0:c=5", key.String())

	key.FieldName = "avatar"
	key.FileType = "image"
	assert.Equal(t, "filesystem:4:17:d0:f=avatar:t=image:c=5", key.String())

	assert.True(t, len(EntityPrefix(4, 17)) < len(key.String()))
	assert.Equal(t, "filesystem:4:17:", EntityPrefix(4, 17))
}

func TestListKeyHonorsPublicAttachments(t *testing.T) {
	db, _ := newTestDB(t)
	store := NewStore(db, newFakeCache())

	settings := models.GetAppSettings()
	require.NotNil(t, settings)

	settings.PublicAttachments = false
	assert.Equal(t, testEntity.CompanyID, store.listKey(testEntity).CompanyID)

	settings.PublicAttachments = true
	t.Cleanup(func() { settings.PublicAttachments = false })
	assert.Zero(t, store.listKey(testEntity).CompanyID)
}

func TestAttachFailFastStopsBatch(t *testing.T) {
	db, mock := newTestDB(t)
	cache := newFakeCache()
	store := NewStore(db, cache)

	expectFileLookup(mock, 11)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `filesystem_entities`").
		WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	err := store.Attach(context.Background(), testEntity, []Link{
		{FileID: 11, FieldName: "avatar"},
		{FileID: 12, FieldName: "avatar"},
	})
	require.Error(t, err)

	// Second link never ran.
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Zero(t, cache.invalidations)
}
