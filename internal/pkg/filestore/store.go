package filestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/tiberius19/canvas-core/app/models"
)

var (
	// ErrInvalidFile marks a link whose file reference does not resolve to
	// a stored, not-deleted file row.
	ErrInvalidFile = errors.New("filestore: link does not reference a stored file")
	// ErrNotFound marks an attachment id that does not resolve inside the
	// requested entity and module scope.
	ErrNotFound = errors.New("filestore: attachment not found for entity")
)

// EntityRef names the owning side of an attachment: which registered entity
// type, which row, and which tenant.
type EntityRef struct {
	SystemModuleID uint
	EntityID       uint
	CompanyID      uint
	// StoragePath, when set, is the entity's custom directory; newly
	// attached files are relocated under it.
	StoragePath string
}

// Link is one requested file association. A zero ID creates a new
// attachment row; a non-zero ID updates that row in place.
type Link struct {
	ID        uint   `json:"id"`
	FileID    uint   `json:"file_id"`
	FieldName string `json:"field_name"`
	IsDeleted int    `json:"is_deleted"`
}

// Mover relocates a stored file's physical bytes. The metadata row is
// updated by the mover on success.
type Mover interface {
	Move(ctx context.Context, file *models.File, targetDir string) error
}

// Store links stored files to arbitrary owning entities with a read-through
// cache over the listing queries.
type Store struct {
	db    *gorm.DB
	cache Cache
	mover Mover
}

// Option configures optional store collaborators.
type Option func(*Store)

// WithMover enables physical relocation for entities with a custom
// storage path.
func WithMover(m Mover) Option {
	return func(s *Store) { s.mover = m }
}

// NewStore creates an attachment store over the given DB handle and cache.
func NewStore(db *gorm.DB, cache Cache, opts ...Option) *Store {
	s := &Store{db: db, cache: cache}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach writes the requested links for the entity. Links with a known id
// are updated in place when they resolve inside the entity scope; everything
// else becomes a new row stamped with the entity, module and company. The
// first persistence failure aborts the batch.
func (s *Store) Attach(ctx context.Context, entity EntityRef, links []Link) error {
	written, err := s.attachTx(ctx, s.db, entity, links)
	if written > 0 {
		s.cache.InvalidateEntity(entity.SystemModuleID, entity.EntityID)
	}
	return err
}

// attachTx runs the attach batch on the given handle so ReplaceAll can reuse
// it inside its transaction. It reports how many rows were written.
func (s *Store) attachTx(ctx context.Context, db *gorm.DB, entity EntityRef, links []Link) (int, error) {
	written := 0
	for _, link := range links {
		file, err := s.resolveFile(ctx, db, link)
		if err != nil {
			return written, err
		}

		attachment, err := s.resolveAttachment(ctx, db, entity, link)
		if err != nil {
			return written, err
		}

		attachment.FilesystemID = link.FileID
		attachment.FieldName = link.FieldName
		attachment.IsDeleted = link.IsDeleted

		if err := db.WithContext(ctx).Save(attachment).Error; err != nil {
			return written, fmt.Errorf("persist attachment for entity %d/%d: %w",
				entity.SystemModuleID, entity.EntityID, err)
		}
		written++

		s.relocate(ctx, entity, file)
	}
	return written, nil
}

// resolveFile validates the link's file reference.
func (s *Store) resolveFile(ctx context.Context, db *gorm.DB, link Link) (*models.File, error) {
	if link.FileID == 0 {
		return nil, ErrInvalidFile
	}
	file, err := models.GetFileByID(db.WithContext(ctx), link.FileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: file %d", ErrInvalidFile, link.FileID)
		}
		return nil, err
	}
	return file, nil
}

// resolveAttachment finds the in-place update target, or builds a fresh row
// stamped with the owning entity. A link id outside the entity scope falls
// through to a new row, matching create-on-miss semantics.
func (s *Store) resolveAttachment(ctx context.Context, db *gorm.DB, entity EntityRef, link Link) (*models.FileAttachment, error) {
	if link.ID != 0 {
		var existing models.FileAttachment
		err := db.WithContext(ctx).
			Where("id = ? AND system_modules_id = ? AND entity_id = ?",
				link.ID, entity.SystemModuleID, entity.EntityID).
			First(&existing).Error
		if err == nil {
			return &existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	return &models.FileAttachment{
		SystemModulesID: entity.SystemModuleID,
		EntityID:        entity.EntityID,
		CompaniesID:     entity.CompanyID,
	}, nil
}

// relocate moves the physical file under the entity's custom path when one
// is declared. Relocation faults never fail the attach.
func (s *Store) relocate(ctx context.Context, entity EntityRef, file *models.File) {
	if s.mover == nil || entity.StoragePath == "" {
		return
	}
	if err := s.mover.Move(ctx, file, entity.StoragePath); err != nil {
		log.Warnf("[FileStore] relocating file %d to %s failed: %v", file.ID, entity.StoragePath, err)
	}
}

// GetAttachments lists the entity's not-deleted attachments, newest first,
// optionally filtered by file type.
func (s *Store) GetAttachments(ctx context.Context, entity EntityRef, fileType string) ([]models.FileAttachment, error) {
	key := s.listKey(entity)
	key.FileType = fileType
	return s.fetchThrough(ctx, key)
}

// GetAttachmentsByName lists the entity's attachments under one logical slot.
func (s *Store) GetAttachmentsByName(ctx context.Context, entity EntityRef, fieldName string) ([]models.FileAttachment, error) {
	key := s.listKey(entity)
	key.FieldName = fieldName
	return s.fetchThrough(ctx, key)
}

// GetAttachmentByName returns the newest attachment under one logical slot,
// or ErrNotFound.
func (s *Store) GetAttachmentByName(ctx context.Context, entity EntityRef, fieldName string) (*models.FileAttachment, error) {
	attachments, err := s.GetAttachmentsByName(ctx, entity, fieldName)
	if err != nil {
		return nil, err
	}
	if len(attachments) == 0 {
		return nil, ErrNotFound
	}
	return &attachments[0], nil
}

// GetAttachmentByNameAndAttributes returns the newest attachment under one
// logical slot whose file carries the given setting, e.g. an image variant
// picked by resolution tag. Returns ErrNotFound when nothing matches.
func (s *Store) GetAttachmentByNameAndAttributes(ctx context.Context, entity EntityRef, fieldName, attrName, attrValue string) (*models.FileAttachment, error) {
	key := s.listKey(entity)
	key.FieldName = fieldName
	key.AttrName = attrName
	key.AttrValue = attrValue

	attachments, err := s.fetchThrough(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(attachments) == 0 {
		return nil, ErrNotFound
	}
	return &attachments[0], nil
}

// DeleteFile soft-deletes one attachment. The id must resolve inside the
// entity and module scope, otherwise ErrNotFound and no row changes.
func (s *Store) DeleteFile(ctx context.Context, entity EntityRef, attachmentID uint) error {
	var attachment models.FileAttachment
	err := s.db.WithContext(ctx).
		Where("id = ? AND system_modules_id = ? AND entity_id = ? AND is_deleted = 0",
			attachmentID, entity.SystemModuleID, entity.EntityID).
		First(&attachment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	attachment.SoftDelete()
	if err := s.db.WithContext(ctx).Save(&attachment).Error; err != nil {
		return fmt.Errorf("soft-delete attachment %d: %w", attachmentID, err)
	}

	s.cache.InvalidateEntity(entity.SystemModuleID, entity.EntityID)
	return nil
}

// DeleteFiles soft-deletes every attachment for the entity.
func (s *Store) DeleteFiles(ctx context.Context, entity EntityRef) error {
	err := s.db.WithContext(ctx).
		Model(&models.FileAttachment{}).
		Where("system_modules_id = ? AND entity_id = ? AND is_deleted = 0",
			entity.SystemModuleID, entity.EntityID).
		Update("is_deleted", 1).Error
	if err != nil {
		return fmt.Errorf("soft-delete attachments for entity %d/%d: %w",
			entity.SystemModuleID, entity.EntityID, err)
	}

	s.cache.InvalidateEntity(entity.SystemModuleID, entity.EntityID)
	return nil
}

// ReplaceAll is the update-time integration: a nil links value leaves
// attachments untouched, an empty slice clears them only when the
// delete_images_on_empty_files_field deployment flag is on, and a non-empty
// slice swaps the full set inside one transaction.
func (s *Store) ReplaceAll(ctx context.Context, entity EntityRef, links *[]Link) error {
	if links == nil {
		return nil
	}

	if len(*links) == 0 {
		if !models.GetAppSettings().IsDeleteFilesOnEmptyFilesField() {
			return nil
		}
		return s.DeleteFiles(ctx, entity)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.FileAttachment{}).
			Where("system_modules_id = ? AND entity_id = ? AND is_deleted = 0",
				entity.SystemModuleID, entity.EntityID).
			Update("is_deleted", 1).Error; err != nil {
			return err
		}
		_, err := s.attachTx(ctx, tx, entity, *links)
		return err
	})
	if err != nil {
		return fmt.Errorf("replace attachments for entity %d/%d: %w",
			entity.SystemModuleID, entity.EntityID, err)
	}

	s.cache.InvalidateEntity(entity.SystemModuleID, entity.EntityID)
	return nil
}

// listKey seeds a cache key for not-deleted rows of this entity, company
// scoped unless the deployment exposes attachments publicly.
func (s *Store) listKey(entity EntityRef) CacheKey {
	key := CacheKey{
		SystemModuleID: entity.SystemModuleID,
		EntityID:       entity.EntityID,
		IsDeleted:      0,
	}
	if !models.GetAppSettings().IsPublicAttachments() {
		key.CompanyID = entity.CompanyID
	}
	return key
}

// fetchThrough serves the key from cache when a non-empty entry exists,
// otherwise queries and populates the cache on the way out.
func (s *Store) fetchThrough(ctx context.Context, key CacheKey) ([]models.FileAttachment, error) {
	if cached, ok := s.cache.Get(key); ok && len(cached) > 0 {
		return cached, nil
	}

	attachments, err := s.query(ctx, key)
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, attachments)
	return attachments, nil
}

// query runs the attachment×file join described by the key, newest first.
func (s *Store) query(ctx context.Context, key CacheKey) ([]models.FileAttachment, error) {
	q := s.db.WithContext(ctx).
		Model(&models.FileAttachment{}).
		Joins("JOIN filesystem ON filesystem.id = filesystem_entities.filesystem_id AND filesystem.is_deleted = 0").
		Where("filesystem_entities.system_modules_id = ? AND filesystem_entities.entity_id = ? AND filesystem_entities.is_deleted = ?",
			key.SystemModuleID, key.EntityID, key.IsDeleted)

	if key.FieldName != "" {
		q = q.Where("filesystem_entities.field_name = ?", key.FieldName)
	}
	if key.FileType != "" {
		q = q.Where("filesystem.file_type = ?", key.FileType)
	}
	if key.AttrName != "" {
		q = q.Joins("JOIN filesystem_settings ON filesystem_settings.filesystem_id = filesystem_entities.filesystem_id AND filesystem_settings.is_deleted = 0").
			Where("filesystem_settings.name = ? AND filesystem_settings.value = ?", key.AttrName, key.AttrValue)
	}
	if key.CompanyID != 0 {
		q = q.Where("filesystem_entities.companies_id = ?", key.CompanyID)
	}

	var attachments []models.FileAttachment
	err := q.Preload("File").
		Order("filesystem_entities.id DESC").
		Find(&attachments).Error
	if err != nil {
		return nil, fmt.Errorf("list attachments for entity %d/%d: %w",
			key.SystemModuleID, key.EntityID, err)
	}
	return attachments, nil
}
