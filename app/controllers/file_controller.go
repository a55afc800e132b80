package controllers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tiberius19/canvas-core/app/models"
	"github.com/tiberius19/canvas-core/internal/pkg/constants"
	"github.com/tiberius19/canvas-core/internal/pkg/database"
	"github.com/tiberius19/canvas-core/internal/pkg/entitlements"
	"github.com/tiberius19/canvas-core/internal/pkg/env"
	"github.com/tiberius19/canvas-core/internal/pkg/filestore"
	"github.com/tiberius19/canvas-core/internal/pkg/jobqueue"
	"github.com/tiberius19/canvas-core/internal/pkg/metrics/counter"
	"github.com/tiberius19/canvas-core/internal/pkg/security"
	"github.com/tiberius19/canvas-core/internal/pkg/storage"
	"github.com/tiberius19/canvas-core/internal/pkg/upload"
	"github.com/tiberius19/canvas-core/internal/pkg/usercontext"
)

var (
	storageBackend storage.Backend

	fileStoreOnce sync.Once
	fileStore     *filestore.Store
)

// SetStorageBackend wires the physical storage driver into the file
// endpoints. Called once at startup.
func SetStorageBackend(backend storage.Backend) {
	storageBackend = backend
}

func getFileStore() *filestore.Store {
	fileStoreOnce.Do(func() {
		// Relocations go through the job queue; the worker owns the bytes.
		mover := jobqueue.NewAsyncMover(jobqueue.GetManager().GetQueue())
		fileStore = filestore.NewStore(database.GetDB(), filestore.NewRedisCache(), filestore.WithMover(mover))
	})
	return fileStore
}

// HandleFileUpload stores the uploaded bytes and creates the metadata row.
// Linking to an entity is a separate call.
func HandleFileUpload(c *fiber.Ctx) error {
	if storageBackend == nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Storage is not configured")
	}

	header, err := c.FormFile("file")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Multipart field 'file' is missing")
	}

	userCtx := usercontext.Get(c)

	sub, err := models.GetSubscriptionForCompany(database.GetDB(), userCtx.CompanyID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to resolve subscription")
	}
	if header.Size > entitlements.MaxUploadBytes(entitlements.PlanFor(sub)) {
		return jsonError(c, fiber.StatusRequestEntityTooLarge, "file_too_large", "File exceeds the plan's upload limit")
	}

	src, err := header.Open()
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Uploaded file is not readable")
	}
	defer src.Close()

	name := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(name))

	head := make([]byte, 512)
	n, _ := io.ReadFull(src, head)
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to read upload")
	}
	contentType, err := upload.ValidateBySniff(name, head[:n])
	if err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}
	if declared := header.Header.Get("Content-Type"); declared != "" {
		contentType = declared
	}

	key := fmt.Sprintf("companies/%d/%s%s", userCtx.CompanyID, uuid.New().String(), ext)
	path, err := storageBackend.Save(c.UserContext(), src, header.Size, key, contentType)
	if err != nil {
		log.Errorf("[Files] storing upload %s failed: %v", name, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to store file")
	}

	file := models.NewFile(name, path, strings.TrimPrefix(ext, "."), header.Size, userCtx.CompanyID, userCtx.UserID)
	if err := file.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}
	if err := database.GetDB().Create(file).Error; err != nil {
		log.Errorf("[Files] creating metadata for %s failed: %v", name, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to store file")
	}

	return c.Status(fiber.StatusCreated).JSON(file)
}

// HandleFileDownload streams the file bytes and counts the download.
func HandleFileDownload(c *fiber.Ctx) error {
	if storageBackend == nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Storage is not configured")
	}

	fileID, err := parseUintParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "File id is not a number")
	}

	file, err := models.GetFileByID(database.GetDB(), fileID)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "File not found")
	}

	userCtx := usercontext.Get(c)
	if !models.GetAppSettings().IsPublicAttachments() && file.CompaniesID != userCtx.CompanyID {
		return jsonError(c, fiber.StatusNotFound, "not_found", "File not found")
	}

	return streamFile(c, file)
}

// HandleDeleteFile soft-deletes the metadata row and queues removal of the
// physical bytes. Attachments referencing the file stop resolving it.
func HandleDeleteFile(c *fiber.Ctx) error {
	fileID, err := parseUintParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "File id is not a number")
	}

	db := database.GetDB()
	file, err := models.GetFileByID(db, fileID)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "File not found")
	}

	userCtx := usercontext.Get(c)
	if file.CompaniesID != userCtx.CompanyID {
		return jsonError(c, fiber.StatusNotFound, "not_found", "File not found")
	}

	if err := db.Model(file).Update("is_deleted", 1).Error; err != nil {
		log.Errorf("[Files] deleting file %d failed: %v", file.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to delete file")
	}

	payload := jobqueue.DeleteFileJobPayload{FileID: file.ID, Path: file.Path}
	if _, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobqueue.JobTypeDeleteFile, payload.ToMap()); err != nil {
		// The row is gone either way; orphaned bytes are cleanup debt.
		log.Warnf("[Files] enqueueing byte removal for file %d failed: %v", file.ID, err)
	}

	return c.JSON(fiber.Map{"message": "File deleted"})
}

// HandleShareFile issues a signed link for downloading a file without
// authentication.
func HandleShareFile(c *fiber.Ctx) error {
	fileID, err := parseUintParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "File id is not a number")
	}

	file, err := models.GetFileByID(database.GetDB(), fileID)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "File not found")
	}

	userCtx := usercontext.Get(c)
	if file.CompaniesID != userCtx.CompanyID {
		return jsonError(c, fiber.StatusNotFound, "not_found", "File not found")
	}

	secret := env.GetEnv("APP_SECRET", "")
	token, err := security.GenerateDownloadToken(file.ID, file.CompaniesID, 24*time.Hour, secret)
	if err != nil {
		log.Errorf("[Files] generating share token for file %d failed: %v", file.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create share link")
	}

	return c.JSON(fiber.Map{
		"url":   constants.PublicFilesPrefix + "/" + token,
		"token": token,
	})
}

// HandlePublicDownload streams a file via a signed share token, without
// authentication.
func HandlePublicDownload(c *fiber.Ctx) error {
	claims, err := security.VerifyDownloadToken(c.Params("token"), env.GetEnv("APP_SECRET", ""))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "Share link is invalid or expired")
	}

	file, err := models.GetFileByID(database.GetDB(), claims.FileID)
	if err != nil || file.CompaniesID != claims.CompanyID {
		return jsonError(c, fiber.StatusNotFound, "not_found", "File not found")
	}

	return streamFile(c, file)
}

func streamFile(c *fiber.Ctx, file *models.File) error {
	if storageBackend == nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Storage is not configured")
	}

	reader, err := storageBackend.Open(c.UserContext(), file.Path)
	if err != nil {
		log.Errorf("[Files] opening %s failed: %v", file.Path, err)
		return jsonError(c, fiber.StatusNotFound, "not_found", "File bytes are missing")
	}
	defer reader.Close()

	if err := counter.AddFileDownload(file.ID); err != nil {
		log.Warnf("[Files] counting download of file %d failed: %v", file.ID, err)
	}

	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.Name))
	if contentType := mime.TypeByExtension("." + file.FileType); contentType != "" {
		c.Set(fiber.HeaderContentType, contentType)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		log.Errorf("[Files] reading %s failed: %v", file.Path, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to read file")
	}
	return c.Send(data)
}

type attachRequest struct {
	Files       []filestore.Link `json:"files"`
	StoragePath string           `json:"storage_path"`
}

type replaceRequest struct {
	// A missing files key leaves the entity's attachments untouched; an
	// explicit empty list may delete them, depending on deployment flags.
	Files       *[]filestore.Link `json:"files"`
	StoragePath string            `json:"storage_path"`
}

// HandleAttachFiles links uploaded files to an entity.
func HandleAttachFiles(c *fiber.Ctx) error {
	var req attachRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Request body is not valid JSON")
	}
	if len(req.Files) == 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Files list is empty")
	}

	entity, err := entityFromRequest(c, req.StoragePath)
	if err != nil {
		return err
	}

	if err := getFileStore().Attach(c.UserContext(), *entity, req.Files); err != nil {
		if errors.Is(err, filestore.ErrInvalidFile) {
			return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "A referenced file does not exist")
		}
		log.Errorf("[Files] attaching to %s/%d failed: %v", c.Params("module"), entity.EntityID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to attach files")
	}

	return attachmentListResponse(c, *entity)
}

// HandleReplaceEntityFiles swaps the entity's attachments for the given set
// in one transaction.
func HandleReplaceEntityFiles(c *fiber.Ctx) error {
	var req replaceRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Request body is not valid JSON")
	}

	entity, err := entityFromRequest(c, req.StoragePath)
	if err != nil {
		return err
	}

	if err := getFileStore().ReplaceAll(c.UserContext(), *entity, req.Files); err != nil {
		if errors.Is(err, filestore.ErrInvalidFile) {
			return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "A referenced file does not exist")
		}
		log.Errorf("[Files] replacing files of %s/%d failed: %v", c.Params("module"), entity.EntityID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to replace files")
	}

	return attachmentListResponse(c, *entity)
}

// HandleGetEntityFiles lists an entity's attachments, optionally narrowed by
// field name or file type.
func HandleGetEntityFiles(c *fiber.Ctx) error {
	entity, err := entityFromRequest(c, "")
	if err != nil {
		return err
	}

	store := getFileStore()
	var attachments []models.FileAttachment
	if fieldName := c.Query("field_name"); fieldName != "" {
		attachments, err = store.GetAttachmentsByName(c.UserContext(), *entity, fieldName)
	} else {
		attachments, err = store.GetAttachments(c.UserContext(), *entity, c.Query("file_type"))
	}
	if err != nil {
		log.Errorf("[Files] listing files of %s/%d failed: %v", c.Params("module"), entity.EntityID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load files")
	}

	return c.JSON(fiber.Map{"files": attachments})
}

// HandleGetEntityFileByName returns the newest attachment under a field
// name, optionally narrowed by a file attribute.
func HandleGetEntityFileByName(c *fiber.Ctx) error {
	entity, err := entityFromRequest(c, "")
	if err != nil {
		return err
	}

	fieldName := c.Params("field_name")
	store := getFileStore()

	var attachment *models.FileAttachment
	if attrName := c.Query("attr_name"); attrName != "" {
		attachment, err = store.GetAttachmentByNameAndAttributes(c.UserContext(), *entity, fieldName, attrName, c.Query("attr_value"))
	} else {
		attachment, err = store.GetAttachmentByName(c.UserContext(), *entity, fieldName)
	}
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "No file under this field name")
		}
		log.Errorf("[Files] loading %s of %s/%d failed: %v", fieldName, c.Params("module"), entity.EntityID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load file")
	}

	return c.JSON(attachment)
}

// HandleDeleteEntityFile soft-deletes one attachment of an entity.
func HandleDeleteEntityFile(c *fiber.Ctx) error {
	entity, err := entityFromRequest(c, "")
	if err != nil {
		return err
	}

	attachmentID, err := parseUintParam(c, "attachment_id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Attachment id is not a number")
	}

	if err := getFileStore().DeleteFile(c.UserContext(), *entity, attachmentID); err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Attachment not found")
		}
		log.Errorf("[Files] deleting attachment %d failed: %v", attachmentID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to delete file")
	}

	return c.JSON(fiber.Map{"message": "File deleted"})
}

// HandleDeleteEntityFiles soft-deletes all attachments of an entity.
func HandleDeleteEntityFiles(c *fiber.Ctx) error {
	entity, err := entityFromRequest(c, "")
	if err != nil {
		return err
	}

	if err := getFileStore().DeleteFiles(c.UserContext(), *entity); err != nil {
		log.Errorf("[Files] deleting files of %s/%d failed: %v", c.Params("module"), entity.EntityID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to delete files")
	}

	return c.JSON(fiber.Map{"message": "Files deleted"})
}

// entityFromRequest resolves the :module/:entity_id route scope into an
// entity reference for the authenticated company.
func entityFromRequest(c *fiber.Ctx, storagePath string) (*filestore.EntityRef, error) {
	modelName := c.Params("module")
	entityID, err := parseUintParam(c, "entity_id")
	if err != nil {
		return nil, jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Entity id is not a number")
	}

	module, err := models.GetSystemModuleByModelName(database.GetDB(), modelName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, jsonError(c, fiber.StatusNotFound, "not_found", "Unknown module")
		}
		return nil, jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to resolve module")
	}

	userCtx := usercontext.Get(c)
	return &filestore.EntityRef{
		SystemModuleID: module.ID,
		EntityID:       entityID,
		CompanyID:      userCtx.CompanyID,
		StoragePath:    storagePath,
	}, nil
}

func attachmentListResponse(c *fiber.Ctx, entity filestore.EntityRef) error {
	attachments, err := getFileStore().GetAttachments(c.UserContext(), entity, "")
	if err != nil {
		log.Errorf("[Files] listing files of entity %d failed: %v", entity.EntityID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load files")
	}
	return c.JSON(fiber.Map{"files": attachments})
}
