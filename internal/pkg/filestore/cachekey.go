package filestore

import (
	"fmt"
	"time"
)

// CacheTTL bounds the staleness window for attachment lists when a write
// fails to invalidate (cache outage during the write).
const CacheTTL = 386400 * time.Second

const keyNamespace = "filesystem"

// CacheKey identifies one cached attachment list. All filter dimensions are
// explicit fields, so two call sites can never collide through hand-composed
// strings.
type CacheKey struct {
	SystemModuleID uint
	EntityID       uint
	IsDeleted      int
	FieldName      string
	FileType       string
	AttrName       string
	AttrValue      string
	// CompanyID is zero when the deployment exposes attachments publicly
	// by entity id alone.
	CompanyID uint
}

// String renders the redis key. The entity segment comes first so an
// invalidation can drop every variant for one entity with a single prefix.
func (k CacheKey) String() string {
	key := fmt.Sprintf("%s:%d:%d:d%d", keyNamespace, k.SystemModuleID, k.EntityID, k.IsDeleted)
	if k.FieldName != "" {
		key += ":f=" + k.FieldName
	}
	if k.FileType != "" {
		key += ":t=" + k.FileType
	}
	if k.AttrName != "" {
		key += ":a=" + k.AttrName + "=" + k.AttrValue
	}
	if k.CompanyID != 0 {
		key += fmt.Sprintf(":c=%d", k.CompanyID)
	}
	return key
}

// EntityPrefix is the common prefix of every cache key for one entity.
func EntityPrefix(systemModuleID, entityID uint) string {
	return fmt.Sprintf("%s:%d:%d:", keyNamespace, systemModuleID, entityID)
}
