package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/tiberius19/canvas-core/app/models"
	"github.com/tiberius19/canvas-core/internal/pkg/cache"
	"github.com/tiberius19/canvas-core/internal/pkg/database"
)

const (
	CacheKeyFilesTotal = "statistics:files:total"
	CacheKeyFilesDaily = "statistics:files:daily:%s" // Format with date YYYY-MM-DD
	CacheKeyUsers      = "statistics:users:total"
	CacheExpiration    = 30 * time.Minute
)

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the statistics cache is due for a
// refresh.
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cache when the interval has passed.
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next check to refresh the cache.
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache recounts and caches the platform totals.
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalFiles int64
	if err := db.Model(&models.File{}).Where("is_deleted = 0").Count(&totalFiles).Error; err != nil {
		log.Printf("Error counting total files: %v", err)
		return err
	}

	var todayFiles int64
	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	if err := db.Model(&models.File{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&todayFiles).Error; err != nil {
		log.Printf("Error counting today's files: %v", err)
		return err
	}

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		log.Printf("Error counting total users: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyFilesTotal, strconv.FormatInt(totalFiles, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total files: %v", err)
		return err
	}

	dailyKey := fmt.Sprintf(CacheKeyFilesDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(todayFiles, 10), CacheExpiration); err != nil {
		log.Printf("Error caching today's files: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyUsers, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total users: %v", err)
		return err
	}

	return nil
}

// GetTotalFiles returns the total number of stored files, from cache when
// fresh.
func GetTotalFiles() int {
	val, err := cache.Get(CacheKeyFilesTotal)
	if err != nil {
		var count int64
		if err := database.GetDB().Model(&models.File{}).Where("is_deleted = 0").Count(&count).Error; err != nil {
			log.Printf("Error counting total files: %v", err)
			return 0
		}
		if err := cache.Set(CacheKeyFilesTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total files: %v", err)
		}
		return int(count)
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return count
}

// GetTodayFiles returns the number of files uploaded today.
func GetTodayFiles() int {
	today := time.Now().Format("2006-01-02")
	dailyKey := fmt.Sprintf(CacheKeyFilesDaily, today)

	val, err := cache.Get(dailyKey)
	if err != nil {
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)

		var count int64
		if err := database.GetDB().Model(&models.File{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&count).Error; err != nil {
			log.Printf("Error counting today's files: %v", err)
			return 0
		}
		if err := cache.Set(dailyKey, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching today's files: %v", err)
		}
		return int(count)
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return count
}

// GetTotalUsers returns the total number of registered users.
func GetTotalUsers() int {
	val, err := cache.Get(CacheKeyUsers)
	if err != nil {
		var count int64
		if err := database.GetDB().Model(&models.User{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total users: %v", err)
			return 0
		}
		if err := cache.Set(CacheKeyUsers, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total users: %v", err)
		}
		return int(count)
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return count
}
