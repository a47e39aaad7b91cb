package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/price-comb/app/database"
	"github.com/lysyi3m/price-comb/app/feed"
	"github.com/lysyi3m/price-comb/app/tasks"
)

const (
	comparisonProductLimit = 50
	defaultListLimit       = 100
	maxListLimit           = 500
)

func NewHandler(extractor tasks.FeedExtractor, comparisonRepo database.ComparisonStore, vendorRepo database.VendorStore,
	configCache *feed.ConfigCache, cache CacheStats, scheduler tasks.TaskSchedulerInterface, opts Options) *Handler {
	return &Handler{
		extractor:      extractor,
		comparisonRepo: comparisonRepo,
		vendorRepo:     vendorRepo,
		report:         feed.NewReportGenerator(opts.Version),
		configCache:    configCache,
		cache:          cache,
		scheduler:      scheduler,
		maxItems:       opts.MaxItems,
		maxUploadBytes: opts.MaxUploadBytes,
		version:        opts.Version,
	}
}

// Scan extracts products from an uploaded XML document, stores the run and
// returns the records.
func (h *Handler) Scan(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		if c.Request.ContentLength > h.maxUploadBytes {
			h.tooLarge(c)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		if isTooLarge(err) {
			h.tooLarge(c)
			return
		}
		slog.Error("No file part in the request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file part"})
		return
	}

	if strings.TrimSpace(fileHeader.Filename) == "" {
		slog.Error("No file selected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file selected"})
		return
	}

	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xml") {
		slog.Error("Invalid file type", "filename", fileHeader.Filename)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only XML files are supported"})
		return
	}

	data, err := readUpload(fileHeader)
	if err != nil {
		if isTooLarge(err) {
			h.tooLarge(c)
			return
		}
		slog.Error("Error reading upload", "filename", fileHeader.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Error processing file: %v", err)})
		return
	}

	records, err := h.extractor.Run(c.Request.Context(), data, h.maxItems)
	if err != nil {
		var malformed *feed.MalformedInputError
		if errors.As(err, &malformed) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid XML format"})
			return
		}
		slog.Error("Error processing file", "filename", fileHeader.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Error processing file: %v", err)})
		return
	}

	var sourceTitle string
	if metadata := feed.DetectMetadata(data); metadata != nil {
		sourceTitle = metadata.Title
	}

	filename := secureFilename(fileHeader.Filename)
	comparison, err := h.comparisonRepo.SaveComparison(feed.ToComparison(filename, sourceTitle, "", records))
	if err != nil {
		slog.Error("Database error", "operation", "save_comparison", "filename", filename, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Error processing file: %v", err)})
		return
	}

	slog.Info("Saved comparison", "comparison", comparison.PublicID, "filename", filename, "products", len(records))

	results := make([]scanResult, 0, len(records))
	for _, record := range records {
		results = append(results, scanResult{ProductRecord: record, ComparisonID: comparison.PublicID})
	}

	c.Header("X-Comparison-ID", comparison.PublicID)
	c.JSON(http.StatusOK, results)
}

func (h *Handler) ExampleXML(c *gin.Context) {
	c.Header("Content-Disposition", "attachment; filename=example.xml")
	c.Data(http.StatusOK, "application/xml", []byte(exampleXML))
}

func (h *Handler) ListComparisons(c *gin.Context) {
	limit := queryInt(c, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	comparisons, err := h.comparisonRepo.ListComparisons(limit, offset)
	if err != nil {
		slog.Error("Database error", "operation", "list_comparisons", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if comparisons == nil {
		comparisons = []database.Comparison{}
	}

	if total, err := h.comparisonRepo.GetComparisonCount(); err == nil {
		c.Header("X-Total-Count", strconv.Itoa(total))
	}

	c.JSON(http.StatusOK, comparisons)
}

func (h *Handler) GetComparison(c *gin.Context) {
	comparison, ok := h.loadComparison(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, comparison)
}

func (h *Handler) ExportComparison(c *gin.Context) {
	comparison, ok := h.loadComparison(c)
	if !ok {
		return
	}

	report, err := h.report.Run(*comparison)
	if err != nil {
		slog.Error("Report generation error", "comparison", comparison.PublicID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=comparison-%s.xml", comparison.PublicID))
	c.Header("X-Comparison-Products", strconv.Itoa(len(comparison.Products)))
	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(report))
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
	}

	if count, err := h.comparisonRepo.GetComparisonCount(); err == nil {
		health["comparisons"] = count
	}
	if count, err := h.vendorRepo.GetVendorCount(); err == nil {
		health["vendors"] = count
	}
	if h.configCache != nil {
		health["loaded_configurations"] = h.configCache.GetConfigCount()
	}
	if h.cache != nil {
		health["cache_entries"] = h.cache.Len()
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListVendors(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	vendors := make([]map[string]interface{}, 0, len(configs))
	for _, vendorConfig := range configs {
		info := map[string]interface{}{
			"name":             vendorConfig.Name,
			"url":              vendorConfig.URL,
			"title":            "",
			"enabled":          vendorConfig.Settings.Enabled,
			"max_items":        vendorConfig.Settings.MaxItems,
			"refresh_interval": (time.Duration(vendorConfig.Settings.RefreshInterval) * time.Second).String(),
			"filters":          len(vendorConfig.Filters),
		}

		if vendor, err := h.vendorRepo.GetVendor(vendorConfig.Name); err == nil && vendor != nil {
			info["title"] = vendor.Title
			info["last_fetched_at"] = vendor.LastFetchedAt
			info["next_fetch_at"] = vendor.NextFetchAt
			info["last_comparison_id"] = vendor.LastComparisonID
		}

		vendors = append(vendors, info)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"vendors": vendors,
		"total":   len(vendors),
	})
}

func (h *Handler) APIReloadVendor(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing vendor name parameter"})
		return
	}

	if _, err := h.configCache.GetConfig(name); err != nil {
		slog.Error("Vendor configuration not found", "vendor", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Vendor configuration not found"})
		return
	}

	vendorConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "vendor", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	enqueued := make([]gin.H, 0, 2)
	for _, task := range h.scheduler.VendorRefreshTasks(vendorConfig) {
		if err := h.scheduler.EnqueueTask(task); err != nil {
			slog.Error("Error enqueueing task", "vendor", name, "type", string(task.GetType()), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to enqueue task",
				"details": err.Error(),
			})
			return
		}
		enqueued = append(enqueued, gin.H{"id": task.GetID(), "type": task.GetType()})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded and tasks enqueued successfully",
		"vendor": gin.H{
			"name": name,
			"url":  vendorConfig.URL,
		},
		"tasks": enqueued,
	})
}

func (h *Handler) loadComparison(c *gin.Context) (*database.Comparison, bool) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing comparison id"})
		return nil, false
	}

	comparison, err := h.comparisonRepo.GetComparison(id, comparisonProductLimit)
	if err != nil {
		slog.Error("Database error", "operation", "get_comparison", "comparison", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, false
	}
	if comparison == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Comparison not found"})
		return nil, false
	}
	return comparison, true
}

func (h *Handler) tooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"error": fmt.Sprintf("File too large. Maximum size is %dMB", h.maxUploadBytes>>20),
	})
}

func isTooLarge(err error) bool {
	var maxBytes *http.MaxBytesError
	return errors.As(err, &maxBytes) || strings.Contains(err.Error(), "request body too large")
}

func readUpload(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return value
}

// secureFilename keeps the base name and replaces characters that are not
// safe in a stored file name.
func secureFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, name)
	name = strings.TrimLeft(name, "._")
	if name == "" {
		return "upload.xml"
	}
	return name
}
