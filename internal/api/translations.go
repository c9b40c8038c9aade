package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Su5hant/sow-backend/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// TranslationSearch 文案搜索条件。
type TranslationSearch struct {
	Key          string // 模糊匹配 key
	Term         string // 模糊匹配 key 或 value
	LanguageCode string
	Category     string
}

// MissingTranslation 标记某个 key 在某语言下缺失。
type MissingTranslation struct {
	Key             string `json:"key"`
	MissingLanguage string `json:"missing_language"`
}

// TranslationStats 文案覆盖度统计。
type TranslationStats struct {
	TotalKeys    int64                `json:"total_keys"`
	Total        int64                `json:"total_translations"`
	Languages    map[string]int64     `json:"languages"`
	Categories   map[string]int64     `json:"categories"`
	Missing      []MissingTranslation `json:"missing_translations"`
	MissingCount int                  `json:"missing_count"`
}

// TranslationStore 定义多语言文案数据访问接口。
type TranslationStore interface {
	ListByLanguage(ctx context.Context, languageCode, category string) ([]model.Translation, error)
	ListByCategory(ctx context.Context, category, languageCode string) ([]model.Translation, error)
	Languages(ctx context.Context) ([]string, error)
	SearchTranslations(ctx context.Context, search TranslationSearch, limit int) ([]model.Translation, error)
	TranslationStats(ctx context.Context) (*TranslationStats, error)
	GetTranslation(ctx context.Context, id uint) (*model.Translation, error)
	FindByKeyAndLanguage(ctx context.Context, key, languageCode string) (*model.Translation, error)
	CreateTranslation(ctx context.Context, translation *model.Translation) error
	SaveTranslation(ctx context.Context, translation *model.Translation) error
	DeleteTranslation(ctx context.Context, translation *model.Translation) error
}

type dbTranslationStore struct {
	db *gorm.DB
}

func (s dbTranslationStore) ListByLanguage(ctx context.Context, languageCode, category string) ([]model.Translation, error) {
	query := s.db.WithContext(ctx).Where("language_code = ?", languageCode)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	var translations []model.Translation
	if err := query.Order("`key`").Find(&translations).Error; err != nil {
		return nil, err
	}
	return translations, nil
}

func (s dbTranslationStore) ListByCategory(ctx context.Context, category, languageCode string) ([]model.Translation, error) {
	query := s.db.WithContext(ctx).Where("category = ?", category)
	if languageCode != "" {
		query = query.Where("language_code = ?", languageCode)
	}
	var translations []model.Translation
	if err := query.Order("language_code, `key`").Find(&translations).Error; err != nil {
		return nil, err
	}
	return translations, nil
}

func (s dbTranslationStore) Languages(ctx context.Context) ([]string, error) {
	var codes []string
	err := s.db.WithContext(ctx).Model(&model.Translation{}).
		Distinct("language_code").Order("language_code").Pluck("language_code", &codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (s dbTranslationStore) SearchTranslations(ctx context.Context, search TranslationSearch, limit int) ([]model.Translation, error) {
	query := s.db.WithContext(ctx).Model(&model.Translation{})
	if search.Key != "" {
		query = query.Where("`key` LIKE ?", "%"+search.Key+"%")
	}
	if search.Term != "" {
		like := "%" + search.Term + "%"
		query = query.Where("`key` LIKE ? OR value LIKE ?", like, like)
	}
	if search.LanguageCode != "" {
		query = query.Where("language_code = ?", search.LanguageCode)
	}
	if search.Category != "" {
		query = query.Where("category = ?", search.Category)
	}
	var translations []model.Translation
	if err := query.Order("`key`").Limit(limit).Find(&translations).Error; err != nil {
		return nil, err
	}
	return translations, nil
}

// TranslationStats 统计覆盖度。缺失项在内存中计算，数据量级是 key 数 × 语言数。
func (s dbTranslationStore) TranslationStats(ctx context.Context) (*TranslationStats, error) {
	type row struct {
		Key          string
		LanguageCode string
		Category     string
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&model.Translation{}).
		Select("`key`", "language_code", "category").Find(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &TranslationStats{
		Total:      int64(len(rows)),
		Languages:  make(map[string]int64),
		Categories: make(map[string]int64),
		Missing:    []MissingTranslation{},
	}

	byKey := make(map[string]map[string]bool)
	for _, r := range rows {
		stats.Languages[r.LanguageCode]++
		category := r.Category
		if category == "" {
			category = "uncategorized"
		}
		stats.Categories[category]++
		if byKey[r.Key] == nil {
			byKey[r.Key] = make(map[string]bool)
		}
		byKey[r.Key][r.LanguageCode] = true
	}
	stats.TotalKeys = int64(len(byKey))

	for key, langs := range byKey {
		for lang := range stats.Languages {
			if !langs[lang] {
				stats.Missing = append(stats.Missing, MissingTranslation{Key: key, MissingLanguage: lang})
			}
		}
	}
	stats.MissingCount = len(stats.Missing)
	return stats, nil
}

func (s dbTranslationStore) GetTranslation(ctx context.Context, id uint) (*model.Translation, error) {
	var translation model.Translation
	err := s.db.WithContext(ctx).First(&translation, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &translation, nil
}

func (s dbTranslationStore) FindByKeyAndLanguage(ctx context.Context, key, languageCode string) (*model.Translation, error) {
	var translation model.Translation
	err := s.db.WithContext(ctx).
		Where("`key` = ? AND language_code = ?", key, languageCode).First(&translation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &translation, nil
}

func (s dbTranslationStore) CreateTranslation(ctx context.Context, translation *model.Translation) error {
	return s.db.WithContext(ctx).Create(translation).Error
}

func (s dbTranslationStore) SaveTranslation(ctx context.Context, translation *model.Translation) error {
	return s.db.WithContext(ctx).Save(translation).Error
}

func (s dbTranslationStore) DeleteTranslation(ctx context.Context, translation *model.Translation) error {
	return s.db.WithContext(ctx).Delete(translation).Error
}

// languageNames 支持的界面语言及展示名。
var languageNames = map[string]string{
	"en": "English",
	"sv": "Svenska",
	"no": "Norsk",
	"da": "Dansk",
	"fi": "Suomi",
	"de": "Deutsch",
	"fr": "Français",
	"es": "Español",
}

type createTranslationRequest struct {
	Key          string `json:"key" binding:"required"`
	LanguageCode string `json:"language_code" binding:"required"`
	Value        string `json:"value" binding:"required"`
	Category     string `json:"category"`
}

type updateTranslationRequest struct {
	Value    *string `json:"value"`
	Category *string `json:"category"`
}

type translationResponse struct {
	ID           uint   `json:"id"`
	Key          string `json:"key"`
	LanguageCode string `json:"language_code"`
	Value        string `json:"value"`
	Category     string `json:"category"`
}

func toTranslationResponse(t *model.Translation) translationResponse {
	return translationResponse{
		ID:           t.ID,
		Key:          t.Key,
		LanguageCode: t.LanguageCode,
		Value:        t.Value,
		Category:     t.Category,
	}
}

// handleLanguagePack 返回某语言的全部文案，前端一次性拉取当整包语言资源用。
func (s *Server) handleLanguagePack(c *gin.Context) {
	languageCode := c.Param("language_code")
	category := c.Query("category")

	translations, err := s.translations.ListByLanguage(c.Request.Context(), languageCode, category)
	if err != nil {
		s.logger.Error("查询语言包失败", "language_code", languageCode, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load translations"})
		return
	}
	if len(translations) == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error": fmt.Sprintf("No translations found for language '%s'", languageCode),
		})
		return
	}

	pack := make(map[string]string, len(translations))
	for _, t := range translations {
		pack[t.Key] = t.Value
	}
	c.JSON(http.StatusOK, gin.H{
		"language_code": languageCode,
		"translations":  pack,
		"total_count":   len(translations),
	})
}

// handleTranslationsByCategory 按分类返回文案，以语言分组。
func (s *Server) handleTranslationsByCategory(c *gin.Context) {
	category := c.Param("category")
	languageCode := c.Query("language_code")

	translations, err := s.translations.ListByCategory(c.Request.Context(), category, languageCode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load translations"})
		return
	}
	if len(translations) == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error": fmt.Sprintf("No translations found for category '%s'", category),
		})
		return
	}

	grouped := make(map[string]map[string]string)
	for _, t := range translations {
		if grouped[t.LanguageCode] == nil {
			grouped[t.LanguageCode] = make(map[string]string)
		}
		grouped[t.LanguageCode][t.Key] = t.Value
	}
	c.JSON(http.StatusOK, gin.H{
		"category":     category,
		"translations": grouped,
		"total_count":  len(translations),
	})
}

func (s *Server) handleAvailableLanguages(c *gin.Context) {
	codes, err := s.translations.Languages(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load languages"})
		return
	}

	languages := make([]gin.H, 0, len(codes))
	for _, code := range codes {
		name := languageNames[code]
		if name == "" {
			name = strings.ToUpper(code)
		}
		languages = append(languages, gin.H{"code": code, "name": name})
	}
	c.JSON(http.StatusOK, gin.H{"languages": languages})
}

const maxSearchLimit = 1000

func (s *Server) handleSearchTranslations(c *gin.Context) {
	limit := 100
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	search := TranslationSearch{
		Key:          c.Query("key"),
		Term:         c.Query("search_term"),
		LanguageCode: c.Query("language_code"),
		Category:     c.Query("category"),
	}
	translations, err := s.translations.SearchTranslations(c.Request.Context(), search, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search translations"})
		return
	}

	items := make([]translationResponse, 0, len(translations))
	for i := range translations {
		items = append(items, toTranslationResponse(&translations[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"results": items,
		"count":   len(items),
	})
}

func (s *Server) handleTranslationStats(c *gin.Context) {
	stats, err := s.translations.TranslationStats(c.Request.Context())
	if err != nil {
		s.logger.Error("统计文案覆盖度失败", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// translationByID 解析路径中的文案 ID 并加载记录，未找到时已写入响应。
func (s *Server) translationByID(c *gin.Context) (*model.Translation, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid translation id"})
		return nil, false
	}
	translation, err := s.translations.GetTranslation(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load translation"})
		return nil, false
	}
	if translation == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Translation not found"})
		return nil, false
	}
	return translation, true
}

func (s *Server) handleGetTranslation(c *gin.Context) {
	translation, ok := s.translationByID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toTranslationResponse(translation))
}

func (s *Server) handleCreateTranslation(c *gin.Context) {
	var req createTranslationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := s.translations.FindByKeyAndLanguage(c.Request.Context(), req.Key, req.LanguageCode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create translation"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Translation for key '%s' in language '%s' already exists", req.Key, req.LanguageCode),
		})
		return
	}

	translation := &model.Translation{
		Key:          req.Key,
		LanguageCode: req.LanguageCode,
		Value:        req.Value,
		Category:     req.Category,
	}
	if err := s.translations.CreateTranslation(c.Request.Context(), translation); err != nil {
		s.logger.Error("创建文案失败", "key", req.Key, "language_code", req.LanguageCode, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create translation"})
		return
	}
	c.JSON(http.StatusCreated, toTranslationResponse(translation))
}

// handleBulkCreateTranslations 批量导入文案，已存在的 key+语言组合会被跳过。
func (s *Server) handleBulkCreateTranslations(c *gin.Context) {
	var req struct {
		Translations []createTranslationRequest `json:"translations" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, skipped := 0, 0
	for _, item := range req.Translations {
		existing, err := s.translations.FindByKeyAndLanguage(c.Request.Context(), item.Key, item.LanguageCode)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create translations"})
			return
		}
		if existing != nil {
			skipped++
			continue
		}
		translation := &model.Translation{
			Key:          item.Key,
			LanguageCode: item.LanguageCode,
			Value:        item.Value,
			Category:     item.Category,
		}
		if err := s.translations.CreateTranslation(c.Request.Context(), translation); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create translations"})
			return
		}
		created++
	}

	c.JSON(http.StatusOK, gin.H{
		"created": created,
		"skipped": skipped,
		"total":   len(req.Translations),
	})
}

func (s *Server) handleUpdateTranslation(c *gin.Context) {
	translation, ok := s.translationByID(c)
	if !ok {
		return
	}

	var req updateTranslationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Value != nil {
		translation.Value = *req.Value
	}
	if req.Category != nil {
		translation.Category = *req.Category
	}

	if err := s.translations.SaveTranslation(c.Request.Context(), translation); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update translation"})
		return
	}
	c.JSON(http.StatusOK, toTranslationResponse(translation))
}

func (s *Server) handleDeleteTranslation(c *gin.Context) {
	translation, ok := s.translationByID(c)
	if !ok {
		return
	}
	if err := s.translations.DeleteTranslation(c.Request.Context(), translation); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete translation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Translation '%s' (%s) deleted successfully", translation.Key, translation.LanguageCode),
	})
}
