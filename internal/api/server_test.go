package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/Su5hant/sow-backend/internal/api/auth"
	"github.com/Su5hant/sow-backend/internal/config"
	"github.com/Su5hant/sow-backend/internal/model"
	"github.com/Su5hant/sow-backend/internal/pkg/token"

	"github.com/gin-gonic/gin"
)

// stubUserStore 提供受保护路由解析当前账号所需的最小用户集。
type stubUserStore struct {
	users map[string]*model.User
}

func (s *stubUserStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	if u, ok := s.users[email]; ok {
		return u, nil
	}
	return nil, nil
}

func (s *stubUserStore) FindByResetToken(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (s *stubUserStore) Create(_ context.Context, _ *model.User) error { return nil }
func (s *stubUserStore) Save(_ context.Context, _ *model.User) error   { return nil }

type stubMailer struct{}

func (stubMailer) SendVerificationLink(string, string) error  { return nil }
func (stubMailer) SendPasswordResetLink(string, string) error { return nil }

// mockProductStore 内存版 ProductStore。
type mockProductStore struct {
	products []model.Product
	nextID   uint
}

func (m *mockProductStore) add(p model.Product) {
	m.nextID++
	p.ID = m.nextID
	m.products = append(m.products, p)
}

func (m *mockProductStore) ListProducts(_ context.Context, filter ProductFilter, page, size int) ([]model.Product, int64, error) {
	var matched []model.Product
	for _, p := range m.products {
		if filter.Search != "" &&
			!strings.Contains(p.Name, filter.Search) &&
			!strings.Contains(p.ArticleNumber, filter.Search) &&
			!strings.Contains(p.Description, filter.Search) {
			continue
		}
		if filter.MinPrice != nil && p.Price < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && p.Price > *filter.MaxPrice {
			continue
		}
		if filter.Unit != "" && p.Unit != filter.Unit {
			continue
		}
		if filter.LowStock && p.Stock >= lowStockThreshold {
			continue
		}
		matched = append(matched, p)
	}

	total := int64(len(matched))
	start := (page - 1) * size
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (m *mockProductStore) GetProduct(_ context.Context, id uint) (*model.Product, error) {
	for i := range m.products {
		if m.products[i].ID == id {
			return &m.products[i], nil
		}
	}
	return nil, nil
}

func (m *mockProductStore) GetProductByArticle(_ context.Context, articleNumber string) (*model.Product, error) {
	for i := range m.products {
		if m.products[i].ArticleNumber == articleNumber {
			return &m.products[i], nil
		}
	}
	return nil, nil
}

func (m *mockProductStore) CreateProduct(_ context.Context, product *model.Product) error {
	m.nextID++
	product.ID = m.nextID
	m.products = append(m.products, *product)
	return nil
}

func (m *mockProductStore) SaveProduct(_ context.Context, product *model.Product) error {
	for i := range m.products {
		if m.products[i].ID == product.ID {
			m.products[i] = *product
			return nil
		}
	}
	return nil
}

func (m *mockProductStore) DeleteProduct(_ context.Context, product *model.Product) error {
	for i := range m.products {
		if m.products[i].ID == product.ID {
			m.products = append(m.products[:i], m.products[i+1:]...)
			return nil
		}
	}
	return nil
}

// mockTranslationStore 内存版 TranslationStore。
type mockTranslationStore struct {
	translations []model.Translation
	nextID       uint
}

func (m *mockTranslationStore) add(t model.Translation) {
	m.nextID++
	t.ID = m.nextID
	m.translations = append(m.translations, t)
}

func (m *mockTranslationStore) ListByLanguage(_ context.Context, languageCode, category string) ([]model.Translation, error) {
	var matched []model.Translation
	for _, t := range m.translations {
		if t.LanguageCode != languageCode {
			continue
		}
		if category != "" && t.Category != category {
			continue
		}
		matched = append(matched, t)
	}
	return matched, nil
}

func (m *mockTranslationStore) ListByCategory(_ context.Context, category, languageCode string) ([]model.Translation, error) {
	var matched []model.Translation
	for _, t := range m.translations {
		if t.Category != category {
			continue
		}
		if languageCode != "" && t.LanguageCode != languageCode {
			continue
		}
		matched = append(matched, t)
	}
	return matched, nil
}

func (m *mockTranslationStore) Languages(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var codes []string
	for _, t := range m.translations {
		if !seen[t.LanguageCode] {
			seen[t.LanguageCode] = true
			codes = append(codes, t.LanguageCode)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

func (m *mockTranslationStore) SearchTranslations(_ context.Context, search TranslationSearch, limit int) ([]model.Translation, error) {
	var matched []model.Translation
	for _, t := range m.translations {
		if search.Key != "" && !strings.Contains(t.Key, search.Key) {
			continue
		}
		if search.Term != "" &&
			!strings.Contains(t.Key, search.Term) &&
			!strings.Contains(t.Value, search.Term) {
			continue
		}
		if search.LanguageCode != "" && t.LanguageCode != search.LanguageCode {
			continue
		}
		if search.Category != "" && t.Category != search.Category {
			continue
		}
		matched = append(matched, t)
		if len(matched) >= limit {
			break
		}
	}
	return matched, nil
}

func (m *mockTranslationStore) TranslationStats(_ context.Context) (*TranslationStats, error) {
	stats := &TranslationStats{
		Total:      int64(len(m.translations)),
		Languages:  make(map[string]int64),
		Categories: make(map[string]int64),
		Missing:    []MissingTranslation{},
	}
	byKey := make(map[string]map[string]bool)
	for _, t := range m.translations {
		stats.Languages[t.LanguageCode]++
		category := t.Category
		if category == "" {
			category = "uncategorized"
		}
		stats.Categories[category]++
		if byKey[t.Key] == nil {
			byKey[t.Key] = make(map[string]bool)
		}
		byKey[t.Key][t.LanguageCode] = true
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

func (m *mockTranslationStore) GetTranslation(_ context.Context, id uint) (*model.Translation, error) {
	for i := range m.translations {
		if m.translations[i].ID == id {
			return &m.translations[i], nil
		}
	}
	return nil, nil
}

func (m *mockTranslationStore) FindByKeyAndLanguage(_ context.Context, key, languageCode string) (*model.Translation, error) {
	for i := range m.translations {
		if m.translations[i].Key == key && m.translations[i].LanguageCode == languageCode {
			return &m.translations[i], nil
		}
	}
	return nil, nil
}

func (m *mockTranslationStore) CreateTranslation(_ context.Context, translation *model.Translation) error {
	m.nextID++
	translation.ID = m.nextID
	m.translations = append(m.translations, *translation)
	return nil
}

func (m *mockTranslationStore) SaveTranslation(_ context.Context, translation *model.Translation) error {
	for i := range m.translations {
		if m.translations[i].ID == translation.ID {
			m.translations[i] = *translation
			return nil
		}
	}
	return nil
}

func (m *mockTranslationStore) DeleteTranslation(_ context.Context, translation *model.Translation) error {
	for i := range m.translations {
		if m.translations[i].ID == translation.ID {
			m.translations = append(m.translations[:i], m.translations[i+1:]...)
			return nil
		}
	}
	return nil
}

// newTestServer 组装一个不依赖 MySQL/Redis 的 Server，路由注册与生产一致。
func newTestServer(t *testing.T) (*Server, *mockProductStore, *mockTranslationStore) {
	t.Helper()
	s, products, translations, _ := newTestServerWithUsers(t)
	return s, products, translations
}

// newTestServerWithUsers 额外暴露用户存储，供需要改动账号状态的测试使用。
// 预置一个已激活的 admin 账号，bearerFor 默认为它签发令牌。
func newTestServerWithUsers(t *testing.T) (*Server, *mockProductStore, *mockTranslationStore, *stubUserStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	codec := token.NewCodec("test-secret", 30*time.Minute, 24*time.Hour)
	products := &mockProductStore{}
	translations := &mockTranslationStore{}
	users := &stubUserStore{users: map[string]*model.User{
		"admin@example.com": {ID: 1, Email: "admin@example.com", IsActive: true, IsVerified: true},
	}}

	s := &Server{
		cfg: &config.Config{
			App: config.AppConfig{DefaultPage: 10, MaxPageSize: 100},
		},
		logger:       logger,
		router:       gin.New(),
		codec:        codec,
		auth:         auth.NewHandler(users, stubMailer{}, codec, logger),
		products:     products,
		translations: translations,
	}
	s.registerRoutes()
	return s, products, translations, users
}

func bearerFor(t *testing.T, s *Server, email string) string {
	t.Helper()
	accessToken, err := s.codec.IssueAccess(email)
	if err != nil {
		t.Fatalf("issue access token: %v", err)
	}
	return "Bearer " + accessToken
}

func doRequest(t *testing.T, s *Server, method, path, authHeader string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	resp := map[string]interface{}{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
		}
	}
	return w, resp
}

func TestRootAndMetricsEndpoints(t *testing.T) {
	s, _, _ := newTestServer(t)

	w, resp := doRequest(t, s, http.MethodGet, "/", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("root status = %d", w.Code)
	}
	if resp["message"] != "SOW Backend API is running!" {
		t.Fatalf("unexpected root message: %v", resp["message"])
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w2 := httptest.NewRecorder()
	s.router.ServeHTTP(w2, req)
	if w2.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w2.Code)
	}
}

func TestHealthWithoutBackends(t *testing.T) {
	s, _, _ := newTestServer(t)

	w, resp := doRequest(t, s, http.MethodGet, "/api/health", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("health status = %d, want 503", w.Code)
	}
	if resp["status"] != "error" {
		t.Fatalf("unexpected health body: %v", resp)
	}
}
