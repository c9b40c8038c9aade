package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/Su5hant/sow-backend/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ProductFilter 商品列表查询条件。
type ProductFilter struct {
	Search   string   // 模糊匹配商品名、货号或描述
	MinPrice *float64 // 售价下限
	MaxPrice *float64 // 售价上限
	Unit     string   // 精确匹配单位
	LowStock bool     // 仅返回库存低于阈值的商品
}

const lowStockThreshold = 10

// ProductStore 定义商品数据访问接口。
type ProductStore interface {
	ListProducts(ctx context.Context, filter ProductFilter, page, size int) ([]model.Product, int64, error)
	GetProduct(ctx context.Context, id uint) (*model.Product, error)
	GetProductByArticle(ctx context.Context, articleNumber string) (*model.Product, error)
	CreateProduct(ctx context.Context, product *model.Product) error
	SaveProduct(ctx context.Context, product *model.Product) error
	DeleteProduct(ctx context.Context, product *model.Product) error
}

type dbProductStore struct {
	db *gorm.DB
}

func (s dbProductStore) ListProducts(ctx context.Context, filter ProductFilter, page, size int) ([]model.Product, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Product{})
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("product LIKE ? OR article_number LIKE ? OR description LIKE ?", like, like, like)
	}
	if filter.MinPrice != nil {
		query = query.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("price <= ?", *filter.MaxPrice)
	}
	if filter.Unit != "" {
		query = query.Where("unit = ?", filter.Unit)
	}
	if filter.LowStock {
		query = query.Where("stock < ?", lowStockThreshold)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []model.Product
	err := query.Order("id").Offset((page - 1) * size).Limit(size).Find(&products).Error
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (s dbProductStore) GetProduct(ctx context.Context, id uint) (*model.Product, error) {
	var product model.Product
	err := s.db.WithContext(ctx).First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s dbProductStore) GetProductByArticle(ctx context.Context, articleNumber string) (*model.Product, error) {
	var product model.Product
	err := s.db.WithContext(ctx).Where("article_number = ?", articleNumber).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s dbProductStore) CreateProduct(ctx context.Context, product *model.Product) error {
	return s.db.WithContext(ctx).Create(product).Error
}

func (s dbProductStore) SaveProduct(ctx context.Context, product *model.Product) error {
	return s.db.WithContext(ctx).Save(product).Error
}

func (s dbProductStore) DeleteProduct(ctx context.Context, product *model.Product) error {
	return s.db.WithContext(ctx).Delete(product).Error
}

type createProductRequest struct {
	ArticleNumber string  `json:"article_number" binding:"required"`
	Name          string  `json:"product" binding:"required"`
	InPrice       float64 `json:"in_price" binding:"gte=0"`
	Price         float64 `json:"price" binding:"gte=0"`
	Unit          string  `json:"unit"`
	Stock         int     `json:"stock" binding:"gte=0"`
	Description   string  `json:"description"`
}

// updateProductRequest 所有字段可选，仅更新提交的字段。
type updateProductRequest struct {
	ArticleNumber *string  `json:"article_number"`
	Name          *string  `json:"product"`
	InPrice       *float64 `json:"in_price"`
	Price         *float64 `json:"price"`
	Unit          *string  `json:"unit"`
	Stock         *int     `json:"stock"`
	Description   *string  `json:"description"`
}

type productResponse struct {
	ID            uint    `json:"id"`
	ArticleNumber string  `json:"article_number"`
	Name          string  `json:"product"`
	InPrice       float64 `json:"in_price"`
	Price         float64 `json:"price"`
	Unit          string  `json:"unit"`
	Stock         int     `json:"stock"`
	Description   string  `json:"description"`
}

func toProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		ArticleNumber: p.ArticleNumber,
		Name:          p.Name,
		InPrice:       p.InPrice,
		Price:         p.Price,
		Unit:          p.Unit,
		Stock:         p.Stock,
		Description:   p.Description,
	}
}

// parsePage 解析分页参数，超出上限的 size 会被截断。
func (s *Server) parsePage(c *gin.Context) (page, size int) {
	page = 1
	size = s.cfg.App.DefaultPage
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(c.Query("size")); err == nil && v > 0 {
		size = v
	}
	if size > s.cfg.App.MaxPageSize {
		size = s.cfg.App.MaxPageSize
	}
	return page, size
}

// handleListProducts 分页查询商品列表，支持搜索与价格区间过滤。
func (s *Server) handleListProducts(c *gin.Context) {
	page, size := s.parsePage(c)

	filter := ProductFilter{
		Search: c.Query("search"),
		Unit:   c.Query("unit"),
	}
	if v, err := strconv.ParseFloat(c.Query("min_price"), 64); err == nil {
		filter.MinPrice = &v
	}
	if v, err := strconv.ParseFloat(c.Query("max_price"), 64); err == nil {
		filter.MaxPrice = &v
	}
	if v, err := strconv.ParseBool(c.Query("low_stock")); err == nil {
		filter.LowStock = v
	}

	products, total, err := s.products.ListProducts(c.Request.Context(), filter, page, size)
	if err != nil {
		s.logger.Error("查询商品列表失败", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list products"})
		return
	}

	items := make([]productResponse, 0, len(products))
	for i := range products {
		items = append(items, toProductResponse(&products[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"products": items,
		"total":    total,
		"page":     page,
		"size":     size,
		"pages":    int(math.Ceil(float64(total) / float64(size))),
	})
}

func (s *Server) handleCreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := s.products.GetProductByArticle(c.Request.Context(), req.ArticleNumber)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Product with article number '%s' already exists", req.ArticleNumber),
		})
		return
	}

	product := &model.Product{
		ArticleNumber: req.ArticleNumber,
		Name:          req.Name,
		InPrice:       req.InPrice,
		Price:         req.Price,
		Unit:          req.Unit,
		Stock:         req.Stock,
		Description:   req.Description,
	}
	if err := s.products.CreateProduct(c.Request.Context(), product); err != nil {
		s.logger.Error("创建商品失败", "article_number", req.ArticleNumber, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}
	c.JSON(http.StatusCreated, toProductResponse(product))
}

// productByID 解析路径中的商品 ID 并加载商品，未找到时已写入响应。
func (s *Server) productByID(c *gin.Context) (*model.Product, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product id"})
		return nil, false
	}
	product, err := s.products.GetProduct(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load product"})
		return nil, false
	}
	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return nil, false
	}
	return product, true
}

func (s *Server) handleGetProduct(c *gin.Context) {
	product, ok := s.productByID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toProductResponse(product))
}

func (s *Server) handleGetProductByArticle(c *gin.Context) {
	articleNumber := c.Param("article_number")
	product, err := s.products.GetProductByArticle(c.Request.Context(), articleNumber)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load product"})
		return
	}
	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	c.JSON(http.StatusOK, toProductResponse(product))
}

func (s *Server) handleUpdateProduct(c *gin.Context) {
	product, ok := s.productByID(c)
	if !ok {
		return
	}

	var req updateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 货号变更时需要重新检查唯一性
	if req.ArticleNumber != nil && *req.ArticleNumber != product.ArticleNumber {
		existing, err := s.products.GetProductByArticle(c.Request.Context(), *req.ArticleNumber)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
			return
		}
		if existing != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Product with article number '%s' already exists", *req.ArticleNumber),
			})
			return
		}
		product.ArticleNumber = *req.ArticleNumber
	}
	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.InPrice != nil {
		product.InPrice = *req.InPrice
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Unit != nil {
		product.Unit = *req.Unit
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.Description != nil {
		product.Description = *req.Description
	}

	if err := s.products.SaveProduct(c.Request.Context(), product); err != nil {
		s.logger.Error("更新商品失败", "id", product.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
		return
	}
	c.JSON(http.StatusOK, toProductResponse(product))
}

func (s *Server) handleUpdateProductStock(c *gin.Context) {
	product, ok := s.productByID(c)
	if !ok {
		return
	}

	var req struct {
		Stock int `json:"stock" binding:"gte=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product.Stock = req.Stock
	if err := s.products.SaveProduct(c.Request.Context(), product); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update stock"})
		return
	}
	c.JSON(http.StatusOK, toProductResponse(product))
}

func (s *Server) handleUpdateProductPrice(c *gin.Context) {
	product, ok := s.productByID(c)
	if !ok {
		return
	}

	var req struct {
		Price float64 `json:"price" binding:"gte=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product.Price = req.Price
	if err := s.products.SaveProduct(c.Request.Context(), product); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update price"})
		return
	}
	c.JSON(http.StatusOK, toProductResponse(product))
}

func (s *Server) handleDeleteProduct(c *gin.Context) {
	product, ok := s.productByID(c)
	if !ok {
		return
	}
	if err := s.products.DeleteProduct(c.Request.Context(), product); err != nil {
		s.logger.Error("删除商品失败", "id", product.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete product"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Product '%s' deleted successfully", product.Name),
	})
}
