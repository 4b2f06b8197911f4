package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/carbontrack/catalog"
	"github.com/cppla/carbontrack/utils"
)

const catalogCacheTTL = 10 * time.Minute

// CatalogController serves the read-only reference data. Listings are
// cached in Redis when it is available.
type CatalogController struct {
	cat *catalog.Catalog
}

func NewCatalogController(cat *catalog.Catalog) *CatalogController {
	return &CatalogController{cat: cat}
}

func (c *CatalogController) Products(ctx *gin.Context) {
	var products []catalog.Product
	serveCached(ctx, "catalog:products", &products, func() interface{} { return c.cat.Products() })
}

func (c *CatalogController) Projects(ctx *gin.Context) {
	var projects []catalog.OffsetProject
	serveCached(ctx, "catalog:projects", &projects, func() interface{} { return c.cat.OffsetProjects() })
}

func (c *CatalogController) Rewards(ctx *gin.Context) {
	var rewards []catalog.Reward
	serveCached(ctx, "catalog:rewards", &rewards, func() interface{} { return c.cat.Rewards() })
}

// Product resolves a single product code.
func (c *CatalogController) Product(ctx *gin.Context) {
	p, ok := c.cat.ResolveProduct(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusNotFound, 40403, "product not found")
		return
	}
	utils.Success(ctx, p)
}

func serveCached(ctx *gin.Context, key string, into interface{}, build func() interface{}) {
	if utils.CacheGetJSON(ctx.Request.Context(), key, into) {
		ctx.Header("X-Cache", "HIT")
		utils.Success(ctx, gin.H{"items": into})
		return
	}
	items := build()
	utils.CacheSetJSON(ctx.Request.Context(), key, items, catalogCacheTTL)
	ctx.Header("X-Cache", "MISS")
	utils.Success(ctx, gin.H{"items": items})
}
