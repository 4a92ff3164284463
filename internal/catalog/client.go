package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

const productCacheTTL = 5 * time.Minute

// Client reads catalog state with a Redis fast path and database fallback.
// The database stays authoritative; the cache only absorbs read load.
type Client struct {
	store  *store.Store
	redis  *redisclient.Client
	logger *zap.Logger
}

func NewClient(store *store.Store, redis *redisclient.Client) *Client {
	return &Client{
		store:  store,
		redis:  redis,
		logger: util.GetLogger(),
	}
}

// GetProduct retrieves one product, serving from cache when possible.
func (c *Client) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	if data, err := c.redis.GetCachedProduct(ctx, productID); err == nil {
		var product models.Product
		if err := json.Unmarshal(data, &product); err == nil {
			return &product, nil
		}
		// corrupt cache entry, fall through to DB
		_ = c.redis.InvalidateProduct(ctx, productID)
	} else if !errors.Is(err, redisclient.ErrCacheMiss) {
		c.logger.Warn("Product cache read failed, falling back to DB",
			zap.Int64("product_id", productID),
			zap.Error(err))
	}

	product, err := c.store.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(product); err == nil {
		if err := c.redis.CacheProduct(ctx, productID, data, productCacheTTL); err != nil {
			c.logger.Warn("Failed to cache product",
				zap.Int64("product_id", productID),
				zap.Error(err))
		}
	}

	return product, nil
}

// GetProducts retrieves several products keyed by id, straight from the DB.
// Pricing reads go through here so every line item sees the same snapshot.
func (c *Client) GetProducts(ctx context.Context, productIDs []int64) (map[int64]*models.Product, error) {
	products, err := c.store.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	productMap := make(map[int64]*models.Product, len(products))
	for i := range products {
		productMap[products[i].ID] = &products[i]
	}
	return productMap, nil
}

// InvalidateProducts drops cached entries after their stock changed.
func (c *Client) InvalidateProducts(ctx context.Context, productIDs []int64) {
	for _, id := range productIDs {
		if err := c.redis.InvalidateProduct(ctx, id); err != nil {
			c.logger.Warn("Failed to invalidate product cache",
				zap.Int64("product_id", id),
				zap.Error(err))
		}
	}
}
