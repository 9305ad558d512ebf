// Package seed は開発・デモ用のサンプル商品データ投入を提供する。
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/giftman/internal/model"
	"github.com/hitoshi/giftman/internal/repository"
)

// sampleProducts は投入するサンプル商品。
var sampleProducts = []model.Product{
	{
		Name:        "Ceramic Tea Set",
		Description: "Hand-glazed ceramic tea set with four cups and a matching pot.",
		Price:       68.00,
		Category:    "home",
		Priority:    model.PriorityMedium,
	},
	{
		Name:        "Gardening Tool Kit",
		Description: "Stainless steel trowel, pruner and cultivator in a canvas roll.",
		Price:       45.50,
		Category:    "outdoors",
		Priority:    model.PriorityHigh,
	},
	{
		Name:        "Leather Journal",
		Description: "A5 refillable journal with full-grain leather cover.",
		Price:       32.00,
		Category:    "stationery",
		Priority:    model.PriorityMedium,
	},
	{
		Name:        "Cookbook: Seasonal Kitchen",
		Description: "120 recipes organized around farmers market produce.",
		Price:       28.00,
		Category:    "books",
		Priority:    model.PriorityLow,
	},
	{
		Name:        "Wool Throw Blanket",
		Description: "Merino wool blanket, 130x180cm, machine washable.",
		Price:       89.00,
		Category:    "home",
		Priority:    model.PriorityMedium,
	},
	{
		Name:        "Pour-Over Coffee Kit",
		Description: "Glass dripper, server and paper filters for a slow morning.",
		Price:       54.00,
		Category:    "kitchen",
		Priority:    model.PriorityHigh,
	},
	{
		Name:        "Botanical Print Set",
		Description: "Three archival-quality fern and eucalyptus prints.",
		Price:       39.00,
		Category:    "art",
		Priority:    model.PriorityLow,
	},
	{
		Name:        "Scented Candle Trio",
		Description: "Soy wax candles in cedar, bergamot and sea salt.",
		Price:       42.00,
		Category:    "home",
		Priority:    model.PriorityLow,
	},
}

// Run はサンプル商品を投入する。
// 既に商品が存在する場合は何もしない（再実行安全）。
func Run(ctx context.Context, productRepo repository.ProductRepository, logger *slog.Logger) error {
	existing, err := productRepo.List(ctx, model.ProductFilter{})
	if err != nil {
		return fmt.Errorf("既存商品の確認に失敗しました: %w", err)
	}
	if len(existing) > 0 {
		logger.Info("商品が既に存在するためシードをスキップします",
			slog.Int("existing_count", len(existing)),
		)
		return nil
	}

	now := time.Now()
	for i := range sampleProducts {
		product := sampleProducts[i]
		product.ID = uuid.New().String()
		product.InStock = true
		product.Status = model.ProductStatusActive
		product.CreatedAt = now
		product.UpdatedAt = now

		if err := productRepo.Create(ctx, &product); err != nil {
			return fmt.Errorf("サンプル商品の投入に失敗しました (%s): %w", product.Name, err)
		}
	}

	logger.Info("サンプル商品を投入しました",
		slog.Int("count", len(sampleProducts)),
	)
	return nil
}
