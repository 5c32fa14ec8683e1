package catalog

import "github.com/shopspring/decimal"

// InitialProducts is the storefront's launch catalogue.
func InitialProducts() []Product {
	return []Product{
		{
			ID:             1,
			Name:           "K-Swiss V8 - Masculino",
			Category:       "Tênis",
			Price:          decimal.NewFromInt(100),
			OriginalPrice:  decimal.NewFromInt(200),
			Discount:       "30% OFF",
			Image:          "https://cdn.digitalstore.example/products/k-swiss-v8.jpg",
			Images:         []string{"https://cdn.digitalstore.example/products/k-swiss-v8.jpg", "https://cdn.digitalstore.example/products/k-swiss-v8-side.jpg"},
			Description:    "Tênis clássico de alta durabilidade, perfeito para o dia a dia com um toque de elegância esportiva.",
			AvailableSizes: []string{"39", "40", "41", "42"},
		},
		{
			ID:             2,
			Name:           "Nike Air Zoom - Performance",
			Category:       "Tênis",
			Price:          decimal.NewFromInt(450),
			OriginalPrice:  decimal.NewFromInt(600),
			Discount:       "25% OFF",
			Image:          "https://cdn.digitalstore.example/products/nike-air-zoom.jpg",
			Images:         []string{"https://cdn.digitalstore.example/products/nike-air-zoom.jpg"},
			Description:    "Tecnologia de ponta em amortecimento para atletas que não abrem mão de performance e estilo.",
			AvailableSizes: []string{"37", "38", "43"},
		},
		{
			ID:            3,
			Name:          "Camiseta Streetwear Oversized",
			Category:      "Camisetas",
			Price:         decimal.NewFromInt(89),
			OriginalPrice: decimal.NewFromInt(120),
			Image:         "https://cdn.digitalstore.example/products/camiseta-oversized.jpg",
			Description:   "Corte moderno e tecido premium para um visual urbano autêntico e confortável.",
		},
		{
			ID:            4,
			Name:          "Fone Bluetooth Bass Pro",
			Category:      "Headphones",
			Price:         decimal.NewFromInt(299),
			OriginalPrice: decimal.NewFromInt(399),
			Image:         "https://cdn.digitalstore.example/products/fone-bass-pro.jpg",
			Description:   "Som cristalino e graves potentes com cancelamento de ruído ativo.",
		},
	}
}
