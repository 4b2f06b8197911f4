package catalog

import "github.com/shopspring/decimal"

// Default returns the demo catalog shipped with the application.
func Default() *Catalog {
	return New(defaultProducts(), defaultProjects(), defaultRewards())
}

func defaultProducts() []Product {
	return []Product{
		{
			ID:                "PROD123",
			Name:              "Eco-friendly Water Bottle",
			Manufacturer:      "GreenLife",
			Category:          "Household",
			CarbonFootprintKg: decimal.RequireFromString("2.3"),
			ImageURL:          "https://images.pexels.com/photos/4239013/pexels-photo-4239013.jpeg",
		},
		{
			ID:                "PROD456",
			Name:              "Organic Cotton T-shirt",
			Manufacturer:      "EarthWear",
			Category:          "Apparel",
			CarbonFootprintKg: decimal.RequireFromString("5.1"),
			ImageURL:          "https://images.pexels.com/photos/6311387/pexels-photo-6311387.jpeg",
		},
		{
			ID:                "PROD789",
			Name:              "Plant-based Protein Bar",
			Manufacturer:      "NutriEco",
			Category:          "Food",
			CarbonFootprintKg: decimal.RequireFromString("0.7"),
			ImageURL:          "https://images.pexels.com/photos/8504803/pexels-photo-8504803.jpeg",
		},
	}
}

func defaultProjects() []OffsetProject {
	return []OffsetProject{
		{
			ID:          "proj1",
			Name:        "Amazon Rainforest Preservation",
			Description: "Protecting native forests in the Amazon basin to sequester carbon and preserve biodiversity.",
			Location:    "Brazil",
			Impact:      "Preserves 500 hectares of rainforest, protecting 300+ species",
			PricePerTon: decimal.NewFromInt(15),
		},
		{
			ID:          "proj2",
			Name:        "Solar Energy Development",
			Description: "Installing solar panels in rural communities to replace diesel generators.",
			Location:    "Kenya",
			Impact:      "Provides clean energy to 5,000+ homes, reducing emissions by 8,000 tons/year",
			PricePerTon: decimal.NewFromInt(12),
		},
		{
			ID:          "proj3",
			Name:        "Wind Farm Construction",
			Description: "Building wind turbines to generate renewable electricity in high-wind coastal areas.",
			Location:    "Scotland",
			Impact:      "Generates 50MW of clean energy, offsetting 100,000 tons of CO2 annually",
			PricePerTon: decimal.NewFromInt(18),
		},
	}
}

func defaultRewards() []Reward {
	return []Reward{
		{ID: "reward1", Name: "Bamboo Toothbrush Set", Description: "Set of 4 biodegradable bamboo toothbrushes", PointsCost: 500, Available: true},
		{ID: "reward2", Name: "Reusable Coffee Cup", Description: "Thermal insulated cup made from recycled materials", PointsCost: 750, Available: true},
		{ID: "reward3", Name: "$10 Donation to Reforestation", Description: "Plant 10 trees in areas affected by deforestation", PointsCost: 1000, Available: true},
		{ID: "reward4", Name: "Organic Cotton Tote Bag", Description: "Durable tote made from organic cotton", PointsCost: 600, Available: true},
		{ID: "reward5", Name: "Premium Member Status", Description: "Upgrade to premium for 1 month: exclusive offers and double points", PointsCost: 2000, Available: true},
	}
}
