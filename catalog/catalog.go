package catalog

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Product is a scannable item with its embodied footprint in kg CO2e.
type Product struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Manufacturer      string          `json:"manufacturer"`
	Category          string          `json:"category"`
	CarbonFootprintKg decimal.Decimal `json:"carbon_footprint_kg"`
	ImageURL          string          `json:"image_url,omitempty"`
}

// OffsetProject is a purchasable carbon offset. PricePerTon is in tokens.
type OffsetProject struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	Impact      string          `json:"impact"`
	PricePerTon decimal.Decimal `json:"price_per_ton"`
	ImageURL    string          `json:"image_url,omitempty"`
}

// Reward can be redeemed for points while Available is true.
type Reward struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PointsCost  int64  `json:"points_cost"`
	Available   bool   `json:"available"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Catalog is an immutable set of reference records keyed by id.
// It is safe for concurrent use because nothing mutates it after New.
type Catalog struct {
	products map[string]Product
	projects map[string]OffsetProject
	rewards  map[string]Reward

	productOrder []string
	projectOrder []string
	rewardOrder  []string
}

// New builds a catalog. Later duplicates of an id replace earlier ones.
func New(products []Product, projects []OffsetProject, rewards []Reward) *Catalog {
	c := &Catalog{
		products: make(map[string]Product, len(products)),
		projects: make(map[string]OffsetProject, len(projects)),
		rewards:  make(map[string]Reward, len(rewards)),
	}
	for _, p := range products {
		if _, ok := c.products[p.ID]; !ok {
			c.productOrder = append(c.productOrder, p.ID)
		}
		c.products[p.ID] = p
	}
	for _, p := range projects {
		if _, ok := c.projects[p.ID]; !ok {
			c.projectOrder = append(c.projectOrder, p.ID)
		}
		c.projects[p.ID] = p
	}
	for _, r := range rewards {
		if _, ok := c.rewards[r.ID]; !ok {
			c.rewardOrder = append(c.rewardOrder, r.ID)
		}
		c.rewards[r.ID] = r
	}
	return c
}

// ResolveProduct looks a product up by exact id.
func (c *Catalog) ResolveProduct(id string) (Product, bool) {
	p, ok := c.products[id]
	return p, ok
}

// ResolveOffsetProject looks an offset project up by exact id.
func (c *Catalog) ResolveOffsetProject(id string) (OffsetProject, bool) {
	p, ok := c.projects[id]
	return p, ok
}

// ResolveReward looks a reward up by exact id.
func (c *Catalog) ResolveReward(id string) (Reward, bool) {
	r, ok := c.rewards[id]
	return r, ok
}

// Products returns every product in insertion order.
func (c *Catalog) Products() []Product {
	out := make([]Product, 0, len(c.productOrder))
	for _, id := range c.productOrder {
		out = append(out, c.products[id])
	}
	return out
}

// OffsetProjects returns every project in insertion order.
func (c *Catalog) OffsetProjects() []OffsetProject {
	out := make([]OffsetProject, 0, len(c.projectOrder))
	for _, id := range c.projectOrder {
		out = append(out, c.projects[id])
	}
	return out
}

// Rewards returns every reward sorted by points cost, cheapest first.
func (c *Catalog) Rewards() []Reward {
	out := make([]Reward, 0, len(c.rewardOrder))
	for _, id := range c.rewardOrder {
		out = append(out, c.rewards[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PointsCost < out[j].PointsCost })
	return out
}
