package catalog

import "testing"

func TestResolveExactMatch(t *testing.T) {
	c := Default()

	cases := []struct {
		name string
		ok   func() bool
		want bool
	}{
		{"known product", func() bool { _, ok := c.ResolveProduct("PROD123"); return ok }, true},
		{"product is case sensitive", func() bool { _, ok := c.ResolveProduct("prod123"); return ok }, false},
		{"known project", func() bool { _, ok := c.ResolveOffsetProject("proj2"); return ok }, true},
		{"unknown project", func() bool { _, ok := c.ResolveOffsetProject("proj9"); return ok }, false},
		{"known reward", func() bool { _, ok := c.ResolveReward("reward5"); return ok }, true},
		{"empty reward id", func() bool { _, ok := c.ResolveReward(""); return ok }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.ok(); got != tc.want {
				t.Fatalf("resolve = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestListingsKeepOrder(t *testing.T) {
	c := Default()

	products := c.Products()
	if len(products) != 3 || products[0].ID != "PROD123" || products[2].ID != "PROD789" {
		t.Fatalf("unexpected product order: %+v", products)
	}

	rewards := c.Rewards()
	if len(rewards) != 5 {
		t.Fatalf("expected 5 rewards, got %d", len(rewards))
	}
	for i := 1; i < len(rewards); i++ {
		if rewards[i-1].PointsCost > rewards[i].PointsCost {
			t.Fatalf("rewards not sorted by cost: %+v", rewards)
		}
	}

	p, _ := c.ResolveOffsetProject("proj3")
	if !p.PricePerTon.Equal(p.PricePerTon.Round(0)) || p.PricePerTon.IntPart() != 18 {
		t.Fatalf("unexpected price for proj3: %s", p.PricePerTon)
	}
}

func TestNewDuplicateIDReplaces(t *testing.T) {
	c := New(nil, nil, []Reward{
		{ID: "r", PointsCost: 10, Available: true},
		{ID: "r", PointsCost: 20, Available: false},
	})
	r, ok := c.ResolveReward("r")
	if !ok || r.PointsCost != 20 || r.Available {
		t.Fatalf("expected later duplicate to win, got %+v", r)
	}
	if n := len(c.Rewards()); n != 1 {
		t.Fatalf("expected 1 listed reward, got %d", n)
	}
}
