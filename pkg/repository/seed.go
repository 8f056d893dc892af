package repository

import (
	"time"

	"github.com/m-mizutani/huddle/pkg/model"
)

// Seed returns the sample catalog used when nothing has been persisted yet
func Seed() *model.Snapshot {
	now := time.Now()
	return &model.Snapshot{
		Products: []*model.Product{
			{
				ID:          "prod-1",
				Name:        "Wireless Headphones Pro",
				Description: "Premium noise-cancelling wireless headphones with 30-hour battery life",
				Price:       299.99,
				Category:    "Electronics",
				Stock:       50,
				Tags:        []string{"audio", "wireless", "premium"},
				CreatedAt:   now,
			},
			{
				ID:          "prod-2",
				Name:        "Smart Watch X1",
				Description: "Advanced fitness tracking smartwatch with heart rate monitor",
				Price:       199.99,
				Category:    "Wearables",
				Stock:       100,
				Tags:        []string{"fitness", "smart", "health"},
				CreatedAt:   now,
			},
		},
		BlogPosts: []*model.BlogPost{
			{
				ID:          "post-1",
				Title:       "5 Tech Trends to Watch in 2026",
				Content:     "Technology keeps moving fast. From on-device AI to spatial computing, here are the five trends that will shape the products we build and buy this year.",
				Excerpt:     "Discover the most exciting tech trends of 2026",
				Author:      "Tech Team",
				Tags:        []string{"technology", "trends"},
				PublishedAt: now,
				Views:       1234,
			},
		},
	}
}
