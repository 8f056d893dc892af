package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultCategory = "General"
	DefaultStock    = 100
	excerptLength   = 150
)

type ProductID string

// NewProductID generates a new unique ProductID
func NewProductID() ProductID {
	return ProductID("p-" + uuid.New().String())
}

type BlogPostID string

// NewBlogPostID generates a new unique BlogPostID
func NewBlogPostID() BlogPostID {
	return BlogPostID("post-" + uuid.New().String())
}

type Product struct {
	ID          ProductID `json:"id" firestore:"id"`
	Name        string    `json:"name" firestore:"name"`
	Description string    `json:"description" firestore:"description"`
	Price       float64   `json:"price" firestore:"price"`
	Category    string    `json:"category" firestore:"category"`
	Image       string    `json:"image,omitempty" firestore:"image,omitempty"`
	Stock       int       `json:"stock" firestore:"stock"`
	Tags        []string  `json:"tags" firestore:"tags"`
	CreatedAt   time.Time `json:"createdAt" firestore:"created_at"`
	// CreatedBy is empty for records created by humans
	CreatedBy string `json:"createdBy,omitempty" firestore:"created_by,omitempty"`
}

type BlogPost struct {
	ID          BlogPostID `json:"id" firestore:"id"`
	Title       string     `json:"title" firestore:"title"`
	Content     string     `json:"content" firestore:"content"`
	Excerpt     string     `json:"excerpt" firestore:"excerpt"`
	Author      string     `json:"author" firestore:"author"`
	Tags        []string   `json:"tags" firestore:"tags"`
	PublishedAt time.Time  `json:"publishedAt" firestore:"published_at"`
	Views       int        `json:"views" firestore:"views"`
	CreatedBy   string     `json:"createdBy,omitempty" firestore:"created_by,omitempty"`
}

// Stats summarizes the catalog
type Stats struct {
	TotalProducts  int `json:"totalProducts"`
	TotalBlogPosts int `json:"totalBlogPosts"`
	TotalViews     int `json:"totalViews"`
}

// Snapshot is the persisted form of the data store
type Snapshot struct {
	Products  []*Product  `json:"products"`
	BlogPosts []*BlogPost `json:"blogPosts"`
}

// NewProduct builds a product from an action payload, applying field defaults
func NewProduct(in *ProductInput, createdBy string) *Product {
	p := &Product{
		ID:          NewProductID(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		Image:       in.Image,
		Stock:       DefaultStock,
		Tags:        append([]string{}, in.Tags...),
		CreatedAt:   time.Now(),
		CreatedBy:   createdBy,
	}
	if p.Category == "" {
		p.Category = DefaultCategory
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	return p
}

// NewBlogPost builds a post from an action payload, deriving the excerpt when absent
func NewBlogPost(in *PostInput, author string) *BlogPost {
	excerpt := in.Excerpt
	if excerpt == "" {
		excerpt = Excerpt(in.Content)
	}
	return &BlogPost{
		ID:          NewBlogPostID(),
		Title:       in.Title,
		Content:     in.Content,
		Excerpt:     excerpt,
		Author:      author,
		Tags:        append([]string{}, in.Tags...),
		PublishedAt: time.Now(),
		CreatedBy:   author,
	}
}

// Excerpt returns the first 150 characters of content followed by "..."
func Excerpt(content string) string {
	runes := []rune(content)
	if len(runes) > excerptLength {
		runes = runes[:excerptLength]
	}
	return string(runes) + "..."
}

// PriceLabel formats a price the way result lines show it
func PriceLabel(price float64) string {
	return "$" + fmt.Sprint(price)
}
