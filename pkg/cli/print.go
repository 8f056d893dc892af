package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/m-mizutani/huddle/pkg/model"
)

const timeFormat = "15:04:05"

func printMessage(w io.Writer, msg *model.Message) {
	fmt.Fprintf(w, "[%s] %s: %s\n", msg.Timestamp.Format(timeFormat), msg.Speaker(), indent(msg.Content))
	if msg.Metadata != nil && msg.Metadata.Reasoning != "" {
		fmt.Fprintf(w, "  (%s)\n", msg.Metadata.Reasoning)
	}
}

func printStats(w io.Writer, stats *model.Stats, messages int) {
	fmt.Fprintf(w, "products: %d, blog posts: %d, views: %d, messages: %d\n",
		stats.TotalProducts, stats.TotalBlogPosts, stats.TotalViews, messages)
}

func printProducts(w io.Writer, products []*model.Product) {
	for i, p := range products {
		fmt.Fprintf(w, "%d. %s - %s (%s)\n", i+1, p.Name, model.PriceLabel(p.Price), p.Category)
		if p.CreatedBy != "" {
			fmt.Fprintf(w, "   created by %s\n", p.CreatedBy)
		}
	}
}

func printBlogPosts(w io.Writer, posts []*model.BlogPost) {
	for i, p := range posts {
		fmt.Fprintf(w, "%d. %s\n   by %s, %d views\n", i+1, p.Title, p.Author, p.Views)
		if p.CreatedBy != "" {
			fmt.Fprintf(w, "   created by %s\n", p.CreatedBy)
		}
	}
}

func printRoster(w io.Writer, roster []model.AgentConfig) {
	for _, cfg := range roster {
		fmt.Fprintf(w, "%s\t%s\n", cfg.Name, cfg.Role)
	}
}

// indent prefixes continuation lines so multi-line messages stay readable in a transcript
func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n  ")
}
