package repository

import (
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/model"
)

// Snapshots are stored as two documents so that the shop and blog data can be edited by hand:
// the shop document is {"products": [...]} and the blog document is a bare array.
const (
	ShopFileName = "shop-mock.json"
	BlogFileName = "blog-mock.json"
)

type shopDocument struct {
	Products []*model.Product `json:"products"`
}

func encodeShop(products []*model.Product) ([]byte, error) {
	if products == nil {
		products = []*model.Product{}
	}
	data, err := json.MarshalIndent(shopDocument{Products: products}, "", "  ")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode shop data")
	}
	return data, nil
}

func decodeShop(data []byte) ([]*model.Product, error) {
	var doc shopDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode shop data")
	}
	return doc.Products, nil
}

func encodeBlog(posts []*model.BlogPost) ([]byte, error) {
	if posts == nil {
		posts = []*model.BlogPost{}
	}
	data, err := json.MarshalIndent(posts, "", "  ")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode blog data")
	}
	return data, nil
}

func decodeBlog(data []byte) ([]*model.BlogPost, error) {
	var posts []*model.BlogPost
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, goerr.Wrap(err, "failed to decode blog data")
	}
	return posts, nil
}
