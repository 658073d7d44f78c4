// Package catalog reads seller records and seller-scoped product collections.
// The order engine never writes here.
package catalog

import (
	"context"
	"errors"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/aws"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/pricing"
)

var (
	ErrSellerNotFound  = errors.New("seller not found")
	ErrProductNotFound = errors.New("product not found")
)

type Seller struct {
	SellerID         string `dynamodbav:"seller_id"`
	Name             string `dynamodbav:"name"`
	SellerCollection string `dynamodbav:"seller_collection"`
	Active           bool   `dynamodbav:"active"`
}

type Product struct {
	SellerCollection string         `dynamodbav:"seller_collection"`
	ProductID        string         `dynamodbav:"product_id"`
	Name             string         `dynamodbav:"name"`
	Price            pricing.Amount `dynamodbav:"price"`
	Image            string         `dynamodbav:"image,omitempty"`
	IsVeg            bool           `dynamodbav:"is_veg"`
	Available        bool           `dynamodbav:"available"`
}

type Store struct {
	client        aws.DynamoDBAPI
	sellersTable  string
	productsTable string
}

func NewStore(client aws.DynamoDBAPI, sellersTable, productsTable string) *Store {
	return &Store{
		client:        client,
		sellersTable:  sellersTable,
		productsTable: productsTable,
	}
}

// Seller returns an active seller. Inactive sellers are reported as not found.
func (s *Store) Seller(ctx context.Context, sellerID string) (*Seller, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.sellersTable,
		Key: map[string]types.AttributeValue{
			"seller_id": &types.AttributeValueMemberS{Value: sellerID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get seller: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("%s: %w", sellerID, ErrSellerNotFound)
	}
	var seller Seller
	if err := attributevalue.UnmarshalMap(out.Item, &seller); err != nil {
		return nil, fmt.Errorf("unmarshal seller: %w", err)
	}
	if !seller.Active {
		return nil, fmt.Errorf("%s inactive: %w", sellerID, ErrSellerNotFound)
	}
	return &seller, nil
}

// Product returns an available product from a seller collection.
func (s *Store) Product(ctx context.Context, sellerCollection, productID string) (*Product, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.productsTable,
		Key: map[string]types.AttributeValue{
			"seller_collection": &types.AttributeValueMemberS{Value: sellerCollection},
			"product_id":        &types.AttributeValueMemberS{Value: productID},
		},
		ProjectionExpression: sdkaws.String("seller_collection, product_id, #n, price, image, is_veg, available"),
		ExpressionAttributeNames: map[string]string{
			"#n": "name",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("%s/%s: %w", sellerCollection, productID, ErrProductNotFound)
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	if !p.Available {
		return nil, fmt.Errorf("%s/%s unavailable: %w", sellerCollection, productID, ErrProductNotFound)
	}
	return &p, nil
}
