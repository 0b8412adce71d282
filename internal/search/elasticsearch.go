package search

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"

	"example.com/backstage/services/warehouse/config"
	"example.com/backstage/services/warehouse/internal/models"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Index names, before the configured prefix is applied
const (
	ShipmentsIndex = "shipments"
	ProductsIndex  = "products"
)

// ErrDisabled is returned by searches when Elasticsearch is not configured
var ErrDisabled = errors.New("search is disabled")

// ElasticClient provides integration with Elasticsearch
type ElasticClient struct {
	client  *elasticsearch.Client
	config  config.ElasticConfig
	enabled bool
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	if !cfg.Enabled {
		return Disabled(), nil
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{client: client, config: cfg, enabled: true}, nil
}

// Disabled returns a client that indexes nothing
func Disabled() *ElasticClient {
	return &ElasticClient{enabled: false}
}

// Enabled reports whether documents are actually indexed
func (c *ElasticClient) Enabled() bool {
	return c != nil && c.enabled
}

// ShipmentDocument flattens a shipment with its order and product
func ShipmentDocument(shipment *models.Shipment) map[string]interface{} {
	doc := map[string]interface{}{
		"id":            shipment.ID,
		"order_id":      shipment.OrderID,
		"employee_id":   shipment.EmployeeID,
		"truck_id":      shipment.TruckID,
		"status":        shipment.Status,
		"shipment_date": shipment.ShipmentDate,
		"delivered_at":  shipment.DeliveredAt,
	}
	if shipment.Order != nil {
		doc["required_qty"] = shipment.Order.RequiredQty
		doc["order_status"] = shipment.Order.Status
		if p := shipment.Order.Product; p != nil {
			doc["product_id"] = p.ID
			doc["product_name"] = p.Name
			if p.Category != nil {
				doc["category"] = p.Category.Name
			}
		}
	}
	if shipment.Employee != nil {
		doc["employee_name"] = shipment.Employee.Name
	}
	if shipment.Truck != nil {
		doc["license_plate"] = shipment.Truck.LicensePlate
	}
	return doc
}

// ProductDocument flattens a product with its category
func ProductDocument(product *models.Product) map[string]interface{} {
	doc := map[string]interface{}{
		"id":                      product.ID,
		"name":                    product.Name,
		"category_id":             product.CategoryID,
		"available_quantity":      product.AvailableQuantity,
		"total_shipped":           product.TotalShipped,
		"total_required_quantity": product.TotalRequiredQuantity,
		"status":                  product.Status,
	}
	if product.Category != nil {
		doc["category"] = product.Category.Name
	}
	return doc
}

// IndexShipment indexes a shipment document
func (c *ElasticClient) IndexShipment(ctx context.Context, shipment *models.Shipment) error {
	return c.index(ctx, ShipmentsIndex, shipment.ID, ShipmentDocument(shipment))
}

// IndexProduct indexes a product document
func (c *ElasticClient) IndexProduct(ctx context.Context, product *models.Product) error {
	return c.index(ctx, ProductsIndex, product.ID, ProductDocument(product))
}

func (c *ElasticClient) index(ctx context.Context, index string, id uint, doc map[string]interface{}) error {
	if !c.Enabled() {
		return nil
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal document")
	}

	req := esapi.IndexRequest{
		Index:      config.FormatIndex(c.config, index),
		DocumentID: strconv.FormatUint(uint64(id), 10),
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return decodeError(res, "index")
	}

	log.Debug().Str("index", index).Uint("id", id).Msg("document indexed")
	return nil
}

// ShipmentQuery builds a full-text query over shipment documents
func ShipmentQuery(text string, size int) map[string]interface{} {
	query := map[string]interface{}{
		"size": size,
		"sort": []interface{}{
			map[string]interface{}{"shipment_date": map[string]string{"order": "desc"}},
		},
	}
	if text == "" {
		query["query"] = map[string]interface{}{"match_all": map[string]interface{}{}}
		return query
	}
	query["query"] = map[string]interface{}{
		"multi_match": map[string]interface{}{
			"query":  text,
			"fields": []string{"product_name^2", "category", "employee_name", "license_plate", "status"},
		},
	}
	return query
}

// SearchShipments runs a full-text search over indexed shipments
func (c *ElasticClient) SearchShipments(ctx context.Context, text string, size int) ([]map[string]interface{}, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	body, err := json.Marshal(ShipmentQuery(text, size))
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	req := esapi.SearchRequest{
		Index: []string{config.FormatIndex(c.config, ShipmentsIndex)},
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, decodeError(res, "search")
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	docs := make([]map[string]interface{}, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return docs, nil
}

func decodeError(res *esapi.Response, op string) error {
	var e map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
		return errors.Wrapf(err, "failed to parse Elasticsearch %s error response", op)
	}
	return errors.Errorf("Elasticsearch %s error: %v", op, e)
}
