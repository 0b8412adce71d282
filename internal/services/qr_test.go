package services

import (
	"testing"

	"example.com/backstage/services/warehouse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQRPayload(t *testing.T) {
	payload, err := ParseQRPayload("name=Widget|category=Tools|quantity=10")
	require.NoError(t, err)
	assert.Equal(t, &QRPayload{Name: "Widget", Category: "Tools", Quantity: 10}, payload)

	payload, err = ParseQRPayload(" name = Bolt | category=Hardware | quantity=3 | batch=77 ")
	require.NoError(t, err)
	assert.Equal(t, "Bolt", payload.Name)
	assert.Equal(t, "Hardware", payload.Category)
	assert.Equal(t, int64(3), payload.Quantity)
}

func TestParseQRPayloadRejects(t *testing.T) {
	cases := map[string]string{
		"empty":             "",
		"no separator":      "name=Widget|category",
		"missing quantity":  "name=Widget|category=Tools",
		"missing name":      "category=Tools|quantity=1",
		"blank name":        "name=|category=Tools|quantity=1",
		"zero quantity":     "name=Widget|category=Tools|quantity=0",
		"negative quantity": "name=Widget|category=Tools|quantity=-4",
		"float quantity":    "name=Widget|category=Tools|quantity=1.5",
		"text quantity":     "name=Widget|category=Tools|quantity=ten",
		"empty key":         "=x|name=Widget|category=Tools|quantity=1",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseQRPayload(text)
			assert.ErrorIs(t, err, ErrValidation)
			assert.NotEmpty(t, Message(err))
		})
	}
}

func TestIngestQRTwiceKeepsOneProduct(t *testing.T) {
	f := newFixture(t)

	product, created, err := f.svc.IngestQR(f.ctx, "name=Widget|category=Tools|quantity=10")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(10), product.AvailableQuantity)

	product, created, err = f.svc.IngestQR(f.ctx, "name=Widget|category=Tools|quantity=10")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(20), product.AvailableQuantity)

	var count int64
	require.NoError(t, f.db.Model(&models.Product{}).Where("name = ?", "Widget").Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, f.db.Model(&models.Category{}).Where("name = ?", "Tools").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	movements, err := f.svc.ProductMovements(f.ctx, product.ID, 10)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, models.MovementRestock, movements[0].Kind)
}

func TestIngestQRRecomputesStatus(t *testing.T) {
	f := newFixture(t)
	widget := f.product(t, "Widget", 0)
	f.order(t, widget.ID, 5)
	assert.Equal(t, models.ProductOnDemand, f.reloadProduct(t, widget.ID).Status)

	product, created, err := f.svc.IngestQR(f.ctx, "name=Widget|category=Tools|quantity=5")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, widget.ID, product.ID)
	assert.Equal(t, models.ProductSufficient, product.Status)
}

func TestIngestQRMalformedMakesNoChange(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.IngestQR(f.ctx, "name=Widget|category=Tools|quantity=0")
	assert.ErrorIs(t, err, ErrValidation)

	var count int64
	require.NoError(t, f.db.Model(&models.Category{}).Count(&count).Error)
	assert.Zero(t, count)
}
