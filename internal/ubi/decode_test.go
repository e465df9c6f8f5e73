package ubi

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecodeMarketableItems_DropsBrokenNodesKeepsNodeCount(t *testing.T) {
	payload := json.RawMessage(`{"game": {"marketableItems": {"nodes": [
		{
			"item": {"itemId": "good", "name": "Good", "type": "WeaponSkin", "assetUrl": ""},
			"marketData": {
				"sellStats": [{"lowestPrice": 120, "activeCount": 4}],
				"buyStats": [{"highestPrice": 100, "activeCount": 7}]
			}
		},
		{"item": {"itemId": "delisted", "name": "Delisted", "type": "WeaponSkin", "assetUrl": ""}, "marketData": null},
		{"item": null, "marketData": {"sellStats": [], "buyStats": []}},
		{"item": {"itemId": "", "name": "Nameless", "type": "WeaponSkin", "assetUrl": ""}, "marketData": {"sellStats": [], "buyStats": []}}
	], "totalCount": 40}}}`)

	page, err := DecodeMarketableItems(payload)
	if err != nil {
		t.Fatalf("DecodeMarketableItems: %v", err)
	}

	if page.NodeCount != 4 {
		t.Errorf("expected NodeCount 4, got %d", page.NodeCount)
	}
	if page.TotalCount != 40 {
		t.Errorf("expected TotalCount 40, got %d", page.TotalCount)
	}
	if len(page.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(page.Candidates))
	}

	cand := page.Candidates[0]
	if cand.Item.ItemID != "good" {
		t.Errorf("expected candidate good, got %s", cand.Item.ItemID)
	}
	if cand.Quote.LowestSellPrice == nil || *cand.Quote.LowestSellPrice != 120 {
		t.Errorf("unexpected lowest sell price: %v", cand.Quote.LowestSellPrice)
	}
	if cand.Quote.BuyOrderCount == nil || *cand.Quote.BuyOrderCount != 7 {
		t.Errorf("unexpected buy order count: %v", cand.Quote.BuyOrderCount)
	}
}

func TestDecodeItemDetails_MissingItemIsNotAnError(t *testing.T) {
	item, quote, err := DecodeItemDetails(json.RawMessage(`{"game": {"marketableItem": null}}`))
	if err != nil {
		t.Fatalf("DecodeItemDetails: %v", err)
	}
	if item.ItemID != "" {
		t.Errorf("expected zero item, got %+v", item)
	}
	if quote.LowestSellPrice != nil {
		t.Errorf("expected zero quote, got %+v", quote)
	}
}

func TestDecodePriceHistory_NullPricesSurviveBadDatesDropped(t *testing.T) {
	payload := json.RawMessage(`{"game": {"marketableItem": {"priceHistory": [
		{"date": "2025-06-01", "averagePrice": 55.5, "highestPrice": 80, "itemsCount": 12},
		{"date": "2025-06-02", "averagePrice": null, "highestPrice": null, "itemsCount": 0},
		{"date": "junk", "averagePrice": 99, "highestPrice": 99, "itemsCount": 9}
	]}}}`)

	points, err := DecodePriceHistory(payload)
	if err != nil {
		t.Fatalf("DecodePriceHistory: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}

	if !points[0].Date.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected first date: %v", points[0].Date)
	}
	if points[0].AveragePrice == nil || *points[0].AveragePrice != 55.5 {
		t.Errorf("unexpected average price: %v", points[0].AveragePrice)
	}
	if points[1].AveragePrice != nil {
		t.Errorf("expected null average price preserved as nil, got %v", *points[1].AveragePrice)
	}
	if points[1].ItemsCount == nil || *points[1].ItemsCount != 0 {
		t.Errorf("unexpected items count: %v", points[1].ItemsCount)
	}
}

func TestDecodeTransactions_DropsMalformedTradesKeepsNodeCount(t *testing.T) {
	payload := json.RawMessage(`{"game": {"viewer": {"meta": {"trades": {"nodes": [
		{
			"tradeId": "t1",
			"state": "Succeeded",
			"category": "Buy",
			"lastModifiedAt": "2025-06-01T10:00:00Z",
			"tradeItems": [{"item": {"itemId": "a", "name": "Item A", "type": "WeaponSkin", "assetUrl": ""}}],
			"payment": {"price": 140}
		},
		{
			"tradeId": "t2",
			"state": "Succeeded",
			"category": "Sell",
			"lastModifiedAt": "yesterday-ish",
			"tradeItems": [{"item": {"itemId": "b", "name": "Item B", "type": "WeaponSkin", "assetUrl": ""}}],
			"payment": {"price": 90}
		},
		{
			"tradeId": "t3",
			"state": "Succeeded",
			"category": "Sell",
			"lastModifiedAt": "2025-06-03T10:00:00Z",
			"tradeItems": []
		}
	], "totalCount": 3}}}}}`)

	page, err := DecodeTransactions(payload)
	if err != nil {
		t.Fatalf("DecodeTransactions: %v", err)
	}

	if page.NodeCount != 3 {
		t.Errorf("expected NodeCount 3, got %d", page.NodeCount)
	}
	if len(page.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(page.Events))
	}

	event := page.Events[0]
	if event.ItemID != "a" {
		t.Errorf("expected item a, got %s", event.ItemID)
	}
	if event.Price == nil || *event.Price != 140 {
		t.Errorf("unexpected price: %v", event.Price)
	}
	if !event.LastModifiedAt.Equal(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected timestamp: %v", event.LastModifiedAt)
	}
}
