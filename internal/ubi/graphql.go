// Package ubi implements the batched GraphQL transport for the Ubisoft
// marketplace API. One HTTP POST carries an ordered array of operations and
// returns a same-length, positionally-paired array of responses.
package ubi

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed queries/*.graphql
var queryFS embed.FS

// Operation names, matching the embedded query documents.
const (
	OpMarketableItems     = "GetMarketableItems"
	OpItemDetails         = "GetItemDetails"
	OpItemPriceHistory    = "GetItemPriceHistory"
	OpTransactionsHistory = "GetTransactionsHistory"
)

// Request is a single GraphQL operation within a batch.
type Request struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

// Response is one element of a batch response. Data and Errors are
// independent: a per-item failure arrives as a 200-level response whose
// Errors field is populated.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// GraphQLError is a single error reported for one operation.
type GraphQLError struct {
	Message string `json:"message"`
}

// Err returns the combined error for this response, or nil when the
// operation succeeded.
func (r Response) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return fmt.Errorf("graphql: %s", strings.Join(msgs, "; "))
}

// loadQuery reads an embedded GraphQL document by operation name.
func loadQuery(op string) string {
	data, err := queryFS.ReadFile("queries/" + op + ".graphql")
	if err != nil {
		// Embedded documents are part of the build; a missing one is a
		// programming error, not a runtime condition.
		panic(fmt.Sprintf("ubi: missing embedded query %s: %v", op, err))
	}
	return string(data)
}

// NewMarketableItemsRequest builds one page of the catalog scan, ordered by
// most recent sale.
func NewMarketableItemsRequest(spaceID string, limit, offset int) Request {
	return Request{
		OperationName: OpMarketableItems,
		Query:         loadQuery(OpMarketableItems),
		Variables: map[string]any{
			"spaceId": spaceID,
			"limit":   limit,
			"offset":  offset,
			"sortBy": map[string]any{
				"field":     "LAST_TRANSACTION_PRICE",
				"direction": "DESC",
			},
		},
	}
}

// NewItemDetailsRequest builds a current-quote lookup for one item.
func NewItemDetailsRequest(spaceID, itemID string) Request {
	return Request{
		OperationName: OpItemDetails,
		Query:         loadQuery(OpItemDetails),
		Variables: map[string]any{
			"spaceId": spaceID,
			"itemId":  itemID,
		},
	}
}

// NewItemPriceHistoryRequest builds a daily price-history lookup for one item.
func NewItemPriceHistoryRequest(spaceID, itemID string) Request {
	return Request{
		OperationName: OpItemPriceHistory,
		Query:         loadQuery(OpItemPriceHistory),
		Variables: map[string]any{
			"spaceId": spaceID,
			"itemId":  itemID,
		},
	}
}

// NewTransactionsRequest builds one page of the operator's trade log.
func NewTransactionsRequest(spaceID string, limit, offset int) Request {
	return Request{
		OperationName: OpTransactionsHistory,
		Query:         loadQuery(OpTransactionsHistory),
		Variables: map[string]any{
			"spaceId": spaceID,
			"limit":   limit,
			"offset":  offset,
		},
	}
}
