package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"siege-market-lab/internal/domain"
)

// ComputeTradeEventID computes a deterministic event_id using SHA256.
// Formula: SHA256(item_id|name|category|price|last_modified_at_unix_ms)
// Returns hex-encoded hash (64 characters).
//
// Imported trade logs carry no native identifier, so the same event parsed
// twice must hash to the same ID for upserts to deduplicate it.
func ComputeTradeEventID(
	itemID string,
	name string,
	category domain.TradeCategory,
	price *int,
	lastModifiedAt time.Time,
) string {
	priceStr := ""
	if price != nil {
		priceStr = fmt.Sprintf("%d", *price)
	}

	data := fmt.Sprintf("%s|%s|%s|%s|%d",
		itemID,
		name,
		string(category),
		priceStr,
		lastModifiedAt.UTC().UnixMilli(),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
