// Package tradeparse turns transaction blocks copied from the marketplace
// web UI into trade events. A block starts with the price line and ends with
// a terminal status line; everything between follows the UI's fixed layout
// (name, type, rarity, season, order-type line, validity date).
package tradeparse

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"siege-market-lab/internal/domain"
	"siege-market-lab/internal/idhash"
)

// Terminal status lines as rendered by the web UI.
const (
	statusCompleted = "Completed"
	statusCanceled  = "Canceled"
	statusExpired   = "Expired"
)

var (
	// A block starts with a line beginning in a digit (the price, possibly
	// with thousands separators) and runs to the next terminal status line.
	blockPattern = regexp.MustCompile(`(?sm)^\d[\d,]*.*?^(?:Completed|Canceled|Expired)$`)

	datePattern = regexp.MustCompile(`\d+`)
)

// ParsedBlock pairs one decoded event with its position in the pasted text.
type ParsedBlock struct {
	Index int
	Event domain.TradeEvent
}

// Parse extracts trade events from pasted marketplace text. Malformed blocks
// are skipped with a log line, never fatal: a paste with one damaged block
// still yields the rest. Duplicate blocks collapse by event ID.
func Parse(raw string, logger *log.Logger) ([]ParsedBlock, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[tradeparse] ", log.LstdFlags)
	}

	blocks := blockPattern.FindAllString(raw, -1)
	if len(blocks) == 0 {
		return nil, fmt.Errorf("tradeparse: no transaction blocks found; expected blocks starting with a price and ending in Completed, Canceled or Expired")
	}

	var (
		parsed []ParsedBlock
		seen   = make(map[string]bool)
	)
	for i, block := range blocks {
		event, err := parseBlock(block)
		if err != nil {
			logger.Printf("skipping block %d: %v", i+1, err)
			continue
		}
		if seen[event.EventID] {
			continue
		}
		seen[event.EventID] = true
		parsed = append(parsed, ParsedBlock{Index: i, Event: event})
	}
	return parsed, nil
}

func parseBlock(block string) (domain.TradeEvent, error) {
	var lines []string
	for _, line := range strings.Split(block, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) < 8 {
		return domain.TradeEvent{}, fmt.Errorf("incomplete block: %d lines", len(lines))
	}

	price, err := strconv.Atoi(strings.ReplaceAll(lines[0], ",", ""))
	if err != nil {
		return domain.TradeEvent{}, fmt.Errorf("price line %q: %w", lines[0], err)
	}
	name := lines[1]

	category, ok := findCategory(lines)
	if !ok {
		return domain.TradeEvent{}, fmt.Errorf("no order-type line in block for %q", name)
	}

	date, err := findValidityDate(lines)
	if err != nil {
		return domain.TradeEvent{}, fmt.Errorf("block for %q: %w", name, err)
	}

	state, err := mapStatus(lines[len(lines)-1])
	if err != nil {
		return domain.TradeEvent{}, fmt.Errorf("block for %q: %w", name, err)
	}

	event := domain.TradeEvent{
		Name:           name,
		Category:       category,
		Price:          &price,
		State:          state,
		LastModifiedAt: date,
	}
	// Pasted blocks carry no item ID; dedup keys on name, price and date.
	event.EventID = idhash.ComputeTradeEventID(event.ItemID, event.Name, event.Category, event.Price, event.LastModifiedAt)
	return event, nil
}

func findCategory(lines []string) (domain.TradeCategory, bool) {
	for _, line := range lines {
		if !strings.Contains(line, "order") {
			continue
		}
		if strings.Contains(line, "Sell") {
			return domain.CategorySell, true
		}
		if strings.Contains(line, "Buy") {
			return domain.CategoryBuy, true
		}
	}
	return "", false
}

// findValidityDate locates the "Valid until" label and parses the date on
// the following line. The UI prints dates with numeric year, month and day
// in that order regardless of locale punctuation.
func findValidityDate(lines []string) (time.Time, error) {
	for i, line := range lines {
		if !strings.Contains(line, "Valid until") {
			continue
		}
		if i+1 >= len(lines) {
			return time.Time{}, fmt.Errorf("validity label without a date line")
		}
		parts := datePattern.FindAllString(lines[i+1], -1)
		if len(parts) < 3 {
			return time.Time{}, fmt.Errorf("unparsable date line %q", lines[i+1])
		}
		year, _ := strconv.Atoi(parts[0])
		month, _ := strconv.Atoi(parts[1])
		day, _ := strconv.Atoi(parts[2])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return time.Time{}, fmt.Errorf("implausible date line %q", lines[i+1])
		}
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("no validity date")
}

func mapStatus(line string) (string, error) {
	switch line {
	case statusCompleted:
		return domain.StateSucceeded, nil
	case statusCanceled:
		return domain.StateCancelled, nil
	case statusExpired:
		return domain.StateExpired, nil
	}
	return "", fmt.Errorf("unknown status line %q", line)
}
