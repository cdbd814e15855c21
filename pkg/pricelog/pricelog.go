// Package pricelog journals per-market price ticks in Pebble. Every
// executed trade appends one tick; the API serves the recent window as the
// market's price history.
package pricelog

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tick is one observed price point, taken after a trade commits.
type Tick struct {
	MarketID uuid.UUID       `json:"marketId"`
	PriceYes decimal.Decimal `json:"priceYes"`
	PriceNo  decimal.Decimal `json:"priceNo"`
	Volume   decimal.Decimal `json:"volume"`
	Ts       time.Time       `json:"ts"`
}

type Journal struct {
	db *pebble.DB
}

func Open(path string) (*Journal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pricelog: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// keys: t:<16-byte-market>:<8-byte-unixnano-be>, so a market's ticks sit in
// one contiguous, time-ordered range.
func tickPrefix(marketID uuid.UUID) []byte {
	key := append([]byte("t:"), marketID[:]...)
	return append(key, ':')
}

func tickKey(marketID uuid.UUID, ts time.Time) []byte {
	key := tickPrefix(marketID)
	var ns [8]byte
	binary.BigEndian.PutUint64(ns[:], uint64(ts.UnixNano()))
	return append(key, ns[:]...)
}

func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// Append journals one tick. Ticks are advisory history, so a lost tail on
// crash is acceptable and writes skip fsync.
func (j *Journal) Append(tick Tick) error {
	val, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("marshal tick: %w", err)
	}
	if err := j.db.Set(tickKey(tick.MarketID, tick.Ts), val, pebble.NoSync); err != nil {
		return fmt.Errorf("append tick: %w", err)
	}
	return nil
}

// Recent returns up to limit ticks for a market, newest first.
func (j *Journal) Recent(marketID uuid.UUID, limit int) ([]Tick, error) {
	prefix := tickPrefix(marketID)
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("pricelog iter: %w", err)
	}
	defer iter.Close()

	ticks := make([]Tick, 0, limit)
	for iter.Last(); iter.Valid() && (limit <= 0 || len(ticks) < limit); iter.Prev() {
		var tick Tick
		if err := json.Unmarshal(iter.Value(), &tick); err != nil {
			continue
		}
		ticks = append(ticks, tick)
	}
	return ticks, nil
}
