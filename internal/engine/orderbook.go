package engine

import (
	"bourse/internal/common"

	"github.com/tidwall/btree"
)

// BucketCount is the number of symbol buckets on each side of the book.
const BucketCount = 26

// Hash maps a symbol onto its bucket: the sum of its character codes modulo
// BucketCount. Distinct symbols may share a bucket.
func Hash(symbol string) int {
	sum := 0
	for i := 0; i < len(symbol); i++ {
		sum += int(symbol[i])
	}
	return sum % BucketCount
}

// Bucket holds resting orders sorted by descending price, oldest first among
// equal prices. Orders of different symbols sharing a hash are interleaved.
type Bucket = btree.BTreeG[*common.Order]

func bucketLess(a, b *common.Order) bool {
	if a.LimitPrice == b.LimitPrice {
		return a.Seq < b.Seq
	}
	return a.LimitPrice > b.LimitPrice
}

// OrderBook is one side of the market, partitioned into symbol buckets.
type OrderBook struct {
	side    common.Side
	buckets [BucketCount]*Bucket
	nOrders int
}

func NewOrderBook(side common.Side) *OrderBook {
	book := &OrderBook{side: side}
	for i := range book.buckets {
		// The engine is single writer, callers serialise access.
		book.buckets[i] = btree.NewBTreeGOptions(bucketLess, btree.Options{NoLocks: true})
	}
	return book
}

func (book *OrderBook) Side() common.Side { return book.side }

// Len returns the number of resting orders across all buckets.
func (book *OrderBook) Len() int { return book.nOrders }

// Insert rests an order in the bucket of its symbol. It is placed after every
// order priced at or above it and before the first strictly lower price.
func (book *OrderBook) Insert(order *common.Order) {
	book.buckets[Hash(order.Symbol)].Set(order)
	book.nOrders++
}

// remove drops a fully filled order from its bucket.
func (book *OrderBook) remove(order *common.Order) {
	if _, ok := book.buckets[Hash(order.Symbol)].Delete(order); ok {
		book.nOrders--
	}
}

func (book *OrderBook) bucketFor(symbol string) *Bucket {
	return book.buckets[Hash(symbol)]
}

// Bucket returns copies of the orders resting in the bucket at index, head first.
func (book *OrderBook) Bucket(index int) []common.Order {
	if index < 0 || index >= BucketCount {
		return nil
	}
	var orders []common.Order
	book.buckets[index].Scan(func(order *common.Order) bool {
		orders = append(orders, *order)
		return true
	})
	return orders
}

// Orders returns copies of every resting order, bucket by bucket. There is no
// global re-sort across buckets.
func (book *OrderBook) Orders() []common.Order {
	orders := make([]common.Order, 0, book.nOrders)
	for i := range book.buckets {
		book.buckets[i].Scan(func(order *common.Order) bool {
			orders = append(orders, *order)
			return true
		})
	}
	return orders
}
