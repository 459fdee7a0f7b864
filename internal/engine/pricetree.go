package engine

import "bourse/internal/common"

const nilNode int32 = -1

type priceNode struct {
	symbol      string
	price       uint64
	left, right int32
	height      int
}

// PriceIndex is an AVL tree keyed by symbol holding the last price of every
// symbol ever submitted. Nodes live in a slice and link by index; entries are
// never removed so slots are never reused.
type PriceIndex struct {
	nodes []priceNode
	root  int32
}

func NewPriceIndex() *PriceIndex {
	return &PriceIndex{root: nilNode}
}

func (p *PriceIndex) Len() int { return len(p.nodes) }

// Height of the tree, 0 when empty.
func (p *PriceIndex) Height() int { return p.height(p.root) }

// Upsert stores price for symbol. An existing entry is overwritten in place and
// the tree shape is left alone; a new entry is inserted and rebalanced.
func (p *PriceIndex) Upsert(symbol string, price uint64) {
	p.root = p.insert(p.root, symbol, price)
}

// Lookup returns the stored price of symbol.
func (p *PriceIndex) Lookup(symbol string) (uint64, bool) {
	n := p.root
	for n != nilNode {
		node := &p.nodes[n]
		switch {
		case symbol < node.symbol:
			n = node.left
		case symbol > node.symbol:
			n = node.right
		default:
			return node.price, true
		}
	}
	return 0, false
}

// InOrder returns every entry in ascending symbol order.
func (p *PriceIndex) InOrder() []common.PriceEntry {
	entries := make([]common.PriceEntry, 0, len(p.nodes))
	p.walk(p.root, func(node *priceNode) {
		entries = append(entries, common.PriceEntry{Symbol: node.symbol, Price: node.price})
	})
	return entries
}

func (p *PriceIndex) walk(n int32, visit func(*priceNode)) {
	if n == nilNode {
		return
	}
	p.walk(p.nodes[n].left, visit)
	visit(&p.nodes[n])
	p.walk(p.nodes[n].right, visit)
}

func (p *PriceIndex) insert(n int32, symbol string, price uint64) int32 {
	if n == nilNode {
		p.nodes = append(p.nodes, priceNode{
			symbol: symbol,
			price:  price,
			left:   nilNode,
			right:  nilNode,
			height: 1,
		})
		return int32(len(p.nodes) - 1)
	}

	// Assign through a temporary, insert may grow p.nodes.
	switch {
	case symbol < p.nodes[n].symbol:
		child := p.insert(p.nodes[n].left, symbol, price)
		p.nodes[n].left = child
	case symbol > p.nodes[n].symbol:
		child := p.insert(p.nodes[n].right, symbol, price)
		p.nodes[n].right = child
	default:
		p.nodes[n].price = price
		return n
	}

	p.updateHeight(n)
	balance := p.balance(n)

	// Left Left
	if balance > 1 && symbol < p.nodes[p.nodes[n].left].symbol {
		return p.rotateRight(n)
	}
	// Right Right
	if balance < -1 && symbol > p.nodes[p.nodes[n].right].symbol {
		return p.rotateLeft(n)
	}
	// Left Right
	if balance > 1 && symbol > p.nodes[p.nodes[n].left].symbol {
		p.nodes[n].left = p.rotateLeft(p.nodes[n].left)
		return p.rotateRight(n)
	}
	// Right Left
	if balance < -1 && symbol < p.nodes[p.nodes[n].right].symbol {
		p.nodes[n].right = p.rotateRight(p.nodes[n].right)
		return p.rotateLeft(n)
	}
	return n
}

func (p *PriceIndex) rotateRight(y int32) int32 {
	x := p.nodes[y].left
	t2 := p.nodes[x].right

	p.nodes[x].right = y
	p.nodes[y].left = t2

	p.updateHeight(y)
	p.updateHeight(x)
	return x
}

func (p *PriceIndex) rotateLeft(x int32) int32 {
	y := p.nodes[x].right
	t2 := p.nodes[y].left

	p.nodes[y].left = x
	p.nodes[x].right = t2

	p.updateHeight(x)
	p.updateHeight(y)
	return y
}

func (p *PriceIndex) height(n int32) int {
	if n == nilNode {
		return 0
	}
	return p.nodes[n].height
}

func (p *PriceIndex) balance(n int32) int {
	if n == nilNode {
		return 0
	}
	return p.height(p.nodes[n].left) - p.height(p.nodes[n].right)
}

func (p *PriceIndex) updateHeight(n int32) {
	p.nodes[n].height = max(p.height(p.nodes[n].left), p.height(p.nodes[n].right)) + 1
}
