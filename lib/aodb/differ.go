package aodb

import (
	"context"
)

// Diff is one key whose current nodes differ between two checkouts. A nil
// side means the key is absent there.
type Diff struct {
	Key   string
	Left  []*Node
	Right []*Node
}

// Differ enumerates the keys below a prefix whose current nodes differ
// between two checkouts. Keys of the left side come first, in iteration
// order, followed by the keys only the right side holds.
type Differ struct {
	right *Checkout
	opts  DiffOptions

	leftIt, rightIt *Iterator
	seen            map[string]bool
}

// Diff compares the checkout with other below prefix. A nil other is the
// empty database.
func (c *Checkout) Diff(other *Checkout, prefix string, opts *DiffOptions) *Differ {
	d := &Differ{
		right: other,
		seen:  make(map[string]bool),
	}
	if opts != nil {
		d.opts = *opts
	}

	itOpts := IteratorOptions{Deletes: d.opts.Deletes}
	d.leftIt = newIterator(c.db, c.heads, prefix, itOpts)
	if other != nil {
		d.rightIt = newIterator(other.db, other.heads, prefix, itOpts)
	}
	return d
}

// Next returns the next differing key, or nil once both sides were visited
func (d *Differ) Next(ctx context.Context) (*Diff, error) {
	for d.leftIt != nil {
		left, err := d.leftIt.Next(ctx)
		if err != nil {
			return nil, err
		}
		if left == nil {
			d.leftIt = nil
			break
		}

		key := left[0].Key
		d.seen[key] = true

		var right []*Node
		if d.right != nil {
			opts := &GetOptions{IncludeDeleted: d.opts.Deletes}
			if right, err = d.right.db.get(ctx, d.right.heads, key, opts, false); err != nil {
				return nil, err
			}
		}
		if !sameNodes(left, right) {
			return &Diff{Key: key, Left: left, Right: right}, nil
		}
	}

	for d.rightIt != nil {
		right, err := d.rightIt.Next(ctx)
		if err != nil {
			return nil, err
		}
		if right == nil {
			d.rightIt = nil
			break
		}
		if key := right[0].Key; !d.seen[key] {
			return &Diff{Key: key, Right: right}, nil
		}
	}
	return nil, nil
}

// List drains the differ
func (d *Differ) List(ctx context.Context) ([]*Diff, error) {
	var all []*Diff
	for {
		diff, err := d.Next(ctx)
		if err != nil {
			return nil, err
		}
		if diff == nil {
			return all, nil
		}
		all = append(all, diff)
	}
}
