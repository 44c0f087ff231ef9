// Package util
//
// This file provides a priority queue with key based access.
//
// The queue combines a binary heap with a hash map. The heap yields the
// item with the lowest priority, the map allows checking and removing items
// by key. The history iterator uses it as its ready queue: keys are writer
// indices, and a writer is queued while its next entry may be emitted.
//
//   - O(log n) for Push, Pop and priority updates
//   - O(1) for key lookups
//
// The queue is not thread-safe.
//
// Example usage:
//
//	ready := NewMapHeap()
//	ready.AddItem(2, 2)
//	ready.AddItem(0, 0)
//
//	key, _, ok := ready.PopItem() // key == 0
package util

import "container/heap"

// Item is an entry of a MapHeap
type Item struct {
	Key      uint64 // Unique identifier for the item
	Priority uint64 // Lower priorities are popped first
	index    int    // Index in the heap, maintained by heap package
}

// MapHeap is a min-heap of items that can also be accessed by key
type MapHeap struct {
	items    []*Item          // The actual heap slice
	itemsMap map[uint64]*Item // Map for O(1) access by key
}

// NewMapHeap creates an empty queue
func NewMapHeap() *MapHeap {
	return &MapHeap{
		items:    make([]*Item, 0),
		itemsMap: make(map[uint64]*Item),
	}
}

// Len returns the number of items in the queue (part of heap.Interface)
func (mh *MapHeap) Len() int { return len(mh.items) }

// Less compares items by priority (part of heap.Interface)
func (mh *MapHeap) Less(i, j int) bool {
	return mh.items[i].Priority < mh.items[j].Priority
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (mh *MapHeap) Swap(i, j int) {
	mh.items[i], mh.items[j] = mh.items[j], mh.items[i]
	mh.items[i].index = i
	mh.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface)
func (mh *MapHeap) Push(x interface{}) {
	item := x.(*Item)
	item.index = len(mh.items)
	mh.items = append(mh.items, item)
	mh.itemsMap[item.Key] = item
}

// Pop removes and returns the last item (part of heap.Interface)
func (mh *MapHeap) Pop() interface{} {
	old := mh.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // Avoid memory leak
	item.index = -1 // For safety
	mh.items = old[:n-1]
	delete(mh.itemsMap, item.Key)
	return item
}

// AddItem adds a new item or updates the priority of an existing one
func (mh *MapHeap) AddItem(key, priority uint64) {
	if item, exists := mh.itemsMap[key]; exists {
		item.Priority = priority
		heap.Fix(mh, item.index)
		return
	}
	heap.Push(mh, &Item{Key: key, Priority: priority})
}

// PopItem removes the item with the lowest priority
func (mh *MapHeap) PopItem() (key, priority uint64, ok bool) {
	if len(mh.items) == 0 {
		return 0, 0, false
	}
	item := heap.Pop(mh).(*Item)
	return item.Key, item.Priority, true
}

// Contains checks if a key exists in the queue
func (mh *MapHeap) Contains(key uint64) bool {
	_, exists := mh.itemsMap[key]
	return exists
}
