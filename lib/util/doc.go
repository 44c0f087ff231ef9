// Package util provides small helpers shared by the database, the server
// and the command line tools.
//
// The package contains:
//   - mapheap: a priority queue with key based access, the ready queue of
//     the history iterator
//   - statistics: summary statistics and a SizeHistogram for value sizes
//   - functions: stable string hashing for shard ids
package util
