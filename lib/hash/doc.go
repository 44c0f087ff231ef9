// Package hash maps keys to hash paths.
//
// A key is a '/' separated path. Each segment is hashed on its own, so keys
// sharing leading segments share a prefix of their hash path. This is what
// lets the trie index keep a folder and all of its children in one subtree.
//
// The mixing function is fixed. Changing it breaks every stored trie, so it
// must stay stable across platforms and releases.
package hash
