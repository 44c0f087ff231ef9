// Package trie implements the per entry hash trie index and its binary
// codec.
//
// Every entry carries a trie describing where older entries live relative
// to its own hash path. Trie[depth][value] lists pointers to entries whose
// path differs from the owner's path first at depth, with the given value.
// The last value of a terminated path (hash.Terminal) collects entries
// whose full path is equal to the owner's path, i.e. colliding keys, and
// keys ending at a folder.
//
// Pointers are stored with feed indices local to the writing log. Encode
// and Decode translate them through a feed map so that every replica can
// read them in its own index space.
package trie
