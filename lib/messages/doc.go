// Package messages implements the wire format of log records.
//
// Records use the protobuf wire format, written and read field by field with
// protowire. Every log starts with a Header at sequence 0. All further
// records are entries; an InflatedEntry additionally carries the feed table
// of its log, which maps the log's local feed indices to writer keys.
package messages
