// Package common provides the data structures shared by the RPC client,
// server and transports.
//
// Key Components:
//
//   - Message: the single structure of all requests and responses. Which
//     fields are used depends on the MessageType. Errors travel as message
//     and store.RetCode and are rebuilt as *store.Error by Message.Error.
//
//   - MessageType: all supported operations, grouped into key-value
//     operations, replication operations and lock operations.
//
//   - ServerConfig / ClientConfig: configuration of servers (databases,
//     storage, peers, transport) and clients (endpoints, retries, timeouts).
//
//   - Logger: a formatter for the dragonboat logger facade used by every
//     package of the module.
package common
