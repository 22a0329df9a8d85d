// Package controlplane is the worker's client for the account service: the
// authority that tracks every workspace's mode and version and hands out
// pending work.
//
// The Client interface covers the four calls the worker makes — handshake,
// pending-workspace pickup, workspace event updates, and transactor endpoint
// lookup. HTTPClient is the production implementation; tests substitute a
// recorded fake.
package controlplane
