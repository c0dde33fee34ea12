// Package joinery provides generational identities, sparse component storage
// with bitset joins, and a resource container with a parallel scheduler on top.
package joinery
