// Package contracts resolves instrument symbols to platform contract IDs
// and computes historical contract-month chains across rollovers.
package contracts
