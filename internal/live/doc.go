// Package live aggregates push-channel quote ticks into 1-minute bars.
//
// The aggregator owns all in-progress bar state, one open bar per
// symbol. Bars are flushed on minute rollover and on shutdown; an open
// bar that never sees a rollover is only saved by FlushAll.
package live
