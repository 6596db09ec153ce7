// Package spool runs the watch-mode service: upstream drops one JSON
// event file per notification into the spool directory, the service
// processes each through build, gate and dispatch, and moves it to
// done/ or failed/. A cron sweep re-processes failed/ so transient
// outbound failures retry without operator action.
//
// Re-processing the same file is harmless: the delivery ledger
// short-circuits anything already published.
package spool
