// Package daemon runs configured shell-command tasks on a minute ticker.
//
// Every tick evaluates all tasks with the same instant. Load-balanced tasks
// go through a shared lease.Ledger, so a fleet of daemons pointed at one
// store runs each slot once.
package daemon
