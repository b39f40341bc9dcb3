// Package timeentry records billable hours on a Monday-based weekly grid.
//
// Entries occupy hourly slots from 06:00 to 22:00. Saving an entry always
// resets it to pending review; a custom rate of zero or less is stored as no
// rate at all.
package timeentry
