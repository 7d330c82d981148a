// Command stockwatcher checks a retailer for in-stock product variants and
// publishes a notification when any are found. "check" runs once and exits;
// "serve" exposes the check behind an HTTP trigger for a scheduler.
package main
