// Package runlog provides the per-day structured run log.
//
// A run log is a text file named after the calendar day (YYYY-MM-DD.txt)
// inside the configured directory. It is created when the run starts, and
// every later run on the same day appends to it. Each event is one
// timestamped line carrying a subject (usually "<code>_<name>"), a category
// and a free-form message:
//
//	time=2024-06-02T15:04:05.000+08:00 subject=2330_台積電 category=redirect msg="fetch listed 2330: redirect 302"
package runlog
