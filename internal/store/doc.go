// Package store defines the crawl session history model and the repository
// contract implemented by the memory and Postgres backends. Progress sinks
// write to it; the HTTP API reads from it.
package store
