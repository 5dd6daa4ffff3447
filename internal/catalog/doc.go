// Package catalog defines the material record model, the merge rules applied
// on upsert, the crawl checkpoint, and the contracts shared by the crawl
// engine, record stores, checkpoint stores, and page renderers.
package catalog
