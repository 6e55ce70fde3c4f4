// Package main provides newsloader, a bulk loader that fills a news schema in PostgreSQL with synthetic
// sources, authors, categories, tags, news and news_tags rows.
//
// The load runs in windows: every window inserts a batch of news rows and their tag links in one
// transaction, so an interrupted load leaves only whole windows behind.
package main
