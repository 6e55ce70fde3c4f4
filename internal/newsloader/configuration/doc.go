/*
Package configuration defines the input configuration for newsloader.

newsloader fills an existing news schema (sources, authors, categories, tags, news and news_tags) with
synthetic rows.  Reference tables are loaded first; news rows and their tag links are then loaded in
windows of news.batchSize rows, each window committed in its own transaction.

# Example YAML Configuration

	postgres:
	  connection:
	    host: localhost
	    port: "5432"
	    user: postgres
	    password: psw
	    dbname: news
	    sslmode: disable
	seed: 42
	workers: 1
	windowTimeout: 2m
	referenceTimeout: 2m
	reference:
	  sources: 800
	  authors: 80000
	  tags: 10000
	  categories: [Politics, Economy, Technology, Sports, Culture, Science]
	news:
	  total: 3200000
	  batchSize: 10000
	  titleWords: 8
	  contentMaxChars: 500
	  publishedWindow: 87600h
	tags:
	  minPerNews: 2
	  maxPerNews: 5
	retry:
	  attempts: 5
	  initialBackoff: 1s
	  maxBackoff: 60s

Every key can be overridden by an environment variable prefixed with NEWSLOADER_, e.g.
NEWSLOADER_NEWS_TOTAL=1000.

# Validation

LoaderConfiguration.Validate() checks cross-field constraints the struct tags can't express:

  - a postgres connection is required unless inMemory is set
  - category names are non-empty and distinct
  - maxPerNews is not below minPerNews
  - maxBackoff is not below initialBackoff
*/
package configuration
