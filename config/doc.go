// Package config loads the optional YAML configuration file.
//
// Every setting in the file is optional. Values present in the file override
// built-in defaults, and command-line flags that were set explicitly override
// the file. Sections map onto the component configs:
//
//	endpoint:
//	  addresses: [https://search.internal:9200]
//	  username: elastic
//	ingest:
//	  target: events
//	  id_field: id
//	  max_batch_count: 5000
//	  initial_backoff: 1s
//	journal:
//	  path: ./bulkload.db
//	loadtest:
//	  users: 20
//	  duration: 5m
package config
