// Package config loads urlstore.json, the configuration of the urlstore
// command.
//
// Values are resolved in three layers: defaults, the file, then URLSTORE_*
// environment variables. A missing file is not an error for LoadOrDefault.
//
// # Configuration File Structure
//
//	{
//	  "addr": "localhost:7070",
//	  "initialURL": "/products?page=1",
//	  "log": {
//	    "level": "debug",
//	    "format": "json",
//	    "settle": "250ms"
//	  },
//	  "metrics": {
//	    "namespace": "urlstore"
//	  },
//	  "query": {
//	    "noSort": false,
//	    "pushState": false
//	  },
//	  "host": {
//	    "allowedOrigins": ["http://localhost:5173"]
//	  }
//	}
//
// # Environment
//
//	URLSTORE_ADDR                  addr
//	URLSTORE_INITIAL_URL           initialURL
//	URLSTORE_LOG_LEVEL             log.level
//	URLSTORE_LOG_FORMAT            log.format
//	URLSTORE_LOG_SETTLE            log.settle
//	URLSTORE_METRICS_DISABLED      metrics.disabled
//	URLSTORE_METRICS_NAMESPACE     metrics.namespace
//	URLSTORE_QUERY_NO_SORT         query.noSort
//	URLSTORE_QUERY_PUSH_STATE      query.pushState
//	URLSTORE_HOST_ALLOWED_ORIGINS  host.allowedOrigins, comma separated
//
// # Usage
//
//	cfg, err := config.LoadOrDefault(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config
