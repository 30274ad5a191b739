// Package config loads inputwire.json.
//
// Every field has a default, so an empty file (or no file at all, through
// LoadOrDefault) yields a working local setup:
//
//	{
//	  "window":  {"size": 8},
//	  "server":  {"addr": "localhost:7777", "path": "/input", "readTimeout": "10s", "maxPacket": 4096},
//	  "metrics": {"enabled": true, "namespace": "inputwire", "path": "/metrics"},
//	  "tracing": {"enabled": false, "endpoint": "", "insecure": false},
//	  "capture": {"enabled": false, "bucket": "", "region": "", "prefix": "captures/", "segmentPackets": 1024},
//	  "log":     {"level": "info", "format": "text"}
//	}
//
// Validation errors are coded errors from internal/errors.
package config
