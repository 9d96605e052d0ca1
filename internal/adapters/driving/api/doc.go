// Package api provides the JSON HTTP adapter for hybridsearch.
//
// Routes:
//
//	POST /ingest   start a background ingestion run (202, or 409 while one is running)
//	POST /query    run a hybrid query and return the hits
//	GET  /status   describe the live index generation
//	GET  /healthz  liveness probe
//
// An MCP handler can be mounted on the same listener with WithMCPHandler.
package api
