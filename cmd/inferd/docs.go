package main

// General API documentation for swaggo. Run `swag init -g cmd/inferd/docs.go` to generate docs.
//
// @title           inferd API
// @version         1.0
// @description     HTTP API for chained LLM providers with a memory-budgeted local model scheduler.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
