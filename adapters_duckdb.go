//go:build duckdb || all_adapters

package main

import _ "github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource/duckdb" // Register duckdb adapter
