//go:build bigquery || all_adapters

package main

import _ "github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource/bigquery" // Register bigquery adapter
