//go:build postgres || all_adapters

package main

import _ "github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource/postgres" // Register postgres adapter
