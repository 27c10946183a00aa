//go:build redshift || all_adapters

package main

import _ "github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource/redshift" // Register redshift adapter
