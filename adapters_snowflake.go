//go:build snowflake || all_adapters

package main

import _ "github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource/snowflake" // Register snowflake adapter
