// Package web holds the static UI shell served at "/".
package web

import _ "embed"

//go:embed index.html
var Index []byte
