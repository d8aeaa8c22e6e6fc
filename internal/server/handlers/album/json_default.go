//go:build !sonic

package album

import "github.com/goccy/go-json"

var jsonMarshal = json.Marshal
