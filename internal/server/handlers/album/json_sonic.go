//go:build sonic

package album

import "github.com/bytedance/sonic"

var jsonMarshal = sonic.Marshal
