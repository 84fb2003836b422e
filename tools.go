//go:build tools
// +build tools

// Package tools pins the code generators used by go generate (mockgen),
// so go.mod keeps them and a fresh checkout can regenerate mocks/.
package adoption_chat

import (
	_ "go.uber.org/mock/mockgen"
)
