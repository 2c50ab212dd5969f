//go:build stdpar_gpu

package atomics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystemBackendSelected(t *testing.T) {
	assert.Equal(t, "stdpar", Backend)
	assert.Equal(t, ScopeSystem, ActiveScope)
	assert.Equal(t, "system", ActiveScope.String())
}
