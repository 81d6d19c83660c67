package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTenantConfigState(t *testing.T) {
	var unresolved *TenantConfig
	assert.Equal(t, LinkStateUnlinked, unresolved.State())
	assert.Equal(t, LinkStateUnlinked, (&TenantConfig{}).State())
	assert.Equal(t, LinkStateLinked, (&TenantConfig{TenantID: "t-1"}).State())
}
