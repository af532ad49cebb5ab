package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByPackageID(t *testing.T) {
	tests := []struct {
		name      string
		packageID int
		wantTier  string
		wantErr   bool
	}{
		{"pro", 2, TierPro, false},
		{"enterprise", 3, TierEnterprise, false},
		{"free has no product", 1, "", true},
		{"zero", 0, "", true},
		{"negative", -1, "", true},
		{"unknown", 42, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ByPackageID(tt.packageID)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrNoProduct)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTier, p.Tier)
			assert.NotEmpty(t, p.PriceID)
			assert.Equal(t, "subscription", p.Mode)
		})
	}
}

func TestByTier(t *testing.T) {
	p, ok := ByTier(TierPro)
	require.True(t, ok)
	assert.Equal(t, "Pro", p.DisplayName)

	_, ok = ByTier(TierFree)
	assert.False(t, ok)

	_, ok = ByTier("platinum")
	assert.False(t, ok)
}

func TestByPriceID(t *testing.T) {
	pro, _ := ByTier(TierPro)

	p, ok := ByPriceID(pro.PriceID)
	require.True(t, ok)
	assert.Equal(t, TierPro, p.Tier)

	_, ok = ByPriceID("price_unknown")
	assert.False(t, ok)
}

func TestPackageID(t *testing.T) {
	assert.Equal(t, PackagePro, PackageID(TierPro))
	assert.Equal(t, PackageEnterprise, PackageID(TierEnterprise))
	assert.Equal(t, PackageFree, PackageID(TierFree))
	assert.Equal(t, PackageFree, PackageID("platinum"))
}
