package country

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/readiness-cli/internal/model"
)

func testCountries() []model.Country {
	return []model.Country{
		{Code: "CI", ISO3: "CIV", Name: "Côte d'Ivoire", Aliases: []string{"Ivory Coast"}, Region: model.RegionWestern},
		{Code: "KE", ISO3: "KEN", Name: "Kenya", Region: model.RegionEastern},
		{Code: "CD", ISO3: "COD", Name: "Democratic Republic of the Congo", Aliases: []string{"DRC"}, Region: model.RegionCentral},
		{Code: "CG", ISO3: "COG", Name: "Congo", Region: model.RegionCentral},
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Côte d’Ivoire", "cotedivoire"},
		{"COTE D'IVOIRE", "cotedivoire"},
		{"  ke ", "ke"},
		{"São Tomé and Príncipe", "saotomeandprincipe"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.in))
		})
	}
}

func TestResolve(t *testing.T) {
	r := NewResolver(testCountries())

	tests := []struct {
		id   string
		want string
		ok   bool
	}{
		{"CI", "CI", true},
		{"civ", "CI", true},
		{"Cote d'Ivoire", "CI", true},
		{"ivory coast", "CI", true},
		{"Kenya", "KE", true},
		{"DRC", "CD", true},
		{"Congo", "CG", true},
		{"Atlantis", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			c, ok := r.Resolve(tt.id)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, c.Code)
			}
		})
	}
}

func TestResolver_GetAndCodes(t *testing.T) {
	r := NewResolver(testCountries())

	c, ok := r.Get("KE")
	require.True(t, ok)
	assert.Equal(t, "Kenya", c.Name)

	_, ok = r.Get("ke")
	assert.False(t, ok, "Get is exact on canonical codes")

	assert.Equal(t, []string{"CI", "KE", "CD", "CG"}, r.Codes())
	assert.Equal(t, 4, r.Len())
}
