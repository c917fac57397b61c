package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfile_EffectiveDefaults(t *testing.T) {
	var nilProfile *Profile
	assert.Equal(t, DefaultTimezone, nilProfile.EffectiveTimezone())
	assert.Equal(t, DefaultWorkingDays, nilProfile.EffectiveWorkingDays())
	assert.Equal(t, DefaultLocale, nilProfile.EffectiveLocale())

	p := &Profile{Timezone: "America/Sao_Paulo", WorkingDays: []string{"saturday"}, Locale: "en"}
	assert.Equal(t, "America/Sao_Paulo", p.EffectiveTimezone())
	assert.Equal(t, []string{"saturday"}, p.EffectiveWorkingDays())
	assert.Equal(t, "en", p.EffectiveLocale())
}

func TestCategory_Valid(t *testing.T) {
	for _, c := range AllCategories {
		assert.True(t, c.Valid(), string(c))
	}
	assert.False(t, Category("promotions").Valid())
	assert.False(t, Category("").Valid())
}
