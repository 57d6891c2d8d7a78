package translation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUkrainianLocale(t *testing.T) {
	Configure("../../locales", "uk")
	t.Cleanup(func() { Configure("../../locales", "en") })

	assert.Equal(t, "uk", GetLanguage())
	assert.Equal(t, "Заряд", Translate("Charge"))
	assert.Equal(t, "Спробуй через 12 хв.", Translate("Try again in %d min.", 12))
}

func TestMissingTranslationFallsBackToMsgID(t *testing.T) {
	Configure("../../locales", "en")

	assert.Equal(t, "Charge", Translate("Charge"))
	assert.Equal(t, "Try again in 3 min.", Translate("Try again in %d min.", 3))
}
