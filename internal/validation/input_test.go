package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("anna@example.com"))
	assert.NoError(t, ValidateEmail("  Anna.K+test@Example.COM  "))

	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("anna"))
	assert.Error(t, ValidateEmail("anna@"))
	assert.Error(t, ValidateEmail("anna@localhost"))
	assert.Error(t, ValidateEmail("an na@example.com"))
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("anna_k"))

	assert.Error(t, ValidateUsername(""))
	assert.Error(t, ValidateUsername("ab"))
	assert.Error(t, ValidateUsername("1anna"))
	assert.Error(t, ValidateUsername("anna-k"))
	assert.Error(t, ValidateUsername(strings.Repeat("a", MaxUsernameLength+1)))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("Password1"))

	assert.Error(t, ValidatePassword("short1A"))
	assert.Error(t, ValidatePassword("alllowercase1"))
	assert.Error(t, ValidatePassword("ALLUPPERCASE1"))
	assert.Error(t, ValidatePassword("NoDigitsHere"))
}

func TestValidateOfferFields(t *testing.T) {
	assert.NoError(t, ValidateOfferTitle("Помощь с переездом"))
	assert.Error(t, ValidateOfferTitle(""))
	assert.Error(t, ValidateOfferTitle("ab"))

	assert.NoError(t, ValidateOfferDescription(""))
	assert.Error(t, ValidateOfferDescription(strings.Repeat("о", MaxOfferDescriptionLength+1)))

	assert.NoError(t, ValidateServiceType("переезд"))
	assert.Error(t, ValidateServiceType("  "))

	assert.NoError(t, ValidateHours(1))
	assert.Error(t, ValidateHours(0))
	assert.Error(t, ValidateHours(MaxHours+1))

	assert.NoError(t, ValidateTimeCredits(5))
	assert.Error(t, ValidateTimeCredits(0))
	assert.Error(t, ValidateTimeCredits(MaxTimeCredits+1))
}

func TestValidateServices(t *testing.T) {
	assert.NoError(t, ValidateServices(nil))
	assert.NoError(t, ValidateServices([]string{"переезд", "уроки"}))

	assert.Error(t, ValidateServices([]string{"переезд", "Переезд"}))
	assert.Error(t, ValidateServices([]string{" "}))

	many := make([]string, MaxServicesCount+1)
	for i := range many {
		many[i] = strings.Repeat("a", 3) + string(rune('а'+i%30))
	}
	assert.Error(t, ValidateServices(many))
}
