package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUsername(t *testing.T) {
	valid := []string{"ann.lee", "ann_lee", "Ann123", "a", "a.b.c"}
	for _, v := range valid {
		assert.NoError(t, Username(v), v)
	}

	invalid := map[string]string{
		"":          "empty",
		"ann lee":   "space",
		"ann-lee":   "hyphen",
		"ann@lee":   "symbol",
		"12345":     "only numbers",
		"ann..lee":  "consecutive dots",
		"...":       "only dots",
		"___":       "only underscores",
		"ann.lee!":  "trailing symbol",
		"änn":       "non-ascii letter",
	}
	for v, why := range invalid {
		assert.Error(t, Username(v), why)
	}
}

func TestName(t *testing.T) {
	assert.NoError(t, Name("Ann Lee"))
	assert.Error(t, Name(""))
	assert.Error(t, Name("Ann 2 Lee"), "digits rejected")

	long := make([]byte, MaxNameLen+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, Name(string(long)))
}

func TestEmailAndIsEmail(t *testing.T) {
	assert.NoError(t, Email("ann@x.com"))
	assert.Error(t, Email("ann@"))
	assert.Error(t, Email(""))

	assert.True(t, IsEmail("ann@x.com"))
	assert.False(t, IsEmail("ann.lee"))
	assert.False(t, IsEmail(""))
}

func TestPassword(t *testing.T) {
	assert.NoError(t, Password("longenough1"))
	assert.Error(t, Password("short"))
	assert.Error(t, Password(""))
}

func TestIsResetToken(t *testing.T) {
	assert.True(t, IsResetToken("350399bc-c095-4bdc-a59c-3352d44848e4"))
	assert.False(t, IsResetToken("not-a-token"))
	assert.False(t, IsResetToken(""))
}
