package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlayer/onboard/pkg/domain"
	"github.com/finlayer/onboard/pkg/rules"
)

func TestMatchPattern_GSTIN(t *testing.T) {
	cases := []struct {
		value string
		valid bool
	}{
		{"29ABCDE1234F1Z5", true},
		{"29abcde1234f1z5", false}, // lowercase
		{"29ABCDE1234F1Z", false},  // 14 chars
		{"29ABCDE1234F1X5", false}, // missing literal Z
		{"2XABCDE1234F1Z5", false}, // letter where digit expected
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.valid, rules.MatchPattern("gstin", tc.value), "value %q", tc.value)
	}
}

func TestMatchPattern_PAN(t *testing.T) {
	assert.True(t, rules.MatchPattern("pan", "ABCDE1234F"))
	assert.False(t, rules.MatchPattern("pan", "abcde1234f"))
	assert.False(t, rules.MatchPattern("pan", "ABCDE12345"))
	assert.False(t, rules.MatchPattern("pan", "ABCD1234F"))
}

func TestMatchPattern_EIN(t *testing.T) {
	assert.True(t, rules.MatchPattern("ein", "12-3456789"))
	assert.True(t, rules.MatchPattern("ein", "123456789"))
	assert.False(t, rules.MatchPattern("ein", "12-345678"))
	assert.False(t, rules.MatchPattern("ein", "12-34567890"))
}

func TestMatchPattern_Email(t *testing.T) {
	assert.True(t, rules.MatchPattern("email", "ops@acme.example"))
	assert.True(t, rules.MatchPattern("email", "first.last@sub.domain.io"))
	assert.False(t, rules.MatchPattern("email", "ops@acme"))
	assert.False(t, rules.MatchPattern("email", "ops acme@x.co"))
	assert.False(t, rules.MatchPattern("email", "@acme.example"))
}

func TestMatchPattern_UnknownNameMatchesEverything(t *testing.T) {
	assert.True(t, rules.MatchPattern("no-such-pattern", "anything"))
}

func TestRegionRequired(t *testing.T) {
	for _, c := range []string{"IN", "India", "US", "United States", "CA", "Canada", "AU", "Australia"} {
		assert.True(t, rules.RegionRequired(c), "country %q", c)
	}
	assert.False(t, rules.RegionRequired("DE"))
	assert.False(t, rules.RegionRequired(""))
}

func TestValidate_RequiredField(t *testing.T) {
	field := &rules.Field{Path: "adminEmail", DisplayName: "Admin Email", Required: true, Pattern: "email"}
	answers := domain.NewAnswerSet()
	ctx := rules.Context{}

	t.Run("absent", func(t *testing.T) {
		err := rules.Validate(field, answers, ctx)
		require.NotNil(t, err)
		assert.Equal(t, "Required", err.Message)
		assert.Equal(t, "adminEmail", err.FieldPath)
	})

	t.Run("explicit empty string", func(t *testing.T) {
		answers.Set("adminEmail", "")
		require.NotNil(t, rules.Validate(field, answers, ctx))
	})

	t.Run("malformed", func(t *testing.T) {
		answers.Set("adminEmail", "not-an-email")
		err := rules.Validate(field, answers, ctx)
		require.NotNil(t, err)
		assert.Equal(t, "Invalid email address", err.Message)
	})

	t.Run("valid", func(t *testing.T) {
		answers.Set("adminEmail", "ops@acme.example")
		assert.Nil(t, rules.Validate(field, answers, ctx))
	})
}

func TestValidate_OptionalFieldWithFormat(t *testing.T) {
	field := &rules.Field{Path: "taxProfile.gstin", Pattern: "gstin"}
	answers := domain.NewAnswerSet()
	ctx := rules.Context{Country: "IN"}

	// Unanswered-but-optional is not an error.
	assert.Nil(t, rules.Validate(field, answers, ctx))

	// Present but malformed is invalid even though optional.
	answers.Set("taxProfile.gstin", "29ABCDE1234F1Z")
	require.NotNil(t, rules.Validate(field, answers, ctx))

	answers.Set("taxProfile.gstin", "29ABCDE1234F1Z5")
	assert.Nil(t, rules.Validate(field, answers, ctx))
}

func TestValidate_ConditionalRequirement(t *testing.T) {
	field := &rules.Field{
		Path:    "taxProfile.gstin",
		Pattern: "gstin",
		RequiredWhen: func(answers domain.AnswerSet, ctx rules.Context) bool {
			return answers.Bool("taxProfile.registered") && ctx.Country == "IN"
		},
	}
	answers := domain.NewAnswerSet()

	assert.Nil(t, rules.Validate(field, answers, rules.Context{Country: "IN"}), "toggle off")

	answers.Set("taxProfile.registered", true)
	require.NotNil(t, rules.Validate(field, answers, rules.Context{Country: "IN"}), "toggle on")
	assert.Nil(t, rules.Validate(field, answers, rules.Context{Country: "DE"}), "other jurisdiction")
}

func TestValidate_UnknownFieldIsValid(t *testing.T) {
	// Open-world default: a nil descriptor can never block navigation.
	assert.Nil(t, rules.Validate(nil, domain.NewAnswerSet(), rules.Context{}))
}
