package redact

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRedact_Email(t *testing.T) {
	f := MustDefault()

	out := f.Redact("Contact me at user@example.com for details.")

	assert.Equal(t, "Contact me at [REDACTED] for details.", out)
	assert.NotContains(t, out, "user@example.com")
}

func TestRedact_NationalID(t *testing.T) {
	f := MustDefault()

	assert.Equal(t, "ssn [REDACTED] end", f.Redact("ssn 123-45-6789 end"))
	assert.Equal(t, "12-345-6789", f.Redact("12-345-6789"), "wrong grouping must pass through")
}

func TestRedact_MultipleMatches(t *testing.T) {
	f := MustDefault()

	out := f.Redact("a@b.io and c@d.org, ids 111-22-3333 / 444-55-6666")
	assert.Equal(t, "[REDACTED] and [REDACTED], ids [REDACTED] / [REDACTED]", out)
}

func TestRedact_NoMatchReturnsInput(t *testing.T) {
	f := MustDefault()
	assert.Equal(t, "nothing to hide", f.Redact("nothing to hide"))
	assert.Equal(t, "", f.Redact(""))
}

func TestRedact_PatternOrder(t *testing.T) {
	// Второй шаблон видит результат первого
	f, err := New("<x>", []Pattern{
		{Name: "secret", Regex: `secret-\w+`},
		{Name: "tag", Regex: `#\w+`},
	})
	require.NoError(t, err)

	assert.Equal(t, "<x> <x>", f.Redact("secret-abc #tag"))
}

func TestNew_RejectsMarkerMatchingPattern(t *testing.T) {
	_, err := New("REDACTED", []Pattern{{Name: "caps", Regex: `[A-Z]+`}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matches pattern")
}

func TestNew_RejectsBadPatterns(t *testing.T) {
	_, err := New("", []Pattern{{Name: "broken", Regex: `(`}})
	require.Error(t, err)

	_, err = New("", []Pattern{{Name: "empty", Regex: "  "}})
	require.Error(t, err)

	_, err = New("", []Pattern{{Name: "optional", Regex: `a*`}})
	require.Error(t, err)
}

func TestNew_DefaultMarker(t *testing.T) {
	f, err := New("", DefaultPatterns())
	require.NoError(t, err)
	assert.Equal(t, DefaultMarker, f.Marker())
}

func TestRedactArguments_OnlyStrings(t *testing.T) {
	f := MustDefault()
	nested := map[string]any{"email": "x@y.com"}
	args := map[string]any{
		"message": "mail x@y.com",
		"count":   float64(3),
		"nested":  nested,
		"flag":    true,
	}

	out := f.RedactArguments(args)

	assert.Equal(t, "mail [REDACTED]", out["message"])
	assert.Equal(t, float64(3), out["count"])
	assert.Equal(t, nested, out["nested"], "non-string values pass through unchanged")
	assert.Equal(t, true, out["flag"])
	assert.Equal(t, "mail x@y.com", args["message"], "input map is not mutated")
}

func TestRedact_ConcurrentUse(t *testing.T) {
	f := MustDefault()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, "[REDACTED]", f.Redact("john@doe.net"))
			}
		}()
	}
	wg.Wait()
}

func TestRedact_IdempotentProperty(t *testing.T) {
	f := MustDefault()
	alphabet := []rune("abcXYZ019-_.+@[]REDACT \n")

	rapid.Check(t, func(t *rapid.T) {
		text := rapid.OneOf(
			rapid.String(),
			rapid.StringOf(rapid.RuneFrom(alphabet)),
		).Draw(t, "text")

		once := f.Redact(text)
		twice := f.Redact(once)
		if once != twice {
			t.Fatalf("not idempotent:\n in:    %q\n once:  %q\n twice: %q", text, once, twice)
		}
	})
}

func TestRedact_EmailNeverSurvivesProperty(t *testing.T) {
	f := MustDefault()

	rapid.Check(t, func(t *rapid.T) {
		local := rapid.StringMatching(`[a-z0-9]{1,12}`).Draw(t, "local")
		host := rapid.StringMatching(`[a-z]{1,10}\.(com|org|io)`).Draw(t, "host")
		prefix := rapid.StringMatching(`[A-Za-z ,]{0,20}`).Draw(t, "prefix")
		email := local + "@" + host

		out := f.Redact(prefix + " " + email + " tail")
		if !assert.NotContains(t, out, email) {
			t.Fatalf("email leaked: %q", out)
		}
		assert.Contains(t, out, DefaultMarker)
	})
}
