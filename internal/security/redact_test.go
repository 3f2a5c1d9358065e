package security

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestMaskCredential(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "***"},
		{"abcdefg", "ab*****"},
		{"abcdefghijkl", "abcd****ijkl"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskCredential(tt.in), tt.in)
	}
}

func TestRedactURL(t *testing.T) {
	const botToken = "AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw"
	const slackToken = "XXXXXXXXXXXXXXXXXXXXXXXX"

	tests := []struct {
		name    string
		in      string
		hidden  string
		visible []string
	}{
		{
			name:    "telegram bot token in user info",
			in:      "telegram://123456789:" + botToken + "@telegram?chats=@deals",
			hidden:  botToken,
			visible: []string{"telegram://123456789:AAHd", "Dsaw@telegram", "chats=@deals"},
		},
		{
			name:    "slack token path segment",
			in:      "https://hooks.slack.com/services/T00000000/B00000000/" + slackToken,
			hidden:  slackToken,
			visible: []string{"hooks.slack.com/services/T00000000/B00000000/XXXX"},
		},
		{
			name:    "query token",
			in:      "https://example.com/hook?token=supersecretvalue&chat=1",
			hidden:  "supersecretvalue",
			visible: []string{"chat=1", "token=supe********alue"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RedactURL(tt.in)
			assert.NotContains(t, got, tt.hidden)
			for _, v := range tt.visible {
				assert.Contains(t, got, v)
			}
		})
	}

	assert.Equal(t, "ntfy://ntfy.sh/pricewatch", RedactURL("ntfy://ntfy.sh/pricewatch"))
	assert.Equal(t, []string{"ntfy://ntfy.sh/deals"}, RedactURLs([]string{"ntfy://ntfy.sh/deals"}))
}

func TestMaskString(t *testing.T) {
	msg := "POST https://example.com/hook?token=supersecretvalue failed: api_key=abcdefghijklmnop"
	got := MaskString(msg)
	assert.NotContains(t, got, "supersecretvalue")
	assert.NotContains(t, got, "abcdefghijklmnop")
	assert.Contains(t, got, "api_key=abcd********mnop")
	assert.Equal(t, "webhook returned status 502", MaskString("webhook returned status 502"))
}

func TestProperty_MaskCredentialHidesMiddle(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("length is kept and every middle position is masked", prop.ForAll(
		func(secret string) bool {
			masked := MaskCredential(secret)
			if len(masked) != len(secret) {
				return false
			}
			n := len(secret)
			return masked[:4] == secret[:4] &&
				masked[n-4:] == secret[n-4:] &&
				masked[4:n-4] == strings.Repeat("*", n-8)
		},
		gen.RegexMatch(`[A-Za-z0-9]{9,40}`),
	))

	properties.TestingRun(t)
}
