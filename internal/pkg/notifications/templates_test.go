package notifications

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderKnownTemplate(t *testing.T) {
	body, err := Render("users-charge-failed", map[string]interface{}{
		"firstname": "Ada",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "Hi Ada")
	assert.Contains(t, body, "payment")
}

func TestRenderEscapesContext(t *testing.T) {
	body, err := Render("users-trial-end", map[string]interface{}{
		"firstname": "<script>alert(1)</script>",
	})
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render("users-unknown", nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unknown mail template"))
}

func TestHasTemplateCoversWebhookEventTemplates(t *testing.T) {
	for _, name := range []string{
		"users-trial-end",
		"users-subscription-updated",
		"users-subscription-canceled",
		"users-charge-success",
		"users-charge-failed",
		"users-charge-pending",
	} {
		assert.True(t, HasTemplate(name), name)
	}
	assert.False(t, HasTemplate("users-nope"))
}
