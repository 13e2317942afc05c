package mailer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventmail/internal/types"
)

func TestNewRenderer(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)
	for _, kind := range types.AllEmailKinds {
		assert.Contains(t, r.htmlTemplates, kind)
		assert.Contains(t, r.textTemplates, kind)
	}
}

func TestRenderer_RenderAllKinds(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	data := templateData{
		Subject:       "Subject line",
		ProductName:   "EventMail",
		RecipientName: "Ada",
		ActivationURL: "https://app.eventmail.test/activate/abc",
		EventTitle:    "Team Offsite",
		EventDate:     "Thu, Nov 5 2026 at 5:30 PM UTC",
		EventLocation: "Lisbon",
		Organizer:     "Grace",
	}

	for _, kind := range types.AllEmailKinds {
		t.Run(string(kind), func(t *testing.T) {
			rendered, err := r.Render(kind, data)
			require.NoError(t, err)
			assert.Equal(t, "Subject line", rendered.Subject)
			assert.Contains(t, rendered.BodyHTML, "<!DOCTYPE html>")
			assert.Contains(t, rendered.BodyHTML, "Hi Ada,")
			assert.True(t, strings.HasPrefix(rendered.BodyText, "Hi Ada,"))
			assert.Contains(t, rendered.BodyText, "-- EventMail")
		})
	}
}

func TestRenderer_EscapesHTML(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	rendered, err := r.Render(types.EmailEventCancellation, templateData{
		ProductName:   "EventMail",
		RecipientName: "Ada",
		EventTitle:    "<script>alert(1)</script>",
	})
	require.NoError(t, err)
	assert.NotContains(t, rendered.BodyHTML, "<script>")
	assert.Contains(t, rendered.BodyHTML, "&lt;script&gt;")
}

func TestRenderer_UnknownKind(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	_, err = r.Render("newsletter", templateData{})
	assert.Error(t, err)
}

func TestTemplateData_DynamicDataOmitsEmpty(t *testing.T) {
	got := templateData{Subject: "s", ProductName: "p", RecipientName: "r", EventTitle: "t"}.dynamicData()
	assert.Equal(t, map[string]interface{}{
		"subject":        "s",
		"product_name":   "p",
		"recipient_name": "r",
		"event_title":    "t",
	}, got)
}
