package services

import (
	"testing"

	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWelcomeMessage(t *testing.T) {
	from := mail.NewEmail("ARMMI Data Assistant", "noreply@example.com")
	m := welcomeMessage(from, "ada@example.com", "Ada", "https://app.example.com")

	assert.Equal(t, "Welcome to the ARMMI Data Assistant", m.Subject)
	require.Len(t, m.Personalizations, 1)
	require.Len(t, m.Personalizations[0].To, 1)
	assert.Equal(t, "ada@example.com", m.Personalizations[0].To[0].Address)
	require.Len(t, m.Content, 2)
	assert.Contains(t, m.Content[0].Value, "https://app.example.com/login")
	assert.Contains(t, m.Content[1].Value, `href="https://app.example.com/login"`)
}
