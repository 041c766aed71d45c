package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssemble_Deterministic(t *testing.T) {
	a := Assemble("some context", "some profile", "I have a headache")
	b := Assemble("some context", "some profile", "I have a headache")
	assert.Equal(t, a, b)
}

func TestAssemble_SectionOrder(t *testing.T) {
	p := Assemble("CONTEXT-MARKER", "PROFILE-MARKER", "QUERY-MARKER")

	idxSystem := strings.Index(p, "System Instruction:")
	idxContext := strings.Index(p, "Medical Knowledge Context:")
	idxProfile := strings.Index(p, "User Information:")
	idxQuery := strings.Index(p, "User Query:")
	idxGuide := strings.Index(p, "Guidelines for Response:")

	assert.True(t, idxSystem >= 0 && idxSystem < idxContext)
	assert.True(t, idxContext < idxProfile)
	assert.True(t, idxProfile < idxQuery)
	assert.True(t, idxQuery < idxGuide)

	assert.Contains(t, p, "CONTEXT-MARKER")
	assert.Contains(t, p, "PROFILE-MARKER")
	assert.Contains(t, p, "QUERY-MARKER")
}

func TestAssemble_CarriesPersonaAndDisclaimer(t *testing.T) {
	p := Assemble(NoContextPlaceholder, NoProfilePlaceholder, "q")

	assert.Contains(t, p, "You are Spark AI")
	assert.Contains(t, p, Disclaimer)
	// The disclaimer is conditional: clarifying-only replies must not carry it.
	assert.Contains(t, p, "If the response is only exploratory or asking clarifications, do not add the disclaimer.")
	assert.Contains(t, p, NoContextPlaceholder)
	assert.Contains(t, p, NoProfilePlaceholder)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "No user data available.", NoProfilePlaceholder)
	assert.Equal(t, "No relevant medical data found.", NoContextPlaceholder)
}
