package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/barberia/backoffice/internal/app"
	_ "github.com/barberia/backoffice/testing"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	assert.True(t, app.InTestMode())
	assert.NotPanics(t, main)
}
