package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSensitive(t *testing.T) {
	cases := map[string]bool{
		"password":      true,
		"refreshToken":  true,
		"refresh_token": true,
		"Authorization": true,
		"access-token":  true,
		"user_id":       false,
		"load_id":       false,
		"status":        false,
	}
	for key, want := range cases {
		assert.Equalf(t, want, IsSensitive(key), "IsSensitive(%q)", key)
	}
}

func TestRedactHookMasksFields(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.AddHook(&RedactHook{})

	log.WithFields(logrus.Fields{
		"user_id":      "u-1",
		"refreshToken": "secret-value",
		"password":     "hunter2",
	}).Info("login attempt")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "u-1", entry["user_id"])
	assert.Equal(t, redacted, entry["refreshToken"])
	assert.Equal(t, redacted, entry["password"])
}
