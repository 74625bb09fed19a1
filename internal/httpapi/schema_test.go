// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package httpapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchemas(t *testing.T) {
	schemas, err := GenerateSchemas()
	require.NoError(t, err)
	require.Len(t, schemas, len(schemaDefs))

	for _, def := range schemaDefs {
		data, ok := schemas[def.file]
		require.True(t, ok, "missing %s", def.file)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc), def.file)
		assert.Equal(t, schemaBaseURL+def.file, doc["$id"])
		assert.Equal(t, def.title, doc["title"])
	}
}

func TestCompileRequestSchemas(t *testing.T) {
	schemas, err := compileRequestSchemas()
	require.NoError(t, err)

	var missing any
	require.NoError(t, json.Unmarshal([]byte(`{"email":"a@b.c"}`), &missing))
	assert.Error(t, schemas.login.Validate(missing), "password is required")

	var ok any
	require.NoError(t, json.Unmarshal([]byte(`{"email":"a@b.c","password":"secret123"}`), &ok))
	assert.NoError(t, schemas.login.Validate(ok))

	var badStatus any
	require.NoError(t, json.Unmarshal([]byte(`{"email":"a@b.c","status":"banned"}`), &badStatus))
	assert.Error(t, schemas.status.Validate(badStatus))
}
