// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaBaseURL = "https://certledger.dev/schemas/"

// RegisterRequest is the body of POST /auth/register.
// Values are checked by the auth service; the schema only enforces shape.
type RegisterRequest struct {
	Email    string         `json:"email" jsonschema:"description=Login email; compared case-insensitively"`
	Password string         `json:"password" jsonschema:"description=Plaintext password (8 to 72 bytes)"`
	Name     string         `json:"name" jsonschema:"description=Display name"`
	Role     string         `json:"role" jsonschema:"description=One of producer manufacturer distributor certifier administrator"`
	Company  CompanyRequest `json:"company"`
}

// CompanyRequest describes the registrant's organization.
type CompanyRequest struct {
	Name               string `json:"name"`
	Address            string `json:"address"`
	Contact            string `json:"contact"`
	RegistrationNumber string `json:"registrationNumber" jsonschema:"description=Unique company registration number"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// StatusRequest is the body of POST /admin/identities/status.
type StatusRequest struct {
	Email  string `json:"email"`
	Status string `json:"status" jsonschema:"enum=active,enum=suspended,enum=inactive"`
}

type schemaDef struct {
	file  string
	title string
	v     any
}

var schemaDefs = []schemaDef{
	{"register-request.schema.json", "CertLedger register request", &RegisterRequest{}},
	{"login-request.schema.json", "CertLedger login request", &LoginRequest{}},
	{"status-request.schema.json", "CertLedger account status request", &StatusRequest{}},
}

// GenerateSchemas returns the JSON Schemas of all request bodies keyed by file name.
func GenerateSchemas() (map[string][]byte, error) {
	out := make(map[string][]byte, len(schemaDefs))
	for _, def := range schemaDefs {
		data, err := generateSchema(def)
		if err != nil {
			return nil, err
		}
		out[def.file] = data
	}
	return out, nil
}

func generateSchema(def schemaDef) ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	schema := r.Reflect(def.v)
	schema.ID = jsonschema.ID(schemaBaseURL + def.file)
	schema.Title = def.title

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").With("schema", def.file).Wrap(err)
	}
	return data, nil
}

type requestSchemas struct {
	register *jschema.Schema
	login    *jschema.Schema
	status   *jschema.Schema
}

func compileRequestSchemas() (*requestSchemas, error) {
	c := jschema.NewCompiler()
	compiled := make(map[string]*jschema.Schema, len(schemaDefs))
	for _, def := range schemaDefs {
		data, err := generateSchema(def)
		if err != nil {
			return nil, err
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", def.file).Wrap(err)
		}
		url := schemaBaseURL + def.file
		if err := c.AddResource(url, doc); err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", def.file).Wrap(err)
		}
		sch, err := c.Compile(url)
		if err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", def.file).Wrap(err)
		}
		compiled[def.file] = sch
	}
	return &requestSchemas{
		register: compiled["register-request.schema.json"],
		login:    compiled["login-request.schema.json"],
		status:   compiled["status-request.schema.json"],
	}, nil
}

// decodeBody reads the request body, validates it against schema and decodes it
// into dst. On failure it writes the response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, schema *jschema.Schema, dst any) bool {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, envelope{Message: msgBodyTooLarge})
			return false
		}
		writeJSON(w, http.StatusBadRequest, envelope{Message: msgInvalidBody})
		return false
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: msgInvalidBody})
		return false
	}
	if err := schema.Validate(doc); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: msgInvalidBody + ": " + schemaErrorDetail(err)})
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: msgInvalidBody})
		return false
	}
	return true
}

// schemaErrorDetail returns the innermost line of a schema validation error.
func schemaErrorDetail(err error) string {
	lines := strings.Split(strings.TrimSpace(err.Error()), "\n")
	detail := strings.TrimSpace(lines[len(lines)-1])
	return strings.TrimPrefix(detail, "- ")
}
