package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	errorSchema := compile("error.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"0.1",
	  "request_id":"0e9bd52f-3c7b-4c36-9f77-f171b6a9c001",
	  "world_id":"7c9e4df2-64a4-4b0e-ae1b-2f6f2f0a9d55",
	  "client_name":"owp-client"
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"0.1",
	  "request_id":"0e9bd52f-3c7b-4c36-9f77-f171b6a9c001",
	  "world_id":"7c9e4df2-64a4-4b0e-ae1b-2f6f2f0a9d55",
	  "token_mint":"4Nd1mY5WbS3vR6kP8qT2xJ9fH7cL1aZ0uE3gD5iB6oXq",
	  "motd":"Welcome",
	  "capabilities":["handshake"]
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var errMsg any
	_ = json.Unmarshal([]byte(`{
	  "type":"ERROR",
	  "protocol_version":"0.1",
	  "code":"E_WORLD_NOT_FOUND",
	  "message":"no such world"
	}`), &errMsg)
	validate(errorSchema, errMsg)

	var badCode any
	_ = json.Unmarshal([]byte(`{
	  "type":"ERROR",
	  "protocol_version":"0.1",
	  "code":"E_MADE_UP"
	}`), &badCode)
	if err := errorSchema.Validate(badCode); err == nil {
		t.Fatalf("expected unknown error code to fail validation")
	}
}
