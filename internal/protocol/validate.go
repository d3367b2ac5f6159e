package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var clientSchemas = map[string]string{
	TypeHello:         "hello.schema.json",
	TypeInput:         "input.schema.json",
	TypeEventBatchReq: "event_batch_req.schema.json",
}

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func compileSchemas() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	compiled = map[string]*jsonschema.Schema{}
	for typ, name := range clientSchemas {
		b, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			compileErr = err
			return
		}
		url := "mem://protocol/" + name
		if err := c.AddResource(url, bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("schema %s: %w", name, err)
			return
		}
		s, err := c.Compile(url)
		if err != nil {
			compileErr = fmt.Errorf("schema %s: %w", name, err)
			return
		}
		compiled[typ] = s
	}
}

// ValidateClient checks a client message against the schema for its type and returns its header.
func ValidateClient(b []byte) (BaseMessage, error) {
	compileOnce.Do(compileSchemas)
	if compileErr != nil {
		return BaseMessage{}, compileErr
	}
	base, err := DecodeBase(b)
	if err != nil {
		return base, err
	}
	s, ok := compiled[base.Type]
	if !ok {
		return base, fmt.Errorf("unsupported message type %q", base.Type)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return base, err
	}
	if err := s.Validate(doc); err != nil {
		return base, err
	}
	return base, nil
}
