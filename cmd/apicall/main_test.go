package main

import (
	"bytes"
	"testing"

	"github.com/samvad-hq/samvad-apicaller/pkg/apiclient"
)

func TestParseFieldsMergesDataAndPairs(t *testing.T) {
	fields, err := parseFields(`{"a":1,"b":"x"}`, []string{"b=y", "c=k=v"})
	if err != nil {
		t.Fatalf("parseFields: %v", err)
	}
	if fields["a"] != float64(1) || fields["b"] != "y" || fields["c"] != "k=v" {
		t.Fatalf("unexpected fields %v", fields)
	}

	if fields, err := parseFields("", nil); err != nil || fields != nil {
		t.Fatalf("expected nil fields, got %v, %v", fields, err)
	}
	if _, err := parseFields("", []string{"novalue"}); err == nil {
		t.Fatalf("expected error for pair without '='")
	}
	if _, err := parseFields("[1]", nil); err == nil {
		t.Fatalf("expected error for non-object data")
	}
}

func TestPrintBodyIndentsJSON(t *testing.T) {
	var buf bytes.Buffer
	p := apiclient.Payload{State: apiclient.PayloadPresent, Raw: []byte(`{"a":1}`)}
	if err := printBody(&buf, p, false); err != nil {
		t.Fatalf("printBody: %v", err)
	}
	if buf.String() != "{\n  \"a\": 1\n}\n" {
		t.Fatalf("indented output = %q", buf.String())
	}

	buf.Reset()
	if err := printBody(&buf, p, true); err != nil {
		t.Fatalf("printBody raw: %v", err)
	}
	if buf.String() != "{\"a\":1}\n" {
		t.Fatalf("raw output = %q", buf.String())
	}
}
