// ABOUTME: Tests for NDJSON records
// ABOUTME: Tests envelope layout, append semantics and decoding
package record

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestLineEnvelope(t *testing.T) {
	line, err := Line(TagDLS, DLS{Value: "Now playing", TS: 1700000000})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	want := `{"dls":{"value":"Now playing","ts":1700000000}}` + "\n"
	if string(line) != want {
		t.Errorf("expected %s, got %s", want, line)
	}
}

func TestEnsembleFieldNames(t *testing.T) {
	line, err := Line(TagEnsemble, Ensemble{
		EnsembleID:    0xce15,
		EnsembleLabel: "BBC National DAB",
		Session:       "s1",
		TS:            1700000000,
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	want := `{"ensemble":{"ensembleId":52757,"ensembleLabel":"BBC National DAB","session":"s1","ts":1700000000}}` + "\n"
	if string(line) != want {
		t.Errorf("got %s want %s", line, want)
	}
}

func TestMOTFieldNames(t *testing.T) {
	line, err := Line(TagMOT, MOT{
		File:            "0xf2f8-1700000000.jpg",
		ContentName:     "cover",
		ClickThroughURL: "http://example.org",
		CategoryTitle:   "Music",
		TS:              1700000000,
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	for _, key := range []string{`"file"`, `"content_name"`, `"click_through_url"`, `"category_title"`, `"ts"`} {
		if !bytes.Contains(line, []byte(key)) {
			t.Errorf("expected key %s in %s", key, line)
		}
	}
}

func TestAppendNeverTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0xf2f8.txt")

	if err := Append(path, TagDLS, DLS{Value: "one", TS: 1}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	err := AppendAll(path,
		Entry{Tag: TagDLS, Payload: DLS{Value: "two", TS: 2}},
		Entry{Tag: TagDLS, Payload: DLS{Value: "three", TS: 3}},
	)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer f.Close()

	var values []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tag, raw, err := Decode(scanner.Bytes())
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if tag != TagDLS {
			t.Errorf("expected tag dls, got %s", tag)
		}
		var d DLS
		if err := json.Unmarshal(raw, &d); err != nil {
			t.Fatalf("payload decode failed: %v", err)
		}
		values = append(values, d.Value)
	}

	if len(values) != 3 || values[0] != "one" || values[2] != "three" {
		t.Errorf("unexpected values: %v", values)
	}
}

func TestAppendMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "x.txt")

	if err := Append(path, TagDLS, DLS{}); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestDecodeRejectsMultipleTags(t *testing.T) {
	if _, _, err := Decode([]byte(`{"dls":{},"mot":{}}`)); err == nil {
		t.Error("expected error for two tags")
	}
	if _, _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid json")
	}
}
