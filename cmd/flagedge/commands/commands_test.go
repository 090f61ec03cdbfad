package commands

import (
	"bytes"
	"os"
	"regexp"
	"strings"
	"testing"
)

const testDatafile = "../../../internal/optimizely/testdata/datafile.json"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		sdkKey, datafilePath, baseURL, format, verbose = "", "", "", "", false
		decideFlag, decideEvents = "", false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDecide_FromFile(t *testing.T) {
	out, err := run(t, "decide", "--datafile", testDatafile, "--flag", "discount")
	if err != nil {
		t.Fatalf("decide failed: %v", err)
	}
	re := regexp.MustCompile(`^The Flag "discount" was Enabled for the user "[0-9a-f-]{36}"\n$`)
	if !re.MatchString(out) {
		t.Errorf("Unexpected output %q", out)
	}
}

func TestFlags_FromFile(t *testing.T) {
	out, err := run(t, "flags", "--datafile", testDatafile, "--format", "json")
	if err != nil {
		t.Fatalf("flags failed: %v", err)
	}
	for _, want := range []string{`"revision": "42"`, `"discount"`, `"banner"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %s in output:\n%s", want, out)
		}
	}
}

func TestDecide_MissingFile(t *testing.T) {
	if _, err := run(t, "decide", "--datafile", "does-not-exist.json"); err == nil {
		t.Error("Expected an error for a missing datafile")
	}
}

func TestDatafile_FromFile(t *testing.T) {
	want, err := os.ReadFile(testDatafile)
	if err != nil {
		t.Fatalf("read datafile: %v", err)
	}

	out, err := run(t, "datafile", "--datafile", testDatafile)
	if err != nil {
		t.Fatalf("datafile failed: %v", err)
	}
	if out != string(want) {
		t.Errorf("Expected the datafile unchanged, got %d bytes instead of %d", len(out), len(want))
	}
}

func TestDecide_SendEvents(t *testing.T) {
	// delivery may fail without network; the decision output must not depend on it
	t.Setenv("EVENT_TIMEOUT", "200ms")

	out, err := run(t, "decide", "--datafile", testDatafile, "--flag", "banner", "--send-events")
	if err != nil {
		t.Fatalf("decide failed: %v", err)
	}
	re := regexp.MustCompile(`^The Flag "banner" was Not Enabled for the user "[0-9a-f-]{36}"\n$`)
	if !re.MatchString(out) {
		t.Errorf("Unexpected output %q", out)
	}
}
