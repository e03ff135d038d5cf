package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeLog(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gridwatch.log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}
	return path
}

func TestRead(t *testing.T) {
	var all []string
	for i := 1; i <= 10; i++ {
		all = append(all, fmt.Sprintf("Line %d", i))
	}
	path := writeLog(t, all)

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{"zero", 0, nil},
		{"partial", 5, all[5:]},
		{"exactly all", 10, all},
		{"more than exists", 20, all},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(path, tt.maxLines)
			if err != nil {
				t.Fatalf("Read returned error: %v", err)
			}
			if len(got) == 0 && len(tt.expected) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Fatalf("Read = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "nope.log"), 5)
	if err != nil || got != nil {
		t.Fatalf("Read = %v, %v; want nil, nil", got, err)
	}
}

func TestParse(t *testing.T) {
	line := `{"level":"warn","time":"2024-09-30T08:15:02.123Z","logger":"query","msg":"fetch failed","key":"[\"grid-events\",2]","error":"api /api/grid-events returned status 500"}`
	e, ok := Parse(line)
	if !ok {
		t.Fatalf("Parse reported non-JSON line")
	}
	if e.Level != "warn" || e.Logger != "query" || e.Message != "fetch failed" {
		t.Fatalf("entry = %+v", e)
	}
	want := time.Date(2024, 9, 30, 8, 15, 2, 123_000_000, time.UTC)
	if !e.Time.Equal(want) {
		t.Fatalf("Time = %v, want %v", e.Time, want)
	}
	if e.Fields["key"] != `["grid-events",2]` {
		t.Fatalf("key field = %v", e.Fields["key"])
	}

	plain, ok := Parse("panic: something")
	if ok || plain.Message != "panic: something" {
		t.Fatalf("Parse(plain) = %+v, %v", plain, ok)
	}
}

func TestTailAndFormat(t *testing.T) {
	path := writeLog(t, []string{
		`{"level":"debug","time":"2024-09-30T08:15:00.000Z","logger":"query","msg":"fetch started","seq":1}`,
		``,
		`{"level":"info","logger":"query","msg":"cache cleared","entries":3}`,
		`not json`,
	})
	entries, err := Tail(path, 10)
	if err != nil {
		t.Fatalf("Tail returned error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Tail = %d entries, want 3", len(entries))
	}
	if got := Format(entries[1]); got != "INFO  query cache cleared entries=3" {
		t.Fatalf("Format = %q", got)
	}
	if got := Format(entries[2]); got != "not json" {
		t.Fatalf("Format(plain) = %q", got)
	}
	if got := Format(entries[0]); !strings.HasSuffix(got, "DEBUG query fetch started seq=1") {
		t.Fatalf("Format = %q", got)
	}
}
