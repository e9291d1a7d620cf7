package invocation

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	rec := Record{
		Executable: "train_resnet_bbb.py",
		Args: []Arg{
			{Name: "--lr", Value: "0.005", HasValue: true},
			{Name: "--use_adam"},
			{Name: "--num_tasks", Value: "5", HasValue: true},
			{Name: "--kl_scale", Value: "1.", HasValue: true},
			{Name: "--during_acc_criterion", Value: `"-1"`, HasValue: true},
		},
	}

	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("Encode() err=%v", err)
	}
	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() err=%v", err)
	}
	if !parsed.Equal(rec) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", parsed, rec)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	rec := Record{
		Executable: "train_resnet_bbb.py",
		Args: []Arg{
			{Name: "--lr", Value: "0.005", HasValue: true},
			{Name: "--use_adam"},
		},
	}
	first, err := Encode(rec)
	if err != nil {
		t.Fatalf("Encode() err=%v", err)
	}
	second, err := Encode(rec)
	if err != nil {
		t.Fatalf("Encode() err=%v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("expected byte-identical encodings")
	}
}

func TestEncodeFinalLine(t *testing.T) {
	rec := Record{
		Executable: "train_resnet_bbb.py",
		Args: []Arg{
			{Name: "--lr", Value: "0.005", HasValue: true},
			{Name: "--use_adam"},
			{Name: "--num_tasks", Value: "5", HasValue: true},
		},
	}
	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("Encode() err=%v", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if lines[0] != "#!/bin/sh" {
		t.Fatalf("expected shebang first, got %q", lines[0])
	}
	last := lines[len(lines)-1]
	want := "train_resnet_bbb.py --lr=0.005 --use_adam --num_tasks=5"
	if last != want {
		t.Fatalf("final line=%q, want %q", last, want)
	}
}

func TestParseBooleanFlag(t *testing.T) {
	rec, err := Parse([]byte("train.py --use_adam\n"))
	if err != nil {
		t.Fatalf("Parse() err=%v", err)
	}
	if len(rec.Args) != 1 {
		t.Fatalf("expected one arg, got %d", len(rec.Args))
	}
	arg := rec.Args[0]
	if arg.Name != "--use_adam" || arg.HasValue || arg.Value != "" {
		t.Fatalf("boolean flag mangled: %#v", arg)
	}
}

func TestParseNegativeNumberValue(t *testing.T) {
	rec, err := Parse([]byte("train.py --momentum=-1 --clip_grad_norm=-1\n"))
	if err != nil {
		t.Fatalf("Parse() err=%v", err)
	}
	if len(rec.Args) != 2 {
		t.Fatalf("negative values split into extra tokens: %#v", rec.Args)
	}
	if rec.Args[0].Value != "-1" || !rec.Args[0].HasValue {
		t.Fatalf("expected --momentum=-1 preserved, got %#v", rec.Args[0])
	}
}

func TestParseSplitsOnFirstEquals(t *testing.T) {
	rec, err := Parse([]byte("train.py --during_acc_criterion=a=b\n"))
	if err != nil {
		t.Fatalf("Parse() err=%v", err)
	}
	if rec.Args[0].Name != "--during_acc_criterion" || rec.Args[0].Value != "a=b" {
		t.Fatalf("expected split on first '=', got %#v", rec.Args[0])
	}
}

func TestParseIgnoresCommentsAndBlankLines(t *testing.T) {
	data := "#!/bin/sh\n# Command used to launch this run.\n\ntrain.py --lr=0.1\n"
	rec, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() err=%v", err)
	}
	if rec.Executable != "train.py" {
		t.Fatalf("executable=%q", rec.Executable)
	}
}

func TestParseEmptyInput(t *testing.T) {
	if _, err := Parse([]byte("#!/bin/sh\n# nothing\n")); err == nil {
		t.Fatalf("expected error for missing invocation line")
	}
}

func TestEncodeRejectsWhitespaceValue(t *testing.T) {
	rec := Record{
		Executable: "train.py",
		Args:       []Arg{{Name: "--label", Value: "two words", HasValue: true}},
	}
	if _, err := Encode(rec); err == nil {
		t.Fatalf("expected error for whitespace in value")
	}
}
