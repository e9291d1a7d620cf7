package invocation

import "testing"

func TestRecordValidate(t *testing.T) {
	cases := []struct {
		name    string
		rec     Record
		wantErr bool
	}{
		{"ok", Record{Executable: "train.py", Args: []Arg{{Name: "--lr", Value: "0.1", HasValue: true}}}, false},
		{"no args ok", Record{Executable: "train.py"}, false},
		{"empty executable", Record{}, true},
		{"executable with space", Record{Executable: "python train.py"}, true},
		{"empty flag name", Record{Executable: "train.py", Args: []Arg{{Name: " "}}}, true},
		{"flag name with equals", Record{Executable: "train.py", Args: []Arg{{Name: "--a=b"}}}, true},
		{"presence flag with value", Record{Executable: "train.py", Args: []Arg{{Name: "--x", Value: "1"}}}, true},
		{"valued flag empty value ok", Record{Executable: "train.py", Args: []Arg{{Name: "--x", Value: "", HasValue: true}}}, false},
	}
	for _, tc := range cases {
		err := tc.rec.Validate()
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: Validate() err=%v, wantErr=%v", tc.name, err, tc.wantErr)
		}
	}
}

func TestCommandLineOrder(t *testing.T) {
	rec := Record{
		Executable: "train.py",
		Args: []Arg{
			{Name: "--b", Value: "2", HasValue: true},
			{Name: "--a", Value: "1", HasValue: true},
		},
	}
	want := "train.py --b=2 --a=1"
	if got := rec.CommandLine(); got != want {
		t.Fatalf("CommandLine()=%q, want %q", got, want)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	rec := Record{Executable: "train.py", Args: []Arg{{Name: "--a", Value: "1", HasValue: true}}}
	clone := rec.Clone()
	clone.Args[0].Value = "2"
	if rec.Args[0].Value != "1" {
		t.Fatalf("clone shares backing array with original")
	}
}

func TestMarshalArgsRoundTrip(t *testing.T) {
	args := []Arg{
		{Name: "--lr", Value: "0.005", HasValue: true},
		{Name: "--use_adam"},
		{Name: "--empty", Value: "", HasValue: true},
	}
	data, err := MarshalArgs(args)
	if err != nil {
		t.Fatalf("MarshalArgs() err=%v", err)
	}
	got, err := UnmarshalArgs(data)
	if err != nil {
		t.Fatalf("UnmarshalArgs() err=%v", err)
	}
	if len(got) != len(args) {
		t.Fatalf("len=%d, want %d", len(got), len(args))
	}
	for i := range args {
		if got[i] != args[i] {
			t.Fatalf("arg %d: got %#v, want %#v", i, got[i], args[i])
		}
	}
}
