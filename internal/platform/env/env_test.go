package env

import (
	"testing"
	"time"
)

func TestString(t *testing.T) {
	if got := String("RUNCAP_ENV_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("String()=%q, want fallback", got)
	}
	t.Setenv("RUNCAP_ENV_STRING", "value")
	if got := String("RUNCAP_ENV_STRING", "fallback"); got != "value" {
		t.Fatalf("String()=%q, want value", got)
	}
}

func TestDuration(t *testing.T) {
	got, err := Duration("RUNCAP_ENV_MISSING", 5*time.Second)
	if err != nil || got != 5*time.Second {
		t.Fatalf("Duration()=%v, err=%v", got, err)
	}
	t.Setenv("RUNCAP_ENV_DURATION", "250ms")
	got, err = Duration("RUNCAP_ENV_DURATION", 5*time.Second)
	if err != nil || got != 250*time.Millisecond {
		t.Fatalf("Duration()=%v, err=%v", got, err)
	}
	t.Setenv("RUNCAP_ENV_DURATION", "not-a-duration")
	if _, err := Duration("RUNCAP_ENV_DURATION", 5*time.Second); err == nil {
		t.Fatalf("Duration() expected error")
	}
}

func TestBool(t *testing.T) {
	got, err := Bool("RUNCAP_ENV_MISSING", true)
	if err != nil || !got {
		t.Fatalf("Bool()=%v, err=%v", got, err)
	}
	t.Setenv("RUNCAP_ENV_BOOL", "false")
	got, err = Bool("RUNCAP_ENV_BOOL", true)
	if err != nil || got {
		t.Fatalf("Bool()=%v, err=%v", got, err)
	}
	t.Setenv("RUNCAP_ENV_BOOL", "nope")
	if _, err := Bool("RUNCAP_ENV_BOOL", false); err == nil {
		t.Fatalf("Bool() expected error")
	}
}

func TestInt(t *testing.T) {
	got, err := Int("RUNCAP_ENV_MISSING", 42)
	if err != nil || got != 42 {
		t.Fatalf("Int()=%v, err=%v", got, err)
	}
	t.Setenv("RUNCAP_ENV_INT", "7")
	got, err = Int("RUNCAP_ENV_INT", 42)
	if err != nil || got != 7 {
		t.Fatalf("Int()=%v, err=%v", got, err)
	}
	t.Setenv("RUNCAP_ENV_INT", "seven")
	if _, err := Int("RUNCAP_ENV_INT", 42); err == nil {
		t.Fatalf("Int() expected error")
	}
}
