package stdio

import "testing"

func TestParseConfigOverridesDefaults(t *testing.T) {
	cfg, err := ParseConfig("timeout_ms=5000; write_queue_max_bytes=1024")
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.RequestTimeoutMs != 5000 {
		t.Fatalf("RequestTimeoutMs = %d, want 5000", cfg.RequestTimeoutMs)
	}
	if cfg.WriteQueueMaxBytes != 1024 {
		t.Fatalf("WriteQueueMaxBytes = %d, want 1024", cfg.WriteQueueMaxBytes)
	}
}

func TestParseConfigUnknownKeyIgnored(t *testing.T) {
	cfg, err := ParseConfig("future_option=7")
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	want := NewConfig()
	if cfg.RequestTimeoutMs != want.RequestTimeoutMs {
		t.Fatalf("unknown key should not alter defaults")
	}
}

func TestParseConfigInvalidEntryErrors(t *testing.T) {
	if _, err := ParseConfig("not-a-pair"); err == nil {
		t.Fatal("expected an error for an entry with no '='")
	}
}

func TestParseConfigInvalidValueErrors(t *testing.T) {
	if _, err := ParseConfig("timeout_ms=soon"); err == nil {
		t.Fatal("expected an error for a non-numeric known key")
	}
}

func TestParseConfigZeroQueueClampsToOne(t *testing.T) {
	cfg, err := ParseConfig("write_queue_max_bytes=0")
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.WriteQueueMaxBytes != 1 {
		t.Fatalf("WriteQueueMaxBytes = %d, want clamped to 1", cfg.WriteQueueMaxBytes)
	}
}
