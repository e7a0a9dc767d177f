package optimization

import "testing"

func TestForProfile(t *testing.T) {
	for _, name := range []string{"", "default", "high_load", "low_resource"} {
		cfg, err := ForProfile(name)
		if err != nil {
			t.Fatalf("Expected profile %q to resolve, got %v", name, err)
		}
		if cfg.ClientSendBuffer <= 0 || cfg.EventLogCapacity <= 0 || cfg.MaxClients <= 0 {
			t.Errorf("Profile %q has non-positive limits: %+v", name, cfg)
		}
	}

	if _, err := ForProfile("turbo"); err == nil {
		t.Error("Expected unknown profile to fail")
	}
}

func TestHighLoadIsLargerThanDefault(t *testing.T) {
	def, high := DefaultConfig(), HighLoadConfig()
	if high.BroadcastChannelBuffer <= def.BroadcastChannelBuffer {
		t.Errorf("Expected high_load broadcast buffer > default, got %d <= %d", high.BroadcastChannelBuffer, def.BroadcastChannelBuffer)
	}
	if high.MaxClients <= def.MaxClients {
		t.Errorf("Expected high_load max clients > default, got %d <= %d", high.MaxClients, def.MaxClients)
	}
}
