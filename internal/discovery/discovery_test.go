// ABOUTME: Tests for mDNS discovery manager construction
package discovery

import "testing"

func TestNewManagerIsUsableImmediately(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Test Source", Port: 8927})
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	if mgr.Sources() == nil {
		t.Fatal("expected a non-nil sources channel")
	}
	mgr.Stop()
}
