package control

import (
	"errors"
	"testing"

	"github.com/xabufr/memocadre/internal/config"
	"github.com/xabufr/memocadre/internal/types"
)

func testHandler(callbacks CommandCallbacks) *Handler {
	return NewHandler(&config.Config{InstanceID: "test"}, callbacks)
}

func TestExecuteSimpleCommands(t *testing.T) {
	calls := map[string]int{}
	h := testHandler(CommandCallbacks{
		OnNext:       func() error { calls["next"]++; return nil },
		OnPrevious:   func() error { calls["previous"]++; return nil },
		OnDisplayOn:  func() error { calls["display_on"]++; return nil },
		OnDisplayOff: func() error { calls["display_off"]++; return nil },
	})

	for _, name := range []string{"next", "previous", "display_on", "display_off"} {
		resp := h.Execute(Command{Command: name})
		if resp.Status != "success" {
			t.Errorf("%s: status %q error %q", name, resp.Status, resp.Error)
		}
		if resp.CommandAck != name {
			t.Errorf("%s: ack %q", name, resp.CommandAck)
		}
		if calls[name] != 1 {
			t.Errorf("%s: callback ran %d times", name, calls[name])
		}
	}
}

func TestExecuteCallbackError(t *testing.T) {
	h := testHandler(CommandCallbacks{
		OnNext: func() error { return errors.New("command queue full") },
	})

	resp := h.Execute(Command{Command: "next"})
	if resp.Status != "error" {
		t.Fatalf("expected error status, got %q", resp.Status)
	}
	if resp.Error != "command queue full" {
		t.Errorf("error text lost: %q", resp.Error)
	}
}

func TestExecuteSetOption(t *testing.T) {
	var gotPath string
	var gotValue any
	h := testHandler(CommandCallbacks{
		OnSetOption: func(path string, value any) error {
			gotPath, gotValue = path, value
			return nil
		},
	})

	resp := h.Execute(Command{
		Command: "set_option",
		Params:  map[string]any{"path": "blur.passes", "value": float64(4)},
	})
	if resp.Status != "success" {
		t.Fatalf("set_option failed: %s", resp.Error)
	}
	if gotPath != "blur.passes" || gotValue != float64(4) {
		t.Errorf("callback got %q %v", gotPath, gotValue)
	}
}

func TestExecuteSetOptionValidation(t *testing.T) {
	h := testHandler(CommandCallbacks{
		OnSetOption: func(string, any) error { return nil },
	})

	resp := h.Execute(Command{Command: "set_option", Params: map[string]any{"value": 1}})
	if resp.Status != "error" {
		t.Errorf("missing path must fail")
	}

	resp = h.Execute(Command{Command: "set_option", Params: map[string]any{"path": "rotation"}})
	if resp.Status != "error" {
		t.Errorf("missing value must fail")
	}
}

func TestExecuteGetStatus(t *testing.T) {
	h := testHandler(CommandCallbacks{
		OnGetStatus: func() types.Status {
			return types.Status{
				State:      types.StateDisplaying,
				DisplayOn:  true,
				AssetID:    "asset-7",
				QueueReady: 1,
			}
		},
	})

	resp := h.Execute(Command{Command: "get_status"})
	if resp.Status != "success" {
		t.Fatalf("get_status failed: %s", resp.Error)
	}
	if resp.Data["state"] != "displaying" {
		t.Errorf("state missing from data: %v", resp.Data)
	}
	if resp.Data["asset_id"] != "asset-7" {
		t.Errorf("asset id missing from data: %v", resp.Data)
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	h := testHandler(CommandCallbacks{})

	resp := h.Execute(Command{Command: "make_coffee"})
	if resp.Status != "error" {
		t.Fatalf("unknown command must fail")
	}
	if resp.CommandAck != "make_coffee" {
		t.Errorf("ack should echo the command, got %q", resp.CommandAck)
	}
}

func TestExecuteUnimplementedCallback(t *testing.T) {
	h := testHandler(CommandCallbacks{})

	resp := h.Execute(Command{Command: "next"})
	if resp.Status != "error" {
		t.Fatalf("nil callback must report an error, got %q", resp.Status)
	}
}
