package types

import "fmt"

// CommandKind enumerates the control plane commands the slideshow
// controller understands.
type CommandKind int

const (
	CommandNext CommandKind = iota
	CommandPrevious
	CommandReload
	CommandSetOption
	CommandDisplayOn
	CommandDisplayOff
)

// Command is a control plane command delivered asynchronously to the
// controller. The controller drains at most one command per frame boundary.
type Command struct {
	Kind CommandKind

	// OptionPath and OptionValue are set for CommandSetOption, e.g.
	// path "blur.passes" value 4.
	OptionPath  string
	OptionValue any
}

func (k CommandKind) String() string {
	switch k {
	case CommandNext:
		return "next"
	case CommandPrevious:
		return "previous"
	case CommandReload:
		return "reload"
	case CommandSetOption:
		return "set_option"
	case CommandDisplayOn:
		return "display_on"
	case CommandDisplayOff:
		return "display_off"
	default:
		return fmt.Sprintf("command(%d)", int(k))
	}
}
