package models

import "strings"

// CommandType enumerates the slash commands the bot understands.
type CommandType string

const (
	CommandStart   CommandType = "start"
	CommandHelp    CommandType = "help"
	CommandAdd     CommandType = "add"
	CommandSearch  CommandType = "search"
	CommandList    CommandType = "list"
	CommandSync    CommandType = "sync"
	CommandCancel  CommandType = "cancel"
	CommandSkip    CommandType = "skip"
	CommandBack    CommandType = "back"
	CommandUnknown CommandType = "unknown"
	// CommandNone marks free text that is not a command at all.
	CommandNone CommandType = ""
)

// Command represents a parsed slash command extracted from message text.
type Command struct {
	Type CommandType
	Raw  string
	Args []string
}

// ParseCommand derives a Command from message text. Text that does not start
// with "/" yields CommandNone.
func ParseCommand(message string) Command {
	trimmed := strings.TrimSpace(message)
	cmd := Command{Raw: message, Type: CommandNone}

	if !strings.HasPrefix(trimmed, "/") {
		return cmd
	}

	tokens := strings.Fields(trimmed)
	head := strings.ToLower(strings.TrimPrefix(tokens[0], "/"))
	// Group chats address commands as /start@botname.
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}

	switch CommandType(head) {
	case CommandStart, CommandHelp, CommandAdd, CommandSearch, CommandList,
		CommandSync, CommandCancel, CommandSkip, CommandBack:
		cmd.Type = CommandType(head)
	default:
		cmd.Type = CommandUnknown
	}

	if len(tokens) > 1 {
		cmd.Args = tokens[1:]
	}

	return cmd
}
